package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gotwitter "github.com/g8rswimmer/go-twitter/v2"
	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/config"
	"github.com/truemediaorg/detectbot/signer"
)

const (
	TwitterHost = "https://api.twitter.com"

	minSearchResults = 10
	maxSearchResults = 100
)

var ErrBotUserNotFound = errors.New("bot user not found")

type TwitterService struct {
	userID      string
	botUserName string
	// bearer-token client for reads
	apiClient *gotwitter.Client
	// every request is OAuth 1.0a signed and charged to the request window
	signedClient *gotwitter.Client

	searchPageSize int
}

type authorize struct {
	Token string
}

func (a authorize) Add(req *http.Request) {
	if a.Token == "" {
		// signed requests get their Authorization header from the transport
		return
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", a.Token))
}

// NewTwitterService builds the read and signed clients and resolves the user ID
// the bot posts and likes as.
func NewTwitterService(ctx context.Context, cfg config.TwitterConfig, secrets config.TwitterSecretData, window *signer.Window, host string) (*TwitterService, error) {
	apiClient := &gotwitter.Client{
		Authorizer: authorize{Token: secrets.BearerToken},
		Client:     &http.Client{Transport: &signer.LoggingTransport{}},
		Host:       host,
	}

	signing := &signer.SigningTransport{
		Signer: signer.NewSigner(signer.Credentials{
			ConsumerKey:       secrets.ConsumerKey,
			ConsumerSecret:    secrets.ConsumerSecret,
			AccessToken:       secrets.AccessToken,
			AccessTokenSecret: secrets.AccessTokenSecret,
		}),
		Window: window,
		Base:   &signer.LoggingTransport{},
	}
	signedClient := &gotwitter.Client{
		Authorizer: authorize{},
		Client:     &http.Client{Transport: signing},
		Host:       host,
	}

	users, err := apiClient.UserNameLookup(ctx, []string{cfg.BotUserName}, gotwitter.UserLookupOpts{})
	if err != nil {
		return nil, fmt.Errorf("user lookup error: %w", err)
	}
	// a single-name lookup that only returns errors decodes as one nil user
	if users.Raw == nil || len(users.Raw.Users) == 0 || users.Raw.Users[0] == nil {
		return nil, fmt.Errorf("%w: %s", ErrBotUserNotFound, cfg.BotUserName)
	}
	if users.RateLimit != nil {
		log.Debugf("user lookup rate limit---limit=%d;remaining=%d;reset=%d", users.RateLimit.Limit, users.RateLimit.Remaining, users.RateLimit.Reset)
	}

	pageSize := cfg.SearchPageSize
	if pageSize < minSearchResults {
		pageSize = minSearchResults
	}
	if pageSize > maxSearchResults {
		pageSize = maxSearchResults
	}

	return &TwitterService{
		userID:         users.Raw.Users[0].ID,
		botUserName:    cfg.BotUserName,
		apiClient:      apiClient,
		signedClient:   signedClient,
		searchPageSize: pageSize,
	}, nil
}

// SearchMentions runs one recent search for posts mentioning the bot. sinceID
// may be empty. The response carries the users, media and referenced posts
// needed to build a MentionEvent.
func (s *TwitterService) SearchMentions(ctx context.Context, sinceID string) (*gotwitter.TweetRecentSearchResponse, error) {
	opts := gotwitter.TweetRecentSearchOpts{
		TweetFields: []gotwitter.TweetField{
			gotwitter.TweetFieldAuthorID,
			gotwitter.TweetFieldConversationID,
			gotwitter.TweetFieldAttachments,
			gotwitter.TweetFieldCreatedAt,
			gotwitter.TweetFieldEntities,
			gotwitter.TweetFieldReferencedTweets,
		},
		MediaFields: []gotwitter.MediaField{
			gotwitter.MediaFieldMediaKey,
			gotwitter.MediaFieldType,
			gotwitter.MediaFieldURL,
			gotwitter.MediaFieldPreviewImageURL,
		},
		UserFields: []gotwitter.UserField{gotwitter.UserFieldUserName},
		Expansions: []gotwitter.Expansion{
			gotwitter.ExpansionAuthorID,
			gotwitter.ExpansionAttachmentsMediaKeys,
			gotwitter.ExpansionReferencedTweetsID,
			gotwitter.ExpansionReferencedTweetsIDAuthorID,
			gotwitter.Expansion("referenced_tweets.id.attachments.media_keys"),
		},
		MaxResults: s.searchPageSize,
		SinceID:    sinceID,
	}

	log.WithField("sinceID", sinceID).WithField("userName", s.botUserName).Info("searching for mentions")
	return s.apiClient.TweetRecentSearch(ctx, s.searchQuery(), opts)
}

func (s *TwitterService) searchQuery() string {
	return fmt.Sprintf("@%s -from:%s -is:retweet", s.botUserName, s.botUserName)
}

func (s *TwitterService) TweetResponse(ctx context.Context, replyToID string, message string) (*gotwitter.CreateTweetResponse, error) {
	return s.signedClient.CreateTweet(ctx, gotwitter.CreateTweetRequest{
		Text: message,
		Reply: &gotwitter.CreateTweetReply{
			InReplyToTweetID: replyToID,
		},
	})
}

func (s *TwitterService) LikeTweet(ctx context.Context, tweetID string) error {
	resp, err := s.signedClient.UserLikes(ctx, s.userID, tweetID)
	if err != nil {
		return err
	}
	if resp.Data != nil && !resp.Data.Liked {
		return fmt.Errorf("post %s was not liked", tweetID)
	}
	return nil
}

func (s *TwitterService) UserID() string {
	return s.userID
}
