package twitter

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	gotwitter "github.com/g8rswimmer/go-twitter/v2"
	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/model"
)

// Adapt converts either payload shape into the canonical MentionEvent.
func Adapt(raw RawMention) (model.MentionEvent, error) {
	switch m := raw.(type) {
	case *V1Tweet:
		return adaptV1(m)
	case *V2Tweet:
		if m.Data == nil {
			return model.MentionEvent{}, fmt.Errorf("%w: v2 payload without data", ErrMalformedPayload)
		}
		return AdaptV2(m.Data, m.Includes)
	default:
		return model.MentionEvent{}, ErrUnknownPayload
	}
}

// AdaptV2 converts a v2 post using the expansion tables of its response. When
// the post replies to an older post, the older post supplies images, text and
// hashtags and its author is credited. Posts the origin quotes or links to are
// searched for images too, and the reply's own attachments come last.
func AdaptV2(tweet *gotwitter.TweetObj, includes *gotwitter.TweetRawIncludes) (model.MentionEvent, error) {
	if tweet == nil || tweet.ID == "" {
		return model.MentionEvent{}, fmt.Errorf("%w: post without id", ErrMalformedPayload)
	}
	idx := newIncludeIndex(includes)

	origin := tweet
	if original := idx.referenced(tweet, TweetReferenceRepliedTo); original != nil {
		origin = original
	}
	var embedded []*gotwitter.TweetObj
	if quoted := idx.referenced(origin, TweetReferenceQuoted); quoted != nil {
		embedded = append(embedded, quoted)
	}

	event := model.MentionEvent{
		Platform:        model.PlatformX,
		SourceID:        tweet.ID,
		MentionerHandle: idx.userName(tweet.AuthorID),
		AuthorHandle:    idx.userName(origin.AuthorID),
		ContextID:       origin.ID,
		Text:            origin.Text,
		CapturedAt:      parseTimestamp(tweet.CreatedAt),
	}
	if event.AuthorHandle == "" {
		event.AuthorHandle = event.MentionerHandle
	}

	if tweet.Entities != nil {
		for _, mention := range tweet.Entities.Mentions {
			event.MentionedHandles = append(event.MentionedHandles, mention.UserName)
		}
	}
	if origin.Entities != nil {
		for _, tag := range origin.Entities.HashTags {
			event.Hashtags = append(event.Hashtags, tag.Tag)
		}
		for _, u := range origin.Entities.URLs {
			// links to posts in the expansion table are read from there, not fetched
			if linked := idx.linkedPost(u.ExpandedURL); linked != nil {
				embedded = append(embedded, linked)
				continue
			}
			event.Links = appendLink(event.Links, u.ExpandedURL, u.URL)
		}
	}

	sources := append([]*gotwitter.TweetObj{origin}, embedded...)
	if origin != tweet {
		sources = append(sources, tweet)
	}
	for _, source := range sources {
		for _, media := range idx.attachedMedia(source) {
			if !MediaType(media.Type).Analyzable() {
				continue
			}
			event.CandidateImageURLs = appendUnique(event.CandidateImageURLs, v2ImageURL(media))
		}
	}
	return event, nil
}

func adaptV1(tweet *V1Tweet) (model.MentionEvent, error) {
	if tweet.IDStr == "" {
		return model.MentionEvent{}, fmt.Errorf("%w: post without id_str", ErrMalformedPayload)
	}
	entities := tweet.entities()
	event := model.MentionEvent{
		Platform:        model.PlatformX,
		SourceID:        tweet.IDStr,
		MentionerHandle: tweet.User.ScreenName,
		AuthorHandle:    tweet.User.ScreenName,
		ContextID:       tweet.IDStr,
		Text:            tweet.body(),
		CapturedAt:      parseTimestamp(tweet.CreatedAt),
	}
	for _, mention := range entities.UserMentions {
		event.MentionedHandles = append(event.MentionedHandles, mention.ScreenName)
	}
	for _, tag := range entities.Hashtags {
		event.Hashtags = append(event.Hashtags, tag.Text)
	}
	for _, u := range entities.URLs {
		event.Links = appendLink(event.Links, u.ExpandedURL, u.URL)
	}
	for _, media := range tweet.mediaCollection() {
		if !MediaType(media.Type).Analyzable() {
			continue
		}
		event.CandidateImageURLs = appendUnique(event.CandidateImageURLs, media.imageURL())
	}
	return event, nil
}

func appendLink(links []string, expanded string, short string) []string {
	link := expanded
	if link == "" {
		link = short
	}
	if link == "" || IsPlatformLink(link) {
		return links
	}
	return appendUnique(links, link)
}

func appendUnique(values []string, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return values
	}
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}

// Both the v1 ("Wed Oct 10 20:19:24 +0000 2018") and v2 (RFC 3339) formats show up.
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		log.WithField("createdAt", raw).Debugf("unable to parse post timestamp: %v", err)
		return time.Now().UTC()
	}
	return t.UTC()
}
