package twitter

import (
	gotwitter "github.com/g8rswimmer/go-twitter/v2"
)

// V2Tweet is a single v2 post with its expansion tables.
type V2Tweet struct {
	Data     *gotwitter.TweetObj         `json:"data"`
	Includes *gotwitter.TweetRawIncludes `json:"includes,omitempty"`
}

func (*V2Tweet) Kind() PayloadKind { return PayloadV2 }
func (*V2Tweet) isRawMention()     {}

// includeIndex cross-references expansion tables by key.
type includeIndex struct {
	users  map[string]*gotwitter.UserObj
	media  map[string]*gotwitter.MediaObj
	tweets map[string]*gotwitter.TweetObj
}

func newIncludeIndex(includes *gotwitter.TweetRawIncludes) includeIndex {
	idx := includeIndex{
		users:  map[string]*gotwitter.UserObj{},
		media:  map[string]*gotwitter.MediaObj{},
		tweets: map[string]*gotwitter.TweetObj{},
	}
	if includes == nil {
		return idx
	}
	for _, u := range includes.Users {
		if u != nil {
			idx.users[u.ID] = u
		}
	}
	for _, m := range includes.Media {
		if m != nil {
			idx.media[m.Key] = m
		}
	}
	for _, t := range includes.Tweets {
		if t != nil {
			idx.tweets[t.ID] = t
		}
	}
	return idx
}

func (idx includeIndex) userName(userID string) string {
	if u, ok := idx.users[userID]; ok {
		return u.UserName
	}
	return ""
}

func (idx includeIndex) attachedMedia(tweet *gotwitter.TweetObj) []*gotwitter.MediaObj {
	if tweet == nil || tweet.Attachments == nil {
		return nil
	}
	media := make([]*gotwitter.MediaObj, 0, len(tweet.Attachments.MediaKeys))
	for _, key := range tweet.Attachments.MediaKeys {
		if m, ok := idx.media[key]; ok {
			media = append(media, m)
		}
	}
	return media
}

// referenced resolves the post this one references with refType, if it was expanded.
func (idx includeIndex) referenced(tweet *gotwitter.TweetObj, refType TweetReferenceType) *gotwitter.TweetObj {
	for _, ref := range tweet.ReferencedTweets {
		if ref == nil || ref.Type != string(refType) {
			continue
		}
		if original, ok := idx.tweets[ref.ID]; ok {
			return original
		}
	}
	return nil
}

// linkedPost resolves a status link to an expanded post.
func (idx includeIndex) linkedPost(rawURL string) *gotwitter.TweetObj {
	_, postID, err := DeconstructTweetURL(rawURL)
	if err != nil {
		return nil
	}
	return idx.tweets[postID]
}

// Video and gif entries are analyzed through their preview frame.
func v2ImageURL(m *gotwitter.MediaObj) string {
	if MediaType(m.Type) == MediaTypePhoto {
		return m.URL
	}
	if m.PreviewImageURL != "" {
		return m.PreviewImageURL
	}
	return m.URL
}
