package twitter

// V1Tweet is the v1.1 status object, as delivered by account activity webhooks.
type V1Tweet struct {
	IDStr                string              `json:"id_str"`
	Text                 string              `json:"text"`
	FullText             string              `json:"full_text"`
	CreatedAt            string              `json:"created_at"`
	User                 V1User              `json:"user"`
	InReplyToStatusIDStr string              `json:"in_reply_to_status_id_str"`
	Entities             V1Entities          `json:"entities"`
	ExtendedEntities     *V1ExtendedEntities `json:"extended_entities"`
	ExtendedTweet        *V1ExtendedTweet    `json:"extended_tweet"`
}

type V1User struct {
	IDStr      string `json:"id_str"`
	ScreenName string `json:"screen_name"`
}

type V1Entities struct {
	Hashtags     []V1Hashtag     `json:"hashtags"`
	URLs         []V1URL         `json:"urls"`
	UserMentions []V1UserMention `json:"user_mentions"`
	Media        []V1Media       `json:"media"`
}

type V1ExtendedEntities struct {
	Media []V1Media `json:"media"`
}

// V1ExtendedTweet carries the untruncated body of long posts.
type V1ExtendedTweet struct {
	FullText         string              `json:"full_text"`
	Entities         V1Entities          `json:"entities"`
	ExtendedEntities *V1ExtendedEntities `json:"extended_entities"`
}

type V1Hashtag struct {
	Text string `json:"text"`
}

type V1URL struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
}

type V1UserMention struct {
	ScreenName string `json:"screen_name"`
}

type V1Media struct {
	IDStr         string `json:"id_str"`
	Type          string `json:"type"`
	MediaURL      string `json:"media_url"`
	MediaURLHTTPS string `json:"media_url_https"`
}

func (*V1Tweet) Kind() PayloadKind { return PayloadV1 }
func (*V1Tweet) isRawMention()     {}

func (t *V1Tweet) body() string {
	switch {
	case t.ExtendedTweet != nil && t.ExtendedTweet.FullText != "":
		return t.ExtendedTweet.FullText
	case t.FullText != "":
		return t.FullText
	default:
		return t.Text
	}
}

func (t *V1Tweet) entities() V1Entities {
	if t.ExtendedTweet != nil {
		return t.ExtendedTweet.Entities
	}
	return t.Entities
}

// mediaCollection returns the richest of the parallel media collections.
func (t *V1Tweet) mediaCollection() []V1Media {
	var candidates [][]V1Media
	if t.ExtendedTweet != nil && t.ExtendedTweet.ExtendedEntities != nil {
		candidates = append(candidates, t.ExtendedTweet.ExtendedEntities.Media)
	}
	if t.ExtendedEntities != nil {
		candidates = append(candidates, t.ExtendedEntities.Media)
	}
	candidates = append(candidates, t.entities().Media, t.Entities.Media)

	var richest []V1Media
	for _, c := range candidates {
		if len(c) > len(richest) {
			richest = c
		}
	}
	return richest
}

// For video and gifs the v1 media URL already is the preview frame.
func (m V1Media) imageURL() string {
	if m.MediaURLHTTPS != "" {
		return m.MediaURLHTTPS
	}
	return m.MediaURL
}
