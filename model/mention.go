package model

import (
	"strings"
	"time"
)

// MentionEvent is the canonical shape of a mention, whichever source it came from.
// It is built per mention and dropped once the pipeline is done with it.
type MentionEvent struct {
	Platform Platform

	// SourceID is the mention's own post ID. It is the dedup key and the post the reply goes to.
	SourceID string
	// MentionerHandle is the account that mentioned the bot.
	MentionerHandle string
	// AuthorHandle is the credited author. When the mention replies to an older post,
	// this is that post's author rather than the replier.
	AuthorHandle string
	// ContextID is the post supplying images, text and hashtags.
	ContextID string

	Text               string
	Hashtags           []string
	MentionedHandles   []string
	CandidateImageURLs []string
	Links              []string
	CapturedAt         time.Time
}

// Mentions reports whether the event mentions the given handle, either through
// a mention entity or the raw text.
func (m MentionEvent) Mentions(handle string) bool {
	handle = strings.TrimPrefix(strings.ToLower(handle), "@")
	if handle == "" {
		return false
	}
	for _, h := range m.MentionedHandles {
		if strings.EqualFold(strings.TrimPrefix(h, "@"), handle) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(m.Text), "@"+handle)
}

// IsAuthoredBy reports whether the bot itself wrote the mention.
func (m MentionEvent) IsAuthoredBy(handle string) bool {
	return strings.EqualFold(strings.TrimPrefix(m.MentionerHandle, "@"), strings.TrimPrefix(handle, "@"))
}
