package responder

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const HashtagCount = 3

// Used when neither the post's hashtags nor its text give enough material.
var DefaultHashtags = []string{"AIDetection", "Deepfake"}

// Only reached when a post yields nothing, so replies always carry HashtagCount tags.
const lastResortHashtag = "FactCheck"

var (
	spamTagPattern  = regexp.MustCompile(`(?i)(follow|f4f|l4l|like4like|likeforlike|sub4sub|giveaway|airdrop|promo|crypto|nft|xxx|onlyfans|dm(me|forcollab)|viral|fyp)`)
	validTagPattern = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)
	digitsPattern   = regexp.MustCompile(`^[0-9_]+$`)
)

// IsSpamHashtag reports tags that should never be echoed back.
func IsSpamHashtag(tag string) bool {
	tag = strings.TrimPrefix(tag, "#")
	length := utf8.RuneCountInString(tag)
	if length < 2 || length > 25 {
		return true
	}
	if !validTagPattern.MatchString(tag) || digitsPattern.MatchString(tag) {
		return true
	}
	return spamTagPattern.MatchString(tag)
}

// SelectHashtags picks exactly three tags: the post's own (minus spam), then
// keywords from its text, then the defaults. Returned without "#".
func SelectHashtags(existing []string, text string) []string {
	var selected []string
	seen := map[string]bool{}
	add := func(tag string) {
		key := strings.ToLower(tag)
		if len(selected) >= HashtagCount || seen[key] {
			return
		}
		seen[key] = true
		selected = append(selected, tag)
	}

	for _, tag := range existing {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if IsSpamHashtag(tag) {
			continue
		}
		add(tag)
	}
	if len(selected) < HashtagCount {
		for _, keyword := range ExtractKeywords(text, HashtagCount-len(selected), selected) {
			if validTagPattern.MatchString(keyword) {
				add(keyword)
			}
		}
	}
	for _, tag := range DefaultHashtags {
		add(tag)
	}
	add(lastResortHashtag)
	return selected
}

func formatHashtags(tags []string) string {
	formatted := make([]string, len(tags))
	for i, tag := range tags {
		formatted[i] = "#" + tag
	}
	return strings.Join(formatted, " ")
}
