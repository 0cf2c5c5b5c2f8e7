package twitter

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var tweetURLPattern = regexp.MustCompile(`^https?://(?:www\.)?(?:twitter|x).com/(?P<UserName>\w+)/status/(?P<UserID>\d+)`)

func ConstructTweetURL(authorName string, tweetID string) string {
	return fmt.Sprintf("https://twitter.com/%s/status/%s", authorName, tweetID)
}

// Takes in a URL and extracts the UserName and PostID if it's a Twitter/X URL.
// Return value order is UserName followed by PostID, followed by error.
func DeconstructTweetURL(tweetURL string) (string, string, error) {
	matches := tweetURLPattern.FindStringSubmatch(tweetURL)
	if matches == nil {
		return "", "", errors.New("not a tweet URL")
	}
	return matches[1], matches[2], nil
}

// IsPlatformLink reports links that point back at the platform itself (media
// permalinks, quoted posts). Those never carry link previews worth fetching.
func IsPlatformLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "twitter.com", "x.com", "pic.twitter.com", "pic.x.com", "t.co", "mobile.twitter.com":
		return true
	default:
		return false
	}
}

// CompareIDs orders numeric post IDs, which grow over time. Longer IDs are newer.
func CompareIDs(a string, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
