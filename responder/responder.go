// Package responder writes the reply text for a mention's detection results.
// Nothing here does I/O.
package responder

import (
	"fmt"
	"math"
	"strings"
)

const (
	singleResultMsg = "%s\nAI probability: %s"
	singleErrorMsg  = "⚠️ We couldn't analyze this image. Please try again later."
	multiHeaderMsg  = "Results for %d images:"
	multiLineMsg    = "Image %d: %s %s"
	multiErrorLine  = "Image %d: ⚠️ error"
	aggregateMsg    = "Overall: %s (%s average of %d analyzed)"
	noAggregateMsg  = "Overall: none of the images could be analyzed."
	singleLinkMsg   = "Full analysis: %s"
	multiLinkMsg    = "Image %d analysis: %s"
	userThankMsg    = "Thanks for the tag, @%s." // UserName goes in the %s
)

// ImageResult is what the composer needs from one image's detection.
type ImageResult struct {
	// AIProbability is nil when detection failed.
	AIProbability *float64
	ShortID       string
}

// Post is the context the reply is about.
type Post struct {
	MentionerHandle string
	Text            string
	Hashtags        []string
}

type Composer struct {
	linkBase string
}

// NewComposer takes the base for deep links; a short id is appended as a path segment.
func NewComposer(linkBase string) *Composer {
	return &Composer{linkBase: strings.TrimSuffix(linkBase, "/")}
}

func (c *Composer) Compose(post Post, results []ImageResult) string {
	if len(results) == 1 {
		return c.composeSingle(post, results[0])
	}
	return c.composeMulti(post, results)
}

func (c *Composer) composeSingle(post Post, result ImageResult) string {
	var lines []string
	if result.AIProbability == nil {
		lines = append(lines, singleErrorMsg)
	} else {
		p := *result.AIProbability
		lines = append(lines, fmt.Sprintf(singleResultMsg, TierFor(p), formatPercent(p)))
		if link := c.ResultsURL(result.ShortID); link != "" {
			lines = append(lines, fmt.Sprintf(singleLinkMsg, link))
		}
	}
	if post.MentionerHandle != "" {
		lines = append(lines, fmt.Sprintf(userThankMsg, post.MentionerHandle))
	}
	lines = append(lines, formatHashtags(SelectHashtags(post.Hashtags, post.Text)))
	return strings.Join(lines, "\n\n")
}

func (c *Composer) composeMulti(post Post, results []ImageResult) string {
	lines := []string{fmt.Sprintf(multiHeaderMsg, len(results))}

	var sum float64
	var scored int
	for i, result := range results {
		if result.AIProbability == nil {
			lines = append(lines, fmt.Sprintf(multiErrorLine, i+1))
			continue
		}
		p := *result.AIProbability
		sum += p
		scored++
		tier := TierFor(p)
		lines = append(lines, fmt.Sprintf(multiLineMsg, i+1, tier.Marker, formatPercent(p)))
	}

	if scored == 0 {
		lines = append(lines, noAggregateMsg)
	} else {
		mean := sum / float64(scored)
		lines = append(lines, fmt.Sprintf(aggregateMsg, TierFor(mean), formatPercent(mean), scored))
	}

	var links []string
	for i, result := range results {
		if link := c.ResultsURL(result.ShortID); link != "" {
			links = append(links, fmt.Sprintf(multiLinkMsg, i+1, link))
		}
	}

	msg := strings.Join(lines, "\n")
	if len(links) > 0 {
		msg += "\n\n" + strings.Join(links, "\n")
	}
	if post.MentionerHandle != "" {
		msg += "\n\n" + fmt.Sprintf(userThankMsg, post.MentionerHandle)
	}
	return msg
}

// ResultsURL is the deep link for a short id, or "" without one.
func (c *Composer) ResultsURL(shortID string) string {
	if shortID == "" || c.linkBase == "" {
		return ""
	}
	return c.linkBase + "/" + shortID
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(p)))
}
