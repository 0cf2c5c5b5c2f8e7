package enrichment

import (
	"fmt"
	"strings"
)

// Context is optional text from the post the image came from.
type Context struct {
	Text     string
	Hashtags []string
}

const systemPrompt = `You describe images for a public page that reports the result of an AI-generated content detector.
You never contradict the detector's score; you explain what in the image is consistent with it.`

const promptTemplate = `The detector scored this image at %.0f%% likelihood of being AI-generated.
%s
Respond with exactly these four sections, each label at the start of its own line:

TITLE: a short title for the image, at most 8 words.
META DESCRIPTION: one sentence of at most 155 characters summarizing the image and the %.0f%% score.
DETAILED DESCRIPTION: two or three paragraphs describing what the image shows.
CONFIDENCE NARRATIVE: exactly these bullets, each one or two sentences, consistent with a %.0f%% score:
- Visual artifacts:
- Lighting and physics:
- Context and provenance:
- Overall assessment:

Do not add any other sections.`

func BuildPrompt(probability float64, postContext Context) string {
	var contextBlock string
	text := strings.TrimSpace(postContext.Text)
	if text != "" || len(postContext.Hashtags) > 0 {
		var b strings.Builder
		b.WriteString("The image was shared in a post")
		if text != "" {
			fmt.Fprintf(&b, " reading: %q", truncate(text, 500))
		}
		if len(postContext.Hashtags) > 0 {
			tags := make([]string, len(postContext.Hashtags))
			for i, tag := range postContext.Hashtags {
				tags[i] = "#" + strings.TrimPrefix(tag, "#")
			}
			fmt.Fprintf(&b, " tagged %s", strings.Join(tags, " "))
		}
		b.WriteString(".\n")
		contextBlock = b.String()
	}
	return fmt.Sprintf(promptTemplate, probability, contextBlock, probability, probability)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
