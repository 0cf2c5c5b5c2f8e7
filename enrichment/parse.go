package enrichment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/truemediaorg/detectbot/model"
)

const (
	LabelTitle               = "TITLE"
	LabelMetaDescription     = "META DESCRIPTION"
	LabelDetailedDescription = "DETAILED DESCRIPTION"
	LabelConfidenceNarrative = "CONFIDENCE NARRATIVE"
)

var sectionLabels = []string{LabelTitle, LabelMetaDescription, LabelDetailedDescription, LabelConfidenceNarrative}

// Matches a label at the start of a line, tolerating markdown decoration
// such as "## TITLE:" or "**META DESCRIPTION**:".
var sectionPattern = regexp.MustCompile(`(?mi)^[ \t]*[#*_]*[ \t]*(TITLE|META DESCRIPTION|DETAILED DESCRIPTION|CONFIDENCE NARRATIVE)[ \t]*[*_]*[ \t]*:[ \t]*[*_]*`)

// Placeholder is stored when enrichment is unavailable.
var Placeholder = model.Enrichment{
	Description:         "Image analysis",
	MetaDescription:     "AI-generated content detection result for this image.",
	DetailedDescription: "A detailed description is not available for this image.",
	ConfidenceNarrative: "A confidence narrative is not available for this image.",
}

// ParseFailure reports a response that did not carry all four sections.
type ParseFailure struct {
	Missing []string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("enrichment response missing sections: %s", strings.Join(e.Missing, ", "))
}

// ParseSections splits a response into the four labeled sections. Partial
// responses are rejected as a whole.
func ParseSections(text string) (model.Enrichment, error) {
	matches := sectionPattern.FindAllStringSubmatchIndex(text, -1)

	sections := map[string]string{}
	for i, match := range matches {
		label := strings.ToUpper(text[match[2]:match[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if _, seen := sections[label]; seen {
			continue
		}
		sections[label] = cleanSection(text[match[1]:end])
	}

	var missing []string
	for _, label := range sectionLabels {
		if sections[label] == "" {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		return Placeholder, &ParseFailure{Missing: missing}
	}

	return model.Enrichment{
		Description:         sections[LabelTitle],
		MetaDescription:     sections[LabelMetaDescription],
		DetailedDescription: sections[LabelDetailedDescription],
		ConfidenceNarrative: sections[LabelConfidenceNarrative],
	}, nil
}

func cleanSection(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_")
	return strings.TrimSpace(s)
}
