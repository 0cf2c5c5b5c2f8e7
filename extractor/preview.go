package extractor

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var (
	metaTagPattern   = regexp.MustCompile(`(?is)<meta\b[^>]*>`)
	attributePattern = regexp.MustCompile(`(?is)([a-z][a-z0-9:_-]*)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
)

var previewImageProperties = map[string]bool{
	"og:image":            true,
	"og:image:url":        true,
	"og:image:secure_url": true,
	"twitter:image":       true,
	"twitter:image:src":   true,
}

// ScanPreviewImages finds Open Graph and Twitter-card images in an HTML page.
// Attribute order and quoting vary between sites, so each meta tag is parsed
// attribute by attribute. Relative and protocol-relative URLs are resolved
// against pageURL.
func ScanPreviewImages(body string, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var images []string
	seen := map[string]bool{}
	for _, tag := range metaTagPattern.FindAllString(body, -1) {
		attrs := parseAttributes(tag)
		key := attrs["property"]
		if key == "" {
			key = attrs["name"]
		}
		if !previewImageProperties[strings.ToLower(strings.TrimSpace(key))] {
			continue
		}
		content := strings.TrimSpace(html.UnescapeString(attrs["content"]))
		if content == "" {
			continue
		}
		resolved, err := base.Parse(content)
		if err != nil {
			continue
		}
		image := resolved.String()
		if !seen[image] {
			seen[image] = true
			images = append(images, image)
		}
	}
	return images
}

func parseAttributes(tag string) map[string]string {
	attrs := map[string]string{}
	for _, match := range attributePattern.FindAllStringSubmatch(tag, -1) {
		name := strings.ToLower(match[1])
		if _, exists := attrs[name]; exists {
			continue
		}
		switch {
		case match[2] != "":
			attrs[name] = match[2]
		case match[3] != "":
			attrs[name] = match[3]
		default:
			attrs[name] = match[4]
		}
	}
	return attrs
}
