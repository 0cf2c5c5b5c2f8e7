package extractor

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".avif": true, ".bmp": true, ".heic": true, ".heif": true, ".jfif": true,
}

var imageHostHints = []string{"img", "image", "photo", "media", "pbs.twimg.com", "cdn"}

// Image services that serve images from extension-less URLs.
var dynamicImagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^res\.cloudinary\.com/`),
	regexp.MustCompile(`\.imgix\.net/`),
	regexp.MustCompile(`googleusercontent\.com/`),
	regexp.MustCompile(`\.fbcdn\.net/`),
	regexp.MustCompile(`/_next/image`),
	regexp.MustCompile(`/image/upload/`),
	regexp.MustCompile(`/wp-content/uploads/`),
	regexp.MustCompile(`[?&](format|fm|f)=(jpe?g|png|webp|avif|gif)\b`),
}

// IsLikelyImageURL is a cheap check run before an URL is handed to detection:
// it must be https, and the path or host has to look like an image, or the URL
// has to match a known dynamic image service.
func IsLikelyImageURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return false
	}

	p := strings.ToLower(u.Path)
	// platform size suffixes like "photo.jpg:large"
	if i := strings.LastIndex(p, ":"); i > strings.LastIndex(p, "/") {
		p = p[:i]
	}
	if imageExtensions[path.Ext(p)] {
		return true
	}

	host := strings.ToLower(u.Hostname())
	for _, hint := range imageHostHints {
		if strings.Contains(host, hint) {
			return true
		}
	}

	target := host + strings.ToLower(u.EscapedPath())
	if u.RawQuery != "" {
		target += "?" + strings.ToLower(u.RawQuery)
	}
	for _, pattern := range dynamicImagePatterns {
		if pattern.MatchString(target) {
			return true
		}
	}
	return false
}
