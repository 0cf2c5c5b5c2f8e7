package detection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultDownloadTimeout = 15 * time.Second
	maxImageBytes          = 20 * 1024 * 1024
)

var ErrNotImage = errors.New("downloaded content is not an image")

// Image is a downloaded image ready to hand to the provider.
type Image struct {
	Bytes       []byte
	ContentType string
	Filename    string
}

type Downloader interface {
	Download(ctx context.Context, imageURL string) (*Image, error)
}

type HTTPDownloader struct {
	client    *http.Client
	userAgent string
}

func NewHTTPDownloader(timeout time.Duration, userAgent string) *HTTPDownloader {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	return &HTTPDownloader{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

func (d *HTTPDownloader) Download(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}

	contentType := imageContentType(resp.Header.Get("Content-Type"), body)
	if contentType == "" {
		return nil, ErrNotImage
	}
	return &Image{
		Bytes:       body,
		ContentType: contentType,
		Filename:    FilenameFor(imageURL, contentType),
	}, nil
}

// imageContentType trusts the server header when it names an image, and
// sniffs the bytes otherwise.
func imageContentType(header string, body []byte) string {
	if mediaType, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}
	sniffed := http.DetectContentType(body)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return ""
}

var (
	sizeSuffix    = regexp.MustCompile(`:[A-Za-z0-9_]+$`)
	unsafeRunes   = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	extensionsFor = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
		"image/avif": ".avif",
		"image/bmp":  ".bmp",
	}
)

// FilenameFor derives the upload filename from the image URL: spaces and
// platform size suffixes ("photo.jpg:large") are dropped, and an extension
// matching the content type is added when the URL has none.
func FilenameFor(imageURL, contentType string) string {
	name := "image"
	if u, err := url.Parse(imageURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			name = base
		}
	}
	name = SanitizeFilename(name)
	if name == "" {
		name = "image"
	}
	if path.Ext(name) == "" {
		if ext, ok := extensionsFor[contentType]; ok {
			name += ext
		}
	}
	return name
}

func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "")
	name = sizeSuffix.ReplaceAllString(name, "")
	return unsafeRunes.ReplaceAllString(name, "_")
}
