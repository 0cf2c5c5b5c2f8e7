package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrNotHTML         = errors.New("response is not html")
	ErrHTTPStatusNotOK = errors.New("HTTP status not OK")
)

const (
	DefaultFetchTimeout = 15 * time.Second
	DefaultUserAgent    = "detectbot/1.0 (+link preview fetcher; AI image detection bot)"

	maxPageBytes   = 2 * 1024 * 1024
	maxRedirects   = 5
	fetchRateLimit = 5
	fetchRateBurst = 5
)

// Page is a fetched HTML document along with the URL it was finally served from.
type Page struct {
	URL  string
	Body string
}

type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (Page, error)
}

type HTTPPageFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func NewHTTPPageFetcher(timeout time.Duration) *HTTPPageFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPPageFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		limiter:   rate.NewLimiter(rate.Limit(fetchRateLimit), fetchRateBurst),
		userAgent: DefaultUserAgent,
	}
}

func (f *HTTPPageFetcher) FetchPage(ctx context.Context, rawURL string) (Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return Page{}, fmt.Errorf("fetch rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("%w: %d", ErrHTTPStatusNotOK, resp.StatusCode)
	}
	if !isHTML(resp.Header.Get("Content-Type")) {
		return Page{}, fmt.Errorf("%w: %s", ErrNotHTML, resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("read response body: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return Page{URL: finalURL, Body: string(body)}, nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
