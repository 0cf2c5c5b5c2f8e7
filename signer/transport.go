package signer

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/metrics"
)

// ErrBudgetExhausted is returned when the signed request window has no budget left.
var ErrBudgetExhausted = errors.New("signed request budget exhausted")

const (
	headerRateLimit     = "x-rate-limit-limit"
	headerRateRemaining = "x-rate-limit-remaining"
	headerRateReset     = "x-rate-limit-reset"
)

// SigningTransport signs every request it sends and charges it to the Window.
type SigningTransport struct {
	Signer *Signer
	Window *Window
	Base   http.RoundTripper
}

func (t *SigningTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	endpoint := EndpointClass(req.Method, req.URL.Path)
	if t.Window != nil && !t.Window.CanSend() {
		log.WithField("method", req.Method).
			WithField("endpoint", endpoint).
			WithField("resetsAt", t.Window.ResetsAt()).
			Warn("signed request budget exhausted, skipping request")
		metrics.SignedRequests.WithLabelValues(endpoint, "budget_exhausted").Inc()
		return nil, ErrBudgetExhausted
	}

	params := map[string]string{}
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	header, err := t.Signer.Sign(req.Method, req.URL.String(), params)
	if err != nil {
		return nil, err
	}

	// RoundTrippers must not modify the caller's request
	signed := req.Clone(req.Context())
	signed.Header.Set("Authorization", header)

	if t.Window != nil {
		t.Window.RecordSend()
		metrics.SignedBudgetRemaining.Set(float64(t.Window.Remaining()))
	}
	return base(t.Base).RoundTrip(signed)
}

// LoggingTransport logs each platform call with the rate limit headers the server returns.
type LoggingTransport struct {
	Base http.RoundTripper
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	endpoint := EndpointClass(req.Method, req.URL.Path)
	resp, err := base(t.Base).RoundTrip(req)
	if err != nil {
		log.WithField("method", req.Method).WithField("endpoint", endpoint).Errorf("platform request failed: %v", err)
		metrics.SignedRequests.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, err
	}

	entry := log.WithField("method", req.Method).
		WithField("endpoint", endpoint).
		WithField("status", resp.StatusCode).
		WithField("limit", resp.Header.Get(headerRateLimit)).
		WithField("remaining", resp.Header.Get(headerRateRemaining)).
		WithField("reset", resp.Header.Get(headerRateReset))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		entry.Warn("platform rate limit hit")
	case resp.StatusCode >= 400:
		entry.Warn("platform request rejected")
	default:
		entry.Info("platform request")
	}
	metrics.SignedRequests.WithLabelValues(endpoint, fmt.Sprint(resp.StatusCode)).Inc()
	return resp, nil
}

// EndpointClass collapses request paths into a small set of labels for logs and metrics.
func EndpointClass(method string, path string) string {
	switch {
	case strings.HasSuffix(path, "/tweets/search/recent"):
		return "search"
	case strings.Contains(path, "/likes"):
		return "like"
	case strings.HasSuffix(path, "/tweets") && method == http.MethodPost:
		return "tweet"
	case strings.Contains(path, "/users/by"):
		return "user_lookup"
	case strings.Contains(path, "/users/") && strings.HasSuffix(path, "/mentions"):
		return "mentions"
	default:
		return "other"
	}
}

func base(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
