// Package signer authenticates outbound platform requests with OAuth 1.0a
// signatures and keeps the bot inside its signed request budget.
package signer

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

const (
	signatureMethod = "HMAC-SHA1"
	oauthVersion    = "1.0"
	authPrefix      = "OAuth "
)

// Credentials are the two long-lived credential pairs the signing key is derived from.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

type Signer struct {
	credentials Credentials
	hmac        oauth1.Signer
	clock       func() time.Time
	noncer      oauth1.Noncer
}

type Option func(*Signer)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Signer) { s.clock = clock }
}

// WithNoncer overrides the nonce source.
func WithNoncer(noncer oauth1.Noncer) Option {
	return func(s *Signer) { s.noncer = noncer }
}

func NewSigner(credentials Credentials, opts ...Option) *Signer {
	s := &Signer{
		credentials: credentials,
		hmac:        &oauth1.HMACSigner{ConsumerSecret: credentials.ConsumerSecret},
		clock:       time.Now,
		noncer:      oauth1.HexNoncer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign returns the Authorization header value for a request. The result only
// depends on its inputs plus the clock and nonce sources.
func (s *Signer) Sign(method string, rawURL string, params map[string]string) (string, error) {
	baseURL, err := normalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.credentials.ConsumerKey,
		"oauth_nonce":            s.noncer.Nonce(),
		"oauth_signature_method": signatureMethod,
		"oauth_timestamp":        strconv.FormatInt(s.clock().Unix(), 10),
		"oauth_token":            s.credentials.AccessToken,
		"oauth_version":          oauthVersion,
	}

	all := make(map[string]string, len(params)+len(oauthParams))
	for k, v := range params {
		all[k] = v
	}
	for k, v := range oauthParams {
		all[k] = v
	}

	base := SignatureBase(method, baseURL, all)
	signature, err := s.hmac.Sign(s.credentials.AccessTokenSecret, base)
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}
	oauthParams["oauth_signature"] = signature

	return authHeader(oauthParams), nil
}

// SignatureBase builds METHOD&url&params with every part percent-encoded.
func SignatureBase(method string, baseURL string, params map[string]string) string {
	return strings.Join([]string{
		strings.ToUpper(method),
		oauth1.PercentEncode(baseURL),
		oauth1.PercentEncode(ParameterString(params)),
	}, "&")
}

// ParameterString encodes every key and value and joins them sorted by key.
func ParameterString(params map[string]string) string {
	type pair struct{ key, value string }
	pairs := make([]pair, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, pair{oauth1.PercentEncode(k), oauth1.PercentEncode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key == pairs[j].key {
			return pairs[i].value < pairs[j].value
		}
		return pairs[i].key < pairs[j].key
	})

	encoded := make([]string, 0, len(pairs))
	for _, p := range pairs {
		encoded = append(encoded, p.key+"="+p.value)
	}
	return strings.Join(encoded, "&")
}

// Scheme and host are lowercased, default ports, query and fragment dropped.
func normalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (scheme == "https" && strings.HasSuffix(host, ":443")) || (scheme == "http" && strings.HasSuffix(host, ":80")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	return scheme + "://" + host + u.EscapedPath(), nil
}

func authHeader(oauthParams map[string]string) string {
	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, oauth1.PercentEncode(k), oauth1.PercentEncode(oauthParams[k])))
	}
	return authPrefix + strings.Join(parts, ", ")
}
