// Package shortid allocates the four character ids used in shareable links.
package shortid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	Length      = 4
	MaxAttempts = 10

	// Alphanumerics without the look-alikes 0/O/o and 1/l/I.
	Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"
)

var ErrExhausted = errors.New("no free short id after max attempts")

// Matched case-insensitively against candidates.
var blocklist = []string{
	"ass", "fuk", "fck", "fag", "cum", "tit", "sex", "nig", "kkk", "nzi", "wtf",
	"jew", "gay", "die", "pis", "poo", "dik", "cnt", "xxx", "porn", "shit",
	"api", "www", "help", "rss",
}

// Checker reports whether a short id is already taken.
type Checker interface {
	ShortIDExists(ctx context.Context, shortID string) (bool, error)
}

type Allocator struct {
	checker     Checker
	maxAttempts int
	random      func() (string, error)
}

func NewAllocator(checker Checker) *Allocator {
	return &Allocator{checker: checker, maxAttempts: MaxAttempts, random: Generate}
}

// Allocate returns an unused, acceptable id, or ErrExhausted once the retry
// budget is spent. Lookup errors count as collisions.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		candidate, err := a.random()
		if err != nil {
			return "", fmt.Errorf("generate short id: %w", err)
		}
		if !Acceptable(candidate) {
			continue
		}
		exists, err := a.checker.ShortIDExists(ctx, candidate)
		if err != nil {
			log.WithField("shortId", candidate).Warnf("short id lookup failed: %v", err)
			continue
		}
		if !exists {
			return candidate, nil
		}
		log.WithField("shortId", candidate).WithField("attempt", attempt).Debug("short id collision")
	}
	return "", ErrExhausted
}

// Generate draws a candidate from a cryptographically secure source. It does
// not apply the acceptability rules.
func Generate() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Acceptable applies the alphabet, blocklist and repetition rules.
func Acceptable(candidate string) bool {
	if len(candidate) != Length {
		return false
	}
	counts := map[rune]int{}
	for _, r := range candidate {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
		counts[r]++
		if counts[r]*2 > Length {
			return false
		}
	}
	lower := strings.ToLower(candidate)
	for _, word := range blocklist {
		if strings.Contains(lower, word) {
			return false
		}
	}
	return true
}
