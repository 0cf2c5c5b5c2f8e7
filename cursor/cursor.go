// Package cursor keeps the high-water mark of mentions the pull path has seen.
package cursor

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/model"
	"github.com/truemediaorg/detectbot/twitter"
)

// Store remembers the newest post id seen per platform. The cursor is
// best-effort: losing it only costs a refetch, the pipeline dedups anyway.
type Store interface {
	// Get returns the current cursor, or "" when nothing has been seen yet.
	Get(ctx context.Context, platform model.Platform) (string, error)
	// Advance moves the cursor forward to id. Older ids are ignored.
	Advance(ctx context.Context, platform model.Platform, id string) error
}

// Seeder supplies a starting cursor when the store has none, usually the
// newest source id already persisted.
type Seeder interface {
	LatestSourceID(ctx context.Context, platform model.Platform) (string, error)
}

// Memory is a process-local Store.
type Memory struct {
	mu      sync.Mutex
	seed    Seeder
	cursors map[model.Platform]string
}

func NewMemory(seed Seeder) *Memory {
	return &Memory{seed: seed, cursors: map[model.Platform]string{}}
}

func (m *Memory) Get(ctx context.Context, platform model.Platform) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.cursors[platform]; ok {
		return id, nil
	}
	id, err := seedFor(ctx, m.seed, platform)
	if err != nil {
		return "", err
	}
	m.cursors[platform] = id
	return id, nil
}

func (m *Memory) Advance(ctx context.Context, platform model.Platform, id string) error {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if twitter.CompareIDs(id, m.cursors[platform]) > 0 {
		m.cursors[platform] = id
	}
	return nil
}

func seedFor(ctx context.Context, seed Seeder, platform model.Platform) (string, error) {
	if seed == nil {
		return "", nil
	}
	id, err := seed.LatestSourceID(ctx, platform)
	if err != nil {
		return "", err
	}
	log.WithField("platform", platform).WithField("cursor", id).Info("seeded mention cursor from stored records")
	return id, nil
}
