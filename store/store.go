// Package store is the persistence contract the pipeline and the lookup
// surface depend on. It sits on either database backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/database"
	"github.com/truemediaorg/detectbot/database/db"
	"github.com/truemediaorg/detectbot/metrics"
	"github.com/truemediaorg/detectbot/model"
	"github.com/truemediaorg/detectbot/shortid"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrReplyIDConflict = errors.New("record already has a different reply id")
	ErrHasShortID      = errors.New("record already has a short id")
)

// Inserts that lose a short id race are retried this many times in total.
const maxInsertAttempts = 3

type Backend interface {
	Ping(ctx context.Context) error
	InsertDetection(ctx context.Context, row db.Detection) error
	UpdateReplyID(ctx context.Context, id string, replyID string) (bool, error)
	UpdateEnrichment(ctx context.Context, id string, description, metaDescription, detailedDescription, confidenceNarrative string) error
	SetShortID(ctx context.Context, id string, shortID string) (bool, error)
	SoftDelete(ctx context.Context, shortID string, at time.Time) (bool, error)
	FindByShortID(ctx context.Context, shortID string) (*db.Detection, error)
	FindByID(ctx context.Context, id string) (*db.Detection, error)
	ShortIDExists(ctx context.Context, shortID string) (bool, error)
	SourceIDExists(ctx context.Context, platform string, sourceID string) (bool, error)
	Recent(ctx context.Context, limit int) ([]db.Detection, error)
	LatestSourceID(ctx context.Context, platform string) (string, error)
}

type ShortIDAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

type Store struct {
	backend   Backend
	allocator ShortIDAllocator
	now       func() time.Time
}

func NewStore(backend Backend) *Store {
	return &Store{
		backend:   backend,
		allocator: shortid.NewAllocator(backend),
		now:       time.Now,
	}
}

// InsertResult always carries the id and short id that were attempted, even
// when the write failed.
type InsertResult struct {
	ID      string
	ShortID string
}

// Insert persists a record, allocating a short id when none is supplied. When
// no short id can be found the record is stored without one.
func (s *Store) Insert(ctx context.Context, record model.DetectionRecord) (InsertResult, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	logger := log.WithField("sourceId", record.SourceID).WithField("recordId", record.ID)

	supplied := record.HasShortID()
	if !supplied {
		record.ShortID = s.allocate(ctx, logger)
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = s.backend.InsertDetection(ctx, record.Row())
		if err == nil {
			metrics.RecordWrites.WithLabelValues("insert", "ok").Inc()
			return resultFor(record), nil
		}
		if supplied || attempt >= maxInsertAttempts || !errors.Is(err, database.ErrDuplicateShortID) {
			break
		}
		logger.WithField("shortId", shortIDOf(record)).Info("short id taken at insert, allocating another")
		if attempt == maxInsertAttempts-1 {
			// the last try goes in without a short id
			record.ShortID = nil
		} else {
			record.ShortID = s.allocate(ctx, logger)
		}
	}

	metrics.RecordWrites.WithLabelValues("insert", "error").Inc()
	logger.WithField("shortId", shortIDOf(record)).Errorf("detection record insert failed, needs follow-up: %v", err)
	return resultFor(record), fmt.Errorf("insert detection record: %w", err)
}

func (s *Store) allocate(ctx context.Context, logger *log.Entry) *string {
	id, err := s.allocator.Allocate(ctx)
	if err != nil {
		logger.Warnf("storing record without short id: %v", err)
		return nil
	}
	return &id
}

func resultFor(record model.DetectionRecord) InsertResult {
	return InsertResult{ID: record.ID, ShortID: shortIDOf(record)}
}

func shortIDOf(record model.DetectionRecord) string {
	if record.ShortID == nil {
		return ""
	}
	return *record.ShortID
}

// UpdateReplyID attaches the reply post id. Repeating the same id is a no-op.
func (s *Store) UpdateReplyID(ctx context.Context, recordID string, replyID string) error {
	updated, err := s.backend.UpdateReplyID(ctx, recordID, replyID)
	if err != nil {
		metrics.RecordWrites.WithLabelValues("reply_id", "error").Inc()
		return fmt.Errorf("update reply id: %w", err)
	}
	if !updated {
		existing, err := s.backend.FindByID(ctx, recordID)
		if err != nil {
			return fmt.Errorf("update reply id: %w", err)
		}
		metrics.RecordWrites.WithLabelValues("reply_id", "skipped").Inc()
		if existing == nil {
			return ErrNotFound
		}
		return ErrReplyIDConflict
	}
	metrics.RecordWrites.WithLabelValues("reply_id", "ok").Inc()
	return nil
}

func (s *Store) UpdateEnrichment(ctx context.Context, recordID string, enrichment model.Enrichment) error {
	err := s.backend.UpdateEnrichment(ctx, recordID,
		enrichment.Description,
		enrichment.MetaDescription,
		enrichment.DetailedDescription,
		enrichment.ConfidenceNarrative,
	)
	if err != nil {
		metrics.RecordWrites.WithLabelValues("enrichment", "error").Inc()
		return fmt.Errorf("update enrichment: %w", err)
	}
	metrics.RecordWrites.WithLabelValues("enrichment", "ok").Inc()
	return nil
}

// FindByShortID resolves a short id to not found, gone or active.
func (s *Store) FindByShortID(ctx context.Context, shortID string) (model.Retrieval, error) {
	if shortID == "" {
		return model.Retrieval{Status: model.RetrievalNotFound}, nil
	}
	row, err := s.backend.FindByShortID(ctx, shortID)
	if err != nil {
		return model.Retrieval{}, fmt.Errorf("find by short id: %w", err)
	}
	if row == nil {
		return model.RetrievalFor(nil), nil
	}
	record, err := model.DetectionRecordFromRow(*row)
	if err != nil {
		return model.Retrieval{}, err
	}
	return model.RetrievalFor(record), nil
}

func (s *Store) FindByID(ctx context.Context, recordID string) (*model.DetectionRecord, error) {
	row, err := s.backend.FindByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("find by id: %w", err)
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return model.DetectionRecordFromRow(*row)
}

func (s *Store) ExistsBySourceID(ctx context.Context, platform model.Platform, sourceID string) (bool, error) {
	exists, err := s.backend.SourceIDExists(ctx, string(platform), sourceID)
	if err != nil {
		return false, fmt.Errorf("check source id: %w", err)
	}
	return exists, nil
}

// SoftDelete marks the record gone. Deleting a gone record again is not an error.
func (s *Store) SoftDelete(ctx context.Context, shortID string) error {
	deleted, err := s.backend.SoftDelete(ctx, shortID, s.now())
	if err != nil {
		metrics.RecordWrites.WithLabelValues("soft_delete", "error").Inc()
		return fmt.Errorf("soft delete: %w", err)
	}
	if deleted {
		metrics.RecordWrites.WithLabelValues("soft_delete", "ok").Inc()
		log.WithField("shortId", shortID).Info("record soft deleted")
		return nil
	}
	row, err := s.backend.FindByShortID(ctx, shortID)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	if row == nil {
		return ErrNotFound
	}
	return nil
}

// BackfillShortID gives a record stored without a short id a fresh one.
func (s *Store) BackfillShortID(ctx context.Context, recordID string) (string, error) {
	record, err := s.FindByID(ctx, recordID)
	if err != nil {
		return "", err
	}
	if record.HasShortID() {
		return *record.ShortID, ErrHasShortID
	}

	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		id, err := s.allocator.Allocate(ctx)
		if err != nil {
			return "", err
		}
		updated, err := s.backend.SetShortID(ctx, recordID, id)
		if errors.Is(err, database.ErrDuplicateShortID) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("set short id: %w", err)
		}
		if !updated {
			return "", ErrHasShortID
		}
		metrics.RecordWrites.WithLabelValues("backfill", "ok").Inc()
		return id, nil
	}
	return "", shortid.ErrExhausted
}

// Recent lists non-deleted records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]model.DetectionRecord, error) {
	rows, err := s.backend.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}
	records := make([]model.DetectionRecord, 0, len(rows))
	for _, row := range rows {
		record, err := model.DetectionRecordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

func (s *Store) LatestSourceID(ctx context.Context, platform model.Platform) (string, error) {
	return s.backend.LatestSourceID(ctx, string(platform))
}

func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}
