package model

import (
	"time"
)

const (
	ClassificationError   = "error"
	ClassificationNoImage = "no_image"
)

// DetectionRecord is the persisted result for one analyzed image.
type DetectionRecord struct {
	ID           string
	Platform     Platform
	SourceID     string
	AuthorHandle string
	CapturedAt   time.Time
	ImageURL     string

	// AIProbability is nil when detection failed, otherwise within [0,100].
	AIProbability  *float64
	Classification string
	Confidence     *float64

	// ShortID is immutable once assigned.
	ShortID *string
	// ReplyID is set at most once, after the reply post succeeds.
	ReplyID *string

	ProcessingTimeMs int64
	Provider         string
	ImageBytes       []byte
	ContentType      string

	Description         string
	MetaDescription     string
	DetailedDescription string
	ConfidenceNarrative string

	CreatedAt time.Time
	DeletedAt *time.Time
}

func (r DetectionRecord) HasShortID() bool {
	return r.ShortID != nil && *r.ShortID != ""
}

// Enrichment holds the four descriptive fields written after the reply goes out.
type Enrichment struct {
	Description         string
	MetaDescription     string
	DetailedDescription string
	ConfidenceNarrative string
}

type RetrievalStatus string

const (
	RetrievalNotFound RetrievalStatus = "not_found"
	RetrievalGone     RetrievalStatus = "gone"
	RetrievalActive   RetrievalStatus = "active"
)

// Retrieval is the result of a short id lookup. Record is only set when Status is active.
type Retrieval struct {
	Status RetrievalStatus
	Record *DetectionRecord
}

func RetrievalFor(record *DetectionRecord) Retrieval {
	if record == nil {
		return Retrieval{Status: RetrievalNotFound}
	}
	if record.DeletedAt != nil {
		return Retrieval{Status: RetrievalGone}
	}
	return Retrieval{Status: RetrievalActive, Record: record}
}
