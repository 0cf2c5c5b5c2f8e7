package db

import "time"

// Detection is one row of the detections table. The same struct is scanned by
// pgx and mapped by gorm for the local backend.
type Detection struct {
	ID                  string     `db:"id" gorm:"column:id;primaryKey;size:36"`
	Platform            string     `db:"platform" gorm:"column:platform;size:16;not null"`
	SourceID            string     `db:"source_id" gorm:"column:source_id;index;size:64;not null"`
	AuthorHandle        string     `db:"author_handle" gorm:"column:author_handle;size:64"`
	CapturedAt          time.Time  `db:"captured_at" gorm:"column:captured_at"`
	ImageURL            string     `db:"image_url" gorm:"column:image_url;type:text"`
	AIProbability       *float64   `db:"ai_probability" gorm:"column:ai_probability"`
	Classification      string     `db:"classification" gorm:"column:classification;size:32"`
	Confidence          *float64   `db:"confidence" gorm:"column:confidence"`
	ShortID             *string    `db:"short_id" gorm:"column:short_id;uniqueIndex;size:8"`
	ReplyID             *string    `db:"reply_id" gorm:"column:reply_id;size:64"`
	ProcessingTimeMs    int64      `db:"processing_time_ms" gorm:"column:processing_time_ms"`
	Provider            string     `db:"provider" gorm:"column:provider;size:32"`
	ImageBytes          []byte     `db:"image_bytes" gorm:"column:image_bytes"`
	ContentType         string     `db:"content_type" gorm:"column:content_type;size:64"`
	Description         string     `db:"description" gorm:"column:description;type:text"`
	MetaDescription     string     `db:"meta_description" gorm:"column:meta_description;type:text"`
	DetailedDescription string     `db:"detailed_description" gorm:"column:detailed_description;type:text"`
	ConfidenceNarrative string     `db:"confidence_narrative" gorm:"column:confidence_narrative;type:text"`
	CreatedAt           time.Time  `db:"created_at" gorm:"column:created_at;index"`
	DeletedAt           *time.Time `db:"deleted_at" gorm:"column:deleted_at"`
}

func (Detection) TableName() string {
	return "detections"
}
