package model

import (
	"github.com/truemediaorg/detectbot/database/db"
)

func DetectionRecordFromRow(row db.Detection) (*DetectionRecord, error) {
	platform, err := ParsePlatform(row.Platform)
	if err != nil {
		return nil, err
	}
	return &DetectionRecord{
		ID:                  row.ID,
		Platform:            platform,
		SourceID:            row.SourceID,
		AuthorHandle:        row.AuthorHandle,
		CapturedAt:          row.CapturedAt,
		ImageURL:            row.ImageURL,
		AIProbability:       row.AIProbability,
		Classification:      row.Classification,
		Confidence:          row.Confidence,
		ShortID:             row.ShortID,
		ReplyID:             row.ReplyID,
		ProcessingTimeMs:    row.ProcessingTimeMs,
		Provider:            row.Provider,
		ImageBytes:          row.ImageBytes,
		ContentType:         row.ContentType,
		Description:         row.Description,
		MetaDescription:     row.MetaDescription,
		DetailedDescription: row.DetailedDescription,
		ConfidenceNarrative: row.ConfidenceNarrative,
		CreatedAt:           row.CreatedAt,
		DeletedAt:           row.DeletedAt,
	}, nil
}

func (r DetectionRecord) Row() db.Detection {
	return db.Detection{
		ID:                  r.ID,
		Platform:            string(r.Platform),
		SourceID:            r.SourceID,
		AuthorHandle:        r.AuthorHandle,
		CapturedAt:          r.CapturedAt,
		ImageURL:            r.ImageURL,
		AIProbability:       r.AIProbability,
		Classification:      r.Classification,
		Confidence:          r.Confidence,
		ShortID:             r.ShortID,
		ReplyID:             r.ReplyID,
		ProcessingTimeMs:    r.ProcessingTimeMs,
		Provider:            r.Provider,
		ImageBytes:          r.ImageBytes,
		ContentType:         r.ContentType,
		Description:         r.Description,
		MetaDescription:     r.MetaDescription,
		DetailedDescription: r.DetailedDescription,
		ConfidenceNarrative: r.ConfidenceNarrative,
		CreatedAt:           r.CreatedAt,
		DeletedAt:           r.DeletedAt,
	}
}
