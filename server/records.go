package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/model"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

type recordResponse struct {
	ID                  string    `json:"id"`
	ShortID             string    `json:"shortId,omitempty"`
	Platform            string    `json:"platform"`
	SourceID            string    `json:"sourceId"`
	AuthorHandle        string    `json:"authorHandle"`
	ImageURL            string    `json:"imageUrl,omitempty"`
	AIProbability       *float64  `json:"aiProbability"`
	Classification      string    `json:"classification"`
	Confidence          *float64  `json:"confidence,omitempty"`
	ReplyID             string    `json:"replyId,omitempty"`
	Provider            string    `json:"provider"`
	ProcessingTimeMs    int64     `json:"processingTimeMs"`
	Description         string    `json:"description"`
	MetaDescription     string    `json:"metaDescription"`
	DetailedDescription string    `json:"detailedDescription"`
	ConfidenceNarrative string    `json:"confidenceNarrative"`
	CapturedAt          time.Time `json:"capturedAt"`
	CreatedAt           time.Time `json:"createdAt"`
}

func toRecordResponse(record model.DetectionRecord) recordResponse {
	resp := recordResponse{
		ID:                  record.ID,
		Platform:            string(record.Platform),
		SourceID:            record.SourceID,
		AuthorHandle:        record.AuthorHandle,
		ImageURL:            record.ImageURL,
		AIProbability:       record.AIProbability,
		Classification:      record.Classification,
		Confidence:          record.Confidence,
		Provider:            record.Provider,
		ProcessingTimeMs:    record.ProcessingTimeMs,
		Description:         record.Description,
		MetaDescription:     record.MetaDescription,
		DetailedDescription: record.DetailedDescription,
		ConfidenceNarrative: record.ConfidenceNarrative,
		CapturedAt:          record.CapturedAt,
		CreatedAt:           record.CreatedAt,
	}
	if record.ShortID != nil {
		resp.ShortID = *record.ShortID
	}
	if record.ReplyID != nil {
		resp.ReplyID = *record.ReplyID
	}
	return resp
}

// RecordByShortID answers 200 for an active record, 404 for an unknown id and
// 410 once the record has been soft deleted.
func (h *Handlers) RecordByShortID(c *gin.Context) {
	shortID := c.Param("shortId")
	retrieval, err := h.records.FindByShortID(c.Request.Context(), shortID)
	if err != nil {
		log.WithField("shortId", shortID).Errorf("record lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}

	switch retrieval.Status {
	case model.RetrievalActive:
		c.JSON(http.StatusOK, toRecordResponse(*retrieval.Record))
	case model.RetrievalGone:
		c.JSON(http.StatusGone, gin.H{"error": "gone"})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	}
}

// RecentRecords lists the newest records for dashboard collaborators.
func (h *Handlers) RecentRecords(c *gin.Context) {
	limit := defaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = min(parsed, maxRecentLimit)
	}

	records, err := h.records.Recent(c.Request.Context(), limit)
	if err != nil {
		log.Errorf("recent records query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	resp := make([]recordResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, toRecordResponse(record))
	}
	c.JSON(http.StatusOK, gin.H{"records": resp})
}
