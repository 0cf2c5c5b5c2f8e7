package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/model"
	"github.com/truemediaorg/detectbot/pipeline"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, event model.MentionEvent, source string) pipeline.Skip
}

type RecordReader interface {
	FindByShortID(ctx context.Context, shortID string) (model.Retrieval, error)
	Recent(ctx context.Context, limit int) ([]model.DetectionRecord, error)
	Ping(ctx context.Context) error
}

type Handlers struct {
	dispatcher     Dispatcher
	records        RecordReader
	consumerSecret string
	webhookEnabled bool
}

type Config struct {
	// ConsumerSecret keys the webhook CRC response.
	ConsumerSecret string
	WebhookEnabled bool
}

func NewHandlers(cfg Config, dispatcher Dispatcher, records RecordReader) *Handlers {
	return &Handlers{
		dispatcher:     dispatcher,
		records:        records,
		consumerSecret: cfg.ConsumerSecret,
		webhookEnabled: cfg.WebhookEnabled,
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health always answers 200 so a slow database does not get the bot restarted;
// the body says whether the store is reachable.
func (h *Handlers) Health(c *gin.Context) {
	log.Debug("received healthcheck request")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := h.records.Ping(ctx); err != nil {
		dbStatus = "error"
		log.Errorf("database ping failed: %v", err)
	}
	c.JSON(http.StatusOK, healthResponse{Status: "ok", Database: dbStatus})
}
