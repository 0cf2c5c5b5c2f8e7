package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/pipeline"
	"github.com/truemediaorg/detectbot/twitter"
)

const (
	webhookSource   = "webhook"
	maxWebhookBytes = 5 * 1024 * 1024
)

type webhookResponse struct {
	Received   int `json:"received"`
	Dispatched int `json:"dispatched"`
}

// Webhook is the push path. It always answers 200 so the sender never retries;
// anything that goes wrong is only logged.
func (h *Handlers) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		log.Warnf("unable to read webhook body: %v", err)
		c.JSON(http.StatusOK, webhookResponse{})
		return
	}

	records, err := twitter.DecodeBatch(body)
	if err != nil {
		log.WithField("bytes", len(body)).Warnf("dropping webhook batch: %v", err)
		c.JSON(http.StatusOK, webhookResponse{})
		return
	}

	resp := webhookResponse{Received: len(records)}
	for i, record := range records {
		logger := log.WithField("event", i)
		raw, err := twitter.DecodeMention(record)
		if err != nil {
			logger.Warnf("dropping webhook event: %v", err)
			continue
		}
		event, err := twitter.Adapt(raw)
		if err != nil {
			logger.WithField("payload", raw.Kind()).Warnf("dropping webhook event: %v", err)
			continue
		}
		if h.dispatcher.Dispatch(c.Request.Context(), event, webhookSource) == pipeline.SkipNone {
			resp.Dispatched++
		}
	}
	c.JSON(http.StatusOK, resp)
}

type crcResponse struct {
	ResponseToken string `json:"response_token"`
}

// CRCChallenge answers the platform's periodic check that we own the webhook.
func (h *Handlers) CRCChallenge(c *gin.Context) {
	token := c.Query("crc_token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "crc_token_required"})
		return
	}
	c.JSON(http.StatusOK, crcResponse{ResponseToken: CRCResponseToken(h.consumerSecret, token)})
}

func CRCResponseToken(consumerSecret string, token string) string {
	mac := hmac.New(sha256.New, []byte(consumerSecret))
	mac.Write([]byte(token))
	return "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
