// Package enrichment asks a multimodal model to describe an analyzed image.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/metrics"
	"github.com/truemediaorg/detectbot/model"
)

const (
	DefaultModel   = openai.GPT4o
	DefaultTimeout = 60 * time.Second
	maxTokens      = 1200
)

var ErrEmptyResponse = errors.New("enrichment response had no choices")

type Request struct {
	ImageURL      string
	AIProbability float64
	Context       Context
}

type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewClient builds a client for an OpenAI-compatible endpoint. A blank baseURL
// uses the OpenAI default.
func NewClient(apiKey, baseURL, modelName string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Client{
		client:  openai.NewClientWithConfig(cfg),
		model:   modelName,
		timeout: DefaultTimeout,
	}
}

// Describe always returns an Enrichment worth storing: on any failure the
// placeholder comes back alongside the error.
func (c *Client) Describe(ctx context.Context, req Request) (model.Enrichment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: BuildPrompt(req.AIProbability, req.Context)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    req.ImageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		metrics.Enrichments.WithLabelValues("error").Inc()
		return Placeholder, fmt.Errorf("enrichment request: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.Enrichments.WithLabelValues("error").Inc()
		return Placeholder, ErrEmptyResponse
	}

	enrichment, err := ParseSections(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.Enrichments.WithLabelValues("parse_failure").Inc()
		log.WithField("imageUrl", req.ImageURL).Warnf("discarding enrichment response: %v", err)
		return Placeholder, err
	}
	metrics.Enrichments.WithLabelValues("ok").Inc()
	return enrichment, nil
}
