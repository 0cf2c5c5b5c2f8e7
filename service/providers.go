package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/config"
	"github.com/truemediaorg/detectbot/detection"
	"github.com/truemediaorg/detectbot/enrichment"
	"github.com/truemediaorg/detectbot/extractor"
	"github.com/truemediaorg/detectbot/pipeline"
)

// NewDetectionRunner builds the detection job runner with its API key from Secrets Manager.
func NewDetectionRunner(ctx context.Context, cfg config.DetectionConfig, secrets config.SecretGetter) (*detection.Runner, error) {
	secret, err := config.LoadSecret[config.DetectionSecretData](ctx, secrets, cfg.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("detection secrets: %w", err)
	}

	client := detection.NewClient(secret.ApiKey, cfg.ApiURL)
	log.Infof("Detection client initialized. Host: %s", cfg.ApiURL.String())

	downloader := detection.NewHTTPDownloader(detection.DefaultDownloadTimeout, extractor.DefaultUserAgent)
	return detection.NewRunner(client, downloader, detection.WithPolling(cfg.PollInterval, cfg.PollAttempts)), nil
}

// NewEnricher returns nil when no enrichment secret is configured; records then
// keep their placeholder descriptions.
func NewEnricher(ctx context.Context, cfg config.EnrichmentConfig, secrets config.SecretGetter) (pipeline.Enricher, error) {
	if cfg.SecretPath == "" {
		log.Warn("no enrichment secret configured, enrichment disabled")
		return nil, nil
	}
	secret, err := config.LoadSecret[config.EnrichmentSecretData](ctx, secrets, cfg.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("enrichment secrets: %w", err)
	}
	log.WithField("model", cfg.Model).Info("Enrichment client initialized")
	return enrichment.NewClient(secret.ApiKey, cfg.ApiURL, cfg.Model), nil
}
