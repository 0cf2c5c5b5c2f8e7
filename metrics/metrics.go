// Package metrics holds the bot's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MentionsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detectbot_mentions_received_total",
		Help: "Mentions received, by ingestion path",
	}, []string{"source"})

	MentionsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detectbot_mentions_skipped_total",
		Help: "Mentions dropped before detection, by reason",
	}, []string{"reason"})

	Detections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detectbot_detections_total",
		Help: "Image detections, by outcome",
	}, []string{"outcome"})

	DetectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "detectbot_detection_duration_seconds",
		Help:    "Time from download to terminal job state",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90},
	})

	Replies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detectbot_replies_total",
		Help: "Reply posts, by status",
	}, []string{"status"})

	Enrichments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detectbot_enrichments_total",
		Help: "Enrichment calls, by outcome",
	}, []string{"outcome"})

	RecordWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detectbot_record_writes_total",
		Help: "Detection record writes, by operation and status",
	}, []string{"operation", "status"})

	SignedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detectbot_platform_requests_total",
		Help: "Platform API requests, by endpoint class and status",
	}, []string{"endpoint", "status"})

	SignedBudgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "detectbot_signed_budget_remaining",
		Help: "Signed requests left in the current window",
	})

	BackgroundTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "detectbot_background_tasks",
		Help: "Background tasks currently running",
	})
)
