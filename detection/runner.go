// Package detection runs images through the external AI-content detector:
// download, acquire an upload slot, upload, submit, then poll the job.
package detection

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/metrics"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollAttempts = 12
)

// Provider is the provider's protocol, implemented by *Client.
type Provider interface {
	AcquireSlot(ctx context.Context, filename, contentType string) (*AcquireSlotResponse, error)
	Upload(ctx context.Context, uploadURL string, body []byte, contentType string) error
	Submit(ctx context.Context, objectKey, filename string) (*SubmitResponse, error)
	JobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error)
}

// Sleeper waits between polls. It returns early with the context's error.
type Sleeper func(ctx context.Context, d time.Duration) error

func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Result is a successful detection.
type Result struct {
	AIProbability    float64
	FinalResult      string
	Confidence       *float64
	ProcessingTimeMs int64
	ImageBytes       []byte
	ContentType      string
}

// Failure says which stage gave up on an image and why.
type Failure struct {
	Stage            Stage
	Reason           string
	ProcessingTimeMs int64
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Stage, f.Reason)
}

// Outcome is exactly one of Result or Failure.
type Outcome struct {
	ImageURL string
	Result   *Result
	Failure  *Failure
}

func (o Outcome) Succeeded() bool {
	return o.Result != nil
}

type Runner struct {
	provider     Provider
	downloader   Downloader
	sleep        Sleeper
	pollInterval time.Duration
	pollAttempts int
	now          func() time.Time
}

type Option func(*Runner)

func WithSleeper(sleep Sleeper) Option {
	return func(r *Runner) { r.sleep = sleep }
}

func WithPolling(interval time.Duration, attempts int) Option {
	return func(r *Runner) {
		if interval > 0 {
			r.pollInterval = interval
		}
		if attempts > 0 {
			r.pollAttempts = attempts
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(provider Provider, downloader Downloader, opts ...Option) *Runner {
	r := &Runner{
		provider:     provider,
		downloader:   downloader,
		sleep:        ContextSleep,
		pollInterval: DefaultPollInterval,
		pollAttempts: DefaultPollAttempts,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Detect drives one image to a terminal state. Failures come back inside the
// Outcome so sibling images keep going.
func (r *Runner) Detect(ctx context.Context, imageURL string) Outcome {
	started := r.now()
	logger := log.WithField("imageUrl", imageURL)

	fail := func(stage Stage, reason string) Outcome {
		elapsed := r.now().Sub(started)
		metrics.Detections.WithLabelValues("failed").Inc()
		metrics.DetectionDuration.Observe(elapsed.Seconds())
		logger.WithField("stage", stage).Warnf("detection failed: %s", reason)
		return Outcome{
			ImageURL: imageURL,
			Failure:  &Failure{Stage: stage, Reason: reason, ProcessingTimeMs: elapsed.Milliseconds()},
		}
	}

	image, err := r.downloader.Download(ctx, imageURL)
	if err != nil {
		return fail(StageDownloaded, fmt.Sprintf("download: %v", err))
	}

	slot, err := r.provider.AcquireSlot(ctx, image.Filename, image.ContentType)
	if err != nil {
		return fail(StageSlotAcquired, fmt.Sprintf("acquire upload slot: %v", err))
	}

	if err := r.provider.Upload(ctx, slot.UploadURL, image.Bytes, image.ContentType); err != nil {
		return fail(StageUploaded, fmt.Sprintf("upload: %v", err))
	}

	submitted, err := r.provider.Submit(ctx, slot.ObjectKey, image.Filename)
	if err != nil {
		return fail(StageSubmitted, fmt.Sprintf("submit: %v", err))
	}
	logger = logger.WithField("jobId", submitted.JobID)
	logger.Debug("detection job submitted")

	state := NewPollState(r.pollAttempts)
	for !state.Stage.Terminal() {
		if err := r.sleep(ctx, r.pollInterval); err != nil {
			return fail(StagePolling, fmt.Sprintf("poll wait: %v", err))
		}
		status, err := r.provider.JobStatus(ctx, submitted.JobID)
		if err != nil {
			// A transport error costs the attempt but not the job.
			logger.Infof("job status poll failed: %v", err)
			status = &JobStatusResponse{Status: JobStatusPending}
		}
		state = NextPollState(state, *status)
	}
	if state.Stage == StageFailed {
		return fail(StagePolling, state.Reason)
	}

	elapsed := r.now().Sub(started)
	metrics.Detections.WithLabelValues("succeeded").Inc()
	metrics.DetectionDuration.Observe(elapsed.Seconds())
	logger.WithField("score", state.Score).Infof("detection finished after %d polls", state.Attempts)

	return Outcome{
		ImageURL: imageURL,
		Result: &Result{
			AIProbability:    state.Score,
			FinalResult:      state.Detail.FinalResult,
			Confidence:       state.Detail.Confidence,
			ProcessingTimeMs: elapsed.Milliseconds(),
			ImageBytes:       image.Bytes,
			ContentType:      image.ContentType,
		},
	}
}
