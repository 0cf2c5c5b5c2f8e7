// Package pipeline takes a mention from either ingestion path through
// extraction, detection, reply and persistence.
package pipeline

import (
	"context"
	"time"

	"github.com/g8rswimmer/go-twitter/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/truemediaorg/detectbot/detection"
	"github.com/truemediaorg/detectbot/enrichment"
	"github.com/truemediaorg/detectbot/metrics"
	"github.com/truemediaorg/detectbot/model"
	"github.com/truemediaorg/detectbot/responder"
	"github.com/truemediaorg/detectbot/store"
)

type ImageExtractor interface {
	Extract(ctx context.Context, event model.MentionEvent) []string
}

type ImageDetector interface {
	Detect(ctx context.Context, imageURL string) detection.Outcome
}

type Enricher interface {
	Describe(ctx context.Context, req enrichment.Request) (model.Enrichment, error)
}

type RecordStore interface {
	Insert(ctx context.Context, record model.DetectionRecord) (store.InsertResult, error)
	UpdateReplyID(ctx context.Context, recordID string, replyID string) error
	UpdateEnrichment(ctx context.Context, recordID string, enrichment model.Enrichment) error
	ExistsBySourceID(ctx context.Context, platform model.Platform, sourceID string) (bool, error)
}

type TweetResponder interface {
	TweetResponse(ctx context.Context, replyToID string, message string) (*twitter.CreateTweetResponse, error)
}

type TweetLiker interface {
	LikeTweet(ctx context.Context, tweetID string) error
}

// Budget reports whether a signed request may go out now.
type Budget interface {
	CanSend() bool
}

// Skip says why a mention was not dispatched. SkipNone means it was.
type Skip string

const (
	SkipNone         Skip = ""
	SkipSelf         Skip = "self"
	SkipNotMentioned Skip = "not_mentioned"
	SkipInFlight     Skip = "in_flight"
	SkipDuplicate    Skip = "duplicate"
	SkipLookupFailed Skip = "lookup_failed"
	SkipBudget       Skip = "budget_exhausted"
)

type Config struct {
	BotHandle       string
	Provider        string
	TestModeEnabled bool
}

type Pipeline struct {
	cfg       Config
	extractor ImageExtractor
	detector  ImageDetector
	enricher  Enricher
	records   RecordStore
	composer  *responder.Composer
	poster    TweetResponder
	liker     TweetLiker
	tasks     *Tasks
	budget    Budget
	claims    *claims
	now       func() time.Time
}

func New(cfg Config, extractor ImageExtractor, detector ImageDetector, enricher Enricher, records RecordStore,
	composer *responder.Composer, poster TweetResponder, liker TweetLiker, tasks *Tasks, budget Budget) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		extractor: extractor,
		detector:  detector,
		enricher:  enricher,
		records:   records,
		composer:  composer,
		poster:    poster,
		liker:     liker,
		tasks:     tasks,
		budget:    budget,
		claims:    newClaims(),
		now:       time.Now,
	}
}

// Dispatch does the cheap checks inline and hands an accepted mention to a
// background task. source labels the ingestion path for metrics.
func (p *Pipeline) Dispatch(ctx context.Context, event model.MentionEvent, source string) Skip {
	metrics.MentionsReceived.WithLabelValues(source).Inc()
	logger := log.WithField("sourceId", event.SourceID).WithField("source", source)

	skip := p.admit(ctx, event)
	if skip != SkipNone {
		metrics.MentionsSkipped.WithLabelValues(string(skip)).Inc()
		logger.WithField("reason", skip).Debug("mention skipped")
		return skip
	}

	logger.WithField("author", event.AuthorHandle).Info("mention accepted")
	p.tasks.Go("mention "+event.SourceID, func(taskCtx context.Context) error {
		defer p.claims.release(claimKey(event))
		p.Process(taskCtx, event)
		return nil
	})
	return SkipNone
}

// admit claims the mention when it should be processed. The claim is held on
// return only for SkipNone.
func (p *Pipeline) admit(ctx context.Context, event model.MentionEvent) Skip {
	if event.IsAuthoredBy(p.cfg.BotHandle) {
		return SkipSelf
	}
	if !event.Mentions(p.cfg.BotHandle) {
		return SkipNotMentioned
	}
	// a mention admitted now would be stored but never answered
	if !p.canReply() {
		return SkipBudget
	}
	key := claimKey(event)
	if !p.claims.claim(key) {
		return SkipInFlight
	}
	exists, err := p.records.ExistsBySourceID(ctx, event.Platform, event.SourceID)
	if err != nil {
		p.claims.release(key)
		log.WithField("sourceId", event.SourceID).Errorf("dedup lookup failed, dropping mention: %v", err)
		return SkipLookupFailed
	}
	if exists {
		p.claims.release(key)
		return SkipDuplicate
	}
	return SkipNone
}

func (p *Pipeline) canReply() bool {
	if p.budget == nil || p.cfg.TestModeEnabled {
		return true
	}
	return p.budget.CanSend()
}

func claimKey(event model.MentionEvent) string {
	return string(event.Platform) + ":" + event.SourceID
}

// Result summarizes one pipeline run.
type Result struct {
	Outcomes  []detection.Outcome
	RecordIDs []string
	ShortIDs  []string
	Reply     string
	ReplyID   string
}

// Process runs one admitted mention to completion. Enrichment and the like
// continue as background tasks after it returns.
func (p *Pipeline) Process(ctx context.Context, event model.MentionEvent) Result {
	logger := log.WithField("sourceId", event.SourceID)

	images := p.extractor.Extract(ctx, event)
	if len(images) == 0 {
		p.recordImageless(ctx, event)
		return Result{}
	}
	logger.WithField("images", len(images)).Info("running detection")

	outcomes := make([]detection.Outcome, len(images))
	g, gCtx := errgroup.WithContext(ctx)
	for i, imageURL := range images {
		i, imageURL := i, imageURL
		g.Go(func() error {
			outcomes[i] = p.detector.Detect(gCtx, imageURL)
			return nil
		})
	}
	_ = g.Wait() // detections report failure in their outcome

	result := Result{Outcomes: outcomes}
	results := make([]responder.ImageResult, len(outcomes))
	persisted := make([]bool, len(outcomes))
	for i, outcome := range outcomes {
		inserted, err := p.records.Insert(ctx, p.recordFor(event, outcome))
		if err != nil {
			logger.WithField("imageUrl", outcome.ImageURL).Errorf("detection record not stored: %v", err)
		} else {
			persisted[i] = true
		}
		result.RecordIDs = append(result.RecordIDs, inserted.ID)
		result.ShortIDs = append(result.ShortIDs, inserted.ShortID)
		results[i] = responder.ImageResult{ShortID: inserted.ShortID}
		if outcome.Succeeded() {
			probability := outcome.Result.AIProbability
			results[i].AIProbability = &probability
		}
	}

	// enrichment may run alongside the reply but its write waits for it
	replied := make(chan struct{})
	for i, outcome := range outcomes {
		if outcome.Succeeded() && persisted[i] {
			p.enrichLater(event, outcome, result.RecordIDs[i], replied)
		}
	}

	result.Reply = p.composer.Compose(responder.Post{
		MentionerHandle: event.MentionerHandle,
		Text:            event.Text,
		Hashtags:        event.Hashtags,
	}, results)
	result.ReplyID = p.postReply(ctx, event, result.Reply)
	close(replied)

	if result.ReplyID == "" {
		return result
	}
	for i, recordID := range result.RecordIDs {
		if !persisted[i] {
			continue
		}
		if err := p.records.UpdateReplyID(ctx, recordID, result.ReplyID); err != nil {
			logger.WithField("recordId", recordID).Warnf("reply id not attached: %v", err)
		}
	}
	p.likeLater(event)
	return result
}

func (p *Pipeline) recordFor(event model.MentionEvent, outcome detection.Outcome) model.DetectionRecord {
	record := model.DetectionRecord{
		Platform:     event.Platform,
		SourceID:     event.SourceID,
		AuthorHandle: event.AuthorHandle,
		CapturedAt:   event.CapturedAt,
		ImageURL:     outcome.ImageURL,
		Provider:     p.cfg.Provider,
	}
	if record.CapturedAt.IsZero() {
		record.CapturedAt = p.now()
	}
	if !outcome.Succeeded() {
		record.Classification = model.ClassificationError
		if outcome.Failure != nil {
			record.ProcessingTimeMs = outcome.Failure.ProcessingTimeMs
		}
		return record
	}

	r := outcome.Result
	probability := r.AIProbability
	record.AIProbability = &probability
	record.Classification = r.FinalResult
	if record.Classification == "" {
		record.Classification = responder.TierFor(probability).Label
	}
	record.Confidence = r.Confidence
	record.ProcessingTimeMs = r.ProcessingTimeMs
	record.ImageBytes = r.ImageBytes
	record.ContentType = r.ContentType
	// overwritten once enrichment lands
	record.Description = enrichment.Placeholder.Description
	record.MetaDescription = enrichment.Placeholder.MetaDescription
	record.DetailedDescription = enrichment.Placeholder.DetailedDescription
	record.ConfidenceNarrative = enrichment.Placeholder.ConfidenceNarrative
	return record
}

// recordImageless stores a marker so the mention counts as handled.
func (p *Pipeline) recordImageless(ctx context.Context, event model.MentionEvent) {
	log.WithField("sourceId", event.SourceID).Info("no analyzable images, recording mention as handled")
	metrics.MentionsSkipped.WithLabelValues("no_image").Inc()
	record := model.DetectionRecord{
		Platform:       event.Platform,
		SourceID:       event.SourceID,
		AuthorHandle:   event.AuthorHandle,
		CapturedAt:     event.CapturedAt,
		Classification: model.ClassificationNoImage,
		Provider:       p.cfg.Provider,
	}
	if record.CapturedAt.IsZero() {
		record.CapturedAt = p.now()
	}
	if _, err := p.records.Insert(ctx, record); err != nil {
		log.WithField("sourceId", event.SourceID).Errorf("image-less mention not recorded: %v", err)
	}
}

func (p *Pipeline) enrichLater(event model.MentionEvent, outcome detection.Outcome, recordID string, replied <-chan struct{}) {
	if p.enricher == nil {
		return
	}
	p.tasks.Go("enrichment "+recordID, func(ctx context.Context) error {
		described, err := p.enricher.Describe(ctx, enrichment.Request{
			ImageURL:      outcome.ImageURL,
			AIProbability: outcome.Result.AIProbability,
			Context:       enrichment.Context{Text: event.Text, Hashtags: event.Hashtags},
		})
		if err != nil {
			log.WithField("recordId", recordID).Warnf("enrichment failed, keeping placeholders: %v", err)
			return nil
		}
		select {
		case <-replied:
		case <-ctx.Done():
			return ctx.Err()
		}
		return p.records.UpdateEnrichment(ctx, recordID, described)
	})
}

func (p *Pipeline) likeLater(event model.MentionEvent) {
	if p.liker == nil || p.cfg.TestModeEnabled {
		return
	}
	p.tasks.Go("like "+event.SourceID, func(ctx context.Context) error {
		return p.liker.LikeTweet(ctx, event.SourceID)
	})
}
