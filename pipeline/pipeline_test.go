package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/g8rswimmer/go-twitter/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/truemediaorg/detectbot/database"
	"github.com/truemediaorg/detectbot/detection"
	"github.com/truemediaorg/detectbot/enrichment"
	"github.com/truemediaorg/detectbot/model"
	"github.com/truemediaorg/detectbot/responder"
	"github.com/truemediaorg/detectbot/store"
)

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, event model.MentionEvent) []string {
	args := m.Called(event.SourceID)
	return args.Get(0).([]string)
}

type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Detect(ctx context.Context, imageURL string) detection.Outcome {
	args := m.Called(imageURL)
	return args.Get(0).(detection.Outcome)
}

type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) Describe(ctx context.Context, req enrichment.Request) (model.Enrichment, error) {
	args := m.Called(req.ImageURL)
	return args.Get(0).(model.Enrichment), args.Error(1)
}

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Insert(ctx context.Context, record model.DetectionRecord) (store.InsertResult, error) {
	args := m.Called(record)
	if fn, ok := args.Get(0).(func(model.DetectionRecord) store.InsertResult); ok {
		return fn(record), args.Error(1)
	}
	return args.Get(0).(store.InsertResult), args.Error(1)
}

func (m *MockRecordStore) UpdateReplyID(ctx context.Context, recordID string, replyID string) error {
	args := m.Called(recordID, replyID)
	return args.Error(0)
}

func (m *MockRecordStore) UpdateEnrichment(ctx context.Context, recordID string, enrichment model.Enrichment) error {
	args := m.Called(recordID, enrichment)
	return args.Error(0)
}

func (m *MockRecordStore) ExistsBySourceID(ctx context.Context, platform model.Platform, sourceID string) (bool, error) {
	args := m.Called(platform, sourceID)
	return args.Bool(0), args.Error(1)
}

type MockTweetResponder struct {
	mock.Mock
}

func (m *MockTweetResponder) TweetResponse(ctx context.Context, replyToID string, message string) (*twitter.CreateTweetResponse, error) {
	args := m.Called(replyToID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twitter.CreateTweetResponse), args.Error(1)
}

type MockTweetLiker struct {
	mock.Mock
}

func (m *MockTweetLiker) LikeTweet(ctx context.Context, tweetID string) error {
	args := m.Called(tweetID)
	return args.Error(0)
}

// eventLog records the order side effects happened in.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

var testEvent = model.MentionEvent{
	Platform:         model.PlatformX,
	SourceID:         "1001",
	MentionerHandle:  "bob",
	AuthorHandle:     "alice",
	ContextID:        "1000",
	Text:             "@detectbot Went to Paris with Alice yesterday!",
	MentionedHandles: []string{"detectbot"},
	CapturedAt:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
}

func succeeded(imageURL string, probability float64) detection.Outcome {
	return detection.Outcome{ImageURL: imageURL, Result: &detection.Result{
		AIProbability:    probability,
		FinalResult:      "ai_generated",
		ProcessingTimeMs: 1200,
		ImageBytes:       []byte("img"),
		ContentType:      "image/jpeg",
	}}
}

func failedOutcome(imageURL string) detection.Outcome {
	return detection.Outcome{ImageURL: imageURL, Failure: &detection.Failure{Stage: detection.StagePolling, Reason: "timed out"}}
}

type fakeBudget struct {
	exhausted bool
}

func (b *fakeBudget) CanSend() bool {
	return !b.exhausted
}

type fixture struct {
	budget    *fakeBudget
	extractor *MockExtractor
	detector  *MockDetector
	enricher  *MockEnricher
	records   *MockRecordStore
	poster    *MockTweetResponder
	liker     *MockTweetLiker
	tasks     *Tasks
	pipeline  *Pipeline
}

func newFixture(testMode bool) *fixture {
	f := &fixture{
		budget:    &fakeBudget{},
		extractor: new(MockExtractor),
		detector:  new(MockDetector),
		enricher:  new(MockEnricher),
		records:   new(MockRecordStore),
		poster:    new(MockTweetResponder),
		liker:     new(MockTweetLiker),
		tasks:     NewTasks(context.Background()),
	}
	f.pipeline = New(
		Config{BotHandle: "detectbot", Provider: "detector", TestModeEnabled: testMode},
		f.extractor, f.detector, f.enricher, f.records,
		responder.NewComposer("https://detect.example.com/r"),
		f.poster, f.liker, f.tasks, f.budget,
	)
	return f
}

func TestProcess(t *testing.T) {
	images := []string{"https://pbs.twimg.com/media/a.jpg", "https://pbs.twimg.com/media/b.jpg", "https://pbs.twimg.com/media/c.jpg"}
	enriched := model.Enrichment{Description: "Harbor", MetaDescription: "m", DetailedDescription: "d", ConfidenceNarrative: "c"}

	t.Run("replies before the enrichment write and attaches the reply id", func(t *testing.T) {
		f := newFixture(false)
		order := &eventLog{}

		f.extractor.On("Extract", "1001").Return(images)
		f.detector.On("Detect", images[0]).Return(succeeded(images[0], 90))
		f.detector.On("Detect", images[1]).Return(succeeded(images[1], 10))
		f.detector.On("Detect", images[2]).Return(failedOutcome(images[2]))

		shortIDs := map[string]string{images[0]: "Ab3x", images[1]: "Cd4y", images[2]: "Ef5z"}
		f.records.On("Insert", mock.Anything).Return(func(record model.DetectionRecord) store.InsertResult {
			return store.InsertResult{ID: "rec-" + shortIDs[record.ImageURL], ShortID: shortIDs[record.ImageURL]}
		}, nil)
		f.enricher.On("Describe", mock.Anything).Return(enriched, nil)
		f.records.On("UpdateEnrichment", mock.Anything, enriched).Run(func(args mock.Arguments) {
			order.add("enrichment " + args.String(0))
		}).Return(nil)
		f.poster.On("TweetResponse", "1001", mock.Anything).Run(func(args mock.Arguments) {
			time.Sleep(20 * time.Millisecond)
			order.add("reply")
		}).Return(&twitter.CreateTweetResponse{Tweet: &twitter.CreateTweetData{ID: "9001"}}, nil)
		f.records.On("UpdateReplyID", mock.Anything, "9001").Return(nil)
		f.liker.On("LikeTweet", "1001").Return(nil)

		result := f.pipeline.Process(context.Background(), testEvent)
		f.tasks.Wait()

		assert.Equal(t, "9001", result.ReplyID)
		assert.Equal(t, []string{"Ab3x", "Cd4y", "Ef5z"}, result.ShortIDs)
		assert.Contains(t, result.Reply, "Image 1: 🔴 90%")
		assert.Contains(t, result.Reply, "Image 3: ⚠️ error")
		assert.Contains(t, result.Reply, "https://detect.example.com/r/Ef5z")

		events := order.snapshot()
		require.Len(t, events, 3)
		assert.Equal(t, "reply", events[0])
		assert.ElementsMatch(t, []string{"enrichment rec-Ab3x", "enrichment rec-Cd4y"}, events[1:])

		f.records.AssertNumberOfCalls(t, "UpdateReplyID", 3)
		f.enricher.AssertNumberOfCalls(t, "Describe", 2)
		f.liker.AssertCalled(t, "LikeTweet", "1001")
	})

	t.Run("stores failed detections as errors and successes with placeholders", func(t *testing.T) {
		f := newFixture(true)
		f.extractor.On("Extract", "1001").Return(images[:2])
		f.detector.On("Detect", images[0]).Return(succeeded(images[0], 85))
		f.detector.On("Detect", images[1]).Return(failedOutcome(images[1]))
		f.records.On("Insert", mock.Anything).Return(store.InsertResult{ID: "rec", ShortID: "Ab3x"}, nil)
		f.enricher.On("Describe", mock.Anything).Return(enrichment.Placeholder, errors.New("overloaded"))
		f.records.On("UpdateReplyID", "rec", mock.Anything).Return(nil)

		f.pipeline.Process(context.Background(), testEvent)
		f.tasks.Wait()

		inserted := []model.DetectionRecord{
			f.records.Calls[0].Arguments.Get(0).(model.DetectionRecord),
			f.records.Calls[1].Arguments.Get(0).(model.DetectionRecord),
		}
		byURL := map[string]model.DetectionRecord{}
		for _, record := range inserted {
			byURL[record.ImageURL] = record
		}

		success := byURL[images[0]]
		assert.Equal(t, 85.0, *success.AIProbability)
		assert.Equal(t, "alice", success.AuthorHandle)
		assert.Equal(t, "detector", success.Provider)
		assert.Equal(t, enrichment.Placeholder.Description, success.Description)

		failure := byURL[images[1]]
		assert.Nil(t, failure.AIProbability)
		assert.Equal(t, model.ClassificationError, failure.Classification)

		f.records.AssertNotCalled(t, "UpdateEnrichment", mock.Anything, mock.Anything)
	})

	t.Run("test mode simulates the reply and skips the like", func(t *testing.T) {
		f := newFixture(true)
		f.extractor.On("Extract", "1001").Return(images[:1])
		f.detector.On("Detect", images[0]).Return(succeeded(images[0], 85))
		f.records.On("Insert", mock.Anything).Return(store.InsertResult{ID: "rec", ShortID: "Ab3x"}, nil)
		f.enricher.On("Describe", mock.Anything).Return(enriched, nil)
		f.records.On("UpdateEnrichment", "rec", enriched).Return(nil)
		f.records.On("UpdateReplyID", "rec", mock.Anything).Return(nil)

		result := f.pipeline.Process(context.Background(), testEvent)
		f.tasks.Wait()

		assert.NotEmpty(t, result.ReplyID)
		assert.Contains(t, result.Reply, "Very likely AI-generated")
		assert.Contains(t, result.Reply, "https://detect.example.com/r/Ab3x")
		f.poster.AssertNotCalled(t, "TweetResponse", mock.Anything, mock.Anything)
		f.liker.AssertNotCalled(t, "LikeTweet", mock.Anything)
	})

	t.Run("a deleted post leaves records without a reply id", func(t *testing.T) {
		f := newFixture(false)
		f.extractor.On("Extract", "1001").Return(images[:1])
		f.detector.On("Detect", images[0]).Return(succeeded(images[0], 30))
		f.records.On("Insert", mock.Anything).Return(store.InsertResult{ID: "rec", ShortID: "Ab3x"}, nil)
		f.enricher.On("Describe", mock.Anything).Return(enriched, nil)
		f.records.On("UpdateEnrichment", "rec", enriched).Return(nil)
		f.poster.On("TweetResponse", "1001", mock.Anything).Return(nil, &twitter.ErrorResponse{
			StatusCode: 403,
			Detail:     deletedPostErrorMsg,
		})

		result := f.pipeline.Process(context.Background(), testEvent)
		f.tasks.Wait()

		assert.Empty(t, result.ReplyID)
		f.records.AssertNotCalled(t, "UpdateReplyID", mock.Anything, mock.Anything)
		f.liker.AssertNotCalled(t, "LikeTweet", mock.Anything)
		// enrichment is still written once the reply attempt is over
		f.records.AssertCalled(t, "UpdateEnrichment", "rec", enriched)
	})

	t.Run("a failed like does not touch the reply", func(t *testing.T) {
		f := newFixture(false)
		f.extractor.On("Extract", "1001").Return(images[:1])
		f.detector.On("Detect", images[0]).Return(succeeded(images[0], 85))
		f.records.On("Insert", mock.Anything).Return(store.InsertResult{ID: "rec", ShortID: "Ab3x"}, nil)
		f.enricher.On("Describe", mock.Anything).Return(enriched, nil)
		f.records.On("UpdateEnrichment", "rec", enriched).Return(nil)
		f.poster.On("TweetResponse", "1001", mock.Anything).Return(&twitter.CreateTweetResponse{Tweet: &twitter.CreateTweetData{ID: "9001"}}, nil)
		f.records.On("UpdateReplyID", "rec", "9001").Return(errors.New("db down"))
		f.liker.On("LikeTweet", "1001").Return(errors.New("429"))

		result := f.pipeline.Process(context.Background(), testEvent)
		f.tasks.Wait()

		assert.Equal(t, "9001", result.ReplyID)
		f.liker.AssertCalled(t, "LikeTweet", "1001")
	})

	t.Run("insert failure still replies with the attempted short id", func(t *testing.T) {
		f := newFixture(false)
		f.extractor.On("Extract", "1001").Return(images[:1])
		f.detector.On("Detect", images[0]).Return(succeeded(images[0], 85))
		f.records.On("Insert", mock.Anything).Return(store.InsertResult{ID: "rec", ShortID: "Ab3x"}, errors.New("disk full"))
		f.poster.On("TweetResponse", "1001", mock.MatchedBy(func(message string) bool {
			return assert.Contains(t, message, "https://detect.example.com/r/Ab3x")
		})).Return(&twitter.CreateTweetResponse{Tweet: &twitter.CreateTweetData{ID: "9001"}}, nil)
		f.liker.On("LikeTweet", "1001").Return(nil)

		result := f.pipeline.Process(context.Background(), testEvent)
		f.tasks.Wait()

		assert.Equal(t, "9001", result.ReplyID)
		f.enricher.AssertNotCalled(t, "Describe", mock.Anything)
		f.records.AssertNotCalled(t, "UpdateReplyID", mock.Anything, mock.Anything)
	})

	t.Run("mentions without images get a marker record and no reply", func(t *testing.T) {
		f := newFixture(false)
		f.extractor.On("Extract", "1001").Return([]string{})
		f.records.On("Insert", mock.MatchedBy(func(record model.DetectionRecord) bool {
			return record.Classification == model.ClassificationNoImage && record.SourceID == "1001"
		})).Return(store.InsertResult{ID: "rec"}, nil)

		result := f.pipeline.Process(context.Background(), testEvent)
		f.tasks.Wait()

		assert.Empty(t, result.Reply)
		f.records.AssertNumberOfCalls(t, "Insert", 1)
		f.detector.AssertNotCalled(t, "Detect", mock.Anything)
		f.poster.AssertNotCalled(t, "TweetResponse", mock.Anything, mock.Anything)
	})
}

func TestDispatch(t *testing.T) {
	t.Run("skips the bot's own posts and posts that do not mention it", func(t *testing.T) {
		f := newFixture(true)

		own := testEvent
		own.MentionerHandle = "DetectBot"
		assert.Equal(t, SkipSelf, f.pipeline.Dispatch(context.Background(), own, "webhook"))

		unrelated := testEvent
		unrelated.MentionedHandles = nil
		unrelated.Text = "no mention here"
		assert.Equal(t, SkipNotMentioned, f.pipeline.Dispatch(context.Background(), unrelated, "webhook"))

		f.records.AssertNotCalled(t, "ExistsBySourceID", mock.Anything, mock.Anything)
	})

	t.Run("drops mentions when the dedup lookup fails", func(t *testing.T) {
		f := newFixture(true)
		f.records.On("ExistsBySourceID", model.PlatformX, "1001").Return(false, errors.New("db down")).Once()
		assert.Equal(t, SkipLookupFailed, f.pipeline.Dispatch(context.Background(), testEvent, "webhook"))

		// the claim was released
		f.records.On("ExistsBySourceID", model.PlatformX, "1001").Return(true, nil)
		assert.Equal(t, SkipDuplicate, f.pipeline.Dispatch(context.Background(), testEvent, "webhook"))
	})

	t.Run("holds mentions back while the request budget is spent", func(t *testing.T) {
		f := newFixture(false)
		f.budget.exhausted = true

		assert.Equal(t, SkipBudget, f.pipeline.Dispatch(context.Background(), testEvent, "poll"))
		f.records.AssertNotCalled(t, "ExistsBySourceID", mock.Anything, mock.Anything)
		f.extractor.AssertNotCalled(t, "Extract", mock.Anything)

		// nothing was claimed, so the mention is admitted once the window resets
		f.budget.exhausted = false
		f.records.On("ExistsBySourceID", model.PlatformX, "1001").Return(true, nil)
		assert.Equal(t, SkipDuplicate, f.pipeline.Dispatch(context.Background(), testEvent, "poll"))
	})

	t.Run("test mode ignores the request budget", func(t *testing.T) {
		f := newFixture(true)
		f.budget.exhausted = true
		f.records.On("ExistsBySourceID", model.PlatformX, "1001").Return(true, nil)

		assert.Equal(t, SkipDuplicate, f.pipeline.Dispatch(context.Background(), testEvent, "poll"))
	})

	t.Run("a mention in flight is not picked up twice", func(t *testing.T) {
		f := newFixture(true)
		release := make(chan struct{})
		f.records.On("ExistsBySourceID", model.PlatformX, "1001").Return(false, nil)
		f.extractor.On("Extract", "1001").Run(func(mock.Arguments) { <-release }).Return([]string{})
		f.records.On("Insert", mock.Anything).Return(store.InsertResult{ID: "rec"}, nil)

		assert.Equal(t, SkipNone, f.pipeline.Dispatch(context.Background(), testEvent, "webhook"))
		assert.Equal(t, SkipInFlight, f.pipeline.Dispatch(context.Background(), testEvent, "poll"))
		close(release)
		f.tasks.Wait()
		f.extractor.AssertNumberOfCalls(t, "Extract", 1)
	})
}

func TestIdempotentIngestion(t *testing.T) {
	local, err := database.OpenLocal(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	defer local.Close()
	records := store.NewStore(local)

	extractor := new(MockExtractor)
	extractor.On("Extract", "1001").Return([]string{"https://pbs.twimg.com/media/a.jpg"})
	detector := new(MockDetector)
	detector.On("Detect", "https://pbs.twimg.com/media/a.jpg").Return(succeeded("https://pbs.twimg.com/media/a.jpg", 85))

	tasks := NewTasks(context.Background())
	p := New(
		Config{BotHandle: "detectbot", Provider: "detector", TestModeEnabled: true},
		extractor, detector, nil, records,
		responder.NewComposer("https://detect.example.com/r"),
		nil, nil, tasks, nil,
	)

	assert.Equal(t, SkipNone, p.Dispatch(context.Background(), testEvent, "webhook"))
	tasks.Wait()
	assert.Equal(t, SkipDuplicate, p.Dispatch(context.Background(), testEvent, "poll"))
	tasks.Wait()

	detector.AssertNumberOfCalls(t, "Detect", 1)
	recent, err := records.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.NotNil(t, recent[0].ReplyID)
	assert.True(t, recent[0].HasShortID())
}

func TestTasksDrain(t *testing.T) {
	tasks := NewTasks(context.Background())
	tasks.Go("quick", func(context.Context) error { return nil })
	assert.NoError(t, tasks.Drain(time.Second))

	tasks = NewTasks(context.Background())
	tasks.Go("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.Error(t, tasks.Drain(10*time.Millisecond))

	tasks = NewTasks(context.Background())
	tasks.Go("panics", func(context.Context) error { panic("boom") })
	assert.NoError(t, tasks.Drain(time.Second))
}
