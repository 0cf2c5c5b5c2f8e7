// Package watcher is the pull path: on a schedule it searches for new mentions
// of the bot and hands them to the pipeline.
package watcher

import (
	"context"
	"errors"
	"slices"
	"time"

	gotwitter "github.com/g8rswimmer/go-twitter/v2"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"

	"github.com/truemediaorg/detectbot/cursor"
	"github.com/truemediaorg/detectbot/detection"
	"github.com/truemediaorg/detectbot/model"
	"github.com/truemediaorg/detectbot/pipeline"
	"github.com/truemediaorg/detectbot/signer"
	"github.com/truemediaorg/detectbot/twitter"
)

const source = "poll"

type MentionSearcher interface {
	SearchMentions(ctx context.Context, sinceID string) (*gotwitter.TweetRecentSearchResponse, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, event model.MentionEvent, source string) pipeline.Skip
}

// Budget is the signed request window replies and likes are charged to.
type Budget interface {
	CanSend() bool
}

type Config struct {
	Schedule     string
	CallsPerTick int
	CallSpacing  time.Duration
}

type Watcher struct {
	cfg        Config
	searcher   MentionSearcher
	cursor     cursor.Store
	dispatcher Dispatcher
	budget     Budget
	cron       *cron.Cron
	sleep      detection.Sleeper
}

func NewWatcher(cfg Config, searcher MentionSearcher, cursor cursor.Store, dispatcher Dispatcher, budget Budget) *Watcher {
	if cfg.CallsPerTick < 1 {
		cfg.CallsPerTick = 1
	}
	return &Watcher{
		cfg:        cfg,
		searcher:   searcher,
		cursor:     cursor,
		dispatcher: dispatcher,
		budget:     budget,
		// a tick can outlast a short schedule; never run two at once
		cron:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.StandardLogger())))),
		sleep: detection.ContextSleep,
	}
}

// Start schedules ticks until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := w.cron.AddFunc(w.cfg.Schedule, func() { w.Tick(ctx) }); err != nil {
		return err
	}
	log.WithField("schedule", w.cfg.Schedule).WithField("callsPerTick", w.cfg.CallsPerTick).Info("watching for mentions")
	w.cron.Start()
	return nil
}

// Stop prevents new ticks. The returned context is done once a running tick returns.
func (w *Watcher) Stop() context.Context {
	return w.cron.Stop()
}

// Tick issues the per-tick budget of search calls, spaced apart. Each call
// reads the cursor the previous one advanced.
func (w *Watcher) Tick(ctx context.Context) {
	for call := 0; call < w.cfg.CallsPerTick; call++ {
		if call > 0 {
			if err := w.sleep(ctx, w.cfg.CallSpacing); err != nil {
				return
			}
		}
		if !w.searchOnce(ctx, call) {
			return
		}
	}
}

// searchOnce reports whether the tick may continue with its next call.
func (w *Watcher) searchOnce(ctx context.Context, call int) bool {
	logger := log.WithField("call", call+1)

	// mentions found now could not be answered until the window resets
	if w.budget != nil && !w.budget.CanSend() {
		logger.Warn("request budget exhausted, skipping cycle")
		return false
	}

	sinceID, err := w.cursor.Get(ctx, model.PlatformX)
	if err != nil {
		logger.Errorf("unable to read mention cursor, skipping cycle: %v", err)
		return false
	}
	logger = logger.WithField("sinceId", sinceID)

	resp, err := w.searcher.SearchMentions(ctx, sinceID)
	if err != nil {
		if errors.Is(err, signer.ErrBudgetExhausted) {
			logger.Warn("request budget exhausted, skipping cycle")
			return false
		}
		if rateLimit, ok := gotwitter.RateLimitFromError(err); ok && rateLimit != nil {
			logger.WithField("limit", rateLimit.Limit).
				WithField("remaining", rateLimit.Remaining).
				Warnf("X rate limit encountered, skipping cycle; resets in %fs", time.Until(rateLimit.Reset.Time()).Seconds())
			return false
		}
		logger.Errorf("mention search failed: %v", err)
		return false
	}
	if resp == nil || resp.Raw == nil {
		return true
	}

	tweets := oldestFirst(resp.Raw.Tweets)
	logger.WithField("results", len(tweets)).Info("mention search returned")
	for i, tweet := range tweets {
		event, err := twitter.AdaptV2(tweet, resp.Raw.Includes)
		if err != nil {
			logger.Warnf("dropping malformed mention: %v", err)
			continue
		}
		if w.dispatcher.Dispatch(ctx, event, source) == pipeline.SkipBudget {
			// leave the cursor before this mention so the next cycle retries it
			logger.WithField("sourceId", tweet.ID).Warn("request budget exhausted mid-batch, skipping cycle")
			if i > 0 {
				w.advance(ctx, logger, tweets[i-1].ID)
			}
			return false
		}
	}

	w.advance(ctx, logger, newestID(resp, tweets))
	return true
}

func (w *Watcher) advance(ctx context.Context, logger *log.Entry, id string) {
	if err := w.cursor.Advance(ctx, model.PlatformX, id); err != nil {
		logger.WithField("newestId", id).Warnf("unable to advance mention cursor: %v", err)
	}
}

// oldestFirst drops duplicate ids and orders the rest oldest to newest, so the
// oldest mention is answered first.
func oldestFirst(tweets []*gotwitter.TweetObj) []*gotwitter.TweetObj {
	byID := map[string]*gotwitter.TweetObj{}
	for _, tweet := range tweets {
		if tweet == nil || tweet.ID == "" {
			continue
		}
		if byID[tweet.ID] != nil {
			log.Warnf("Duplicate tweet found while searching mentions: %v", tweet.ID)
		}
		byID[tweet.ID] = tweet
	}
	sorted := maps.Values(byID)
	slices.SortFunc(sorted, func(a, b *gotwitter.TweetObj) int {
		return twitter.CompareIDs(a.ID, b.ID)
	})
	return sorted
}

func newestID(resp *gotwitter.TweetRecentSearchResponse, sorted []*gotwitter.TweetObj) string {
	if resp.Meta != nil && resp.Meta.NewestID != "" {
		return resp.Meta.NewestID
	}
	if len(sorted) == 0 {
		return ""
	}
	return sorted[len(sorted)-1].ID
}
