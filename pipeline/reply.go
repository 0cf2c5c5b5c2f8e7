package pipeline

import (
	"context"
	"errors"

	gotwitter "github.com/g8rswimmer/go-twitter/v2"
	"github.com/lucsky/cuid"
	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/metrics"
	"github.com/truemediaorg/detectbot/model"
	"github.com/truemediaorg/detectbot/signer"
	"github.com/truemediaorg/detectbot/twitter"
)

const (
	// Copied from the Twitter response, beware the risk of this changing over time.
	deletedPostErrorMsg   = "You attempted to reply to a Tweet that is deleted or not visible to you."
	duplicatePostErrorMsg = "You are not allowed to create a Tweet with duplicate content."
)

// postReply returns the reply's post id, or "" when nothing was posted.
func (p *Pipeline) postReply(ctx context.Context, event model.MentionEvent, message string) string {
	logger := log.WithField("sourceId", event.SourceID)

	if p.cfg.TestModeEnabled {
		replyID := cuid.New()
		logger.WithField("responseContent", message).Infof("Simulating reply to %s with post ID %s", event.Platform, replyID)
		metrics.Replies.WithLabelValues("simulated").Inc()
		return replyID
	}

	resp, err := p.poster.TweetResponse(ctx, event.SourceID, message)
	if err != nil {
		var apiError *gotwitter.ErrorResponse
		if errors.As(err, &apiError) {
			p.handleAPIError(event, *apiError)
		} else if errors.Is(err, signer.ErrBudgetExhausted) {
			// the window ran out between admission and reply
			logger.Warn("request budget exhausted before the reply went out; keeping detection records without a reply")
			metrics.Replies.WithLabelValues("budget_exhausted").Inc()
		} else {
			logger.Errorf("error responding to post: %v", err)
			metrics.Replies.WithLabelValues("error").Inc()
		}
		return ""
	}
	if resp == nil || resp.Tweet == nil {
		logger.Error("reply posted but the response carried no post id")
		metrics.Replies.WithLabelValues("error").Inc()
		return ""
	}

	metrics.Replies.WithLabelValues("posted").Inc()
	logger.WithField("replyId", resp.Tweet.ID).
		WithField("replyUrl", twitter.ConstructTweetURL(p.cfg.BotHandle, resp.Tweet.ID)).
		Info("reply posted")
	return resp.Tweet.ID
}

func (p *Pipeline) handleAPIError(event model.MentionEvent, apiError gotwitter.ErrorResponse) {
	logger := log.WithField("sourceId", event.SourceID)
	switch apiError.Detail {
	case deletedPostErrorMsg:
		// Nothing to reply to. The records stay, without a reply id.
		metrics.Replies.WithLabelValues("deleted").Inc()
		logger.Warn("Deleted post detected. Keeping detection records without a reply.")
	case duplicatePostErrorMsg:
		// An earlier run already answered this post.
		metrics.Replies.WithLabelValues("duplicate").Inc()
		logger.Warn("Duplicate reply rejected, post was already answered.")
	default:
		metrics.Replies.WithLabelValues("error").Inc()
		logger.WithField("statusCode", apiError.StatusCode).WithField("title", apiError.Title).Errorf("API error responding to post: %v", apiError.Detail)
	}
}
