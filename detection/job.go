package detection

import "fmt"

// Stage is a point in one image's trip through the provider.
type Stage string

const (
	StageDownloaded   Stage = "downloaded"
	StageSlotAcquired Stage = "slot_acquired"
	StageUploaded     Stage = "uploaded"
	StageSubmitted    Stage = "submitted"
	StagePolling      Stage = "polling"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// PollState is the polling part of the job state machine.
type PollState struct {
	Stage       Stage
	Attempts    int
	MaxAttempts int

	Score  float64
	Detail JobDetail
	Reason string
}

func NewPollState(maxAttempts int) PollState {
	return PollState{Stage: StageSubmitted, MaxAttempts: maxAttempts}
}

// NextPollState folds one status response into the state. It does no I/O;
// the caller decides when to poll again.
func NextPollState(state PollState, resp JobStatusResponse) PollState {
	if state.Stage.Terminal() {
		return state
	}
	next := state
	next.Stage = StagePolling
	next.Attempts++

	switch resp.Status {
	case JobStatusDone:
		if resp.Score == nil {
			return failed(next, "job finished without a score")
		}
		score := *resp.Score
		if score < 0 || score > 100 {
			return failed(next, fmt.Sprintf("score %.2f out of range", score))
		}
		next.Stage = StageDone
		next.Score = score
		if resp.Result != nil {
			next.Detail = *resp.Result
		}
		return next
	case JobStatusFailed:
		reason := resp.Error
		if reason == "" {
			reason = "provider reported failure"
		}
		return failed(next, reason)
	case JobStatusPending, JobStatusProcessing:
	default:
		return failed(next, fmt.Sprintf("unknown job status %q", resp.Status))
	}

	if next.Attempts >= next.MaxAttempts {
		return failed(next, fmt.Sprintf("timed out after %d polls", next.Attempts))
	}
	return next
}

func failed(state PollState, reason string) PollState {
	state.Stage = StageFailed
	state.Reason = reason
	return state
}
