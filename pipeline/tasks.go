package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/truemediaorg/detectbot/metrics"
)

// Tasks keeps work alive after the trigger that started it has returned.
// Callers never wait on a task; shutdown drains them.
type Tasks struct {
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTasks(parent context.Context) *Tasks {
	base, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Tasks{base: base, cancel: cancel}
}

// Go runs fn in the background. Errors and panics are logged and go no further.
func (t *Tasks) Go(name string, fn func(ctx context.Context) error) {
	t.wg.Add(1)
	metrics.BackgroundTasks.Inc()
	go func() {
		defer t.wg.Done()
		defer metrics.BackgroundTasks.Dec()
		defer func() {
			if r := recover(); r != nil {
				log.WithField("task", name).Errorf("background task panicked: %v", r)
			}
		}()
		if err := fn(t.base); err != nil {
			log.WithField("task", name).Warnf("background task failed: %v", err)
		}
	}()
}

// Wait blocks until every task started so far has finished.
func (t *Tasks) Wait() {
	t.wg.Wait()
}

// Drain waits up to timeout for running tasks, then cancels the rest.
func (t *Tasks) Drain(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.cancel()
		return nil
	case <-time.After(timeout):
		t.cancel()
		<-done
		return fmt.Errorf("background tasks still running after %s, cancelled", timeout)
	}
}
