package ticker

import (
	"sync"
	"time"

	"github.com/haukened/rr-block/internal/filter/common/log"
)

// Ticker runs a callback on a fixed interval until stopped.
type Ticker struct {
	name     string
	interval time.Duration
	fn       func()
	logger   log.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// New creates a Ticker calling fn every interval. name is used in logs.
func New(name string, interval time.Duration, fn func(), logger log.Logger) *Ticker {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Ticker{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the ticker loop. Calling Start more than once has no effect.
func (t *Ticker) Start() {
	t.startOnce.Do(func() {
		ticker := time.NewTicker(t.interval)
		go func() {
			defer close(t.doneChan)
			for {
				select {
				case <-ticker.C:
					t.tick()
				case <-t.stopChan:
					ticker.Stop()
					return
				}
			}
		}()
		t.logger.Info(map[string]any{"ticker": t.name, "interval": t.interval.String()}, "Ticker started")
	})
}

// Stop ends the loop and waits for an in-flight callback to return. It is
// safe to call Stop on a ticker that was never started.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		started := true
		t.startOnce.Do(func() { started = false })
		if started {
			<-t.doneChan
		}
		t.logger.Info(map[string]any{"ticker": t.name}, "Ticker stopped")
	})
}

// tick runs the callback, recovering from panics so one bad tick does not
// stop the loop.
func (t *Ticker) tick() {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(map[string]any{"ticker": t.name, "panic": r}, "Ticker callback panicked")
		}
	}()
	t.fn()
}
