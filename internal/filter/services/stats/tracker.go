package stats

import (
	"errors"
	"sync"

	"github.com/haukened/rr-block/internal/filter/common/clock"
	"github.com/haukened/rr-block/internal/filter/common/log"
	"github.com/haukened/rr-block/internal/filter/domain"
	"github.com/haukened/rr-block/internal/filter/repos/state"
)

// DefaultPersistEvery is how many blocks may accumulate between writes.
const DefaultPersistEvery = 10

// Tracker owns the block counters. TotalBlocked only ever grows; Reset
// clears SessionBlocked.
//
// Counters are written to the state store every PersistEvery blocks, on
// Reset, and on Flush. Up to PersistEvery-1 blocks can be lost on a crash.
type Tracker struct {
	mu           sync.Mutex
	stats        domain.Stats
	dirty        bool
	persistEvery uint64

	store  state.Store
	clock  clock.Clock
	logger log.Logger
}

type Options struct {
	Store        state.Store
	Clock        clock.Clock
	Logger       log.Logger
	PersistEvery uint64
}

// New returns a Tracker with zeroed counters.
func New(opts Options) *Tracker {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	every := opts.PersistEvery
	if every == 0 {
		every = DefaultPersistEvery
	}
	store := opts.Store
	if store == nil {
		store = state.NewMemory()
	}
	return &Tracker{
		stats:        domain.NewStats(clk.Now()),
		persistEvery: every,
		store:        store,
		clock:        clk,
		logger:       logger,
	}
}

// Load replaces the counters with the persisted ones. Missing or corrupt
// state leaves fresh counters in place and is not an error for the caller.
func (t *Tracker) Load() {
	snap, err := state.Load(t.store)
	t.mu.Lock()
	defer t.mu.Unlock()

	var perr *domain.ParseError
	switch {
	case errors.As(err, &perr):
		if perr.Input != state.KeyStats {
			break
		}
		t.logger.Warn(map[string]any{"error": err}, "Persisted stats unreadable; starting from zero")
	case err != nil:
		t.logger.Warn(map[string]any{"error": err}, "State store read failed; starting from zero")
		return
	}
	if snap.Stats != nil {
		t.stats = *snap.Stats
		t.dirty = false
		t.logger.Debug(map[string]any{"total": t.stats.TotalBlocked, "session": t.stats.SessionBlocked}, "stats_loaded")
	}
}

// RecordBlock counts one blocked request and returns the updated counters.
func (t *Tracker) RecordBlock() domain.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalBlocked++
	t.stats.SessionBlocked++
	t.dirty = true
	if t.stats.TotalBlocked%t.persistEvery == 0 {
		t.persistLocked()
	}
	return t.stats
}

// Reset zeroes SessionBlocked, stamps LastReset, and persists before
// returning the new counters.
func (t *Tracker) Reset() domain.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.SessionBlocked = 0
	t.stats.LastReset = t.clock.Now()
	t.dirty = true
	t.persistLocked()
	return t.stats
}

// Snapshot returns a copy of the counters.
func (t *Tracker) Snapshot() domain.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Persist writes the counters now. Failures are logged and returned.
func (t *Tracker) Persist() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persistLocked()
}

// Flush persists only when there are unsaved blocks.
func (t *Tracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return nil
	}
	return t.persistLocked()
}

func (t *Tracker) persistLocked() error {
	if err := state.SaveStats(t.store, t.stats); err != nil {
		t.logger.Error(map[string]any{"error": err, "total": t.stats.TotalBlocked}, "Failed to persist stats")
		return err
	}
	t.dirty = false
	return nil
}
