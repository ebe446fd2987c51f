package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-block/internal/filter/common/clock"
	"github.com/haukened/rr-block/internal/filter/domain"
	"github.com/haukened/rr-block/internal/filter/repos/state"
)

// countingStore records Set calls and can be made to fail.
type countingStore struct {
	state.Store
	sets   int
	setErr error
}

func newCountingStore() *countingStore {
	return &countingStore{Store: state.NewMemory()}
}

func (c *countingStore) Set(values map[string][]byte) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	return c.Store.Set(values)
}

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestTracker(store state.Store, every uint64) (*Tracker, *clock.MockClock) {
	clk := &clock.MockClock{CurrentTime: t0}
	return New(Options{Store: store, Clock: clk, PersistEvery: every}), clk
}

func persisted(t *testing.T, s state.Store) *domain.Stats {
	t.Helper()
	snap, err := state.Load(s)
	require.NoError(t, err)
	return snap.Stats
}

func TestNew_Defaults(t *testing.T) {
	tr := New(Options{})
	assert.Equal(t, uint64(DefaultPersistEvery), tr.persistEvery)
	st := tr.Snapshot()
	assert.Zero(t, st.TotalBlocked)
	assert.Zero(t, st.SessionBlocked)
	assert.False(t, st.LastReset.IsZero())
}

func TestRecordBlock_PersistsEveryN(t *testing.T) {
	store := newCountingStore()
	tr, _ := newTestTracker(store, 10)

	for i := 0; i < 9; i++ {
		tr.RecordBlock()
	}
	assert.Equal(t, 0, store.sets)
	assert.Nil(t, persisted(t, store))

	st := tr.RecordBlock()
	assert.Equal(t, uint64(10), st.TotalBlocked)
	assert.Equal(t, uint64(10), st.SessionBlocked)
	assert.Equal(t, 1, store.sets)
	require.NotNil(t, persisted(t, store))
	assert.Equal(t, uint64(10), persisted(t, store).TotalBlocked)

	for i := 0; i < 10; i++ {
		tr.RecordBlock()
	}
	assert.Equal(t, 2, store.sets)
}

func TestRecordBlock_PersistFailureSwallowed(t *testing.T) {
	store := newCountingStore()
	store.setErr = errors.New("disk full")
	tr, _ := newTestTracker(store, 1)

	st := tr.RecordBlock()
	assert.Equal(t, uint64(1), st.TotalBlocked)
	assert.Equal(t, 1, store.sets)

	var perr *domain.PersistError
	err := tr.Persist()
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, state.KeyStats, perr.Key)
}

func TestReset_Semantics(t *testing.T) {
	store := newCountingStore()
	tr, clk := newTestTracker(store, 100)
	for i := 0; i < 5; i++ {
		tr.RecordBlock()
	}

	clk.Advance(time.Hour)
	st := tr.Reset()
	assert.Equal(t, uint64(0), st.SessionBlocked)
	assert.Equal(t, uint64(5), st.TotalBlocked)
	assert.Equal(t, t0.Add(time.Hour), st.LastReset)

	// Reset persists before returning.
	require.NotNil(t, persisted(t, store))
	assert.Equal(t, uint64(0), persisted(t, store).SessionBlocked)
	assert.Equal(t, uint64(5), persisted(t, store).TotalBlocked)
}

func TestTotalBlocked_Monotonic(t *testing.T) {
	tr, _ := newTestTracker(state.NewMemory(), 3)
	var last uint64
	ops := []func(){
		func() { tr.RecordBlock() },
		func() { tr.Reset() },
		func() { _ = tr.Persist() },
		func() { _ = tr.Flush() },
	}
	for i := 0; i < 200; i++ {
		ops[(i*7+i/3)%len(ops)]()
		cur := tr.Snapshot().TotalBlocked
		require.GreaterOrEqual(t, cur, last, "iteration %d", i)
		last = cur
	}
}

func TestFlush_OnlyWhenDirty(t *testing.T) {
	store := newCountingStore()
	tr, _ := newTestTracker(store, 100)

	require.NoError(t, tr.Flush())
	assert.Equal(t, 0, store.sets)

	tr.RecordBlock()
	require.NoError(t, tr.Flush())
	assert.Equal(t, 1, store.sets)

	require.NoError(t, tr.Flush())
	assert.Equal(t, 1, store.sets)
}

func TestLoad_RestoresPersisted(t *testing.T) {
	store := state.NewMemory()
	reset := time.UnixMilli(1_700_000_000_000).UTC()
	require.NoError(t, state.SaveStats(store, domain.Stats{TotalBlocked: 50, SessionBlocked: 4, LastReset: reset}))

	tr, _ := newTestTracker(store, 10)
	tr.Load()
	st := tr.Snapshot()
	assert.Equal(t, uint64(50), st.TotalBlocked)
	assert.Equal(t, uint64(4), st.SessionBlocked)
	assert.True(t, reset.Equal(st.LastReset))

	// 50 → 60 crosses the next persist boundary.
	for i := 0; i < 10; i++ {
		tr.RecordBlock()
	}
	assert.Equal(t, uint64(60), persisted(t, store).TotalBlocked)
}

func TestLoad_CorruptOrMissingDefaultsToZero(t *testing.T) {
	store := state.NewMemory()
	require.NoError(t, store.Set(map[string][]byte{state.KeyStats: []byte("{garbage")}))

	tr, _ := newTestTracker(store, 10)
	tr.Load()
	st := tr.Snapshot()
	assert.Zero(t, st.TotalBlocked)
	assert.Equal(t, t0, st.LastReset)

	tr2, _ := newTestTracker(state.NewMemory(), 10)
	tr2.Load()
	assert.Zero(t, tr2.Snapshot().TotalBlocked)
}
