package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_JSONShape(t *testing.T) {
	reset := time.UnixMilli(1723550000123).UTC()
	s := Stats{TotalBlocked: 42, SessionBlocked: 7, LastReset: reset}

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalBlocked":42,"sessionBlocked":7,"lastReset":1723550000123}`, string(b))

	var back Stats
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, s.TotalBlocked, back.TotalBlocked)
	assert.Equal(t, s.SessionBlocked, back.SessionBlocked)
	assert.True(t, back.LastReset.Equal(reset))
}

func TestStats_UnmarshalOriginalExtensionState(t *testing.T) {
	// state written by the browser extension (Date.now() millis)
	var s Stats
	require.NoError(t, json.Unmarshal([]byte(`{"totalBlocked":120,"sessionBlocked":3,"lastReset":1700000000000}`), &s))
	assert.Equal(t, uint64(120), s.TotalBlocked)
	assert.Equal(t, uint64(3), s.SessionBlocked)
	assert.Equal(t, int64(1700000000000), s.LastReset.UnixMilli())
}

func TestStats_ZeroLastReset(t *testing.T) {
	b, err := json.Marshal(Stats{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalBlocked":0,"sessionBlocked":0,"lastReset":0}`, string(b))

	var s Stats
	require.NoError(t, json.Unmarshal(b, &s))
	assert.True(t, s.LastReset.IsZero())
}

func TestStats_UnmarshalRejectsGarbage(t *testing.T) {
	var s Stats
	assert.Error(t, json.Unmarshal([]byte(`{"totalBlocked":"many"}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &s))
}

func TestNewStats(t *testing.T) {
	now := time.Now()
	s := NewStats(now)
	assert.Zero(t, s.TotalBlocked)
	assert.Zero(t, s.SessionBlocked)
	assert.True(t, s.LastReset.Equal(now))
}
