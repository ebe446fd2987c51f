package domain

import (
	"encoding/json"
	"time"
)

// Stats holds the block counters. TotalBlocked is cumulative across restarts;
// SessionBlocked is reset on demand.
type Stats struct {
	TotalBlocked   uint64
	SessionBlocked uint64
	LastReset      time.Time
}

// NewStats returns zeroed counters with LastReset set to now.
func NewStats(now time.Time) Stats {
	return Stats{LastReset: now}
}

type statsJSON struct {
	TotalBlocked   uint64 `json:"totalBlocked"`
	SessionBlocked uint64 `json:"sessionBlocked"`
	LastReset      int64  `json:"lastReset"` // unix milliseconds
}

// MarshalJSON encodes LastReset as unix milliseconds.
func (s Stats) MarshalJSON() ([]byte, error) {
	var ms int64
	if !s.LastReset.IsZero() {
		ms = s.LastReset.UnixMilli()
	}
	return json.Marshal(statsJSON{
		TotalBlocked:   s.TotalBlocked,
		SessionBlocked: s.SessionBlocked,
		LastReset:      ms,
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (s *Stats) UnmarshalJSON(b []byte) error {
	var raw statsJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	s.TotalBlocked = raw.TotalBlocked
	s.SessionBlocked = raw.SessionBlocked
	s.LastReset = time.Time{}
	if raw.LastReset != 0 {
		s.LastReset = time.UnixMilli(raw.LastReset).UTC()
	}
	return nil
}
