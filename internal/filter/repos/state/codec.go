package state

import (
	"encoding/json"
	"fmt"

	"github.com/haukened/rr-block/internal/filter/domain"
)

// Snapshot is the decoded persisted state. A nil field means the key was
// absent and the caller should apply its default.
type Snapshot struct {
	Enabled *bool
	Stats   *domain.Stats
}

// Load reads and decodes both state keys. A value that fails to decode is
// reported as a *domain.ParseError; the other key is still returned.
func Load(s Store) (Snapshot, error) {
	var snap Snapshot
	values, err := s.Get(KeyEnabled, KeyStats)
	if err != nil {
		return snap, err
	}

	var parseErr error
	if raw, ok := values[KeyEnabled]; ok {
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			parseErr = &domain.ParseError{Input: KeyEnabled, Err: err}
		} else {
			snap.Enabled = &v
		}
	}
	if raw, ok := values[KeyStats]; ok {
		var st domain.Stats
		if err := json.Unmarshal(raw, &st); err != nil {
			parseErr = &domain.ParseError{Input: KeyStats, Err: err}
		} else {
			snap.Stats = &st
		}
	}
	return snap, parseErr
}

// SaveEnabled persists the enabled flag.
func SaveEnabled(s Store, enabled bool) error {
	return save(s, KeyEnabled, enabled)
}

// SaveStats persists the block counters.
func SaveStats(s Store, st domain.Stats) error {
	return save(s, KeyStats, st)
}

func save(s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &domain.PersistError{Key: key, Err: fmt.Errorf("encode: %w", err)}
	}
	if err := s.Set(map[string][]byte{key: raw}); err != nil {
		return &domain.PersistError{Key: key, Err: err}
	}
	return nil
}
