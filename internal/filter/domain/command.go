package domain

import (
	"fmt"
	"strings"
)

// Action names a command sent by the popup-equivalent UI.
type Action string

const (
	ActionGetStats      Action = "getStats"
	ActionToggleEnabled Action = "toggleEnabled"
	ActionResetStats    Action = "resetStats"
)

// ParseAction accepts the three action names, case-insensitively.
func ParseAction(s string) (Action, error) {
	for _, a := range []Action{ActionGetStats, ActionToggleEnabled, ActionResetStats} {
		if strings.EqualFold(strings.TrimSpace(s), string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Command is a request to the session controller.
type Command struct {
	Action Action `json:"action"`
}

// StatsDisplay carries compact, human-readable counters for UI rendering.
type StatsDisplay struct {
	SessionBlocked string `json:"sessionBlocked"`
	TotalBlocked   string `json:"totalBlocked"`
}

// Response is the reply to a Command. Fields not produced by the action are nil.
//
//	getStats      -> IsEnabled, Stats, Display
//	toggleEnabled -> IsEnabled
//	resetStats    -> Stats
type Response struct {
	IsEnabled *bool         `json:"isEnabled,omitempty"`
	Stats     *Stats        `json:"stats,omitempty"`
	Display   *StatsDisplay `json:"display,omitempty"`
}
