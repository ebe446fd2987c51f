package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/haukened/rr-block/internal/filter/common/log"
	"github.com/haukened/rr-block/internal/filter/domain"
	"github.com/haukened/rr-block/internal/filter/repos/state"
)

// Session is the single per-process controller. It owns the enabled flag,
// delegates matching to the matchers against the current RuleSet, and
// records blocks in the stats tracker.
//
// Before Init completes the session is enabled, matches against whatever
// RuleSet the source holds (normally empty), and reports zero counters.
type Session struct {
	mu      sync.RWMutex
	enabled bool

	rules      RuleSource
	urls       URLMatcher
	elements   ElementMatcher
	stats      StatsTracker
	store      state.Store
	logger     log.Logger
	badgeColor string
	badge      atomic.Pointer[domain.Badge]
}

type Options struct {
	Rules      RuleSource
	URLs       URLMatcher
	Elements   ElementMatcher
	Stats      StatsTracker
	Store      state.Store
	Logger     log.Logger
	BadgeColor string
}

func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	store := opts.Store
	if store == nil {
		store = state.NewMemory()
	}
	color := opts.BadgeColor
	if color == "" {
		color = domain.DefaultBadgeColor
	}
	s := &Session{
		enabled:    true,
		rules:      opts.Rules,
		urls:       opts.URLs,
		elements:   opts.Elements,
		stats:      opts.Stats,
		store:      store,
		logger:     logger,
		badgeColor: color,
	}
	b := domain.NewBadge(0, color)
	s.badge.Store(&b)
	return s
}

// Init loads the rule lists and the persisted state. List failures leave the
// affected lists empty and are returned for reporting; they never stop the
// session from serving.
func (s *Session) Init(ctx context.Context) error {
	err := s.Reload(ctx)

	snap, serr := state.Load(s.store)
	if serr != nil {
		s.logger.Warn(map[string]any{"error": serr}, "Persisted state unreadable; using defaults")
	}
	s.mu.Lock()
	if snap.Enabled != nil {
		s.enabled = *snap.Enabled
	}
	enabled := s.enabled
	s.mu.Unlock()

	s.stats.Load()
	st := s.stats.Snapshot()
	s.RefreshBadge()

	rs := s.rules.Current()
	s.logger.Info(map[string]any{
		"enabled":   enabled,
		"domains":   len(rs.Domains),
		"patterns":  len(rs.Patterns),
		"selectors": len(rs.Selectors),
		"total":     st.TotalBlocked,
	}, "Session initialized")
	return err
}

// Enabled reports the current enabled flag.
func (s *Session) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Evaluate decides whether the host should cancel a request for rawURL.
// While disabled the matcher is not consulted.
func (s *Session) Evaluate(rawURL string) domain.Decision {
	if !s.Enabled() {
		return domain.AllowDecision()
	}
	d := s.urls.Match(rawURL, s.rules.Current())
	if d.Cancel {
		s.stats.RecordBlock()
		s.logger.Debug(map[string]any{"url": rawURL, "rule": d.MatchedRule, "kind": d.Kind.String()}, "request_blocked")
	}
	return d
}

// Handle executes a command. Commands that change state persist it before
// returning.
func (s *Session) Handle(cmd domain.Command) (domain.Response, error) {
	switch cmd.Action {
	case domain.ActionGetStats:
		enabled, st := s.State()
		return domain.Response{
			IsEnabled: &enabled,
			Stats:     &st,
			Display: &domain.StatsDisplay{
				SessionBlocked: domain.FormatCount(st.SessionBlocked),
				TotalBlocked:   domain.FormatCount(st.TotalBlocked),
			},
		}, nil
	case domain.ActionToggleEnabled:
		enabled := s.Toggle()
		return domain.Response{IsEnabled: &enabled}, nil
	case domain.ActionResetStats:
		st := s.ResetStats()
		return domain.Response{Stats: &st}, nil
	default:
		return domain.Response{}, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, cmd.Action)
	}
}

// State returns the enabled flag and a copy of the counters.
func (s *Session) State() (bool, domain.Stats) {
	return s.Enabled(), s.stats.Snapshot()
}

// ResetStats zeroes the session counter, persists, and refreshes the badge.
func (s *Session) ResetStats() domain.Stats {
	st := s.stats.Reset()
	s.RefreshBadge()
	s.logger.Info(map[string]any{"total": st.TotalBlocked}, "Session stats reset")
	return st
}

// Toggle flips the enabled flag, persists it, and returns the new value.
// A failed write is logged; the in-memory flag still changes.
func (s *Session) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = !s.enabled
	if err := state.SaveEnabled(s.store, s.enabled); err != nil {
		s.logger.Error(map[string]any{"error": err, "enabled": s.enabled}, "Failed to persist enabled flag")
	}
	s.logger.Info(map[string]any{"enabled": s.enabled}, "Blocking toggled")
	return s.enabled
}

// SuppressionStyle returns the stylesheet hiding selector matches, or "" when
// disabled.
func (s *Session) SuppressionStyle() string {
	if !s.Enabled() {
		return ""
	}
	return s.elements.BuildSuppressionStyle(s.rules.Current())
}

// FilterDocument injects the suppression style and sweeps doc, returning the
// number of newly suppressed elements. It does nothing when disabled.
func (s *Session) FilterDocument(doc *html.Node) int {
	if doc == nil || !s.Enabled() {
		return 0
	}
	rs := s.rules.Current()
	s.elements.InjectStyle(doc, rs)
	return s.elements.Sweep(doc, rs)
}

// Badge returns the badge as of the last RefreshBadge.
func (s *Session) Badge() domain.Badge {
	return *s.badge.Load()
}

// RefreshBadge recomputes the badge from the session counter and reports
// whether its text changed. The host drives it on a fixed cadence.
func (s *Session) RefreshBadge() bool {
	next := domain.NewBadge(s.stats.Snapshot().SessionBlocked, s.badgeColor)
	prev := s.badge.Swap(&next)
	return prev == nil || prev.Text != next.Text
}

// Reload reloads the rule lists. Partial failures are logged; the lists that
// loaded are active either way.
func (s *Session) Reload(ctx context.Context) error {
	err := s.rules.Reload(ctx)
	if err != nil {
		var lerr *domain.LoadError
		if errors.As(err, &lerr) {
			s.logger.Warn(map[string]any{"error": err}, "Rule reload completed with errors")
		} else {
			s.logger.Error(map[string]any{"error": err}, "Rule reload failed")
		}
	}
	return err
}

// Flush persists unsaved counters.
func (s *Session) Flush() error {
	return s.stats.Flush()
}

var _ Handler = (*Session)(nil)
