package session

import (
	"context"

	"golang.org/x/net/html"

	"github.com/haukened/rr-block/internal/filter/domain"
)

// RuleSource supplies the active RuleSet and reloads it on demand.
type RuleSource interface {
	Current() *domain.RuleSet
	Reload(ctx context.Context) error
}

// URLMatcher decides whether a request URL is blocked by a RuleSet.
type URLMatcher interface {
	Match(rawURL string, rs *domain.RuleSet) domain.Decision
}

// ElementMatcher applies selector rules to documents.
type ElementMatcher interface {
	BuildSuppressionStyle(rs *domain.RuleSet) string
	InjectStyle(doc *html.Node, rs *domain.RuleSet) bool
	Sweep(doc *html.Node, rs *domain.RuleSet) int
}

// StatsTracker owns the block counters.
type StatsTracker interface {
	Load()
	RecordBlock() domain.Stats
	Reset() domain.Stats
	Snapshot() domain.Stats
	Flush() error
}

// RequestFilter is the capability the host calls for every outgoing request.
type RequestFilter interface {
	Evaluate(rawURL string) domain.Decision
}

// CommandHandler is the capability the host calls for popup commands.
type CommandHandler interface {
	Handle(cmd domain.Command) (domain.Response, error)
}

// Handler is everything a host transport needs from the session.
type Handler interface {
	RequestFilter
	CommandHandler
	Badge() domain.Badge
	SuppressionStyle() string
	FilterDocument(doc *html.Node) int
}

// ServerTransport exposes a Handler to the host. Implementations own all
// protocol concerns.
type ServerTransport interface {
	// Start begins serving requests via handler and returns once listening.
	Start(ctx context.Context, handler Handler) error
	// Stop gracefully shuts the transport down.
	Stop() error
	// Address returns the bound network address.
	Address() string
}
