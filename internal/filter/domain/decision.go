package domain

import "fmt"

// MatchKind identifies which list produced a block decision.
type MatchKind uint8

const (
	// MatchNone means no rule matched.
	MatchNone MatchKind = iota
	// MatchDomain means a domain rule matched the hostname.
	MatchDomain
	// MatchPattern means a pattern rule matched the URL.
	MatchPattern
)

// String returns a stable string representation of the match kind.
func (k MatchKind) String() string {
	switch k {
	case MatchNone:
		return "none"
	case MatchDomain:
		return "domain"
	case MatchPattern:
		return "pattern"
	default:
		return fmt.Sprintf("MatchKind(%d)", k)
	}
}

// Decision is the outcome of evaluating a request URL. Only Cancel is part of
// the host contract; the other fields are diagnostic.
type Decision struct {
	Cancel      bool      `json:"cancel"`
	MatchedRule string    `json:"-"`
	Kind        MatchKind `json:"-"`
}

// AllowDecision returns a not-blocked decision.
func AllowDecision() Decision { return Decision{} }

// BlockDecision returns a blocked decision attributed to rule.
func BlockDecision(rule string, kind MatchKind) Decision {
	return Decision{Cancel: true, MatchedRule: rule, Kind: kind}
}
