package parsers

import (
	"strings"

	logpkg "github.com/haukened/rr-block/internal/filter/common/log"
	"github.com/haukened/rr-block/internal/filter/domain"
)

// NormalizeDomains canonicalizes raw domain entries into DomainRules.
//
// Behavior:
// - Strips "*." and "." markers; every rule already covers its subdomains
// - Skips entries that are not plausible hostnames (schemes, paths, ports)
// - De-duplicates while preserving first-seen order
func NormalizeDomains(raw []string, source string, logger logpkg.Logger) []domain.DomainRule {
	seen := make(map[string]struct{}, len(raw))
	out := make([]domain.DomainRule, 0, len(raw))
	for i, s := range raw {
		name := normalizeDomainName(stripLineBOM(s))
		if !isValidFQDN(name) {
			logger.Debug(map[string]any{"source": source, "index": i, "raw": s}, "skip_invalid_domain")
			continue
		}
		if _, ok := seen[name]; ok {
			logger.Debug(map[string]any{"source": source, "index": i, "name": name}, "skip_duplicate")
			continue
		}
		rule, err := domain.NewDomainRule(name)
		if err != nil {
			logger.Debug(map[string]any{"source": source, "index": i, "name": name, "error": err.Error()}, "skip_constructor_error")
			continue
		}
		seen[name] = struct{}{}
		out = append(out, rule)
	}
	return out
}

// NormalizePatterns trims and lowercases raw substrings, dropping blanks and duplicates.
func NormalizePatterns(raw []string, source string, logger logpkg.Logger) []domain.PatternRule {
	seen := make(map[domain.PatternRule]struct{}, len(raw))
	out := make([]domain.PatternRule, 0, len(raw))
	for i, s := range raw {
		p, err := domain.NewPatternRule(stripLineBOM(s))
		if err != nil {
			logger.Debug(map[string]any{"source": source, "index": i}, "skip_empty_pattern")
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// NormalizeSelectors trims raw selectors, dropping blanks and duplicates.
// Grammar is not checked here; the element matcher isolates invalid selectors.
func NormalizeSelectors(raw []string, source string, logger logpkg.Logger) []domain.SelectorRule {
	seen := make(map[domain.SelectorRule]struct{}, len(raw))
	out := make([]domain.SelectorRule, 0, len(raw))
	for i, s := range raw {
		sel, err := domain.NewSelectorRule(strings.TrimSpace(stripLineBOM(s)))
		if err != nil {
			logger.Debug(map[string]any{"source": source, "index": i}, "skip_empty_selector")
			continue
		}
		if _, ok := seen[sel]; ok {
			continue
		}
		seen[sel] = struct{}{}
		out = append(out, sel)
	}
	return out
}
