package matcher

import (
	"net/url"
	"strings"
	"sync"

	"github.com/haukened/rr-block/internal/filter/common/log"
	"github.com/haukened/rr-block/internal/filter/common/utils"
	"github.com/haukened/rr-block/internal/filter/domain"
	"github.com/haukened/rr-block/internal/filter/repos/rules"
)

// Match is the reference URL decision: domain rules in list order, then
// pattern rules in list order. It needs no index and is safe for any RuleSet.
func Match(rawURL string, rs *domain.RuleSet) domain.Decision {
	host, ok := parseHost(rawURL)
	if !ok || rs == nil {
		return domain.AllowDecision()
	}
	if host != "" {
		for _, d := range rs.Domains {
			if d.Matches(host) {
				return domain.BlockDecision(string(d), domain.MatchDomain)
			}
		}
	}
	return matchPatterns(rawURL, rs)
}

// IsBlocked reports whether Match blocks rawURL.
func IsBlocked(rawURL string, rs *domain.RuleSet) bool {
	return Match(rawURL, rs).Cancel
}

// URLMatcher answers the same question as Match using an indexed pipeline:
// per-hostname decision cache, then a Bloom prefilter over domain rules, then
// a dot-suffix walk against the RuleSet's domain index. The Bloom filter and
// cache belong to one RuleSet and are rebuilt when a different set is passed.
type URLMatcher struct {
	mu      sync.RWMutex
	cache   rules.DecisionCache
	factory rules.BloomFactory
	fpRate  float64
	logger  log.Logger

	built *domain.RuleSet
	bloom rules.BloomFilter
}

// URLMatcherOptions configures a URLMatcher. Nil Cache or BloomFactory
// disables that stage.
type URLMatcherOptions struct {
	Cache        rules.DecisionCache
	BloomFactory rules.BloomFactory
	FPRate       float64
	Logger       log.Logger
}

func NewURLMatcher(opts URLMatcherOptions) *URLMatcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &URLMatcher{
		cache:   opts.Cache,
		factory: opts.BloomFactory,
		fpRate:  opts.FPRate,
		logger:  logger,
	}
}

// IsBlocked reports whether rawURL is blocked by rs.
func (m *URLMatcher) IsBlocked(rawURL string, rs *domain.RuleSet) bool {
	return m.Match(rawURL, rs).Cancel
}

// Match returns the decision for rawURL. A URL without a scheme or with an
// unparseable authority is never blocked. URLs without a hostname (file:,
// data:) are checked against pattern rules only.
func (m *URLMatcher) Match(rawURL string, rs *domain.RuleSet) domain.Decision {
	host, ok := parseHost(rawURL)
	if !ok {
		m.logger.Debug(map[string]any{"url": rawURL}, "url_unparseable")
		return domain.AllowDecision()
	}
	if rs == nil {
		return domain.AllowDecision()
	}
	if host != "" {
		if d := m.matchDomain(host, rs); d.Cancel {
			return d
		}
	}
	return matchPatterns(rawURL, rs)
}

// matchDomain consults cache → bloom → index for host.
func (m *URLMatcher) matchDomain(host string, rs *domain.RuleSet) domain.Decision {
	if len(rs.Domains) == 0 {
		return domain.AllowDecision()
	}
	m.prepare(rs)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.built != rs {
		// Another caller switched sets between prepare and here; answer
		// without touching the shared cache.
		return lookupSuffixes(host, rs)
	}
	if m.cache != nil {
		if d, ok := m.cache.Get(host); ok {
			return d
		}
	}
	var d domain.Decision
	if m.mightContain(host) {
		d = lookupSuffixes(host, rs)
	}
	if m.cache != nil {
		m.cache.Put(host, d)
	}
	return d
}

// prepare rebuilds the Bloom filter and purges the cache when rs differs
// from the set they were built for.
func (m *URLMatcher) prepare(rs *domain.RuleSet) {
	m.mu.RLock()
	current := m.built == rs
	m.mu.RUnlock()
	if current {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.built == rs {
		return
	}
	var bf rules.BloomFilter
	if m.factory != nil {
		bf = m.factory.New(uint64(len(rs.Domains)), m.fpRate)
		for _, d := range rs.Domains {
			bf.AddHost(string(d))
		}
	}
	m.bloom = bf
	m.built = rs
	if m.cache != nil {
		m.cache.Purge()
	}
	m.logger.Debug(map[string]any{"version": rs.Version, "domains": len(rs.Domains)}, "url_matcher_rebuilt")
}

// mightContain reports whether any dot-suffix of host may be a domain rule.
// Callers hold m.mu.
func (m *URLMatcher) mightContain(host string) bool {
	if m.bloom == nil {
		return true
	}
	for _, s := range utils.HostSuffixes(host) {
		if m.bloom.MightContainHost(s) {
			return true
		}
	}
	return false
}

// CacheStats reports decision cache metrics.
func (m *URLMatcher) CacheStats() rules.CacheStats {
	if m.cache == nil {
		return rules.CacheStats{}
	}
	return m.cache.Stats()
}

// lookupSuffixes walks host's suffixes most-specific first and returns a
// block for the first one that is a domain rule.
func lookupSuffixes(host string, rs *domain.RuleSet) domain.Decision {
	for _, s := range utils.HostSuffixes(host) {
		if rs.HasDomain(s) {
			return domain.BlockDecision(s, domain.MatchDomain)
		}
	}
	return domain.AllowDecision()
}

func matchPatterns(rawURL string, rs *domain.RuleSet) domain.Decision {
	if len(rs.Patterns) == 0 {
		return domain.AllowDecision()
	}
	lower := strings.ToLower(rawURL)
	for _, p := range rs.Patterns {
		if p.Matches(lower) {
			return domain.BlockDecision(string(p), domain.MatchPattern)
		}
	}
	return domain.AllowDecision()
}

// parseHost extracts the canonical hostname from rawURL. It reports false
// when rawURL has no scheme or its authority does not parse. Malformed path,
// query or fragment parts are tolerated; the host is then read from the
// authority alone. The host is "" for URLs that carry none.
func parseHost(rawURL string) (string, bool) {
	raw := strings.TrimSpace(rawURL)
	u, err := url.Parse(raw)
	if err != nil {
		if u, err = url.Parse(authorityOnly(raw)); err != nil {
			return "", false
		}
	}
	if u.Scheme == "" {
		return "", false
	}
	return utils.CanonicalHostname(u.Hostname()), true
}

// authorityOnly cuts raw after its authority: "https://h:1/p?q" -> "https://h:1".
func authorityOnly(raw string) string {
	i := strings.Index(raw, "//")
	if i < 0 {
		return raw
	}
	rest := raw[i+2:]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	return raw[:i+2] + rest
}
