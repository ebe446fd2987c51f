package matcher

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-block/internal/filter/domain"
	"github.com/haukened/rr-block/internal/filter/repos/rules/bloom"
	"github.com/haukened/rr-block/internal/filter/repos/rules/lru"
)

func ruleSet(domains, patterns, selectors []string) *domain.RuleSet {
	ds := make([]domain.DomainRule, len(domains))
	for i, d := range domains {
		ds[i] = domain.DomainRule(d)
	}
	ps := make([]domain.PatternRule, len(patterns))
	for i, p := range patterns {
		ps[i] = domain.PatternRule(p)
	}
	ss := make([]domain.SelectorRule, len(selectors))
	for i, s := range selectors {
		ss[i] = domain.SelectorRule(s)
	}
	return domain.NewRuleSet(ds, ps, ss, 1, time.Unix(0, 0))
}

func newTestURLMatcher(t *testing.T, cacheSize int) *URLMatcher {
	t.Helper()
	cache, err := lru.New(cacheSize)
	require.NoError(t, err)
	return NewURLMatcher(URLMatcherOptions{
		Cache:        cache,
		BloomFactory: bloom.NewFactory(),
		FPRate:       0.01,
	})
}

func TestURLMatcher_DomainSuffixBoundary(t *testing.T) {
	rs := ruleSet([]string{"ads.example.com"}, nil, nil)
	m := newTestURLMatcher(t, 16)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://ads.example.com/", true},
		{"https://x.ads.example.com/banner.js", true},
		{"https://ADS.Example.COM./x", true},
		{"http://ads.example.com:8080/x", true},
		{"https://myads.example.com/", false},
		{"https://example.com/", false},
		{"https://ads.example.com.evil.net/", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, m.IsBlocked(tt.url, rs))
			assert.Equal(t, tt.want, IsBlocked(tt.url, rs))
		})
	}
}

func TestURLMatcher_Scenario(t *testing.T) {
	rs := ruleSet([]string{"tracker.io"}, []string{"/ads/"}, nil)
	m := newTestURLMatcher(t, 16)

	d := m.Match("https://tracker.io/page", rs)
	assert.True(t, d.Cancel)
	assert.Equal(t, domain.MatchDomain, d.Kind)
	assert.Equal(t, "tracker.io", d.MatchedRule)

	d = m.Match("https://example.com/path/ads/img.png", rs)
	assert.True(t, d.Cancel)
	assert.Equal(t, domain.MatchPattern, d.Kind)
	assert.Equal(t, "/ads/", d.MatchedRule)

	assert.False(t, m.IsBlocked("https://example.com/safe", rs))
}

func TestURLMatcher_PatternCaseInsensitive(t *testing.T) {
	rs := ruleSet(nil, []string{"/ads/"}, nil)
	m := newTestURLMatcher(t, 0)
	assert.True(t, m.IsBlocked("https://example.com/IMG/ADS/x.png", rs))
	assert.False(t, m.IsBlocked("https://example.com/adsense", rs))
}

func TestURLMatcher_Unparseable(t *testing.T) {
	rs := ruleSet([]string{"tracker.io"}, []string{"tracker"}, nil)
	m := newTestURLMatcher(t, 16)
	for _, u := range []string{"", "   ", "not a url tracker", "/relative/tracker", "http://[::1", "https://%zz/"} {
		assert.False(t, m.IsBlocked(u, rs), u)
		assert.False(t, IsBlocked(u, rs), u)
	}
}

func TestURLMatcher_MalformedPathStillMatchesHost(t *testing.T) {
	rs := ruleSet([]string{"tracker.io"}, []string{"/ads/"}, nil)
	m := newTestURLMatcher(t, 16)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://tracker.io/%zz", true},
		{"https://sub.tracker.io/a?q=%zz#%zz", true},
		{"https://example.com/ads/%zz", true},
		{"https://example.com/%zz", false},
		{"https://%zz/", false},
		{"https://%zz/ads/", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, m.IsBlocked(tt.url, rs))
			assert.Equal(t, tt.want, IsBlocked(tt.url, rs))
		})
	}
}

func TestURLMatcher_HostlessURLsUsePatterns(t *testing.T) {
	rs := ruleSet([]string{"tracker.io"}, []string{"/ads/"}, nil)
	m := newTestURLMatcher(t, 16)

	tests := []struct {
		url  string
		want bool
	}{
		{"file:///ads/x.png", true},
		{"data:text/html,/ads/", true},
		{"file:///home/user/page.html", false},
		{"data:text/plain,tracker.io", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d := m.Match(tt.url, rs)
			assert.Equal(t, tt.want, d.Cancel)
			if tt.want {
				assert.Equal(t, domain.MatchPattern, d.Kind)
			}
			assert.Equal(t, tt.want, IsBlocked(tt.url, rs))
		})
	}
	assert.Equal(t, 0, m.CacheStats().Size, "hostless URLs never reach the decision cache")
}

func TestURLMatcher_NilAndEmptyRuleSet(t *testing.T) {
	m := newTestURLMatcher(t, 16)
	assert.False(t, m.IsBlocked("https://tracker.io/", nil))
	assert.False(t, m.IsBlocked("https://tracker.io/", domain.EmptyRuleSet()))
	assert.False(t, IsBlocked("https://tracker.io/", nil))
}

func TestURLMatcher_MostSpecificRuleReported(t *testing.T) {
	rs := ruleSet([]string{"example.com", "ads.example.com"}, nil, nil)
	m := newTestURLMatcher(t, 16)
	d := m.Match("https://cdn.ads.example.com/", rs)
	assert.Equal(t, "ads.example.com", d.MatchedRule)
}

func TestURLMatcher_SingleLabelDomainRule(t *testing.T) {
	rs := ruleSet([]string{"adserver"}, nil, nil)
	m := newTestURLMatcher(t, 16)
	assert.True(t, m.IsBlocked("http://adserver/banner.js", rs))
	assert.True(t, m.IsBlocked("http://cdn.adserver:8080/x", rs))
	assert.False(t, m.IsBlocked("http://adserver.example.com/", rs))
	assert.False(t, m.IsBlocked("http://myadserver/", rs))
}

func TestURLMatcher_AgreesWithReference(t *testing.T) {
	rs := ruleSet(
		[]string{"tracker.io", "ads.example.com", "doubleclick.net", "xn--bcher-kva.example"},
		[]string{"/ads/", "pixel.gif", "?utm_"},
		nil,
	)
	m := newTestURLMatcher(t, 8)
	urls := []string{
		"https://tracker.io/",
		"https://a.b.tracker.io/x",
		"https://nottracker.io/",
		"https://ads.example.com/",
		"https://example.com/ads/",
		"https://example.com/img/pixel.gif",
		"https://example.com/?utm_source=x",
		"https://bücher.example/",
		"https://stats.g.doubleclick.net/r/collect",
		"https://safe.example.org/page",
		"mailto:someone@example.com",
	}
	// Two passes so the second is served from the cache.
	for pass := 0; pass < 2; pass++ {
		for _, u := range urls {
			assert.Equal(t, Match(u, rs).Cancel, m.Match(u, rs).Cancel, "pass %d url %s", pass, u)
		}
	}
	assert.Greater(t, m.CacheStats().Hits, uint64(0))
}

func TestURLMatcher_RebuildsOnNewRuleSet(t *testing.T) {
	m := newTestURLMatcher(t, 16)
	first := ruleSet([]string{"tracker.io"}, nil, nil)
	second := ruleSet([]string{"other.net"}, nil, nil)

	assert.True(t, m.IsBlocked("https://tracker.io/", first))
	assert.Equal(t, 1, m.CacheStats().Size)

	// Cached decisions for the earlier set must not leak into the new one.
	assert.False(t, m.IsBlocked("https://tracker.io/", second))
	assert.True(t, m.IsBlocked("https://other.net/", second))
	assert.Equal(t, 2, m.CacheStats().Size)
}

func TestURLMatcher_WithoutCacheOrBloom(t *testing.T) {
	m := NewURLMatcher(URLMatcherOptions{})
	rs := ruleSet([]string{"tracker.io"}, nil, nil)
	assert.True(t, m.IsBlocked("https://x.tracker.io/", rs))
	assert.False(t, m.IsBlocked("https://example.com/", rs))
	assert.Equal(t, 0, m.CacheStats().Size)
}

func TestURLMatcher_ConcurrentRuleSetSwaps(t *testing.T) {
	m := newTestURLMatcher(t, 64)
	sets := []*domain.RuleSet{
		ruleSet([]string{"tracker.io"}, nil, nil),
		ruleSet([]string{"ads.example.com"}, nil, nil),
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				rs := sets[(g+i)%2]
				u := fmt.Sprintf("https://h%d.tracker.io/", i%10)
				want := Match(u, rs).Cancel
				if got := m.IsBlocked(u, rs); got != want {
					t.Errorf("set %d url %s: got %v want %v", (g+i)%2, u, got, want)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}

func BenchmarkURLMatcher_Negative(b *testing.B) {
	domains := make([]string, 10_000)
	for i := range domains {
		domains[i] = fmt.Sprintf("ads%05d.example.com", i)
	}
	rs := ruleSet(domains, []string{"/ads/"}, nil)
	cache, _ := lru.New(1024)
	m := NewURLMatcher(URLMatcherOptions{Cache: cache, BloomFactory: bloom.NewFactory(), FPRate: 0.01})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.IsBlocked("https://www.safe.example.org/index.html", rs)
	}
}
