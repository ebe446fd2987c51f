package domain

import (
	"strings"
	"testing"
	"time"
)

func TestDomainRule_Matches(t *testing.T) {
	tests := []struct {
		rule     DomainRule
		hostname string
		want     bool
	}{
		{"ads.example.com", "ads.example.com", true},
		{"ads.example.com", "x.ads.example.com", true},
		{"ads.example.com", "a.b.ads.example.com", true},
		{"ads.example.com", "myads.example.com", false},
		{"ads.example.com", "example.com", false},
		{"ads.example.com", "ads.example.com.evil.net", false},
		{"tracker.io", "tracker.io", true},
		{"tracker.io", "cdn.tracker.io", true},
		{"tracker.io", "nottracker.io", false},
		{"tracker.io", "", false},
		{"io", "tracker.io", true},
	}
	for _, tt := range tests {
		if got := tt.rule.Matches(tt.hostname); got != tt.want {
			t.Errorf("DomainRule(%q).Matches(%q) = %v, want %v", tt.rule, tt.hostname, got, tt.want)
		}
	}
}

// Matches must agree with the textbook definition h == d || h ends with "."+d.
func TestDomainRule_MatchesDefinition(t *testing.T) {
	rules := []DomainRule{"a.com", "b.a.com", "com", "x.y"}
	hosts := []string{"a.com", "b.a.com", "ba.com", "c.b.a.com", "com", "x.y", "wx.y", "w.x.y", "a.comm"}
	for _, r := range rules {
		for _, h := range hosts {
			want := h == string(r) || strings.HasSuffix(h, "."+string(r))
			if got := r.Matches(h); got != want {
				t.Errorf("DomainRule(%q).Matches(%q) = %v, want %v", r, h, got, want)
			}
		}
	}
}

func TestDomainRule_Validate(t *testing.T) {
	valid := []string{"example.com", "ads.tracker.io", "localhost"}
	for _, s := range valid {
		if _, err := NewDomainRule(s); err != nil {
			t.Errorf("NewDomainRule(%q) unexpected error: %v", s, err)
		}
	}
	invalid := []string{"", "https://example.com", "example.com/path", "Example.com", ".example.com", "example.com.", "a b.com"}
	for _, s := range invalid {
		if _, err := NewDomainRule(s); err == nil {
			t.Errorf("NewDomainRule(%q) expected error", s)
		}
	}
}

func TestPatternRule(t *testing.T) {
	p, err := NewPatternRule("  /ADS/ ")
	if err != nil {
		t.Fatalf("NewPatternRule: %v", err)
	}
	if p != "/ads/" {
		t.Fatalf("pattern = %q, want %q", p, "/ads/")
	}
	if !p.Matches("https://example.com/path/ads/img.png") {
		t.Errorf("expected match")
	}
	if p.Matches("https://example.com/safe") {
		t.Errorf("unexpected match")
	}
	if _, err := NewPatternRule("   "); err == nil {
		t.Errorf("expected error for blank pattern")
	}
}

func TestSelectorRule(t *testing.T) {
	s, err := NewSelectorRule("  .ad-banner ")
	if err != nil || s != ".ad-banner" {
		t.Fatalf("NewSelectorRule = %q, %v", s, err)
	}
	if _, err := NewSelectorRule(""); err == nil {
		t.Errorf("expected error for empty selector")
	}
}

func TestNewRuleSet_DedupPreservesOrder(t *testing.T) {
	now := time.Unix(1723550000, 0)
	rs := NewRuleSet(
		[]DomainRule{"b.com", "a.com", "b.com"},
		[]PatternRule{"/ads/", "/track", "/ads/"},
		[]SelectorRule{".ad", "#banner", ".ad"},
		3, now,
	)
	if got := rs.Domains; len(got) != 2 || got[0] != "b.com" || got[1] != "a.com" {
		t.Errorf("Domains = %v", got)
	}
	if got := rs.Patterns; len(got) != 2 || got[0] != "/ads/" || got[1] != "/track" {
		t.Errorf("Patterns = %v", got)
	}
	if got := rs.Selectors; len(got) != 2 || got[0] != ".ad" || got[1] != "#banner" {
		t.Errorf("Selectors = %v", got)
	}
	if rs.Version != 3 || !rs.LoadedAt.Equal(now) {
		t.Errorf("metadata = %d %v", rs.Version, rs.LoadedAt)
	}
	if rs.Len() != 6 {
		t.Errorf("Len = %d, want 6", rs.Len())
	}
	if !rs.HasDomain("a.com") || rs.HasDomain("c.com") {
		t.Errorf("HasDomain mismatch")
	}
}

func TestRuleSet_EmptyAndZero(t *testing.T) {
	if !EmptyRuleSet().IsEmpty() {
		t.Errorf("EmptyRuleSet should be empty")
	}
	var nilSet *RuleSet
	if nilSet.Len() != 0 || nilSet.HasDomain("x") {
		t.Errorf("nil RuleSet should behave as empty")
	}
	// literal without index falls back to a scan
	lit := &RuleSet{Domains: []DomainRule{"a.com"}}
	if !lit.HasDomain("a.com") {
		t.Errorf("literal RuleSet HasDomain should scan")
	}
}
