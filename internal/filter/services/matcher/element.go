package matcher

import (
	"errors"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/haukened/rr-block/internal/filter/common/log"
	"github.com/haukened/rr-block/internal/filter/domain"
)

// StyleElementID is the id of the injected suppression stylesheet.
const StyleElementID = "rr-block-styles"

var errUnsafeSelector = errors.New("selector contains '<', '{' or '}'")

// compiledSelectors is the per-RuleSet compilation result.
type compiledSelectors struct {
	// combined is nil when the joined selector list failed to compile.
	combined cascadia.Selector
	// valid holds each selector that compiled on its own, in list order.
	valid []cascadia.Selector
	// validText mirrors valid.
	validText []string
	style     string
}

// ElementMatcher applies selector rules to parsed HTML documents. Compiled
// selectors are cached for the most recent RuleSet.
type ElementMatcher struct {
	mu     sync.Mutex
	built  *domain.RuleSet
	sel    *compiledSelectors
	logger log.Logger
}

func NewElementMatcher(logger log.Logger) *ElementMatcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &ElementMatcher{logger: logger}
}

// BuildSuppressionStyle returns a stylesheet with one rule per compilable
// selector in rs, or "" when there are none.
func (m *ElementMatcher) BuildSuppressionStyle(rs *domain.RuleSet) string {
	return m.compile(rs).style
}

// SelectBlockedElements returns the elements of doc matched by any selector in
// rs, de-duplicated and in document order. Selectors that fail to compile are
// skipped; the rest still apply.
func (m *ElementMatcher) SelectBlockedElements(doc *html.Node, rs *domain.RuleSet) []*html.Node {
	if doc == nil {
		return nil
	}
	cs := m.compile(rs)
	if cs.combined != nil {
		return cs.combined.MatchAll(doc)
	}
	if len(cs.valid) == 0 {
		return nil
	}
	var out []*html.Node
	walkElements(doc, func(n *html.Node) {
		for _, s := range cs.valid {
			if s.Match(n) {
				out = append(out, n)
				return
			}
		}
	})
	return out
}

// Sweep forces the suppression declarations onto every matched element's
// style attribute and returns how many elements changed. Elements already
// suppressed are left as they are, so repeated sweeps return 0.
func (m *ElementMatcher) Sweep(doc *html.Node, rs *domain.RuleSet) int {
	changed := 0
	for _, n := range m.SelectBlockedElements(doc, rs) {
		if suppressElement(n) {
			changed++
		}
	}
	return changed
}

// InjectStyle inserts <style id="rr-block-styles"> as the first child of
// <head>, creating <head> when the document lacks one. It returns false when
// the style is already present or there is nothing to inject.
func (m *ElementMatcher) InjectStyle(doc *html.Node, rs *domain.RuleSet) bool {
	if doc == nil {
		return false
	}
	css := m.BuildSuppressionStyle(rs)
	if css == "" || findByID(doc, StyleElementID) != nil {
		return false
	}
	head := findHead(doc)
	if head == nil {
		return false
	}
	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: "id", Val: StyleElementID}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	head.InsertBefore(style, head.FirstChild)
	return true
}

// compile returns the cached selectors for rs, compiling them on first use.
func (m *ElementMatcher) compile(rs *domain.RuleSet) *compiledSelectors {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sel != nil && m.built == rs {
		return m.sel
	}

	cs := &compiledSelectors{}
	if rs != nil && len(rs.Selectors) > 0 {
		for _, s := range rs.Selectors {
			sel, err := compileSelector(string(s))
			if err != nil {
				m.logger.Debug(map[string]any{"error": &domain.ParseError{Input: string(s), Err: err}}, "skip_invalid_selector")
				continue
			}
			cs.valid = append(cs.valid, sel)
			cs.validText = append(cs.validText, string(s))
		}
		if len(cs.valid) == len(rs.Selectors) {
			if sel, err := cascadia.Compile(joinSelectors(rs.Selectors)); err == nil {
				cs.combined = sel
			}
		}
		cs.style = buildStyle(cs.validText)
		if dropped := len(rs.Selectors) - len(cs.valid); dropped > 0 {
			m.logger.Warn(map[string]any{"version": rs.Version, "invalid": dropped, "valid": len(cs.valid)}, "Some selector rules failed to compile and were skipped")
		}
	}

	m.built = rs
	m.sel = cs
	return cs
}

// compileSelector rejects selectors that could escape a <style> element or
// a CSS rule block before handing them to cascadia.
func compileSelector(sel string) (cascadia.Selector, error) {
	if strings.ContainsAny(sel, "<{}") {
		return nil, errUnsafeSelector
	}
	return cascadia.Compile(sel)
}

// buildStyle emits one rule per selector, so a browser that rejects one
// selector still applies the others.
func buildStyle(selectors []string) string {
	if len(selectors) == 0 {
		return ""
	}
	decls := domain.SuppressionDeclarations()
	var b strings.Builder
	for i, sel := range selectors {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(sel)
		b.WriteString(" { ")
		b.WriteString(decls)
		b.WriteString(" }")
	}
	return b.String()
}

func joinSelectors(sels []domain.SelectorRule) string {
	parts := make([]string, len(sels))
	for i, s := range sels {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// walkElements visits element nodes under n in document order.
func walkElements(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, visit)
	}
}

func findByID(doc *html.Node, id string) *html.Node {
	var found *html.Node
	walkElements(doc, func(n *html.Node) {
		if found == nil && attr(n, "id") == id {
			found = n
		}
	})
	return found
}

// findHead returns <head>, creating it as the first child of <html> when absent.
func findHead(doc *html.Node) *html.Node {
	var root, head *html.Node
	walkElements(doc, func(n *html.Node) {
		switch n.DataAtom {
		case atom.Html:
			if root == nil {
				root = n
			}
		case atom.Head:
			if head == nil {
				head = n
			}
		}
	})
	if head != nil {
		return head
	}
	if root == nil {
		return nil
	}
	head = &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	root.InsertBefore(head, root.FirstChild)
	return head
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
