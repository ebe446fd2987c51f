package matcher

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/haukened/rr-block/internal/filter/domain"
)

// declaration is one "name: value" pair of an inline style attribute.
type declaration struct {
	name  string
	value string
}

// suppressElement sets each suppression property on n's inline style with
// !important, replacing earlier values of the same properties. It reports
// whether the attribute changed.
func suppressElement(n *html.Node) bool {
	before := attr(n, "style")
	decls := parseDeclarations(before)
	for _, p := range domain.SuppressionProperties {
		decls = setDeclaration(decls, p.Name, p.Value+" !important")
	}
	after := renderDeclarations(decls)
	if after == before {
		return false
	}
	setAttr(n, "style", after)
	return true
}

// parseDeclarations splits an inline style on ';' outside quotes and
// parentheses. Entries without a ':' are dropped.
func parseDeclarations(style string) []declaration {
	var out []declaration
	for _, part := range splitTopLevel(style, ';') {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}
		out = append(out, declaration{name: name, value: value})
	}
	return out
}

func setDeclaration(decls []declaration, name, value string) []declaration {
	found := false
	out := decls[:0]
	for _, d := range decls {
		if d.name == name {
			if found {
				continue
			}
			found = true
			d.value = value
		}
		out = append(out, d)
	}
	if !found {
		out = append(out, declaration{name: name, value: value})
	}
	return out
}

func renderDeclarations(decls []declaration) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.name + ": " + d.value + ";"
	}
	return strings.Join(parts, " ")
}

func splitTopLevel(s string, sep byte) []string {
	var (
		out   []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
