package utils

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// CanonicalHostname returns a hostname in canonical form:
// - Trimmed of surrounding whitespace
// - Lowercased
// - No trailing dots
// - Internationalized names converted to their ASCII (punycode) form
func CanonicalHostname(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	name = strings.TrimRight(name, ".")
	if name == "" || isASCII(name) {
		return name
	}
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		// keep the unicode form; rules in the same form still match
		return name
	}
	return ascii
}

// HostSuffixes returns name followed by each of its dot-bounded parents,
// most-specific first: "a.b.c" yields ["a.b.c", "b.c", "c"].
func HostSuffixes(name string) []string {
	if name == "" {
		return nil
	}
	out := make([]string, 0, strings.Count(name, ".")+1)
	for {
		out = append(out, name)
		i := strings.IndexByte(name, '.')
		if i < 0 || i == len(name)-1 {
			return out
		}
		name = name[i+1:]
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
