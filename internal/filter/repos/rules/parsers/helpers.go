package parsers

import (
	"strings"
	"unicode"

	"github.com/haukened/rr-block/internal/filter/common/utils"
)

// isValidFQDN checks whether the provided string is a plausible hostname rule.
// It enforces the following rules:
//   - The total length must not exceed 255 characters.
//   - Each label must be between 1 and 63 characters long.
//   - The first label must start with a letter, number, or underscore.
//   - No scheme, path, port or whitespace characters.
func isValidFQDN(name string) bool {
	if len(name) > 255 {
		return false
	}
	if strings.ContainsAny(name, ":/?#@ \t*") {
		return false
	}
	labels := strings.Split(name, ".")
	for _, label := range labels {
		if len(label) > 63 || len(label) == 0 {
			return false
		}
	}
	r := []rune(labels[0])[0]
	return isAlphaNumeric(r) || r == '_'
}

// normalizeDomainName trims whitespace, removes a leading "*." or "." marker,
// and returns the canonical hostname form.
func normalizeDomainName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "*.")
	name = strings.TrimPrefix(name, ".")
	return utils.CanonicalHostname(name)
}

// isAlphaNumeric reports whether the given rune is a letter or digit.
func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// stripLineBOM removes a UTF-8 byte order mark from the start of a line.
func stripLineBOM(line string) string {
	return strings.TrimPrefix(line, "\uFEFF")
}

// classifyLine reports whether line is blank or a whole-line comment.
// Both '#' and '!' introduce comments.
func classifyLine(line string) (isEmpty, isComment bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true, false
	}
	return false, strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!")
}

// stripInlineComment drops everything from the first '#'.
func stripInlineComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}
