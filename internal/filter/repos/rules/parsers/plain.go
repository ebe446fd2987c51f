package parsers

import (
	"bufio"
	"io"
	"strings"

	logpkg "github.com/haukened/rr-block/internal/filter/common/log"
)

// ParsePlainDomains parses a newline-delimited list of domains.
//
// Behavior:
// - Supports comments starting with '#' (inline or whole-line) or '!' (whole-line)
// - Accepts "*." and "." markers, which are redundant since every rule covers subdomains
// - Skips empty lines after trimming/stripping comments
// - Entries are normalized and de-duplicated by NormalizeDomains
func ParsePlainDomains(r io.Reader, source string, logger logpkg.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)

	out := make([]string, 0, 256)
	logger.Debug(map[string]any{"source": source}, "parse_plain_domains_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripLineBOM(scanner.Text())

		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}

		s := strings.TrimSpace(stripInlineComment(line))
		if s == "" {
			logger.Debug(map[string]any{"line": lineNum}, "skip_empty")
			continue
		}
		out = append(out, s)
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_plain_domains_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_plain_domains_done")
	return out, nil
}

// ParsePlainLines parses a newline-delimited list of patterns or selectors.
// Only whole lines starting with '!' are comments, since '#' is meaningful in
// both CSS id selectors and URL fragments.
func ParsePlainLines(r io.Reader, source string, logger logpkg.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)

	out := make([]string, 0, 256)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		s := strings.TrimSpace(stripLineBOM(scanner.Text()))
		if s == "" || strings.HasPrefix(s, "!") {
			continue
		}
		out = append(out, s)
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "line": lineNum, "error": err.Error()}, "parse_plain_lines_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_plain_lines_done")
	return out, nil
}
