package parsers

import (
	"bufio"
	"io"
	"net/netip"
	"strings"

	logpkg "github.com/haukened/rr-block/internal/filter/common/log"
)

// localHostnames appear in stock hosts files and are never block targets.
var localHostnames = map[string]struct{}{
	"localhost":             {},
	"localhost.localdomain": {},
	"local":                 {},
	"broadcasthost":         {},
	"ip6-localhost":         {},
	"ip6-loopback":          {},
	"ip6-localnet":          {},
	"ip6-mcastprefix":       {},
	"ip6-allnodes":          {},
	"ip6-allrouters":        {},
	"ip6-allhosts":          {},
	"0.0.0.0":               {},
}

// ParseHostsFile extracts block targets from /etc/hosts-style lists such as
// "0.0.0.0 ads.example.com". Only entries pointing at a sink address
// (unspecified or loopback) count; a line mapping a name to a routable
// address is a redirect, not a block. Comments, wildcard tokens, the stock
// local names and other dotless LAN names are skipped.
func ParseHostsFile(r io.Reader, source string, logger logpkg.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)
	out := make([]string, 0, 256)
	var redirects, locals int

	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := stripLineBOM(scanner.Text())
		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}

		addr, names, ok := splitHostsLine(line)
		if !ok {
			logger.Debug(map[string]any{"source": source, "line": lineNum}, "hosts_malformed_line")
			continue
		}
		if !isSinkAddr(addr) {
			redirects++
			continue
		}
		for _, name := range names {
			lower := strings.ToLower(name)
			if _, local := localHostnames[lower]; local || !strings.Contains(strings.Trim(lower, "."), ".") {
				locals++
				continue
			}
			if strings.HasPrefix(name, ".") || strings.Contains(name, "*") {
				logger.Debug(map[string]any{"source": source, "line": lineNum, "raw": name}, "hosts_skip_invalid_token")
				continue
			}
			out = append(out, name)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	logger.Debug(map[string]any{
		"source":    source,
		"count":     len(out),
		"redirects": redirects,
		"locals":    locals,
	}, "parse_hosts_done")
	return out, nil
}

// splitHostsLine returns the parsed address and hostnames of one entry.
func splitHostsLine(line string) (netip.Addr, []string, bool) {
	fields := strings.Fields(stripInlineComment(line))
	if len(fields) < 2 {
		return netip.Addr{}, nil, false
	}
	addr, err := netip.ParseAddr(fields[0])
	if err != nil {
		return netip.Addr{}, nil, false
	}
	return addr, fields[1:], true
}

func isSinkAddr(a netip.Addr) bool {
	return a.IsUnspecified() || a.IsLoopback()
}
