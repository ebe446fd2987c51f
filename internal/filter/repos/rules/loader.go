package rules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/haukened/rr-block/internal/filter/common/clock"
	"github.com/haukened/rr-block/internal/filter/common/log"
	"github.com/haukened/rr-block/internal/filter/domain"
	"github.com/haukened/rr-block/internal/filter/repos/rules/parsers"
)

// List names, also used as the JSON field holding each list.
const (
	ListDomains   = "domains"
	ListPatterns  = "patterns"
	ListSelectors = "selectors"
)

// Sources names where each list is read from. An empty source means the list
// is not configured and stays empty without error.
type Sources struct {
	Domains   string
	Patterns  string
	Selectors string
}

// Format is the on-disk encoding of a list source.
type Format uint8

const (
	FormatJSON Format = iota
	FormatPlain
	FormatHosts
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatPlain:
		return "plain"
	case FormatHosts:
		return "hosts"
	default:
		return fmt.Sprintf("Format(%d)", f)
	}
}

// DetectFormat picks a Format from the source's file extension. URLs are
// judged by their path. ".json" is JSON, ".hosts" or a file named "hosts" is
// hosts syntax, anything else is a plain line list.
func DetectFormat(source string) Format {
	p := source
	if strings.Contains(source, "://") {
		if u, err := url.Parse(source); err == nil {
			p = u.Path
		}
	}
	base := strings.ToLower(path.Base(strings.ReplaceAll(p, "\\", "/")))
	switch {
	case strings.HasSuffix(base, ".json"):
		return FormatJSON
	case base == "hosts" || strings.HasSuffix(base, ".hosts"):
		return FormatHosts
	default:
		return FormatPlain
	}
}

// Loader builds RuleSets from list sources.
type Loader struct {
	fetcher Fetcher
	logger  log.Logger
	clock   clock.Clock
}

// NewLoader constructs a Loader.
func NewLoader(fetcher Fetcher, logger log.Logger, clk clock.Clock) *Loader {
	return &Loader{fetcher: fetcher, logger: logger, clock: clk}
}

// Load reads the three lists independently. A list that cannot be fetched or
// parsed becomes empty and contributes a *domain.LoadError to the returned
// error; the RuleSet is always non-nil.
func (l *Loader) Load(ctx context.Context, src Sources, version uint64) (*domain.RuleSet, error) {
	var errs []error

	rawDomains, err := l.loadList(ctx, ListDomains, src.Domains)
	if err != nil {
		errs = append(errs, err)
	}
	rawPatterns, err := l.loadList(ctx, ListPatterns, src.Patterns)
	if err != nil {
		errs = append(errs, err)
	}
	rawSelectors, err := l.loadList(ctx, ListSelectors, src.Selectors)
	if err != nil {
		errs = append(errs, err)
	}

	rs := domain.NewRuleSet(
		parsers.NormalizeDomains(rawDomains, src.Domains, l.logger),
		parsers.NormalizePatterns(rawPatterns, src.Patterns, l.logger),
		parsers.NormalizeSelectors(rawSelectors, src.Selectors, l.logger),
		version,
		l.clock.Now(),
	)

	l.logger.Info(map[string]any{
		"version":   rs.Version,
		"domains":   len(rs.Domains),
		"patterns":  len(rs.Patterns),
		"selectors": len(rs.Selectors),
		"failed":    len(errs),
	}, "Rule set loaded")

	return rs, errors.Join(errs...)
}

// loadList fetches and parses one list, wrapping failures in a LoadError.
func (l *Loader) loadList(ctx context.Context, list, source string) ([]string, error) {
	if strings.TrimSpace(source) == "" {
		l.logger.Debug(map[string]any{"list": list}, "list_not_configured")
		return nil, nil
	}

	data, err := l.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, l.loadError(list, source, err)
	}

	var raw []string
	format := DetectFormat(source)
	switch format {
	case FormatJSON:
		raw, err = parsers.ParseJSONList(bytes.NewReader(data), list, source, l.logger)
	case FormatHosts:
		if list != ListDomains {
			err = fmt.Errorf("hosts format only applies to the %s list", ListDomains)
			break
		}
		raw, err = parsers.ParseHostsFile(bytes.NewReader(data), source, l.logger)
	default:
		if list == ListDomains {
			raw, err = parsers.ParsePlainDomains(bytes.NewReader(data), source, l.logger)
		} else {
			raw, err = parsers.ParsePlainLines(bytes.NewReader(data), source, l.logger)
		}
	}
	if err != nil {
		return nil, l.loadError(list, source, err)
	}

	l.logger.Debug(map[string]any{"list": list, "source": source, "format": format.String(), "entries": len(raw)}, "list_loaded")
	return raw, nil
}

func (l *Loader) loadError(list, source string, err error) error {
	lerr := &domain.LoadError{List: list, Source: source, Err: err}
	l.logger.Warn(map[string]any{"list": list, "source": source, "error": err}, "Block-list failed to load; using empty list")
	return lerr
}
