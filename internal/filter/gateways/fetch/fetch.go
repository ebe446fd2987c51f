package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/haukened/rr-block/internal/filter/common/log"
	"github.com/haukened/rr-block/internal/filter/repos/rules"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	// maxListBytes bounds a single list download or file read.
	maxListBytes = 64 << 20
	userAgent    = "rr-block/1.0"
)

// Options configures a Fetcher.
type Options struct {
	Timeout time.Duration
	Retries int
	Logger  log.Logger
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// Fetcher reads list sources from the local filesystem or over http(s).
type Fetcher struct {
	client  *http.Client
	retries int
	logger  log.Logger
	// backoff returns the wait before retry attempt i (i >= 1).
	backoff func(i int) time.Duration
}

// New creates a Fetcher, applying defaults for zero options.
func New(opts Options) *Fetcher {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Fetcher{
		client:  client,
		retries: retries,
		logger:  logger,
		backoff: func(i int) time.Duration { return time.Duration(i) * time.Second },
	}
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch returns the contents of source. Remote sources are retried with a
// linear backoff; local files are read once.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if !IsRemote(source) {
		return readFile(source)
	}

	var lastErr error
	for i := 0; i < f.retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.backoff(i)):
			}
		}

		data, err := f.doFetch(ctx, source)
		if err == nil {
			return data, nil
		}
		lastErr = err
		f.logger.Debug(map[string]any{"source": source, "attempt": i + 1, "error": err}, "fetch_attempt_failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", f.retries, lastErr)
}

func (f *Fetcher) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return readLimited(resp.Body)
}

func readFile(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return readLimited(fh)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxListBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxListBytes {
		return nil, fmt.Errorf("list exceeds %d bytes", maxListBytes)
	}
	return data, nil
}

var _ rules.Fetcher = (*Fetcher)(nil)
