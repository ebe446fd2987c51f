// Package transport exposes the session to a browser-side shim. It handles
// HTTP routing and JSON/HTML encoding while the session sees only domain types.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/haukened/rr-block/internal/filter/common/log"
	"github.com/haukened/rr-block/internal/filter/services/session"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// HTTPTransport implements session.ServerTransport over local HTTP.
type HTTPTransport struct {
	addr    string
	logger  log.Logger
	origins []string

	mu       sync.RWMutex
	running  bool
	listener net.Listener
	server   *http.Server
	done     chan struct{}
	stopped  chan struct{}
}

// NewHTTPTransport creates a transport that will listen on addr ("host:port").
// allowedOrigins lists the browser origins (e.g. "chrome-extension://<id>")
// permitted to call it; requests without an Origin header are always served.
func NewHTTPTransport(addr string, logger log.Logger, allowedOrigins ...string) *HTTPTransport {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &HTTPTransport{addr: addr, logger: logger, origins: allowedOrigins}
}

// Start binds the listener and serves handler in the background.
func (t *HTTPTransport) Start(ctx context.Context, handler session.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("HTTP transport already running")
	}

	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.addr, err)
	}

	t.listener = ln
	t.server = &http.Server{
		Handler:           newRouter(handler, t.logger, t.origins...),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	t.done = make(chan struct{})
	t.stopped = make(chan struct{})
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "http",
		"address":   ln.Addr().String(),
	}, "Host transport started")

	done := t.done
	go t.serve(t.server, ln, done)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Stop()
		case <-done:
		}
	}()

	return nil
}

func (t *HTTPTransport) serve(srv *http.Server, ln net.Listener, done chan struct{}) {
	defer close(done)

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		t.logger.Error(map[string]any{"error": err}, "HTTP transport failed")
	}
}

// Stop gracefully shuts the server down. Concurrent callers all return only
// once the shutdown begun by the first has finished.
func (t *HTTPTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		stopped := t.stopped
		t.mu.Unlock()
		if stopped != nil {
			<-stopped
		}
		return nil
	}
	t.running = false
	srv, done, stopped := t.server, t.done, t.stopped
	t.mu.Unlock()
	defer close(stopped)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	if err != nil {
		t.logger.Warn(map[string]any{"error": err}, "Error during HTTP shutdown")
	}
	<-done

	t.logger.Info(map[string]any{
		"transport": "http",
		"address":   t.addr,
	}, "Host transport stopped")
	return err
}

// Address returns the bound address while running, else the configured one.
func (t *HTTPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.running && t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}

var _ session.ServerTransport = (*HTTPTransport)(nil)
