package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/haukened/rr-block/internal/filter/common/clock"
	"github.com/haukened/rr-block/internal/filter/common/log"
	"github.com/haukened/rr-block/internal/filter/config"
	"github.com/haukened/rr-block/internal/filter/gateways/fetch"
	"github.com/haukened/rr-block/internal/filter/gateways/ticker"
	"github.com/haukened/rr-block/internal/filter/gateways/transport"
	"github.com/haukened/rr-block/internal/filter/gateways/watcher"
	"github.com/haukened/rr-block/internal/filter/repos/rules"
	"github.com/haukened/rr-block/internal/filter/repos/rules/bloom"
	"github.com/haukened/rr-block/internal/filter/repos/rules/lru"
	"github.com/haukened/rr-block/internal/filter/repos/state"
	"github.com/haukened/rr-block/internal/filter/repos/state/bolt"
	"github.com/haukened/rr-block/internal/filter/services/matcher"
	"github.com/haukened/rr-block/internal/filter/services/session"
	"github.com/haukened/rr-block/internal/filter/services/stats"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-blockd"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the filtering daemon.
type Application struct {
	config    *config.AppConfig
	session   *session.Session
	transport session.ServerTransport
	store     state.Store
	watcher   *watcher.Watcher
	tickers   []*ticker.Ticker
}

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info(map[string]any{
		"app":        appName,
		"version":    version,
		"env":        cfg.Env,
		"log_level":  cfg.Log.Level,
		"domains":    cfg.Lists.Domains,
		"patterns":   cfg.Lists.Patterns,
		"selectors":  cfg.Lists.Selectors,
		"state_db":   cfg.State.DB,
		"cache_size": cfg.Matcher.CacheSize,
	}, "Starting RR-Block daemon")

	// Build application with all dependencies
	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Daemon failed")
	}

	log.Info(nil, "RR-Block daemon stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	store, err := bolt.New(cfg.State.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	ruleRepo := buildRuleRepository(cfg, clk, log.Component(logger, "rules"))

	urls, err := buildURLMatcher(cfg, log.Component(logger, "url_matcher"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	tracker := stats.New(stats.Options{
		Store:        store,
		Clock:        clk,
		Logger:       log.Component(logger, "stats"),
		PersistEvery: cfg.State.PersistEvery,
	})

	sess := session.New(session.Options{
		Rules:      ruleRepo,
		URLs:       urls,
		Elements:   matcher.NewElementMatcher(log.Component(logger, "element_matcher")),
		Stats:      tracker,
		Store:      store,
		Logger:     log.Component(logger, "session"),
		BadgeColor: cfg.Badge.Color,
	})

	addr := net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port))

	app := &Application{
		config:    cfg,
		session:   sess,
		transport: transport.NewHTTPTransport(addr, log.Component(logger, "transport"), cfg.HTTP.AllowedOrigins...),
		store:     store,
		tickers: []*ticker.Ticker{
			ticker.New("badge", cfg.Badge.Interval, func() { sess.RefreshBadge() }, log.Component(logger, "ticker")),
			ticker.New("stats-flush", cfg.State.FlushInterval, func() { _ = sess.Flush() }, log.Component(logger, "ticker")),
		},
	}

	if cfg.Lists.Watch {
		app.watcher, err = buildWatcher(ruleRepo.Sources(), sess, log.Component(logger, "watcher"))
		if err != nil {
			// Hot reload is optional; keep serving without it.
			log.Warn(map[string]any{"error": err}, "List watcher unavailable")
		}
	}

	return app, nil
}

func buildRuleRepository(cfg *config.AppConfig, clk clock.Clock, logger log.Logger) rules.Repository {
	fetcher := fetch.New(fetch.Options{
		Timeout: cfg.Fetch.Timeout,
		Retries: cfg.Fetch.Retries,
		Logger:  logger,
	})
	loader := rules.NewLoader(fetcher, logger, clk)
	return rules.NewStore(loader, rules.Sources{
		Domains:   cfg.Lists.Domains,
		Patterns:  cfg.Lists.Patterns,
		Selectors: cfg.Lists.Selectors,
	})
}

func buildURLMatcher(cfg *config.AppConfig, logger log.Logger) (*matcher.URLMatcher, error) {
	cache, err := lru.New(cfg.Matcher.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}
	log.Info(map[string]any{
		"type":    "LRU",
		"size":    cfg.Matcher.CacheSize,
		"fp_rate": cfg.Matcher.BloomFPRate,
	}, "URL matcher configured")

	return matcher.NewURLMatcher(matcher.URLMatcherOptions{
		Cache:        cache,
		BloomFactory: bloom.NewFactory(),
		FPRate:       cfg.Matcher.BloomFPRate,
		Logger:       logger,
	}), nil
}

// buildWatcher tracks the local list files and reloads the session when
// they change. Remote sources are not watched.
func buildWatcher(src rules.Sources, sess *session.Session, logger log.Logger) (*watcher.Watcher, error) {
	w, err := watcher.New(watcher.Options{
		Logger: logger,
		OnChange: func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			_ = sess.Reload(ctx)
		},
	})
	if err != nil {
		return nil, err
	}
	watched := 0
	for _, name := range []string{src.Domains, src.Patterns, src.Selectors} {
		if name == "" || fetch.IsRemote(name) {
			continue
		}
		if err := w.Add(name); err != nil {
			_ = w.Close()
			return nil, err
		}
		watched++
	}
	if watched == 0 {
		_ = w.Close()
		return nil, nil
	}
	return w, nil
}

// Run initializes the session, starts serving, and blocks until ctx is
// cancelled. On shutdown, unsaved stats are flushed.
func (app *Application) Run(ctx context.Context) error {
	// List load failures leave those lists empty; the daemon still serves.
	_ = app.session.Init(ctx)

	if err := app.transport.Start(ctx, app.session); err != nil {
		return fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	log.Info(map[string]any{
		"address":   app.transport.Address(),
		"transport": "http",
	}, "Filter daemon started")

	for _, t := range app.tickers {
		t.Start()
	}
	if app.watcher != nil {
		app.watcher.Start(ctx)
	}

	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.shutdown()
	}()

	select {
	case <-done:
		log.Info(nil, "Graceful shutdown completed")
		return nil
	case <-time.After(defaultShutdownTimeout):
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}

func (app *Application) shutdown() {
	if err := app.transport.Stop(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error during transport shutdown")
	}
	for _, t := range app.tickers {
		t.Stop()
	}
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error closing list watcher")
		}
	}
	if err := app.session.Flush(); err != nil {
		log.Warn(map[string]any{"error": err}, "Final stats flush failed")
	}
	if err := app.store.Close(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error closing state store")
	}
}
