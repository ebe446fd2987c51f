package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/haukened/rr-block/internal/filter/common/log"
)

// DefaultDebounce coalesces bursts of writes (editors often write, chmod and
// rename in quick succession) into one change notification.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to a set of local files. It watches each file's
// parent directory and filters events by name, which also catches files that
// are replaced by rename.
type Watcher struct {
	logger   log.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func()

	mu    sync.RWMutex
	files map[string]struct{}

	started atomic.Bool
	done    chan struct{}
}

type Options struct {
	Debounce time.Duration
	Logger   log.Logger
	// OnChange is called once per debounced burst of changes.
	OnChange func()
}

func New(opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	onChange := opts.OnChange
	if onChange == nil {
		onChange = func() {}
	}
	return &Watcher{
		logger:   logger,
		watcher:  fw,
		debounce: debounce,
		onChange: onChange,
		files:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Add starts tracking name. The file need not exist yet, but its directory must.
func (w *Watcher) Add(name string) error {
	abs, err := filepath.Abs(name)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", name, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("adding %q: %w", dir, err)
	}
	w.files[abs] = struct{}{}
	w.logger.Debug(map[string]any{"file": abs, "dir": dir}, "watch_added")
	return nil
}

// Start runs the event loop until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	if w.started.CompareAndSwap(false, true) {
		go w.handleEvents(ctx)
	}
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	if w.started.Load() {
		<-w.done
	}
	return err
}

func (w *Watcher) handleEvents(ctx context.Context) {
	defer close(w.done)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(e) {
				continue
			}
			w.logger.Debug(map[string]any{"file": e.Name, "op": e.Op.String()}, "watch_event")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			w.logger.Info(nil, "Watched block-list changed")
			w.onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(map[string]any{"error": err}, "File watcher error")
		}
	}
}

// relevant reports whether e modifies a tracked file's content.
func (w *Watcher) relevant(e fsnotify.Event) bool {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) && !e.Has(fsnotify.Rename) && !e.Has(fsnotify.Remove) {
		return false
	}
	name, err := filepath.Abs(e.Name)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[name]
	return ok
}
