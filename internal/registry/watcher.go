package registry

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/cadencehost/internal/logging"
)

// DefaultDebounce is how long the watcher waits for more events before
// reloading. Editors often write a file several times per save.
const DefaultDebounce = 50 * time.Millisecond

// Watcher reloads a registry in place when its sources change on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	sources  Sources
	target   *Registry
	debounce time.Duration
	logger   *logging.Logger

	// Called after every reload attempt with the new contract count or the
	// load error. The target is left untouched when err is non-nil.
	onReload func(contracts int, err error)

	mu       sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadCallback sets the function called after each reload attempt.
func WithReloadCallback(fn func(contracts int, err error)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(l *logging.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher that reloads target from src. Files are
// watched through their parent directories so atomic saves (write to a
// temp file, then rename) are seen.
func NewWatcher(src Sources, target *Registry, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		sources:  src,
		target:   target,
		debounce: DefaultDebounce,
		logger:   logging.NopLogger(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithComponent("registry-watcher")

	for _, dir := range watchDirs(src) {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func watchDirs(src Sources) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if dir == "" || seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	if src.Manifest != "" {
		add(filepath.Dir(src.Manifest))
	}
	if src.FlowJSON != "" {
		add(filepath.Dir(src.FlowJSON))
	}
	if src.Dir != "" {
		add(src.Dir)
	}
	return dirs
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.watchLoop()
}

// Stop stops watching and waits for the loop to exit. Safe to call more
// than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.doneCh
	}
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C
	pending := false

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			pending = true
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	if w.sources.Manifest != "" && name == filepath.Clean(w.sources.Manifest) {
		return true
	}
	if w.sources.FlowJSON != "" && name == filepath.Clean(w.sources.FlowJSON) {
		return true
	}
	if filepath.Ext(name) == SourceExt {
		return true
	}
	return false
}

func (w *Watcher) reload() {
	reg, err := Load(w.sources)
	if err != nil {
		w.logger.Warn("registry reload failed", "error", err)
		if w.onReload != nil {
			w.onReload(0, err)
		}
		return
	}
	w.target.Replace(reg)
	n := w.target.Len()
	w.logger.Info("registry reloaded", "contracts", n)
	if w.onReload != nil {
		w.onReload(n, nil)
	}
}

// Exists reports whether path exists. Used to skip optional sources.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
