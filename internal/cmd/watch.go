package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Iron-Ham/cadencehost/internal/client"
	"github.com/Iron-Ham/cadencehost/internal/editor"
	"github.com/Iron-Ham/cadencehost/internal/event"
	"github.com/Iron-Ham/cadencehost/internal/lifecycle"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/tui"
	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [file-or-dir]...",
	Short: "Run the language host and follow document changes",
	Long: `Start the language host and keep it running. Every given Cadence file
is opened in the host and re-sent whenever it changes on disk. Directories
are searched for .cdc files.

The dashboard shows the lifecycle state, open documents and recent events.
Press r to restart the language server, n to switch to the next network
and q to quit. Use --headless to print events instead.`,
	RunE: runWatch,
}

var watchHeadless bool

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchHeadless, "headless", false, "print events instead of showing the dashboard")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	syncer := &documentSync{}
	h, err := newHost(cfg, hostOptions{
		watchRegistry: true,
		editorBuffer:  len(files) + 64,
		callbacks: lifecycle.Callbacks{
			OnClientReady: func(gen uint64, adapter *client.Adapter) {
				syncer.attach(ctx, adapter)
			},
		},
	})
	if err != nil {
		return err
	}
	syncer.editor = h.editor
	syncer.logger = h.logger.WithComponent("documents")

	docs, err := newDocumentWatcher(h.editor, files, h.logger)
	if err != nil {
		h.close()
		return err
	}

	var wg conc.WaitGroup
	defer func() {
		cancel()
		_ = docs.Close()
		wg.Wait()
		h.close()
		syncer.wait()
	}()

	if cfg.Metrics.Enabled {
		wg.Go(func() {
			if err := h.metrics.Serve(ctx, cfg.Metrics.Address); err != nil {
				h.logger.Error("metrics endpoint failed", "address", cfg.Metrics.Address, "error", err)
			}
		})
	}

	if err := docs.openAll(ctx); err != nil {
		return err
	}
	wg.Go(func() { docs.run(ctx) })

	if err := h.start(ctx); err != nil {
		return err
	}

	if watchHeadless {
		return watchEvents(ctx, cmd.OutOrStdout(), h)
	}
	if err := tui.Run(ctx, h.manager, h.editor, h.bus); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// watchEvents prints every host event to w until ctx ends.
func watchEvents(ctx context.Context, w io.Writer, h *host) error {
	var mu sync.Mutex
	id := h.bus.SubscribeAll(func(e event.Event) {
		if line := tui.Describe(e); line != "" {
			mu.Lock()
			fmt.Fprintln(w, line)
			mu.Unlock()
		}
	})
	defer h.bus.Unsubscribe(id)

	fmt.Fprintln(w, "Watching... (Ctrl+C to stop)")
	<-ctx.Done()
	return nil
}

// documentSync forwards the editor's change stream to the current adapter.
// Each new adapter first receives every open document.
type documentSync struct {
	editor *editor.Headless
	logger *logging.Logger

	wg conc.WaitGroup
}

func (s *documentSync) attach(ctx context.Context, adapter *client.Adapter) {
	for _, uri := range s.editor.Documents() {
		text, ok := s.editor.Document(uri)
		if !ok {
			continue
		}
		if err := adapter.DidOpen(uri, text); err != nil {
			s.logger.Warn("failed to open document", "uri", uri, "error", err)
		}
	}
	s.wg.Go(func() {
		if err := adapter.Sync(ctx, s.editor); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("document sync ended", "adapter_id", adapter.ID(), "error", err)
		}
	})
}

func (s *documentSync) wait() { s.wg.Wait() }

// documentWatcher mirrors files on disk into the editor.
type documentWatcher struct {
	editor  *editor.Headless
	files   map[string]string // absolute path -> URI
	watcher *fsnotify.Watcher
	logger  *logging.Logger
}

func newDocumentWatcher(ed *editor.Headless, files []string, logger *logging.Logger) (*documentWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	d := &documentWatcher{
		editor:  ed,
		files:   make(map[string]string, len(files)),
		watcher: fw,
		logger:  logger.WithComponent("documents"),
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			_ = fw.Close()
			return nil, err
		}
		d.files[abs] = fileURI(abs)
		dirs[filepath.Dir(abs)] = true
	}
	// Directories are watched so editors that save by rename are seen.
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return d, nil
}

func (d *documentWatcher) openAll(ctx context.Context) error {
	for path, uri := range d.files {
		if err := d.load(ctx, path, uri); err != nil {
			return err
		}
	}
	return nil
}

func (d *documentWatcher) load(ctx context.Context, path, uri string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if current, ok := d.editor.Document(uri); ok && current == string(text) {
		return nil
	}
	return d.editor.SetText(ctx, uri, string(text))
}

func (d *documentWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.handle(ctx, ev)
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (d *documentWatcher) handle(ctx context.Context, ev fsnotify.Event) {
	uri, ok := d.files[filepath.Clean(ev.Name)]
	if !ok {
		return
	}
	switch {
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
		// Give the writer a moment to finish.
		time.Sleep(10 * time.Millisecond)
		if err := d.load(ctx, ev.Name, uri); err != nil {
			d.logger.Warn("failed to reload document", "path", ev.Name, "error", err)
		}
	case ev.Has(fsnotify.Remove):
		if err := d.editor.CloseDocument(ctx, uri); err != nil {
			d.logger.Warn("failed to close document", "path", ev.Name, "error", err)
		}
	}
}

func (d *documentWatcher) Close() error {
	return d.watcher.Close()
}
