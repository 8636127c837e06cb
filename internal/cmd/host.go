package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/cadencehost/internal/client"
	"github.com/Iron-Ham/cadencehost/internal/config"
	"github.com/Iron-Ham/cadencehost/internal/editor"
	"github.com/Iron-Ham/cadencehost/internal/event"
	"github.com/Iron-Ham/cadencehost/internal/hostbinding"
	"github.com/Iron-Ham/cadencehost/internal/lifecycle"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/metrics"
	"github.com/Iron-Ham/cadencehost/internal/network"
	"github.com/Iron-Ham/cadencehost/internal/registry"
	"github.com/Iron-Ham/cadencehost/internal/service"
)

// projectFile is picked up as a registry source when none is configured.
const projectFile = "flow.json"

// host is a fully wired language host: one lifecycle manager feeding a
// headless editor, resolving imports from the local registry.
type host struct {
	cfg      *config.Config
	network  network.Network
	logger   *logging.Logger
	bus      *event.Bus
	metrics  *metrics.Metrics
	registry *registry.Registry
	resolver *registry.Resolver
	watcher  *registry.Watcher
	editor   *editor.Headless
	manager  *lifecycle.Manager
}

type hostOptions struct {
	// watchRegistry reloads the registry when its sources change.
	watchRegistry bool
	// editorBuffer sizes the headless editor's change stream.
	editorBuffer int
	callbacks    lifecycle.Callbacks
	factory      service.Factory
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger creates the file logger described by cfg.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLoggerWithRotation(cfg.Logging.LogDir(), cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
}

// lifecycleConfig converts the configuration to manager settings.
func lifecycleConfig(cfg *config.Config) lifecycle.Config {
	lc := cfg.Lifecycle
	return lifecycle.Config{
		PollInterval:        lc.PollInterval(),
		MaxPollAttempts:     lc.MaxPollAttempts,
		ReadyTimeout:        lc.ReadyTimeout(),
		AdapterStartTimeout: lc.AdapterStartTimeout(),
		StopTimeout:         lc.StopTimeout(),
		RestartRate:         lc.RestartRate,
		RestartBurst:        lc.RestartBurst,
		LaneSize:            lc.LaneSize,
	}
}

// registrySources returns the configured registry sources that exist,
// falling back to flow.json in the working directory.
func registrySources(cfg *config.Config, logger *logging.Logger) registry.Sources {
	src := registry.Sources{
		Manifest: cfg.Registry.Manifest,
		FlowJSON: cfg.Registry.FlowJSON,
		Dir:      cfg.Registry.Dir,
	}
	for _, p := range []*string{&src.Manifest, &src.FlowJSON, &src.Dir} {
		if *p != "" && !registry.Exists(*p) {
			logger.Warn("registry source not found; skipping", "path", *p)
			*p = ""
		}
	}
	if src.Empty() && registry.Exists(projectFile) {
		src.FlowJSON = projectFile
	}
	return src
}

// newExecFactory builds the language server factory from cfg.
func newExecFactory(cfg *config.Config, logger *logging.Logger) *service.ExecFactory {
	f := service.NewExecFactory(cfg.Service.Command, cfg.Service.Args, logger)
	f.Env = cfg.Service.Env
	f.Dir = cfg.Service.Dir
	f.GracePeriod = cfg.Service.GracePeriod()
	return f
}

// newHost wires the host from cfg. The manager is created but not started.
func newHost(cfg *config.Config, opts hostOptions) (*host, error) {
	n, err := network.Parse(cfg.Network)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger = logger.WithNetwork(n.String())

	h := &host{
		cfg:     cfg,
		network: n,
		logger:  logger,
		bus:     event.NewBus(logger),
		metrics: metrics.New(),
	}

	src := registrySources(cfg, logger)
	if src.Empty() {
		h.registry = registry.New()
	} else if h.registry, err = registry.Load(src); err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("failed to load contract registry: %w", err)
	}
	h.resolver = registry.NewResolver(h.registry, n, logger)

	if opts.watchRegistry && cfg.Registry.Watch && !src.Empty() {
		h.watcher, err = registry.NewWatcher(src, h.registry,
			registry.WithDebounce(cfg.Registry.Debounce()),
			registry.WithWatcherLogger(logger),
			registry.WithReloadCallback(func(contracts int, err error) {
				h.metrics.IncReload(err)
				h.bus.Publish(event.NewRegistryReloadedEvent(contracts, err))
			}),
		)
		if err != nil {
			logger.Warn("registry watch unavailable", "error", err)
			h.watcher = nil
		}
	}

	buffer := opts.editorBuffer
	if buffer <= 0 {
		buffer = 64
	}
	h.editor = editor.NewHeadless(buffer)
	if _, err := hostbinding.Install(h.editor); err != nil {
		h.close()
		return nil, fmt.Errorf("failed to install language services: %w", err)
	}

	factory := opts.factory
	if factory == nil {
		factory = newExecFactory(cfg, logger)
	}
	h.manager = lifecycle.New(factory,
		lifecycle.WithConfig(lifecycleConfig(cfg)),
		lifecycle.WithLogger(logger),
		lifecycle.WithEventBus(h.bus),
		lifecycle.WithMetrics(h.metrics),
		lifecycle.WithResolver(h.resolver),
		lifecycle.WithSink(h.editor),
		lifecycle.WithCallbacks(opts.callbacks),
		lifecycle.WithClientOptions(client.WithRootURI(workspaceURI())),
	)
	return h, nil
}

// start begins watching the registry and launches the first generation.
func (h *host) start(ctx context.Context) error {
	if h.watcher != nil {
		h.watcher.Start()
	}
	return h.manager.Start(ctx)
}

// close stops the manager and releases everything newHost created.
func (h *host) close() {
	if h.watcher != nil {
		h.watcher.Stop()
	}
	if h.manager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.stopTimeout())
		if err := h.manager.Stop(ctx); err != nil {
			h.logger.Warn("language host did not stop cleanly", "error", err)
		}
		cancel()
	}
	if h.editor != nil {
		h.editor.Shutdown()
	}
	h.bus.Clear()
	_ = h.logger.Close()
}

func (h *host) stopTimeout() time.Duration {
	return h.cfg.Lifecycle.StopTimeout() + h.cfg.Service.GracePeriod() + time.Second
}

// fileURI converts a path to a file:// document URI.
func fileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func workspaceURI() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return fileURI(wd)
}
