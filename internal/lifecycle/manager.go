package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/Iron-Ham/cadencehost/internal/channel"
	"github.com/Iron-Ham/cadencehost/internal/client"
	"github.com/Iron-Ham/cadencehost/internal/editor"
	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/event"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/metrics"
	"github.com/Iron-Ham/cadencehost/internal/network"
	"github.com/Iron-Ham/cadencehost/internal/poll"
	"github.com/Iron-Ham/cadencehost/internal/registry"
	"github.com/Iron-Ham/cadencehost/internal/service"
)

// Failure stages reported in errors, events and metrics.
const (
	StageService     = "service"
	StageClient      = "client"
	StageServiceExit = "service_exit"
)

// readyGate is implemented by sinks that gate editor actions.
type readyGate interface {
	SetReady(ready bool)
}

// errorReporter is implemented by processes that can explain an exit.
type errorReporter interface {
	Err() error
}

// generation is one attempt at bringing up a service and its adapter.
type generation struct {
	id      uint64
	ctx     context.Context
	cancel  context.CancelFunc
	pair    *channel.Pair
	started time.Time
	done    chan struct{}

	// Guarded by Manager.mu.
	process    service.Process
	adapter    *client.Adapter
	superseded bool
	settled    bool
	err        error
}

// Snapshot is a consistent view of the manager.
type Snapshot struct {
	State      State
	Generation uint64
	Network    network.Network
	ProcessID  string
	AdapterID  string
	Err        error
}

// Manager runs the service lifecycle of one editor.
type Manager struct {
	config     Config
	callbacks  Callbacks
	factory    service.Factory
	logger     *logging.Logger
	bus        *event.Bus
	metrics    *metrics.Metrics
	resolver   *registry.Resolver
	sink       editor.DiagnosticsSink
	clientOpts []client.Option
	limiter    *rate.Limiter
	bundle     *channel.Bundle

	// opMu serializes Start, Restart and Stop.
	opMu sync.Mutex

	mu      sync.Mutex
	state   State
	gen     uint64
	cur     *generation
	lastErr error
	stopped bool
	errCh   chan error

	wg conc.WaitGroup
}

// New creates a Manager that builds services with factory.
func New(factory service.Factory, opts ...Option) *Manager {
	if factory == nil {
		panic("lifecycle: factory must not be nil")
	}
	m := &Manager{
		config:  DefaultConfig(),
		factory: factory,
		logger:  logging.NopLogger(),
		state:   StateIdle,
		errCh:   make(chan error, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("lifecycle")

	if m.config.RestartRate > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(m.config.RestartRate), max(m.config.RestartBurst, 1))
	} else {
		m.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	m.bundle = channel.NewBundle(m.logger)
	m.metrics.SetState(string(StateIdle), stateNames())
	return m
}

// Bundle returns the editor's callback bundle. It is the same object for
// the manager's whole life.
func (m *Manager) Bundle() *channel.Bundle { return m.bundle }

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Generation returns the current generation number. Zero means no
// generation has begun.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Err returns the most recent generation failure, or nil.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Errors delivers generation failures. When nobody reads, only the most
// recent failure is kept.
func (m *Manager) Errors() <-chan error { return m.errCh }

// Network returns the network documents are resolved against.
func (m *Manager) Network() network.Network {
	if m.resolver == nil {
		return network.Default
	}
	return m.resolver.Network()
}

// Process returns the live service process, or nil.
func (m *Manager) Process() service.Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.liveLocked(m.cur) {
		return nil
	}
	return m.cur.process
}

// Adapter returns the live client adapter, or nil.
func (m *Manager) Adapter() *client.Adapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.liveLocked(m.cur) {
		return nil
	}
	return m.cur.adapter
}

// Snapshot returns the current state and handles.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		State:      m.state,
		Generation: m.gen,
		Network:    m.Network(),
		Err:        m.lastErr,
	}
	if g := m.cur; m.liveLocked(g) {
		if g.process != nil {
			s.ProcessID = g.process.ID()
		}
		if g.adapter != nil {
			s.AdapterID = g.adapter.ID()
		}
	}
	return s
}

// Start begins a generation when the manager is idle or failed. It
// returns once the generation is under way, not once it is ready; use
// WaitReady for that. Starting while a generation is still coming up
// fails with errors.ErrStartInProgress. Starting a ready manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return errors.ErrManagerStopped
	}
	prev := m.cur
	if prev != nil && !prev.settled {
		err := errors.NewLifecycleError("start rejected", errors.ErrStartInProgress).
			WithGeneration(prev.id).
			WithState(string(m.state)).
			WithSeverity(errors.SeverityWarning)
		m.mu.Unlock()
		return err
	}
	if m.state == StateClientReady {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if prev != nil {
		m.retire(prev)
	}
	m.begin(prev)
	return nil
}

// Restart supersedes the current generation and begins a new one. The
// old adapter and process are shut down, the bundle is reset in place and
// a fresh pair is created. Calls are rate limited; waiting for the
// limiter honors ctx.
func (m *Manager) Restart(ctx context.Context) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: restart throttled: %w", errors.ErrCanceled, err)
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return errors.ErrManagerStopped
	}
	old := m.cur
	prevGen := m.gen
	from := m.setStateLocked(StateRestarting)
	m.mu.Unlock()
	m.announce(prevGen, from, StateRestarting)

	if old != nil {
		m.retire(old)
	}
	g := m.begin(old)

	m.metrics.IncRestarts()
	m.publish(event.NewRestartedEvent(prevGen, g.id))
	m.logger.Info("language service restarted", "previous_generation", prevGen, "generation", g.id)
	return nil
}

// SwitchNetwork changes the network documents are resolved against and
// restarts the service so it re-checks every document.
func (m *Manager) SwitchNetwork(ctx context.Context, n network.Network) error {
	if !n.Valid() {
		return errors.NewValidationError("unknown network").
			WithField("network").
			WithValue(string(n))
	}
	prev := m.Network()
	if m.resolver != nil {
		prev = m.resolver.SetNetwork(n)
	}
	m.publish(event.NewNetworkChangedEvent(string(prev), string(n)))
	m.logger.Info("network switched", "from", prev, "to", n)
	return m.Restart(ctx)
}

// WaitReady blocks until the current generation settles and returns its
// outcome: nil when the client is ready, the failure otherwise. A
// generation superseded while waiting is followed to its successor.
func (m *Manager) WaitReady(ctx context.Context) error {
	for {
		m.mu.Lock()
		g := m.cur
		stopped := m.stopped
		m.mu.Unlock()

		if g == nil {
			if stopped {
				return errors.ErrManagerStopped
			}
			return errors.NewLifecycleError("language service not started", errors.ErrChannelNotEstablished)
		}

		select {
		case <-g.done:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err())
		}

		m.mu.Lock()
		if m.cur != g {
			m.mu.Unlock()
			continue
		}
		err := g.err
		m.mu.Unlock()
		return err
	}
}

// Stop shuts down the current generation and waits for background work.
// After Stop the manager rejects Start and Restart. Safe to call more
// than once.
func (m *Manager) Stop(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	g := m.cur
	m.mu.Unlock()

	if g != nil {
		m.retire(g)
		g.pair.Close()
		m.drain(g.pair)
	}
	m.bundle.Reset()

	m.mu.Lock()
	if g != nil {
		m.finishLocked(g, errors.ErrManagerStopped)
	}
	from := m.setStateLocked(StateIdle)
	gen := m.gen
	m.mu.Unlock()
	m.announce(gen, from, StateIdle)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.logger.Info("lifecycle manager stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for lifecycle shutdown: %w", errors.ErrCanceled, ctx.Err())
	}
}

// begin resets the bundle and starts a new generation. prev, when set,
// has already been retired.
func (m *Manager) begin(prev *generation) *generation {
	if prev != nil {
		prev.pair.Close()
		m.drain(prev.pair)
	}
	m.bundle.Reset()

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.gen++
	g := &generation{
		id:      m.gen,
		ctx:     ctx,
		cancel:  cancel,
		pair:    channel.NewPair(m.bundle, m.config.LaneSize, m.logger.WithGeneration(m.gen)),
		started: time.Now(),
		done:    make(chan struct{}),
	}
	m.cur = g
	if prev != nil {
		m.finishLocked(prev, errors.ErrSuperseded)
	}
	from := m.setStateLocked(StateServiceStarting)
	m.mu.Unlock()

	m.metrics.SetGeneration(g.id)
	m.announce(g.id, from, StateServiceStarting)
	m.logger.WithGeneration(g.id).Info("starting language service")

	m.wg.Go(func() { m.run(g) })
	return g
}

type created struct {
	proc service.Process
	err  error
}

// run drives g from service creation to client readiness.
func (m *Manager) run(g *generation) {
	logger := m.logger.WithGeneration(g.id)

	// Polling starts now, concurrently with creation: the process binds
	// whenever it is ready, which may be before or after Create returns.
	pollCtx, cancelPoll := context.WithCancel(g.ctx)
	defer cancelPoll()
	createdCh := make(chan created, 1)
	m.wg.Go(func() {
		proc, err := m.factory.Create(g.ctx, g.pair)
		if err != nil {
			cancelPoll()
		}
		createdCh <- created{proc: proc, err: err}
	})

	poller := poll.New(
		poll.WithInterval(m.config.PollInterval),
		poll.WithMaxAttempts(m.config.MaxPollAttempts),
		poll.WithTimeout(m.config.ReadyTimeout),
		poll.WithOnTick(func(attempt int) {
			logger.Debug("checking language service readiness", "attempt", attempt)
		}),
	)
	res, err := poller.Poll(pollCtx, func(context.Context) (bool, error) {
		return g.pair.Bundle().ToService.Loaded(), nil
	})
	if err != nil {
		if g.ctx.Err() != nil {
			m.discard(createdCh, logger)
			return
		}
		select {
		case c := <-createdCh:
			if c.err != nil {
				m.fail(g, StageService, serviceFailure(c.err))
				return
			}
			m.closeProcess(c.proc, logger)
		default:
			m.discard(createdCh, logger)
		}
		m.fail(g, StageService, serviceFailure(
			errors.NewServiceError("language service never became ready", err)))
		return
	}

	// The service bound but Create may still be running; it shares the
	// readiness budget.
	var expired <-chan time.Time
	if m.config.ReadyTimeout > 0 {
		timer := time.NewTimer(max(m.config.ReadyTimeout-time.Since(g.started), 0))
		defer timer.Stop()
		expired = timer.C
	}

	var c created
	select {
	case c = <-createdCh:
	default:
		select {
		case c = <-createdCh:
		case <-expired:
			m.discard(createdCh, logger)
			m.fail(g, StageService, serviceFailure(
				errors.NewTimeoutError("language service creation", m.config.ReadyTimeout)))
			return
		case <-g.ctx.Done():
			m.discard(createdCh, logger)
			return
		}
	}
	if c.err != nil {
		m.fail(g, StageService, serviceFailure(c.err))
		return
	}
	proc := c.proc

	m.mu.Lock()
	if !m.startingLocked(g) {
		m.mu.Unlock()
		m.closeProcess(proc, logger)
		return
	}
	g.process = proc
	if m.resolver != nil {
		m.bundle.SetResolver(m.resolver.Resolve)
	}
	from := m.setStateLocked(StateServiceReady)
	m.mu.Unlock()

	m.announce(g.id, from, StateServiceReady)
	m.metrics.ObservePollAttempts(res.Attempts)
	m.publish(event.NewServiceReadyEvent(g.id, proc.ID(), res.Attempts))
	logger.Info("language service ready",
		"process_id", proc.ID(),
		"attempts", res.Attempts,
		"elapsed", res.Elapsed)
	if cb := m.callbacks.OnServiceReady; cb != nil {
		cb(g.id, m.bundle, proc)
	}
	m.wg.Go(func() { m.watchProcess(g, proc) })

	m.startClient(g, logger)
}

// startClient creates the adapter for g and performs its handshake.
func (m *Manager) startClient(g *generation, logger *logging.Logger) {
	m.mu.Lock()
	if !m.startingLocked(g) {
		m.mu.Unlock()
		return
	}
	from := m.setStateLocked(StateClientStarting)
	m.mu.Unlock()
	m.announce(g.id, from, StateClientStarting)

	opts := append([]client.Option{client.WithLogger(logger)}, m.clientOpts...)
	opts = append(opts, client.WithDiagnosticsCallback(func(uri string, count int) {
		m.metrics.AddDiagnostics(count)
		m.publish(event.NewDiagnosticsEvent(uri, count))
	}))
	adapter := client.New(g.pair, m.sink, opts...)

	startCtx, cancel := g.ctx, context.CancelFunc(func() {})
	if m.config.AdapterStartTimeout > 0 {
		startCtx, cancel = context.WithTimeout(g.ctx, m.config.AdapterStartTimeout)
	}
	err := adapter.Start(startCtx)
	cancel()
	if err != nil {
		m.stopAdapter(adapter, logger)
		m.fail(g, StageClient, clientFailure(err))
		return
	}

	m.mu.Lock()
	if !m.startingLocked(g) {
		m.mu.Unlock()
		m.stopAdapter(adapter, logger)
		return
	}
	g.adapter = adapter
	m.finishLocked(g, nil)
	from = m.setStateLocked(StateClientReady)
	m.mu.Unlock()

	elapsed := time.Since(g.started)
	m.announce(g.id, from, StateClientReady)
	m.metrics.ObserveReady(elapsed)
	m.publish(event.NewClientReadyEvent(g.id, adapter.ID()))
	logger.Info("language client ready", "adapter_id", adapter.ID(), "elapsed", elapsed)
	if cb := m.callbacks.OnClientReady; cb != nil {
		cb(g.id, adapter)
	}
}

// watchProcess fails g if its process exits while g is live.
func (m *Manager) watchProcess(g *generation, proc service.Process) {
	select {
	case <-proc.Done():
	case <-g.ctx.Done():
		return
	}

	m.mu.Lock()
	live := m.liveLocked(g)
	m.mu.Unlock()
	if !live {
		return
	}

	m.publish(event.NewServiceExitedEvent(g.id, proc.ID()))
	var cause error = errors.NewServiceError("language service exited", nil).WithProcessID(proc.ID())
	if r, ok := proc.(errorReporter); ok && r.Err() != nil {
		cause = r.Err()
	}
	m.fail(g, StageServiceExit, cause)
}

// fail moves a live generation to StateFailed and tears it down. It
// reports false when g is stale or already failed.
func (m *Manager) fail(g *generation, stage string, cause error) bool {
	m.mu.Lock()
	if !m.liveLocked(g) || m.state == StateFailed {
		m.mu.Unlock()
		return false
	}
	err := errors.NewLifecycleError(stage+" failed", cause).
		WithGeneration(g.id).
		WithState(string(m.state)).
		WithRetryable(true)
	g.err = err
	m.lastErr = err
	m.finishLocked(g, err)
	adapter, proc := g.adapter, g.process
	g.adapter, g.process = nil, nil
	// No bind through this pair may reach the bundle once it is reset.
	g.pair.Close()
	from := m.setStateLocked(StateFailed)
	m.mu.Unlock()

	g.cancel()
	logger := m.logger.WithGeneration(g.id)
	logger.Error("language service lifecycle failed", "stage", stage, "error", err)

	m.announce(g.id, from, StateFailed)
	m.metrics.IncFailure(stage)
	m.publish(event.NewFailedEvent(g.id, stage, err))
	m.reportError(err)
	if cb := m.callbacks.OnFailure; cb != nil {
		cb(g.id, err)
	}

	m.wg.Go(func() {
		if adapter != nil {
			m.stopAdapter(adapter, logger)
		}
		m.closeProcess(proc, logger)
	})
	return true
}

// retire marks g superseded and shuts down its adapter and process. The
// caller closes g's pair before resetting the bundle.
func (m *Manager) retire(g *generation) {
	m.mu.Lock()
	g.superseded = true
	adapter, proc := g.adapter, g.process
	m.mu.Unlock()

	g.cancel()
	logger := m.logger.WithGeneration(g.id)
	if adapter != nil {
		m.stopAdapter(adapter, logger)
	}
	if proc != nil {
		m.wg.Go(func() { m.closeProcess(proc, logger) })
	}
}

// drain waits for a closed pair's lanes to stop delivering.
func (m *Manager) drain(p *channel.Pair) {
	timer := time.NewTimer(m.config.StopTimeout)
	defer timer.Stop()
	for _, lane := range []*channel.Lane{p.ToService, p.ToClient} {
		select {
		case <-lane.Done():
		case <-timer.C:
			m.logger.Warn("lane did not drain before reset", "lane", lane.Name())
			return
		}
	}
}

// discard closes a process whose creation outlived its generation.
func (m *Manager) discard(createdCh <-chan created, logger *logging.Logger) {
	m.wg.Go(func() {
		c := <-createdCh
		if c.err == nil {
			m.closeProcess(c.proc, logger)
		}
	})
}

func (m *Manager) stopAdapter(a *client.Adapter, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.StopTimeout)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		logger.Warn("failed to stop language client", "adapter_id", a.ID(), "error", err)
	}
}

func (m *Manager) closeProcess(proc service.Process, logger *logging.Logger) {
	if proc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.config.StopTimeout)
	defer cancel()
	if err := proc.Close(ctx); err != nil {
		logger.Warn("failed to close language service", "process_id", proc.ID(), "error", err)
		return
	}
	logger.Debug("language service closed", "process_id", proc.ID())
}

// liveLocked reports whether g is the current, unsuperseded generation.
func (m *Manager) liveLocked(g *generation) bool {
	return g != nil && m.cur == g && !g.superseded && !m.stopped
}

// startingLocked reports whether g is live and still coming up.
func (m *Manager) startingLocked(g *generation) bool {
	return m.liveLocked(g) && !g.settled
}

// finishLocked settles g with err, releasing WaitReady callers.
func (m *Manager) finishLocked(g *generation, err error) {
	if g.settled {
		return
	}
	g.settled = true
	if g.err == nil {
		g.err = err
	}
	close(g.done)
}

// setStateLocked records a transition and returns the previous state.
func (m *Manager) setStateLocked(to State) State {
	from := m.state
	m.state = to
	m.metrics.SetState(string(to), stateNames())
	if gate, ok := m.sink.(readyGate); ok {
		gate.SetReady(to == StateClientReady)
	}
	return from
}

func (m *Manager) announce(gen uint64, from, to State) {
	if from == to {
		return
	}
	m.logger.Debug("lifecycle state changed", "generation", gen, "from", from, "to", to)
	m.publish(event.NewStateChangedEvent(gen, string(from), string(to)))
	if cb := m.callbacks.OnStateChange; cb != nil {
		cb(gen, from, to)
	}
}

func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// reportError delivers err on the error channel, replacing an unread one.
func (m *Manager) reportError(err error) {
	for {
		select {
		case m.errCh <- err:
			return
		default:
		}
		select {
		case <-m.errCh:
		default:
		}
	}
}

// serviceFailure marks err as a service start failure.
func serviceFailure(err error) error {
	if errors.Is(err, errors.ErrServiceStartFailure) {
		return err
	}
	return errors.Join(errors.ErrServiceStartFailure, err)
}

// clientFailure marks err as an adapter start failure.
func clientFailure(err error) error {
	if errors.Is(err, errors.ErrAdapterStartFailure) {
		return err
	}
	return errors.Join(errors.ErrAdapterStartFailure, err)
}
