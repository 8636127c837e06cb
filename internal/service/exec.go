package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/cadencehost/internal/channel"
	"github.com/Iron-Ham/cadencehost/internal/errors"
	"github.com/Iron-Ham/cadencehost/internal/logging"
	"github.com/Iron-Ham/cadencehost/internal/protocol"
)

// DefaultCommand launches the Flow CLI's Cadence language server.
const DefaultCommand = "flow"

// DefaultArgs are the arguments passed to DefaultCommand.
var DefaultArgs = []string{"cadence", "language-server"}

// DefaultGracePeriod is how long Close waits after interrupting the
// process before killing it when the caller's context has no deadline.
const DefaultGracePeriod = 2 * time.Second

// maxStderrLines bounds the stderr tail kept for error reports.
const maxStderrLines = 20

// ExecFactory launches the analysis service as a subprocess speaking
// Content-Length framed JSON-RPC over stdio.
type ExecFactory struct {
	Command string
	Args    []string
	Env     []string // appended to the host environment
	Dir     string
	Logger  *logging.Logger

	// GracePeriod is how long Close waits for a voluntary exit when its
	// context has no deadline. DefaultGracePeriod when zero.
	GracePeriod time.Duration
}

// NewExecFactory returns a factory for command, or the default language
// server when command is empty.
func NewExecFactory(command string, args []string, logger *logging.Logger) *ExecFactory {
	if command == "" {
		command = DefaultCommand
		if len(args) == 0 {
			args = DefaultArgs
		}
	}
	return &ExecFactory{Command: command, Args: args, Logger: logger}
}

func (f *ExecFactory) commandLine() string {
	return strings.TrimSpace(f.Command + " " + strings.Join(f.Args, " "))
}

// Create implements Factory. The process binds the pair's service slot as
// soon as it is spawned; a pair closed in the meantime kills it.
func (f *ExecFactory) Create(ctx context.Context, pair *channel.Pair) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}

	logger := f.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	id := uuid.NewString()
	logger = logger.WithComponent("service").With("process_id", id)

	cmd := exec.Command(f.Command, f.Args...)
	cmd.Dir = f.Dir
	cmd.Env = append(os.Environ(), f.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, f.startError(id, "failed to get stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, f.startError(id, "failed to get stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, f.startError(id, "failed to get stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, f.startError(id, "failed to spawn language server", err)
	}
	logger.Info("language server spawned", "command", f.commandLine(), "pid", cmd.Process.Pid)

	p := &ExecProcess{
		id:      id,
		command: f.commandLine(),
		cmd:     cmd,
		stdin:   stdin,
		writer:  protocol.NewWriter(stdin),
		pair:    pair,
		logger:  logger,
		done:    make(chan struct{}),
		grace:   f.GracePeriod,
	}
	if p.grace <= 0 {
		p.grace = DefaultGracePeriod
	}

	p.wg.Add(2)
	go p.drainStderr(stderr)
	go p.readOutput(stdout)
	go p.monitorExit()

	if err := pair.BindService(p.deliver, p.clientClosed); err != nil {
		logger.Warn("pair closed before service bound; stopping process", "error", err)
		_ = p.Close(ctx)
		return nil, fmt.Errorf("%w: %w", errors.ErrSuperseded, err)
	}
	return p, nil
}

func (f *ExecFactory) startError(id, msg string, err error) error {
	return errors.NewServiceError(msg, errors.Join(errors.ErrServiceStartFailure, err)).
		WithProcessID(id).
		WithCommand(f.commandLine())
}

// ExecProcess is a subprocess created by ExecFactory.
type ExecProcess struct {
	id      string
	command string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writer  *protocol.Writer
	pair    *channel.Pair
	logger  *logging.Logger
	grace   time.Duration

	// wg tracks the stdout and stderr readers; monitorExit waits on it
	// before calling cmd.Wait, which closes the pipes.
	wg   sync.WaitGroup
	done chan struct{}

	mu        sync.Mutex
	closing   bool
	exitErr   error
	stderrBuf []string
}

var _ Process = (*ExecProcess)(nil)

// ID implements Process.
func (p *ExecProcess) ID() string { return p.id }

// Done implements Process.
func (p *ExecProcess) Done() <-chan struct{} { return p.done }

// Err returns the exit error once the process has exited unexpectedly,
// with the stderr tail attached.
func (p *ExecProcess) Err() error {
	select {
	case <-p.done:
	default:
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exitErr == nil || p.closing {
		return nil
	}
	return errors.NewServiceError("language server exited", p.exitErr).
		WithProcessID(p.id).
		WithCommand(p.command).
		WithStderr(strings.Join(p.stderrBuf, "\n"))
}

// Stderr returns the captured stderr tail.
func (p *ExecProcess) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.stderrBuf, "\n")
}

// deliver writes editor traffic to the subprocess.
func (p *ExecProcess) deliver(msg *protocol.Message) error {
	select {
	case <-p.done:
		return errors.ErrAdapterClosed
	default:
	}
	if err := p.writer.Write(msg); err != nil {
		return errors.NewServiceError("write to language server", err).WithProcessID(p.id)
	}
	return nil
}

func (p *ExecProcess) clientClosed() {
	p.logger.Debug("client adapter closed")
}

func (p *ExecProcess) readOutput(stdout io.Reader) {
	defer p.wg.Done()

	r := protocol.NewReader(stdout)
	for {
		msg, err := r.Read()
		if err != nil {
			if err != io.EOF {
				p.logger.Debug("language server output ended", "error", err)
			}
			return
		}
		p.handle(msg)
	}
}

func (p *ExecProcess) handle(msg *protocol.Message) {
	if msg.IsRequest() && msg.Method == protocol.MethodGetAddressCode {
		p.answerAddressCode(msg)
		return
	}
	if err := p.pair.SendToClient(msg); err != nil {
		p.logger.Warn("dropping language server message", "method", msg.Method, "error", err)
	}
}

// answerAddressCode resolves a cross-contract import locally. A miss is
// answered with empty source, never an error.
func (p *ExecProcess) answerAddressCode(req *protocol.Message) {
	var src string
	if address, ok := protocol.DecodeAddress(req.Params); ok {
		src = p.pair.Bundle().ResolveDocument(address)
	} else {
		p.logger.Warn("malformed address code request", "params", string(req.Params))
	}

	resp, err := protocol.NewResponse(req.ID, src)
	if err != nil {
		resp = protocol.NewErrorResponse(req.ID, protocol.CodeInternalError, err.Error())
	}
	if err := p.deliver(resp); err != nil {
		p.logger.Warn("failed to answer address code request", "error", err)
	}
}

func (p *ExecProcess) drainStderr(stderr io.Reader) {
	defer p.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		p.logger.Debug("language server stderr", "line", line)

		p.mu.Lock()
		p.stderrBuf = append(p.stderrBuf, line)
		if len(p.stderrBuf) > maxStderrLines {
			p.stderrBuf = p.stderrBuf[len(p.stderrBuf)-maxStderrLines:]
		}
		p.mu.Unlock()
	}
}

// monitorExit is the sole caller of cmd.Wait.
func (p *ExecProcess) monitorExit() {
	p.wg.Wait()
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	closing := p.closing
	p.mu.Unlock()
	close(p.done)

	if closing {
		p.logger.Info("language server stopped")
	} else {
		p.logger.Warn("language server exited unexpectedly", "error", err)
	}
	p.pair.ServiceClosed()
}

// Close implements Process. It closes stdin and sends an interrupt, waits
// for the process to exit and kills it once ctx ends (or after the
// factory's grace period when ctx has no deadline). Safe to call more than
// once.
func (p *ExecProcess) Close(ctx context.Context) error {
	p.mu.Lock()
	first := !p.closing
	p.closing = true
	p.mu.Unlock()
	if first {
		_ = p.stdin.Close()
		// Interrupt is not supported everywhere; the kill below still applies.
		if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Debug("failed to interrupt language server", "error", err)
		}
	}

	var grace <-chan time.Time
	if _, ok := ctx.Deadline(); !ok {
		timer := time.NewTimer(p.grace)
		defer timer.Stop()
		grace = timer.C
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
	case <-grace:
	}

	p.logger.Debug("force killing language server")
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.NewServiceError("failed to kill language server", err).WithProcessID(p.id)
	}
	<-p.done
	return nil
}
