package forwarder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	mpcerrors "mpc/internal/errors"
	"mpc/internal/metrics"
	"mpc/util"
)

// Defaults for Process.
const (
	DefaultExecutable  = "mp"
	DefaultTimeout     = 30 * time.Second
	DefaultGracePeriod = 5 * time.Second
)

// handshakeLen is the size of the port announcement.
const handshakeLen = 4

// Process spawns "<Executable> connect -o <mode> <port>" and waits for
// the helper to write its listening port to stdout as a big-endian
// uint32.
type Process struct {
	Executable  string        // default DefaultExecutable
	Env         []string      // appended to os.Environ for the helper
	Stderr      io.Writer     // helper diagnostics; nil discards them
	Timeout     time.Duration // handshake bound; 0 waits forever
	GracePeriod time.Duration // SIGTERM → SIGKILL delay; default DefaultGracePeriod
	Logger      *util.Logger
	Metrics     *metrics.Collector
}

// Start spawns the helper and completes the handshake.  Every failure
// after the helper was spawned terminates and reaps it before Start
// returns.  Errors are *errors.HandshakeError; a timeout also matches
// errors.ErrHandshakeTimeout and cancellation matches ctx.Err().
func (p *Process) Start(ctx context.Context, req Request) (Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	exe := p.Executable
	if exe == "" {
		exe = DefaultExecutable
	}
	fail := func(got int, err error) error {
		p.Metrics.HandshakeFailed()
		p.Metrics.RecordError(err.Error())
		return &mpcerrors.HandshakeError{Helper: exe, Mode: string(req.Mode), Port: req.Port, Got: got, Err: err}
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fail(0, err)
	}

	cmd := p.command(exe, req)
	cmd.Stdout = stdoutW

	p.Logger.Verbose("forwarder: starting %s", cmd.String())
	start := time.Now()
	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fail(0, err)
	}
	// The helper holds its own copy; ours must go so EOF can be seen.
	stdoutW.Close()

	h := newProcessHandle(cmd, stdoutR, p.grace(), p.Logger)

	port, got, err := p.readPort(ctx, stdoutR)
	if err != nil {
		if cerr := h.terminate(); cerr != nil {
			p.Logger.Debug("forwarder: cleanup after failed handshake: %v", cerr)
		}
		return nil, fail(got, err)
	}
	h.port = port
	h.metrics = p.Metrics

	// Nobody reads the helper's stdout after the handshake; keep the pipe
	// from filling up.
	go io.Copy(io.Discard, stdoutR) //nolint:errcheck

	elapsed := time.Since(start)
	p.Metrics.ForwarderStarted(elapsed)
	p.Logger.Verbose("forwarder: pid %d listening on %s after %v",
		cmd.Process.Pid, util.FormatAddr(util.LocalHost, port), elapsed.Truncate(time.Millisecond))
	return h, nil
}

// command builds the helper invocation.  A nil Stderr is left nil so
// the helper writes straight to the null device.
func (p *Process) command(exe string, req Request) *exec.Cmd {
	cmd := exec.Command(exe, "connect", "-o", string(req.Mode), strconv.Itoa(req.Port))
	if p.Stderr != nil {
		cmd.Stderr = p.Stderr
	}
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	setProcessGroup(cmd)
	return cmd
}

func (p *Process) grace() time.Duration {
	if p.GracePeriod > 0 {
		return p.GracePeriod
	}
	return DefaultGracePeriod
}

// countingReader records how many bytes passed through it so a timed
// out handshake can still report progress.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n.Add(int64(n))
	return n, err
}

// readPort reads the 4-byte announcement, bounded by p.Timeout and ctx.
func (p *Process) readPort(ctx context.Context, r io.Reader) (port, got int, err error) {
	cr := &countingReader{r: r}
	buf := make([]byte, handshakeLen)
	done := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(cr, buf)
		done <- err
	}()

	var timeout <-chan time.Time
	if p.Timeout > 0 {
		t := time.NewTimer(p.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case err := <-done:
		got = int(cr.n.Load())
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, got, fmt.Errorf("helper closed stdout before announcing its port: %w", io.ErrUnexpectedEOF)
		}
		if err != nil {
			return 0, got, err
		}
	case <-timeout:
		return 0, int(cr.n.Load()), fmt.Errorf("no port after %v: %w", p.Timeout, mpcerrors.ErrHandshakeTimeout)
	case <-ctx.Done():
		return 0, int(cr.n.Load()), ctx.Err()
	}

	v := binary.BigEndian.Uint32(buf)
	if v == 0 || v > 65535 {
		return 0, got, fmt.Errorf("helper announced invalid port %d", v)
	}
	return int(v), got, nil
}

// processHandle owns a running helper.
type processHandle struct {
	cmd     *exec.Cmd
	stdout  *os.File
	port    int
	grace   time.Duration
	logger  *util.Logger
	metrics *metrics.Collector

	exited  chan struct{}
	waitErr error

	once     sync.Once
	closeErr error
}

func newProcessHandle(cmd *exec.Cmd, stdout *os.File, grace time.Duration, logger *util.Logger) *processHandle {
	h := &processHandle{
		cmd:    cmd,
		stdout: stdout,
		grace:  grace,
		logger: logger,
		exited: make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.exited)
	}()
	return h
}

func (h *processHandle) Port() int { return h.port }

// Close terminates the helper's process group and reaps it.
func (h *processHandle) Close() error {
	h.once.Do(func() {
		h.closeErr = h.terminate()
		h.metrics.ForwarderStopped()
	})
	return h.closeErr
}

// terminate sends SIGTERM, escalates to SIGKILL after the grace period
// and waits for the helper to be reaped.  An exit caused by our own
// signal is not an error; an exit the helper chose on its own is.
func (h *processHandle) terminate() error {
	defer h.stdout.Close()

	select {
	case <-h.exited:
		return h.unexpectedExit()
	default:
	}

	pid := h.cmd.Process.Pid
	h.logger.Debug("forwarder: terminating pid %d", pid)
	if err := terminateGroup(h.cmd); err != nil {
		h.logger.Debug("forwarder: SIGTERM pid %d: %v", pid, err)
	}

	timer := time.NewTimer(h.grace)
	defer timer.Stop()
	select {
	case <-h.exited:
		return nil
	case <-timer.C:
	}

	h.logger.Warn("forwarder: pid %d ignored SIGTERM for %v, killing", pid, h.grace)
	if err := killGroup(h.cmd); err != nil {
		h.logger.Debug("forwarder: SIGKILL pid %d: %v", pid, err)
	}
	<-h.exited
	return nil
}

func (h *processHandle) unexpectedExit() error {
	if h.waitErr != nil {
		return fmt.Errorf("forwarder exited early: %w", h.waitErr)
	}
	return nil
}
