// Package runner executes a rewritten invocation and reports its exit
// status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	mpcerrors "mpc/internal/errors"
	"mpc/internal/invocation"
	"mpc/util"
)

// ExitLaunchFailed is the status reported when the target could not be
// started at all, as a shell does for a missing command.
const ExitLaunchFailed = 127

// Runner runs an invocation to completion.
type Runner interface {
	// Run returns the target's exit status.  A non-nil error means the
	// status could not be determined; *errors.LaunchError means the
	// target never started.
	Run(ctx context.Context, inv invocation.Invocation) (int, error)
}

// Exec runs invocations as child processes with inherited stdio.
type Exec struct {
	Stdin          io.Reader // default os.Stdin
	Stdout, Stderr io.Writer // default os.Stdout / os.Stderr

	// GracePeriod is how long a child has to exit after ctx is
	// cancelled and it has been signalled, before it is killed.
	GracePeriod time.Duration
	Logger      *util.Logger
}

// Run starts the child and waits for it.  Signal deaths are reported
// as 128+signal.
func (e *Exec) Run(ctx context.Context, inv invocation.Invocation) (int, error) {
	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...)
	cmd.Env = inv.Environ(os.Environ())
	cmd.Stdin, cmd.Stdout, cmd.Stderr = e.Stdin, e.Stdout, e.Stderr
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Cancel = func() error { return interrupt(cmd.Process, forwardedSignal(ctx)) }
	cmd.WaitDelay = e.GracePeriod

	e.Logger.Debug("run: %s", inv)
	if err := cmd.Start(); err != nil {
		return ExitLaunchFailed, &mpcerrors.LaunchError{Executable: inv.Executable, Err: err}
	}

	err := cmd.Wait()
	if cmd.ProcessState == nil {
		return 1, fmt.Errorf("wait %s: %w", inv.Executable, err)
	}
	code := exitStatus(cmd.ProcessState)

	var ee *exec.ExitError
	switch {
	case err == nil, errors.As(err, &ee):
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.Logger.Debug("run: %s stopped after cancellation", inv.Executable)
	default:
		// stdio copy failures and WaitDelay overruns
		e.Logger.Warn("%s: %v", inv.Executable, err)
	}
	e.Logger.Verbose("%s exited with status %d", inv.Executable, code)
	return code, nil
}

// Interrupted is a cancellation cause naming the signal that stopped
// mpc.  A run cancelled with it passes the same signal to its child.
type Interrupted struct {
	Signal os.Signal
}

func (e *Interrupted) Error() string {
	return "interrupted by " + e.Signal.String()
}

// forwardedSignal is the signal a cancelled child is sent: the one in
// ctx's cause, else SIGINT.
func forwardedSignal(ctx context.Context) os.Signal {
	var in *Interrupted
	if errors.As(context.Cause(ctx), &in) && in.Signal != nil {
		return in.Signal
	}
	return os.Interrupt
}

// Printer writes the invocation instead of running it.
type Printer struct {
	W io.Writer
}

// Run prints inv as a shell command line and reports success.
func (p Printer) Run(_ context.Context, inv invocation.Invocation) (int, error) {
	if _, err := fmt.Fprintln(p.W, inv.String()); err != nil {
		return 1, err
	}
	return 0, nil
}
