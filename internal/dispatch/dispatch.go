// Package dispatch runs one wrapped command: it rewrites the command
// line, starts the forwarder the rewritten command talks to, runs the
// command and tears the forwarder down again.
//
// A run moves through
//
//	Idle → ForwarderStarting → Running → Terminating → Done
//
// and always reaches Done, whether the command exits, fails to launch,
// is cancelled or panics.  Commands rejected while inspecting argv never
// leave Idle and never spawn anything.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	mpcerrors "mpc/internal/errors"
	"mpc/internal/forwarder"
	"mpc/internal/invocation"
	"mpc/internal/metrics"
	"mpc/internal/rewrite"
	"mpc/internal/runner"
	"mpc/internal/tool"
	"mpc/util"
)

// ExitFailure is reported when mpc itself fails before or instead of
// running the target.
const ExitFailure = 1

// State is a step in a run's lifecycle.
type State int

const (
	Idle State = iota
	ForwarderStarting
	Running
	Terminating
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ForwarderStarting:
		return "forwarder-starting"
	case Running:
		return "running"
	case Terminating:
		return "terminating"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is what a run reports to the shell.
type Outcome struct {
	// ExitCode is the target's status verbatim, 128+signal for a
	// target killed by a signal, 127 when it could not be launched and
	// 1 when mpc failed first.
	ExitCode int
	// LaunchFailed is set when the target never started.
	LaunchFailed bool
}

// Dispatcher wires a tool registry, a forwarder and a runner together.
// A Dispatcher may be used for several runs, sequentially or not; each
// run has its own state.
type Dispatcher struct {
	Tools     *tool.Registry
	Forwarder forwarder.Forwarder
	Runner    runner.Runner

	// Helper is the forwarder executable named in ssh ProxyCommands.
	Helper string

	Logger  *util.Logger
	Metrics *metrics.Collector

	// OnStateChange, if set, is called on every transition of every
	// run.  It must not block.
	OnStateChange func(from, to State)
}

// Run dispatches argv to the tool called name.  The returned error
// explains a non-zero ExitCode that was not the target's own doing;
// the Outcome is meaningful either way.
func (d *Dispatcher) Run(ctx context.Context, name string, argv []string) (Outcome, error) {
	t, err := d.Tools.Lookup(name)
	if err != nil {
		return d.reject(err)
	}

	r := &run{d: d}
	if t.Class == tool.ClassSSH {
		inv := rewrite.SSH(t, argv, d.helper())
		d.Logger.Verbose("%s: running through %s", t.Name, d.helper())
		r.to(Running)
		defer r.release(nil)
		return d.execute(ctx, inv)
	}

	plan, err := rewrite.For(t, argv)
	if err != nil {
		return d.reject(err)
	}
	d.Logger.Verbose("%s", plan)

	r.to(ForwarderStarting)
	h, err := d.Forwarder.Start(ctx, plan.Request())
	if err != nil {
		r.release(nil)
		d.Metrics.RunFinished(ExitFailure)
		return Outcome{ExitCode: ExitFailure}, fmt.Errorf("start forwarder: %w", err)
	}
	defer r.release(h)

	r.to(Running)
	d.Logger.Verbose("forwarder listening on %s", util.FormatAddr(util.LocalHost, h.Port()))
	return d.execute(ctx, plan.Invocation(h.Port()))
}

func (d *Dispatcher) execute(ctx context.Context, inv invocation.Invocation) (Outcome, error) {
	code, err := d.Runner.Run(ctx, inv)
	out := Outcome{ExitCode: code}

	var le *mpcerrors.LaunchError
	if mpcerrors.As(err, &le) {
		out = Outcome{ExitCode: runner.ExitLaunchFailed, LaunchFailed: true}
		d.Metrics.LaunchFailed()
	}
	if err != nil {
		d.Metrics.RecordError(err.Error())
	}
	d.Metrics.RunFinished(out.ExitCode)
	return out, err
}

func (d *Dispatcher) reject(err error) (Outcome, error) {
	d.Metrics.RecordError(err.Error())
	d.Metrics.RunFinished(ExitFailure)
	return Outcome{ExitCode: ExitFailure}, err
}

func (d *Dispatcher) helper() string {
	if d.Helper == "" {
		return forwarder.DefaultExecutable
	}
	return d.Helper
}

// run tracks the state of a single dispatch.
type run struct {
	d     *Dispatcher
	state State
	once  sync.Once
}

func (r *run) to(next State) {
	prev := r.state
	r.state = next
	r.d.Logger.Debug("dispatch: %s → %s", prev, next)
	if r.d.OnStateChange != nil {
		r.d.OnStateChange(prev, next)
	}
}

// release moves the run through Terminating to Done and closes h, if
// any.  Close errors are logged; they never change the exit code.
func (r *run) release(h forwarder.Handle) {
	r.once.Do(func() {
		r.to(Terminating)
		if h != nil {
			start := time.Now()
			if err := h.Close(); err != nil {
				r.d.Logger.Warn("forwarder: %v", err)
				r.d.Metrics.RecordError(err.Error())
			} else {
				r.d.Logger.Debug("forwarder: stopped in %v", time.Since(start).Round(time.Millisecond))
			}
		}
		r.to(Done)
	})
}
