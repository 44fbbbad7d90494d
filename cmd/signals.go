package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/term"

	"mpc/internal/dispatch"
	"mpc/internal/runner"
	"mpc/util"
)

// NotifyContext is signal.NotifyContext that remembers which signal
// arrived: the context's cause is a *runner.Interrupted, so the runner
// can pass the same signal on to the target.
func NotifyContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		select {
		case sig := <-ch:
			cancel(&runner.Interrupted{Signal: sig})
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(ch)
		cancel(context.Canceled)
	}
}

// interruptGate decides who handles Ctrl-C.  On a terminal the
// foreground process group gets SIGINT straight from the tty, so once
// the target owns the terminal mpc leaves it alone and waits for the
// target's own exit.  At every other point, or when stdin is not a
// terminal, SIGINT cancels the run.
type interruptGate struct {
	interactive bool
	foreground  atomic.Bool // target is running and sees the tty's SIGINT
	logger      *util.Logger
}

// track is a dispatch.Dispatcher OnStateChange hook.
func (g *interruptGate) track(_, to dispatch.State) {
	g.foreground.Store(to == dispatch.Running)
}

// watch consumes sigs until ctx is done, cancelling it on the first
// interrupt the target does not own.
func (g *interruptGate) watch(ctx context.Context, sigs <-chan os.Signal, cancel context.CancelCauseFunc) {
	for {
		select {
		case sig := <-sigs:
			if g.interactive && g.foreground.Load() {
				g.logger.Debug("interrupt: left to the foreground process")
				continue
			}
			g.logger.Debug("interrupt: cancelling run")
			cancel(&runner.Interrupted{Signal: sig})
			return
		case <-ctx.Done():
			return
		}
	}
}

func newInterruptGate(ctx context.Context, interactive bool, sigs <-chan os.Signal, logger *util.Logger) (context.Context, *interruptGate, context.CancelFunc) {
	g := &interruptGate{interactive: interactive, logger: logger}
	ctx, cancel := context.WithCancelCause(ctx)
	go g.watch(ctx, sigs, cancel)
	return ctx, g, func() { cancel(context.Canceled) }
}

// withInterrupt installs the SIGINT handler for one run.  The returned
// gate must be fed the run's state changes.
func withInterrupt(ctx context.Context, logger *util.Logger) (context.Context, *interruptGate, context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	ctx, g, cancel := newInterruptGate(ctx, term.IsTerminal(int(os.Stdin.Fd())), ch, logger)
	return ctx, g, func() {
		signal.Stop(ch)
		cancel()
	}
}
