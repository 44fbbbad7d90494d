package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mpcerrors "mpc/internal/errors"
	"mpc/internal/invocation"
	"mpc/util"
)

// MPC_TEST_TARGET turns the test binary into a target program:
//
//	exit:<n>   exit with status n
//	env:<key>  print the value of key
//	args       print the arguments, one per line
//	kill       terminate itself with SIGKILL
//	trap       exit 42 on SIGINT, 43 on SIGTERM
const targetEnv = "MPC_TEST_TARGET"

func TestMain(m *testing.M) {
	if mode := os.Getenv(targetEnv); mode != "" {
		targetMain(mode)
		return
	}
	os.Exit(m.Run())
}

func targetMain(mode string) {
	name, arg, _ := strings.Cut(mode, ":")
	switch name {
	case "exit":
		n, _ := strconv.Atoi(arg)
		os.Exit(n)
	case "env":
		fmt.Print(os.Getenv(arg))
	case "args":
		for _, a := range os.Args[1:] {
			fmt.Println(a)
		}
	case "kill":
		p, _ := os.FindProcess(os.Getpid())
		p.Kill() //nolint:errcheck
		time.Sleep(time.Minute)
	case "trap":
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		fmt.Println("ready")
		if <-ch == syscall.SIGTERM {
			os.Exit(43)
		}
		os.Exit(42)
	}
	os.Exit(0)
}

func target(t *testing.T, mode string, args ...string) invocation.Invocation {
	t.Helper()
	t.Setenv(targetEnv, mode)
	return invocation.New(os.Args[0], args)
}

func newExec(stdout *bytes.Buffer) *Exec {
	return &Exec{
		Stdin:       strings.NewReader(""),
		Stdout:      stdout,
		Stderr:      &bytes.Buffer{},
		GracePeriod: 2 * time.Second,
		Logger:      util.NewLogger(0),
	}
}

func TestExec_ExitCodeVerbatim(t *testing.T) {
	for _, code := range []int{0, 1, 3, 77} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			got, err := newExec(&bytes.Buffer{}).Run(context.Background(), target(t, "exit:"+strconv.Itoa(code)))
			require.NoError(t, err)
			assert.Equal(t, code, got)
		})
	}
}

func TestExec_ArgsAndEnv(t *testing.T) {
	var out bytes.Buffer
	inv := target(t, "args", "-h", "localhost", "-p", "9000", "my db")
	_, err := newExec(&out).Run(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "-h\nlocalhost\n-p\n9000\nmy db\n", out.String())

	out.Reset()
	inv = target(t, "env:https_proxy").WithEnv("https_proxy", "https://localhost:9001")
	_, err = newExec(&out).Run(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "https://localhost:9001", out.String())
}

func TestExec_SignalDeath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no signals on windows")
	}
	got, err := newExec(&bytes.Buffer{}).Run(context.Background(), target(t, "kill"))
	require.NoError(t, err)
	assert.Equal(t, 128+int(syscall.SIGKILL), got)
}

func TestExec_LaunchFailure(t *testing.T) {
	inv := invocation.New("mpc-test-no-such-tool", nil)
	got, err := newExec(&bytes.Buffer{}).Run(context.Background(), inv)

	assert.Equal(t, ExitLaunchFailed, got)
	var le *mpcerrors.LaunchError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "mpc-test-no-such-tool", le.Executable)
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

// runTrapped starts the trap target, waits for its handler and then
// calls cancel.
func runTrapped(t *testing.T, ctx context.Context, cancel func()) int {
	t.Helper()
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pr.Close()
	defer pw.Close()

	e := newExec(nil)
	e.Stdout = pw
	inv := target(t, "trap")
	done := make(chan int, 1)
	go func() {
		code, _ := e.Run(ctx, inv)
		done <- code
	}()

	buf := make([]byte, len("ready\n"))
	_, err = pr.Read(buf)
	require.NoError(t, err)
	cancel()

	select {
	case code := <-done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
		return 0
	}
}

func TestExec_CancelSendsInterrupt(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("os.Interrupt cannot be sent on windows")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Equal(t, 42, runTrapped(t, ctx, cancel), "child should see SIGINT, not SIGKILL")
}

func TestExec_CancelForwardsReceivedSignal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signals cannot be sent on windows")
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	code := runTrapped(t, ctx, func() { cancel(&Interrupted{Signal: syscall.SIGTERM}) })
	assert.Equal(t, 43, code, "child should see the SIGTERM mpc received")
}

func TestForwardedSignal(t *testing.T) {
	assert.Equal(t, os.Interrupt, forwardedSignal(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, os.Interrupt, forwardedSignal(ctx))

	parent, cancelCause := context.WithCancelCause(context.Background())
	child, stop := context.WithCancel(parent)
	defer stop()
	cancelCause(&Interrupted{Signal: syscall.SIGHUP})
	assert.Equal(t, syscall.SIGHUP, forwardedSignal(child), "cause reaches derived contexts")
	assert.EqualError(t, context.Cause(child), "interrupted by hangup")
}

func TestPrinter(t *testing.T) {
	var out bytes.Buffer
	inv := invocation.New("psql", []string{"-h", "localhost", "-p", "9000", "my db"})
	code, err := Printer{W: &out}.Run(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "psql -h localhost -p 9000 'my db'\n", out.String())
}
