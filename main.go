// mpc runs client tools through the mp connect forwarder.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"mpc/cmd"
)

func main() {
	// SIGINT is handled per run in cmd; see withInterrupt.  SIGTERM and
	// SIGHUP are passed on to the target as they arrived.
	ctx, cancel := cmd.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGHUP)

	code, err := cmd.Execute(ctx, os.Args[1:])
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mpc: %v\n", err)
	}
	os.Exit(code)
}
