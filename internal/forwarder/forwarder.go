// Package forwarder starts the local endpoint a rewritten command is
// pointed at.
//
// The usual implementation is Process, which spawns the external helper
// ("mp connect -o <mode> <port>") and learns its ephemeral port from a
// 4-byte big-endian handshake on the helper's stdout.  SSH is an
// in-process alternative that relays through an SSH gateway, and Static
// hands out a fixed port without starting anything.
//
// Whatever the implementation, the returned Handle owns the forwarder:
// Close terminates and reaps it, exactly once.
package forwarder

import (
	"context"
	"fmt"
	"strings"

	"mpc/util"
)

// Mode is the kind of traffic the forwarder carries.
type Mode string

const (
	ModeTCP   Mode = "tcp"
	ModeHTTP  Mode = "http"
	ModeHTTPS Mode = "https"
)

// ParseMode accepts tcp, http or https in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeTCP, ModeHTTP, ModeHTTPS:
		return m, nil
	}
	return "", fmt.Errorf("unknown forwarder mode %q (want tcp, http or https)", s)
}

// Request describes the forwarder to start.  Mode and Port are what the
// external helper is told; Host is the remote host named on the command
// line and is only used by forwarders that dial it themselves.
type Request struct {
	Mode Mode
	Port int
	Host string
}

// Validate rejects unknown modes and ports outside 1-65535.
func (r Request) Validate() error {
	if _, err := ParseMode(string(r.Mode)); err != nil {
		return err
	}
	if !util.ValidPort(r.Port) {
		return fmt.Errorf("forwarder port %d out of range 1-65535", r.Port)
	}
	return nil
}

func (r Request) String() string {
	if r.Host == "" {
		return fmt.Sprintf("%s %d", r.Mode, r.Port)
	}
	return fmt.Sprintf("%s %s", r.Mode, util.FormatAddr(r.Host, r.Port))
}

// Handle is a running forwarder.
type Handle interface {
	// Port is the local port the forwarder listens on.
	Port() int
	// Close stops the forwarder and waits for it.  Later calls return
	// the first call's result.
	Close() error
}

// Forwarder starts forwarders.
type Forwarder interface {
	Start(ctx context.Context, req Request) (Handle, error)
}
