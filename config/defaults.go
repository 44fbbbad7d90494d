package config

import (
	"time"

	"mpc/internal/forwarder"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultForwarder is the helper spawned as "<helper> connect -o
	// <mode> <port>".
	DefaultForwarder = forwarder.DefaultExecutable

	// DefaultHandshakeTimeout bounds the wait for the helper's 4-byte
	// port.
	DefaultHandshakeTimeout = forwarder.DefaultTimeout

	// DefaultGracePeriod is how long a helper or target has between
	// the polite signal and SIGKILL.
	DefaultGracePeriod = forwarder.DefaultGracePeriod

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the SSH gateway connection timeout.
	DefaultConnTimeout = 15 * time.Second

	// DefaultConfigDir is joined to $XDG_CONFIG_HOME or ~/.config.
	DefaultConfigDir = "mpc"

	// DefaultConfigFile is the config file name inside DefaultConfigDir.
	DefaultConfigFile = "config.yaml"
)
