// Package config defines the runtime configuration for mpc and provides
// helpers for parsing the SSH gateway address.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	mpcerrors "mpc/internal/errors"
	"mpc/internal/tool"
)

// Config holds every tuneable for a single mpc run.
type Config struct {
	// ── Forwarder ────────────────────────────────────────────────────
	Forwarder        string        // helper executable, "mp" unless overridden
	HandshakeTimeout time.Duration // bound on reading the helper's port
	GracePeriod      time.Duration // SIGTERM → SIGKILL delay, for helper and target

	// ── SSH gateway ──────────────────────────────────────────────────
	GatewaySpec    string // raw [user@]host[:port] from --ssh-gateway
	GatewayEnabled bool
	GatewayUser    string
	GatewayHost    string
	GatewayPort    int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Tools ────────────────────────────────────────────────────────
	Tools []tool.Tool // custom tools from the config file

	// ── Run ──────────────────────────────────────────────────────────
	ConfigPath string
	DryRun     bool
	List       bool
	Tool       string
	Args       []string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Defaults returns a Config populated from defaults.go.
func Defaults() *Config {
	return &Config{
		Forwarder:        DefaultForwarder,
		HandshakeTimeout: DefaultHandshakeTimeout,
		GracePeriod:      DefaultGracePeriod,
	}
}

// ── Gateway-spec parser ──────────────────────────────────────────────

// gatewayRe matches [user@]host[:port].
var gatewayRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:@]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := gatewayRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid gateway spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid gateway port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ResolveGateway parses GatewaySpec into the Gateway* fields.
func (c *Config) ResolveGateway() error {
	if c.GatewaySpec == "" {
		c.GatewayEnabled = false
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.GatewaySpec)
	if err != nil {
		return fmt.Errorf("ssh gateway: %w", err)
	}
	c.GatewayEnabled = true
	c.GatewayUser, c.GatewayHost, c.GatewayPort = user, host, port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if !c.List && c.Tool == "" {
		return fmt.Errorf("tool name is required (hint: mpc --list shows supported tools)")
	}
	if c.Forwarder == "" && !c.GatewayEnabled {
		return &mpcerrors.ConfigError{Field: "forwarder", Message: "helper executable is empty", Hint: "--forwarder mp"}
	}
	if c.HandshakeTimeout < 0 {
		return &mpcerrors.ConfigError{Field: "handshake-timeout", Value: c.HandshakeTimeout, Message: "must not be negative"}
	}
	if c.GracePeriod < 0 {
		return &mpcerrors.ConfigError{Field: "grace-period", Value: c.GracePeriod, Message: "must not be negative"}
	}
	if c.GatewayEnabled && c.GatewayHost == "" {
		return fmt.Errorf("ssh gateway host is required")
	}
	if !c.GatewayEnabled && (c.SSHKeyPath != "" || c.SSHPassword || c.UseSSHAgent) {
		return &mpcerrors.ConfigError{
			Field:   "ssh-gateway",
			Message: "ssh authentication options need a gateway",
			Hint:    "--ssh-gateway user@bastion",
		}
	}
	if c.DryRun && c.SSHPassword {
		return fmt.Errorf("--ssh-password cannot be used with --dry-run")
	}
	for _, t := range c.Tools {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}
