package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the MPC_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("1m30s") or a bare number of seconds.

// Keep reports whether the setting behind the named flag was given
// explicitly and must not be overridden by a lower layer.  A nil Keep
// keeps nothing.
type Keep func(flag string) bool

func (k Keep) has(flag string) bool { return k != nil && k(flag) }

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value, and never a setting keep
// claims.
func LoadFromEnv(cfg *Config, keep Keep) error {
	if v := os.Getenv("MPC_FORWARDER"); v != "" && !keep.has("forwarder") {
		cfg.Forwarder = v
	}
	if v := os.Getenv("MPC_HANDSHAKE_TIMEOUT"); v != "" && !keep.has("handshake-timeout") {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("MPC_HANDSHAKE_TIMEOUT: %w", err)
		}
		cfg.HandshakeTimeout = d
	}
	if v := os.Getenv("MPC_GRACE_PERIOD"); v != "" && !keep.has("grace-period") {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("MPC_GRACE_PERIOD: %w", err)
		}
		cfg.GracePeriod = d
	}

	// SSH gateway
	if v := os.Getenv("MPC_SSH_GATEWAY"); v != "" && !keep.has("ssh-gateway") {
		cfg.GatewaySpec = v
	}
	if v := os.Getenv("MPC_SSH_KEY"); v != "" && !keep.has("ssh-key") {
		cfg.SSHKeyPath = v
	}
	if envBool("MPC_SSH_PASSWORD") && !keep.has("ssh-password") {
		cfg.SSHPassword = true
	}
	if envBool("MPC_SSH_AGENT") && !keep.has("ssh-agent") {
		cfg.UseSSHAgent = true
	}
	if envBool("MPC_STRICT_HOSTKEY") && !keep.has("strict-hostkey") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("MPC_KNOWN_HOSTS"); v != "" && !keep.has("known-hosts") {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("MPC_VERBOSE"); v > 0 && !keep.has("verbose") {
		cfg.Verbose = v
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
