// Package errors provides domain-specific error types for mpc.
//
// These types carry structured context (tool, helper, executable,
// handshake bytes received) that helps callers decide how to report a
// failure and which exit status to use, and gives better diagnostics
// than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrUnknownTool      = errors.New("unsupported command")
	ErrHandshakeTimeout = errors.New("forwarder handshake timed out")
	ErrNotConnected     = errors.New("not connected")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrHostKeyMismatch  = errors.New("host key mismatch")
)

// ── Rewrite preconditions ────────────────────────────────────────────

// MissingHostError means a TCP-family tool was invoked without -h,
// -h=<host> or --host=<host>.
type MissingHostError struct {
	Tool string
}

func (e *MissingHostError) Error() string {
	return fmt.Sprintf("no host found in %s command (use -h hostname)", e.Tool)
}

// MissingURLError means an HTTP-family tool was invoked without a
// usable http:// or https:// URL.
type MissingURLError struct {
	Tool   string
	Reason string // empty when no URL-shaped token was present at all
}

func (e *MissingURLError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no usable URL in %s command: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("no URL found in %s command", e.Tool)
}

// ── Forwarder / target process ───────────────────────────────────────

// HandshakeError is returned when the forwarder could not be spawned or
// did not announce a valid port.  Got is the number of handshake bytes
// read before the failure.
type HandshakeError struct {
	Helper string
	Mode   string
	Port   int
	Got    int
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("forwarder handshake (%s connect -o %s %d, %d/4 bytes): %v",
		e.Helper, e.Mode, e.Port, e.Got, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// LaunchError is returned when the target executable could not be
// started at all (not found, not executable).
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Executable, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ── Gateway / configuration ──────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "dial", "listen", "accept"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsPrecondition reports whether err was raised before any process was
// spawned (bad tool name or an argv the rewriter cannot use).
func IsPrecondition(err error) bool {
	var mh *MissingHostError
	var mu *MissingURLError
	return errors.Is(err, ErrUnknownTool) || errors.As(err, &mh) || errors.As(err, &mu)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return true // refused / unreachable gateways often come back
		}
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use mpc/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
