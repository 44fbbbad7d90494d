// Package metrics provides lightweight, lock-free counters for tracking
// what an mpc run did: forwarders started and stopped, handshake
// latency, relayed connections and bytes, and errors.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for an mpc run.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	runsTotal         atomic.Int64
	launchFailures    atomic.Int64
	forwardersActive  atomic.Int64
	forwardersTotal   atomic.Int64
	handshakeFailures atomic.Int64
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	gatewayRetries    atomic.Int64
	errorsTotal       atomic.Int64

	mu            sync.RWMutex
	startTime     time.Time
	lastHandshake time.Duration
	lastExitCode  int
	lastError     time.Time
	lastErrorMsg  string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Run metrics ──────────────────────────────────────────────────────

// RunFinished records one dispatched command and its exit code.
func (c *Collector) RunFinished(exitCode int) {
	if c == nil {
		return
	}
	c.runsTotal.Add(1)
	c.mu.Lock()
	c.lastExitCode = exitCode
	c.mu.Unlock()
}

// LaunchFailed records a target that could not be started.
func (c *Collector) LaunchFailed() {
	if c == nil {
		return
	}
	c.launchFailures.Add(1)
}

// Runs returns the number of finished runs.
func (c *Collector) Runs() int64 {
	if c == nil {
		return 0
	}
	return c.runsTotal.Load()
}

// ── Forwarder metrics ────────────────────────────────────────────────

// ForwarderStarted records a completed handshake and how long it took.
func (c *Collector) ForwarderStarted(handshake time.Duration) {
	if c == nil {
		return
	}
	c.forwardersActive.Add(1)
	c.forwardersTotal.Add(1)
	c.mu.Lock()
	c.lastHandshake = handshake
	c.mu.Unlock()
}

// ForwarderStopped decrements the active forwarder gauge.
func (c *Collector) ForwarderStopped() {
	if c == nil {
		return
	}
	c.forwardersActive.Add(-1)
}

// HandshakeFailed records a forwarder that never announced its port.
func (c *Collector) HandshakeFailed() {
	if c == nil {
		return
	}
	c.handshakeFailures.Add(1)
}

// ActiveForwarders returns the number of forwarders not yet stopped.
func (c *Collector) ActiveForwarders() int64 {
	if c == nil {
		return 0
	}
	return c.forwardersActive.Load()
}

// TotalForwarders returns the number of forwarders ever started.
func (c *Collector) TotalForwarders() int64 {
	if c == nil {
		return 0
	}
	return c.forwardersTotal.Load()
}

// HandshakeFailures returns the number of failed handshakes.
func (c *Collector) HandshakeFailures() int64 {
	if c == nil {
		return 0
	}
	return c.handshakeFailures.Load()
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the gateway.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the gateway.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Gateway metrics ──────────────────────────────────────────────────

// GatewayRetry records one failed gateway connect attempt that will be
// retried.
func (c *Collector) GatewayRetry() {
	if c == nil {
		return
	}
	c.gatewayRetries.Add(1)
}

// GatewayRetries returns the total gateway retry count.
func (c *Collector) GatewayRetries() int64 {
	if c == nil {
		return 0
	}
	return c.gatewayRetries.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	Runs              int64  `json:"runs"`
	LastExitCode      int    `json:"last_exit_code"`
	LaunchFailures    int64  `json:"launch_failures"`
	ForwardersActive  int64  `json:"forwarders_active"`
	ForwardersTotal   int64  `json:"forwarders_total"`
	HandshakeFailures int64  `json:"handshake_failures"`
	LastHandshake     string `json:"last_handshake,omitempty"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	GatewayRetries    int64  `json:"gateway_retries"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Millisecond).String(),
		Runs:              c.runsTotal.Load(),
		LastExitCode:      c.lastExitCode,
		LaunchFailures:    c.launchFailures.Load(),
		ForwardersActive:  c.forwardersActive.Load(),
		ForwardersTotal:   c.forwardersTotal.Load(),
		HandshakeFailures: c.handshakeFailures.Load(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		GatewayRetries:    c.gatewayRetries.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if c.forwardersTotal.Load() > 0 {
		s.LastHandshake = c.lastHandshake.String()
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
