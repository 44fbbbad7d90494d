package forwarder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"mpc/internal/metrics"
	"mpc/internal/retry"
	"mpc/tunnel"
	"mpc/util"
)

// SSH forwards TCP requests through an SSH gateway instead of spawning
// the helper.  It listens on 127.0.0.1 and relays every accepted
// connection to Request.Host:Request.Port over the tunnel.
type SSH struct {
	// NewTunnel returns a fresh, unconnected tunnel for each Start.
	NewTunnel func() tunnel.Tunnel
	Backoff   *retry.Backoff // nil means retry.GatewayBackoff()
	Logger    *util.Logger
	Metrics   *metrics.Collector
}

// Start connects to the gateway and begins accepting local connections.
// Only ModeTCP requests are supported.
func (s *SSH) Start(ctx context.Context, req Request) (Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Mode != ModeTCP {
		return nil, fmt.Errorf("ssh gateway forwards tcp only, not %s", req.Mode)
	}
	if req.Host == "" {
		return nil, fmt.Errorf("ssh gateway needs a remote host")
	}

	ln, port, err := util.ListenLoopback()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tun := s.NewTunnel()
	mgr := &tunnel.Manager{
		Tunnel:  tun,
		Backoff: s.Backoff,
		Logger:  s.Logger,
		OnRetry: func(attempt int, err error) {
			s.Metrics.GatewayRetry()
			s.Logger.Warn("gateway: attempt %d failed: %v", attempt, err)
		},
		// Without a gateway every relay would fail; stop accepting.
		OnLost: func(error) { ln.Close() },
	}
	if err := mgr.Start(ctx); err != nil {
		ln.Close()
		mgr.Stop() //nolint:errcheck
		s.Metrics.HandshakeFailed()
		s.Metrics.RecordError(err.Error())
		return nil, fmt.Errorf("ssh gateway: %w", err)
	}

	rctx, cancel := context.WithCancel(context.Background())
	h := &sshHandle{
		port:    port,
		target:  util.FormatAddr(req.Host, req.Port),
		ln:      ln,
		mgr:     mgr,
		tun:     tun,
		ctx:     rctx,
		cancel:  cancel,
		logger:  s.Logger,
		metrics: s.Metrics,
	}

	h.wg.Add(1)
	go h.acceptLoop()

	elapsed := time.Since(start)
	s.Metrics.ForwarderStarted(elapsed)
	s.Logger.Verbose("forwarder: %s relaying to %s via gateway after %v",
		ln.Addr(), h.target, elapsed.Truncate(time.Millisecond))
	return h, nil
}

type sshHandle struct {
	port    int
	target  string
	ln      net.Listener
	mgr     *tunnel.Manager
	tun     tunnel.Tunnel
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *util.Logger
	metrics *metrics.Collector

	wg       sync.WaitGroup
	once     sync.Once
	closeErr error
}

func (h *sshHandle) Port() int { return h.port }

// Close stops accepting, waits for relays to finish and closes the
// gateway connection.
func (h *sshHandle) Close() error {
	h.once.Do(func() {
		h.cancel()
		h.ln.Close()
		h.wg.Wait()
		h.closeErr = h.mgr.Stop()
		h.metrics.ForwarderStopped()
	})
	return h.closeErr
}

func (h *sshHandle) acceptLoop() {
	defer h.wg.Done()
	for {
		conn, err := h.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				h.logger.Error("forwarder: accept: %v", err)
			}
			return
		}
		h.wg.Add(1)
		go h.relay(conn)
	}
}

// relay bridges one local connection to the remote target.
func (h *sshHandle) relay(local net.Conn) {
	defer h.wg.Done()
	defer local.Close()

	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	start := time.Now()
	remote, err := h.tun.Dial(h.ctx, "tcp", h.target)
	if err != nil {
		h.logger.Error("forwarder: dial %s: %v", h.target, err)
		h.metrics.RecordError(err.Error())
		return
	}

	mc := &meteredConn{Conn: local, metrics: h.metrics}
	if err := util.BidirectionalCopy(h.ctx, remote, mc, mc); err != nil {
		h.logger.Debug("forwarder: relay %s: %v", h.target, err)
	}
	h.logger.Debug("forwarder: %s closed after %v (in=%d out=%d)",
		local.RemoteAddr(), time.Since(start).Truncate(time.Millisecond), mc.in, mc.out)
}

// meteredConn counts bytes moving between the local client and the
// gateway.  Writes to it are bytes received from the gateway.
type meteredConn struct {
	net.Conn
	metrics *metrics.Collector
	in, out int64 // owned by the relay's two copy goroutines
}

func (m *meteredConn) Read(b []byte) (int, error) {
	n, err := m.Conn.Read(b)
	m.out += int64(n)
	m.metrics.BytesSent(int64(n))
	return n, err
}

func (m *meteredConn) Write(b []byte) (int, error) {
	n, err := m.Conn.Write(b)
	m.in += int64(n)
	m.metrics.BytesReceived(int64(n))
	return n, err
}
