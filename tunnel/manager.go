package tunnel

import (
	"context"
	"errors"
	"sync"
	"time"

	mpcerrors "mpc/internal/errors"
	"mpc/internal/retry"
	"mpc/util"
)

// DefaultHealthInterval is how often a Manager probes the gateway.
const DefaultHealthInterval = 10 * time.Second

// Manager connects a Tunnel with retries and watches it afterwards.
type Manager struct {
	Tunnel         Tunnel
	Backoff        *retry.Backoff // nil means retry.GatewayBackoff()
	HealthInterval time.Duration  // 0 means DefaultHealthInterval
	Logger         *util.Logger

	// OnRetry is called after every failed connect attempt that will be
	// retried.  OnLost is called once if the gateway goes away while the
	// manager is running.
	OnRetry func(attempt int, err error)
	OnLost  func(err error)

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Start connects the tunnel and begins background health checks.
// Authentication and host-key failures are not retried.
func (m *Manager) Start(ctx context.Context) error {
	b := retry.GatewayBackoff()
	if m.Backoff != nil {
		cp := *m.Backoff
		b = &cp
	}
	b.OnRetry = m.OnRetry

	err := b.Do(ctx, func(attempt int) error {
		if attempt > 1 {
			m.Logger.Verbose("gateway: connect attempt %d", attempt)
		}
		err := m.Tunnel.Connect(ctx)
		if err != nil && isPermanent(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	hctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.healthLoop(hctx)
	return nil
}

// Stop ends health checks and closes the tunnel.  It is safe to call
// more than once.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return m.Tunnel.Close()
}

func (m *Manager) healthLoop(ctx context.Context) {
	defer close(m.done)

	interval := m.HealthInterval
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			err := m.probe()
			if err == nil {
				m.Logger.Debug("gateway: keepalive ok")
				continue
			}
			m.Logger.Error("gateway connection lost: %v", err)
			if m.OnLost != nil {
				m.OnLost(err)
			}
			return
		}
	}
}

func (m *Manager) probe() error {
	if !m.Tunnel.IsAlive() {
		return mpcerrors.ErrNotConnected
	}
	if k, ok := m.Tunnel.(keepaliver); ok {
		return k.Keepalive()
	}
	return nil
}

func isPermanent(err error) bool {
	if errors.Is(err, mpcerrors.ErrAuthFailed) || errors.Is(err, mpcerrors.ErrHostKeyMismatch) {
		return true
	}
	var se *mpcerrors.SSHError
	if errors.As(err, &se) && se.Op == "hostkey" {
		return true
	}
	// A gateway that does not resolve will not start resolving.
	var ne *mpcerrors.NetworkError
	return errors.As(err, &ne) && !mpcerrors.IsRetryable(err)
}
