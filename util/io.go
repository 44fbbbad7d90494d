package util

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
)

// BidirectionalCopy relays between the gateway side conn and the local
// side r/w (usually one socket passed twice) until conn reaches EOF or
// ctx is cancelled.  EOF on r only half-closes conn, so the remote can
// still answer.  r is closed on return if it is an io.Closer.
func BidirectionalCopy(ctx context.Context, conn net.Conn, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	// gateway → local
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := copyRelay(w, conn)
		errCh <- err
		cancel()
	}()

	// local → gateway
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := copyRelay(conn, r)
		// Half-close so the remote sees EOF but can still drain its
		// reply to us through the other goroutine.
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			cw.CloseWrite() //nolint:errcheck
		}
		errCh <- err
		// A clean EOF from the reader must not tear the connection
		// down before the remote finishes sending.
		if err != nil {
			cancel()
		}
	}()

	<-ctx.Done()
	conn.Close() // unblock any pending reads/writes
	if c, ok := r.(io.Closer); ok {
		c.Close() // a relayed socket would otherwise park the reader goroutine
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil && !isHarmless(err) {
			return err
		}
	}
	return nil
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
