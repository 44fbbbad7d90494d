package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"
)

// echoServer accepts connections and echoes them until the client
// half-closes, like a database answering a query and hanging up.
func echoServer(tb testing.TB) string {
	tb.Helper()
	ln, _, err := ListenLoopback()
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				io.Copy(c, c) //nolint:errcheck
			}()
		}
	}()
	return ln.Addr().String()
}

// relayed returns a client connection that is relayed to target the way
// a forwarder relays an accepted local socket.  The relay's result is
// sent on the returned channel.
func relayed(tb testing.TB, ctx context.Context, target string) (*net.TCPConn, <-chan error) {
	tb.Helper()
	ln, _, err := ListenLoopback()
	if err != nil {
		tb.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		local, err := ln.Accept()
		ln.Close()
		if err != nil {
			done <- err
			return
		}
		remote, err := net.Dial("tcp", target)
		if err != nil {
			local.Close()
			done <- err
			return
		}
		done <- BidirectionalCopy(ctx, remote, local, local)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		tb.Fatal(err)
	}
	return client.(*net.TCPConn), done
}

func TestBidirectionalCopy_HalfCloseDrainsReply(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, done := relayed(t, ctx, echoServer(t))
	defer client.Close()

	query := []byte("SELECT 1;\n")
	if _, err := client.Write(query); err != nil {
		t.Fatal(err)
	}
	// The reply must still arrive after the client stops sending.
	if err := client.CloseWrite(); err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if !bytes.Equal(got, query) {
		t.Errorf("reply = %q, want %q", got, query)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("BidirectionalCopy: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not finish after both sides closed")
	}
}

func TestBidirectionalCopy_LargeTransfer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, done := relayed(t, ctx, echoServer(t))
	defer client.Close()

	payload := bytes.Repeat([]byte("mpc"), 3*RelayBufSize)
	go func() {
		client.Write(payload) //nolint:errcheck
		client.CloseWrite()   //nolint:errcheck
	}()
	got, err := io.ReadAll(client)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(payload) {
		t.Errorf("relayed %d bytes, want %d", len(got), len(payload))
	}
	if err := <-done; err != nil {
		t.Errorf("BidirectionalCopy: %v", err)
	}
}

func TestBidirectionalCopy_CancelClosesLocalSide(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client, done := relayed(t, ctx, echoServer(t))
	defer client.Close()

	// Make sure the relay is up before pulling the plug.
	if _, err := client.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cancellation should be a clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("relay ignored cancellation")
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	if _, err := client.Read(buf); err == nil {
		t.Error("local side should be closed after cancellation")
	}
}

func TestIsHarmless(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, true},
		{io.EOF, true},
		{fmt.Errorf("relay: %w", io.EOF), true},
		{net.ErrClosed, true},
		{io.ErrClosedPipe, true},
		{&net.OpError{Op: "read", Net: "tcp", Err: net.ErrClosed}, true},
		{io.ErrUnexpectedEOF, false},
		{&net.OpError{Op: "write", Net: "tcp", Err: syscall.ECONNRESET}, false},
		{errors.New("gateway went away"), false},
	}
	for _, tt := range tests {
		if got := isHarmless(tt.err); got != tt.want {
			t.Errorf("isHarmless(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCopyRelay(t *testing.T) {
	src := bytes.Repeat([]byte{0xAB}, RelayBufSize+17)
	var dst bytes.Buffer
	// Hide WriterTo/ReaderFrom so the pooled buffer is actually used.
	n, err := copyRelay(struct{ io.Writer }{&dst}, struct{ io.Reader }{bytes.NewReader(src)})
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(src)) || !bytes.Equal(dst.Bytes(), src) {
		t.Errorf("copied %d bytes, want %d", n, len(src))
	}
}
