package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// LocalHost is the host name written into rewritten invocations.
const LocalHost = "localhost"

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ParsePort accepts a decimal TCP port in the range 1-65535.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if !ValidPort(port) {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ValidPort reports whether port is a usable TCP port number.
func ValidPort(port int) bool {
	return port >= 1 && port <= 65535
}

// ListenLoopback binds an ephemeral TCP port on 127.0.0.1.
func ListenLoopback() (net.Listener, int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("listen on loopback: %w", err)
	}
	return l, l.Addr().(*net.TCPAddr).Port, nil
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, port, err := ListenLoopback()
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	l.Close()
	return port, nil
}
