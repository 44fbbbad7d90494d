// Package sshtest runs a minimal in-process SSH gateway for tests.  It
// accepts one authorised public key and serves direct-tcpip channels by
// dialing the requested address from the test process.
package sshtest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

// Server is a running test gateway.
type Server struct {
	Host string
	Port int

	// KeyPath is an unencrypted private key the server accepts.
	KeyPath string

	// HostKey is the server's public host key.
	HostKey ssh.PublicKey

	mu      sync.Mutex
	dialled []string
}

// Start launches a gateway on 127.0.0.1 and stops it when t finishes.
func Start(t testing.TB) *Server {
	t.Helper()

	hostSigner := newSigner(t)
	clientPriv := newKey(t)
	clientSigner, err := ssh.NewSignerFromKey(clientPriv)
	if err != nil {
		t.Fatal(err)
	}
	authorized := clientSigner.PublicKey().Marshal()

	s := &Server{HostKey: hostSigner.PublicKey()}
	s.KeyPath = WriteKey(t, clientPriv)

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, k ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(k.Marshal(), authorized) {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown key")
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	s.Host, s.Port = addr.IP.String(), addr.Port

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(nc, cfg)
		}
	}()
	return s
}

// Dialled returns the addresses clients asked the gateway to reach.
func (s *Server) Dialled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dialled...)
}

// KnownHosts writes a known_hosts file that trusts this server.
func (s *Server) KnownHosts(t testing.TB) string {
	t.Helper()
	line := fmt.Sprintf("[%s]:%d %s", s.Host, s.Port, ssh.MarshalAuthorizedKey(s.HostKey))
	path := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(path, []byte(line), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

type directTCPIP struct {
	Host     string
	Port     uint32
	OrigIP   string
	OrigPort uint32
}

func (s *Server) serve(nc net.Conn, cfg *ssh.ServerConfig) {
	conn, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "direct-tcpip" {
			nch.Reject(ssh.UnknownChannelType, "only direct-tcpip") //nolint:errcheck
			continue
		}
		var p directTCPIP
		if err := ssh.Unmarshal(nch.ExtraData(), &p); err != nil {
			nch.Reject(ssh.Prohibited, "bad payload") //nolint:errcheck
			continue
		}
		addr := net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port)))
		s.mu.Lock()
		s.dialled = append(s.dialled, addr)
		s.mu.Unlock()

		target, err := net.Dial("tcp", addr)
		if err != nil {
			nch.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
			continue
		}
		ch, chReqs, err := nch.Accept()
		if err != nil {
			target.Close()
			continue
		}
		go ssh.DiscardRequests(chReqs)
		go pipe(ch, target)
	}
}

func pipe(ch ssh.Channel, target net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(ch, target) //nolint:errcheck
		ch.CloseWrite()     //nolint:errcheck
	}()
	go func() {
		defer wg.Done()
		io.Copy(target, ch) //nolint:errcheck
		if tc, ok := target.(*net.TCPConn); ok {
			tc.CloseWrite() //nolint:errcheck
		}
	}()
	wg.Wait()
	ch.Close()
	target.Close()
}

// NewKeyFile writes a fresh private key that no Server accepts.
func NewKeyFile(t testing.TB) string {
	t.Helper()
	return WriteKey(t, newKey(t))
}

// WriteKey stores priv in OpenSSH format under t.TempDir.
func WriteKey(t testing.TB, priv ed25519.PrivateKey) string {
	t.Helper()
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newKey(t testing.TB) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return priv
}

func newSigner(t testing.TB) ssh.Signer {
	t.Helper()
	s, err := ssh.NewSignerFromKey(newKey(t))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// Echo starts a TCP echo server on 127.0.0.1 and returns its port.
func Echo(t testing.TB) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				io.Copy(c, c) //nolint:errcheck
			}(c)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}
