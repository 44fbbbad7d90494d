// Package tool describes the client programs mpc knows how to wrap.
//
// Each Tool says how its traffic is addressed (SSH ProxyCommand, TCP
// host/port flags, or an HTTP proxy) and carries the data the rewriters
// need: default remote port, proxy style, and the flag table used to
// find host and port values in argv.
package tool

import (
	"fmt"
	"strings"
)

// Class selects the rewriting strategy for a tool.
type Class int

const (
	ClassSSH Class = iota + 1
	ClassTCP
	ClassHTTP
)

func (c Class) String() string {
	switch c {
	case ClassSSH:
		return "ssh"
	case ClassTCP:
		return "tcp"
	case ClassHTTP:
		return "http"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// ParseClass is the inverse of Class.String.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ssh":
		return ClassSSH, nil
	case "tcp":
		return ClassTCP, nil
	case "http":
		return ClassHTTP, nil
	}
	return 0, fmt.Errorf("unknown tool class %q (want ssh, tcp or http)", s)
}

// ProxyStyle is how an HTTP-family tool is pointed at a proxy.
type ProxyStyle int

const (
	ProxyNone   ProxyStyle = iota // argv and env left as they are
	ProxyFlag                     // --proxy <url> (curl)
	ProxyEnv                      // http_proxy / https_proxy (wget)
	ProxyHTTPie                   // --proxy=<scheme>:<url> (httpie)
)

func (p ProxyStyle) String() string {
	switch p {
	case ProxyNone:
		return "none"
	case ProxyFlag:
		return "flag"
	case ProxyEnv:
		return "env"
	case ProxyHTTPie:
		return "httpie"
	default:
		return fmt.Sprintf("ProxyStyle(%d)", int(p))
	}
}

// ParseProxyStyle is the inverse of ProxyStyle.String.  The empty
// string is ProxyNone.
func ParseProxyStyle(s string) (ProxyStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ProxyNone, nil
	case "flag":
		return ProxyFlag, nil
	case "env":
		return ProxyEnv, nil
	case "httpie":
		return ProxyHTTPie, nil
	}
	return 0, fmt.Errorf("unknown proxy style %q (want none, flag, env or httpie)", s)
}

// SSHStyle is where an SSH-family tool takes its ProxyCommand.
type SSHStyle int

const (
	SSHOption      SSHStyle = iota // -o ProxyCommand=... (ssh, scp, sftp)
	SSHRemoteShell                 // -e "ssh -o ProxyCommand='...'" (rsync)
	SSHGitEnv                      // GIT_SSH_COMMAND (git)
)

func (s SSHStyle) String() string {
	switch s {
	case SSHOption:
		return "option"
	case SSHRemoteShell:
		return "remote-shell"
	case SSHGitEnv:
		return "git-env"
	default:
		return fmt.Sprintf("SSHStyle(%d)", int(s))
	}
}

// ParseSSHStyle is the inverse of SSHStyle.String.  The empty string is
// SSHOption.
func ParseSSHStyle(s string) (SSHStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "option":
		return SSHOption, nil
	case "remote-shell":
		return SSHRemoteShell, nil
	case "git-env":
		return SSHGitEnv, nil
	}
	return 0, fmt.Errorf("unknown ssh style %q (want option, remote-shell or git-env)", s)
}

// Tool is one wrappable client program.
type Tool struct {
	Name        string // name typed after mpc
	Executable  string // program actually run; defaults to Name
	Class       Class
	DefaultPort int        // TCP family: remote port when argv names none
	Proxy       ProxyStyle // HTTP family
	SSH         SSHStyle   // SSH family
	Protocol    string     // SSH family: protocol word passed to "<helper> connect"
	Description string
	Flags       []FlagRule // TCP family: nil means DefaultFlags
}

// Exec returns the program to run.
func (t Tool) Exec() string {
	if t.Executable != "" {
		return t.Executable
	}
	return t.Name
}

// Rules returns the flag table used to locate host and port values.
func (t Tool) Rules() []FlagRule {
	if len(t.Flags) > 0 {
		return t.Flags
	}
	return DefaultFlags
}

// Validate checks that t carries what its class needs.
func (t Tool) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tool: empty name")
	}
	if strings.ContainsAny(t.Name, " \t/") {
		return fmt.Errorf("tool %q: name must not contain spaces or slashes", t.Name)
	}
	switch t.Class {
	case ClassSSH:
		if t.Protocol == "" {
			return fmt.Errorf("tool %q: ssh tools need a protocol", t.Name)
		}
	case ClassTCP:
		if t.DefaultPort < 1 || t.DefaultPort > 65535 {
			return fmt.Errorf("tool %q: default port %d out of range 1-65535", t.Name, t.DefaultPort)
		}
		for _, r := range t.Flags {
			if err := r.validate(); err != nil {
				return fmt.Errorf("tool %q: %w", t.Name, err)
			}
		}
		if len(t.Flags) > 0 && !hasRole(t.Flags, RoleHost) {
			return fmt.Errorf("tool %q: flag table has no host rule", t.Name)
		}
	case ClassHTTP:
	default:
		return fmt.Errorf("tool %q: unknown class %v", t.Name, t.Class)
	}
	return nil
}
