package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mpc/internal/tool"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir

// File is the on-disk configuration.  Empty fields leave the lower
// layer alone.
//
//	forwarder: /opt/mp/bin/mp
//	handshake_timeout: 10s
//	tools:
//	  - name: pgcli
//	    class: tcp
//	    default_port: 5432
type File struct {
	Forwarder        string     `yaml:"forwarder"`
	HandshakeTimeout string     `yaml:"handshake_timeout"`
	GracePeriod      string     `yaml:"grace_period"`
	SSHGateway       string     `yaml:"ssh_gateway"`
	SSHKey           string     `yaml:"ssh_key"`
	SSHAgent         *bool      `yaml:"ssh_agent"`
	KnownHosts       string     `yaml:"known_hosts"`
	StrictHostKey    *bool      `yaml:"strict_hostkey"`
	Verbose          int        `yaml:"verbose"`
	Tools            []ToolSpec `yaml:"tools"`
}

// ToolSpec declares a custom tool.
type ToolSpec struct {
	Name        string     `yaml:"name"`
	Executable  string     `yaml:"executable"`
	Class       string     `yaml:"class"`
	DefaultPort int        `yaml:"default_port"`
	Proxy       string     `yaml:"proxy"`
	SSH         string     `yaml:"ssh"`
	Protocol    string     `yaml:"protocol"`
	Description string     `yaml:"description"`
	Flags       []FlagSpec `yaml:"flags"`
}

// FlagSpec is one row of a custom tool's host/port flag table.
type FlagSpec struct {
	Role     string   `yaml:"role"`
	Separate []string `yaml:"separate"`
	Inline   []string `yaml:"inline"`
}

// Tool converts s into a validated tool.Tool.
func (s ToolSpec) Tool() (tool.Tool, error) {
	class, err := tool.ParseClass(s.Class)
	if err != nil {
		return tool.Tool{}, fmt.Errorf("tool %q: %w", s.Name, err)
	}
	proxy, err := tool.ParseProxyStyle(s.Proxy)
	if err != nil {
		return tool.Tool{}, fmt.Errorf("tool %q: %w", s.Name, err)
	}
	style, err := tool.ParseSSHStyle(s.SSH)
	if err != nil {
		return tool.Tool{}, fmt.Errorf("tool %q: %w", s.Name, err)
	}

	t := tool.Tool{
		Name:        s.Name,
		Executable:  s.Executable,
		Class:       class,
		DefaultPort: s.DefaultPort,
		Proxy:       proxy,
		SSH:         style,
		Protocol:    s.Protocol,
		Description: s.Description,
	}
	if t.Class == tool.ClassSSH && t.Protocol == "" {
		t.Protocol = "ssh"
	}
	for _, f := range s.Flags {
		role, err := tool.ParseRole(f.Role)
		if err != nil {
			return tool.Tool{}, fmt.Errorf("tool %q: %w", s.Name, err)
		}
		t.Flags = append(t.Flags, tool.FlagRule{Role: role, Separate: f.Separate, Inline: f.Inline})
	}
	if err := t.Validate(); err != nil {
		return tool.Tool{}, err
	}
	return t, nil
}

// DefaultPath returns the config file consulted when neither --config
// nor MPC_CONFIG names one: $XDG_CONFIG_HOME/mpc/config.yaml, else
// ~/.config/mpc/config.yaml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, DefaultConfigDir, DefaultConfigFile), nil
	}
	home, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", DefaultConfigDir, DefaultConfigFile), nil
}

// ResolvePath picks the config file: explicit (from --config) wins over
// MPC_CONFIG, which wins over DefaultPath.  required is false only for
// the default path.
func ResolvePath(explicit string) (path string, required bool, err error) {
	if explicit != "" {
		return explicit, true, nil
	}
	if v := os.Getenv("MPC_CONFIG"); v != "" {
		return v, true, nil
	}
	path, err = DefaultPath()
	return path, false, err
}

// LoadFile reads and decodes path.  A missing file that is not required
// yields an empty File.  Unknown keys are rejected.
func LoadFile(path string, required bool) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	var out File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &out, nil
}

// Apply overlays f onto cfg, skipping settings keep claims.  Custom
// tools are appended in file order.
func (f *File) Apply(cfg *Config, keep Keep) error {
	if f.Forwarder != "" && !keep.has("forwarder") {
		cfg.Forwarder = f.Forwarder
	}
	if f.HandshakeTimeout != "" && !keep.has("handshake-timeout") {
		d, err := parseDuration(f.HandshakeTimeout)
		if err != nil {
			return fmt.Errorf("config: handshake_timeout: %w", err)
		}
		cfg.HandshakeTimeout = d
	}
	if f.GracePeriod != "" && !keep.has("grace-period") {
		d, err := parseDuration(f.GracePeriod)
		if err != nil {
			return fmt.Errorf("config: grace_period: %w", err)
		}
		cfg.GracePeriod = d
	}
	if f.SSHGateway != "" && !keep.has("ssh-gateway") {
		cfg.GatewaySpec = f.SSHGateway
	}
	if f.SSHKey != "" && !keep.has("ssh-key") {
		cfg.SSHKeyPath = f.SSHKey
	}
	if f.SSHAgent != nil && !keep.has("ssh-agent") {
		cfg.UseSSHAgent = *f.SSHAgent
	}
	if f.KnownHosts != "" && !keep.has("known-hosts") {
		cfg.KnownHostsPath = f.KnownHosts
	}
	if f.StrictHostKey != nil && !keep.has("strict-hostkey") {
		cfg.StrictHostKey = *f.StrictHostKey
	}
	if f.Verbose > 0 && !keep.has("verbose") {
		cfg.Verbose = f.Verbose
	}
	for _, s := range f.Tools {
		t, err := s.Tool()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg.Tools = append(cfg.Tools, t)
	}
	return nil
}
