package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mpc/internal/tool"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
forwarder: /opt/mp/bin/mp
handshake_timeout: 10s
grace_period: 2
ssh_gateway: ops@bastion
ssh_agent: true
strict_hostkey: false
verbose: 1
tools:
  - name: pgcli
    class: tcp
    default_port: 5432
    description: Postgres CLI with autocompletion
  - name: kafkacat
    executable: kcat
    class: tcp
    default_port: 9092
    flags:
      - role: host
        separate: [-b]
  - name: xh
    class: http
    proxy: httpie
`)
	f, err := LoadFile(path, true)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := f.Apply(cfg, nil); err != nil {
		t.Fatal(err)
	}
	if cfg.Forwarder != "/opt/mp/bin/mp" {
		t.Errorf("Forwarder = %q", cfg.Forwarder)
	}
	if cfg.HandshakeTimeout != 10*time.Second || cfg.GracePeriod != 2*time.Second {
		t.Errorf("durations = (%v, %v)", cfg.HandshakeTimeout, cfg.GracePeriod)
	}
	if cfg.GatewaySpec != "ops@bastion" || !cfg.UseSSHAgent || cfg.StrictHostKey {
		t.Errorf("gateway settings = %+v", cfg)
	}
	if cfg.Verbose != 1 {
		t.Errorf("Verbose = %d", cfg.Verbose)
	}
	if len(cfg.Tools) != 3 {
		t.Fatalf("got %d tools, want 3", len(cfg.Tools))
	}

	kcat := cfg.Tools[1]
	if kcat.Exec() != "kcat" || kcat.Class != tool.ClassTCP || kcat.DefaultPort != 9092 {
		t.Errorf("kafkacat = %+v", kcat)
	}
	if len(kcat.Flags) != 1 || kcat.Flags[0].Role != tool.RoleHost || kcat.Flags[0].Separate[0] != "-b" {
		t.Errorf("kafkacat flags = %+v", kcat.Flags)
	}
	if cfg.Tools[2].Proxy != tool.ProxyHTTPie {
		t.Errorf("xh proxy = %v", cfg.Tools[2].Proxy)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")

	f, err := LoadFile(path, false)
	if err != nil {
		t.Fatalf("missing default file should be ignored: %v", err)
	}
	if f.Forwarder != "" || len(f.Tools) != 0 {
		t.Errorf("expected empty file, got %+v", f)
	}

	if _, err := LoadFile(path, true); err == nil {
		t.Error("missing explicit file should fail")
	}
}

func TestLoadFile_Empty(t *testing.T) {
	f, err := LoadFile(writeConfig(t, ""), true)
	if err != nil {
		t.Fatal(err)
	}
	if f == nil {
		t.Fatal("nil file")
	}
}

func TestLoadFile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "forwarderr: mp\n"},
		{"bad yaml", "tools: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, tt.body), true); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApply_BadValues(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		wantSub string
	}{
		{"bad timeout", File{HandshakeTimeout: "later"}, "handshake_timeout"},
		{"bad grace", File{GracePeriod: "-3s"}, "grace_period"},
		{"bad class", File{Tools: []ToolSpec{{Name: "x", Class: "udp"}}}, "unknown tool class"},
		{"bad proxy", File{Tools: []ToolSpec{{Name: "x", Class: "http", Proxy: "socks"}}}, "unknown proxy style"},
		{"bad role", File{Tools: []ToolSpec{{Name: "x", Class: "tcp", DefaultPort: 1,
			Flags: []FlagSpec{{Role: "user", Separate: []string{"-u"}}}}}}, "unknown flag role"},
		{"no port", File{Tools: []ToolSpec{{Name: "x", Class: "tcp"}}}, "default port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.file.Apply(Defaults(), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestApply_KeepWins(t *testing.T) {
	agent := true
	f := &File{Forwarder: "file-mp", SSHAgent: &agent, Verbose: 3}

	cfg := Defaults()
	cfg.Forwarder = "flag-mp"
	keep := func(flag string) bool { return flag == "forwarder" || flag == "verbose" }
	if err := f.Apply(cfg, keep); err != nil {
		t.Fatal(err)
	}
	if cfg.Forwarder != "flag-mp" {
		t.Errorf("Forwarder = %q, flag should win", cfg.Forwarder)
	}
	if cfg.Verbose != 0 {
		t.Errorf("Verbose = %d, flag should win", cfg.Verbose)
	}
	if !cfg.UseSSHAgent {
		t.Error("UseSSHAgent should come from the file")
	}
}

func TestSSHToolDefaultsProtocol(t *testing.T) {
	tl, err := ToolSpec{Name: "mosh", Class: "ssh"}.Tool()
	if err != nil {
		t.Fatal(err)
	}
	if tl.Protocol != "ssh" || tl.SSH != tool.SSHOption {
		t.Errorf("mosh = %+v", tl)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("MPC_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	path, required, err := ResolvePath("/explicit.yaml")
	if err != nil || path != "/explicit.yaml" || !required {
		t.Errorf("explicit: (%q, %v, %v)", path, required, err)
	}

	path, required, err = ResolvePath("")
	if err != nil || path != filepath.Join("/xdg", "mpc", "config.yaml") || required {
		t.Errorf("xdg: (%q, %v, %v)", path, required, err)
	}

	t.Setenv("MPC_CONFIG", "/env.yaml")
	path, required, err = ResolvePath("")
	if err != nil || path != "/env.yaml" || !required {
		t.Errorf("env: (%q, %v, %v)", path, required, err)
	}
}

func TestDefaultPath_Home(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	orig := osUserHomeDir
	osUserHomeDir = func() (string, error) { return "/home/tester", nil }
	defer func() { osUserHomeDir = orig }()

	got, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join("/home/tester", ".config", "mpc", "config.yaml")
	if got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
