package config

import (
	"testing"
)

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "admin@bastion.example.com:2222", "admin", "bastion.example.com", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"zero port", "user@host:0", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
		{"two ats", "a@b@c", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

// ── ResolveGateway ───────────────────────────────────────────────────

func TestResolveGateway(t *testing.T) {
	cfg := Defaults()
	cfg.GatewaySpec = "ops@bastion:2200"
	if err := cfg.ResolveGateway(); err != nil {
		t.Fatal(err)
	}
	if !cfg.GatewayEnabled || cfg.GatewayUser != "ops" || cfg.GatewayHost != "bastion" || cfg.GatewayPort != 2200 {
		t.Errorf("gateway = %+v", cfg)
	}

	cfg.GatewaySpec = ""
	if err := cfg.ResolveGateway(); err != nil {
		t.Fatal(err)
	}
	if cfg.GatewayEnabled {
		t.Error("empty spec should disable the gateway")
	}

	cfg.GatewaySpec = "bastion:notaport"
	if err := cfg.ResolveGateway(); err == nil {
		t.Error("expected error for bad spec")
	}
}

// ── Defaults ─────────────────────────────────────────────────────────

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Forwarder != "mp" {
		t.Errorf("Forwarder = %q, want mp", cfg.Forwarder)
	}
	if cfg.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("HandshakeTimeout = %v", cfg.HandshakeTimeout)
	}
	if cfg.GracePeriod != DefaultGracePeriod {
		t.Errorf("GracePeriod = %v", cfg.GracePeriod)
	}
}

// ── Validate ─────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"tool given", func(c *Config) { c.Tool = "psql" }, false},
		{"list without tool", func(c *Config) { c.List = true }, false},
		{"no tool", func(c *Config) {}, true},
		{"empty forwarder", func(c *Config) { c.Tool = "psql"; c.Forwarder = "" }, true},
		{"empty forwarder with gateway", func(c *Config) {
			c.Tool = "psql"
			c.Forwarder = ""
			c.GatewayEnabled = true
			c.GatewayHost = "gw"
		}, false},
		{"negative timeout", func(c *Config) { c.Tool = "psql"; c.HandshakeTimeout = -1 }, true},
		{"negative grace", func(c *Config) { c.Tool = "psql"; c.GracePeriod = -1 }, true},
		{"gateway without host", func(c *Config) { c.Tool = "psql"; c.GatewayEnabled = true }, true},
		{"ssh key without gateway", func(c *Config) { c.Tool = "psql"; c.SSHKeyPath = "/k" }, true},
		{"password with dry run", func(c *Config) {
			c.Tool = "psql"
			c.GatewayEnabled = true
			c.GatewayHost = "gw"
			c.SSHPassword = true
			c.DryRun = true
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
