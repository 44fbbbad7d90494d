package config

import (
	"strings"
	"testing"

	"mpc/internal/tool"
)

// TestValidate_ErrorMessages verifies that Validate returns actionable
// error messages with hints.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantSub string // substring expected in error
	}{
		{
			name:    "missing tool has hint",
			cfg:     Config{Forwarder: "mp"},
			wantSub: "hint:",
		},
		{
			name:    "ssh auth without gateway has hint",
			cfg:     Config{Forwarder: "mp", Tool: "psql", UseSSHAgent: true},
			wantSub: "hint:",
		},
		{
			name:    "bad custom tool",
			cfg:     Config{Forwarder: "mp", Tool: "x", Tools: []tool.Tool{{Name: "x", Class: tool.ClassTCP}}},
			wantSub: "default port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

// TestParseTunnelSpec_Fuzz covers edge-case gateway specs.
func TestParseTunnelSpec_Fuzz(t *testing.T) {
	edgeCases := []string{
		"h", "u@h", "h:1", "u@h:65535",
		"@h", "u@", "h:", "h:65536", "h:-1", "u@h:p", ":22", "@",
	}
	for _, s := range edgeCases {
		t.Run(s, func(t *testing.T) {
			// Must not panic; ports must be in range when accepted.
			_, host, port, err := ParseTunnelSpec(s)
			if err != nil {
				return
			}
			if host == "" {
				t.Errorf("accepted %q with empty host", s)
			}
			if port < 1 || port > 65535 {
				t.Errorf("accepted %q with port %d", s, port)
			}
		})
	}
}
