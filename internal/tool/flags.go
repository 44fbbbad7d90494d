package tool

import (
	"fmt"
	"strings"
)

// Role is what a flag's value addresses.
type Role int

const (
	RoleHost Role = iota + 1
	RolePort
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RolePort:
		return "port"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// FlagRule matches one role's flags.  Separate names take their value
// from the next token ("-h db"); inline prefixes carry it in the same
// token ("--host=db").  Inline prefixes include the trailing '='.
type FlagRule struct {
	Role     Role
	Separate []string
	Inline   []string
}

// DefaultFlags is the host/port table shared by the built-in TCP tools.
var DefaultFlags = []FlagRule{
	{Role: RoleHost, Separate: []string{"-h"}, Inline: []string{"-h=", "--host="}},
	{Role: RolePort, Separate: []string{"-p", "--port", "-P"}, Inline: []string{"-p=", "--port=", "-P="}},
}

// MatchSeparate reports whether tok is one of the rule's separate names.
func (r FlagRule) MatchSeparate(tok string) bool {
	for _, name := range r.Separate {
		if tok == name {
			return true
		}
	}
	return false
}

// MatchInline returns the prefix tok starts with, if any.
func (r FlagRule) MatchInline(tok string) (prefix string, ok bool) {
	for _, p := range r.Inline {
		if strings.HasPrefix(tok, p) {
			return p, true
		}
	}
	return "", false
}

func (r FlagRule) validate() error {
	if r.Role != RoleHost && r.Role != RolePort {
		return fmt.Errorf("flag rule: unknown role %v", r.Role)
	}
	if len(r.Separate) == 0 && len(r.Inline) == 0 {
		return fmt.Errorf("flag rule %v: no flags", r.Role)
	}
	for _, s := range r.Separate {
		if !strings.HasPrefix(s, "-") || strings.Contains(s, "=") {
			return fmt.Errorf("flag rule %v: bad separate flag %q", r.Role, s)
		}
	}
	for _, p := range r.Inline {
		if !strings.HasPrefix(p, "-") || !strings.HasSuffix(p, "=") {
			return fmt.Errorf("flag rule %v: inline prefix %q must look like -x=", r.Role, p)
		}
	}
	return nil
}

func hasRole(rules []FlagRule, role Role) bool {
	for _, r := range rules {
		if r.Role == role {
			return true
		}
	}
	return false
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host":
		return RoleHost, nil
	case "port":
		return RolePort, nil
	}
	return 0, fmt.Errorf("unknown flag role %q (want host or port)", s)
}
