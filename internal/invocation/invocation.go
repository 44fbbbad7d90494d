// Package invocation holds the exact process a rewriter wants run.
//
// An Invocation is built fresh from the user's argv; it never aliases
// the caller's slice.  Env entries are overlaid onto a base environment
// for the child only and never touch the calling process.
package invocation

import (
	"sort"
	"strings"
)

// Invocation is one process to exec.  Args excludes the program name.
type Invocation struct {
	Executable string
	Args       []string
	Env        map[string]string
}

// New returns an Invocation with its own copy of args.
func New(executable string, args []string) Invocation {
	out := make([]string, len(args))
	copy(out, args)
	return Invocation{Executable: executable, Args: out}
}

// WithEnv returns a copy of inv with key=value added to its overlay.
func (inv Invocation) WithEnv(key, value string) Invocation {
	env := make(map[string]string, len(inv.Env)+1)
	for k, v := range inv.Env {
		env[k] = v
	}
	env[key] = value
	inv.Env = env
	return inv
}

// Argv returns the full argument vector, program name first.
func (inv Invocation) Argv() []string {
	out := make([]string, 0, len(inv.Args)+1)
	out = append(out, inv.Executable)
	return append(out, inv.Args...)
}

// Environ overlays Env onto base ("KEY=value" entries, as from
// os.Environ).  Overridden keys are dropped from base; new keys are
// appended in sorted order.
func (inv Invocation) Environ(base []string) []string {
	if len(inv.Env) == 0 {
		out := make([]string, len(base))
		copy(out, base)
		return out
	}
	out := make([]string, 0, len(base)+len(inv.Env))
	for _, kv := range base {
		k := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k = kv[:i]
		}
		if _, ok := inv.Env[k]; ok {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range inv.envKeys() {
		out = append(out, k+"="+inv.Env[k])
	}
	return out
}

// String renders inv as a shell command line, env assignments first.
func (inv Invocation) String() string {
	var b strings.Builder
	for _, k := range inv.envKeys() {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(Quote(inv.Env[k]))
		b.WriteByte(' ')
	}
	for i, a := range inv.Argv() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(Quote(a))
	}
	return b.String()
}

func (inv Invocation) envKeys() []string {
	keys := make([]string, 0, len(inv.Env))
	for k := range inv.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Quote returns s quoted for a POSIX shell.  Words made only of safe
// characters are returned unchanged.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !isSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_./:=@%+,", r)
}
