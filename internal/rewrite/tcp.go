// Package rewrite turns a user's argv into the invocation that reaches
// the remote endpoint through a local forwarder.
//
// Rewriting is a pure function: the input argv is only read, the output
// is always a freshly allocated slice.  TCP-family tools get their
// host/port flags substituted, HTTP-family tools get a proxy flag or
// proxy environment, SSH-family tools get a ProxyCommand.
package rewrite

import (
	"fmt"
	"strconv"

	mpcerrors "mpc/internal/errors"
	"mpc/internal/forwarder"
	"mpc/internal/invocation"
	"mpc/internal/tool"
	"mpc/util"
)

// segment is one unit of a tokenised argv: either a plain token or a
// flag paired with its value.
type segment struct {
	role   tool.Role // zero for plain tokens
	flag   string    // separate name, or inline prefix including '='
	value  string
	inline bool
	raw    string // plain tokens only
}

// tokenize pairs each recognised flag with its value in a single
// left-to-right pass.  A separate-form flag only takes the next token
// when there is one and it does not look like a flag itself; otherwise
// it is kept as a plain token.  That is stricter than pairing every flag
// with whatever follows it: "-p --ssl" leaves both untouched, so mysql's
// bare -p still means "prompt for a password" and --ssl is not taken for
// a port.
func tokenize(rules []tool.FlagRule, argv []string) []segment {
	out := make([]segment, 0, len(argv))
	for i := 0; i < len(argv); i++ {
		tok := argv[i]
		if r, ok := matchSeparate(rules, tok); ok {
			if i+1 < len(argv) && !looksLikeFlag(argv[i+1]) {
				out = append(out, segment{role: r.Role, flag: tok, value: argv[i+1]})
				i++
				continue
			}
			out = append(out, segment{raw: tok})
			continue
		}
		if r, prefix, ok := matchInline(rules, tok); ok {
			out = append(out, segment{role: r.Role, flag: prefix, value: tok[len(prefix):], inline: true})
			continue
		}
		out = append(out, segment{raw: tok})
	}
	return out
}

func matchSeparate(rules []tool.FlagRule, tok string) (tool.FlagRule, bool) {
	for _, r := range rules {
		if r.MatchSeparate(tok) {
			return r, true
		}
	}
	return tool.FlagRule{}, false
}

// matchInline prefers the longest matching prefix so "--port=" wins
// over a hypothetical "--p=".
func matchInline(rules []tool.FlagRule, tok string) (tool.FlagRule, string, bool) {
	var best tool.FlagRule
	bestPrefix := ""
	for _, r := range rules {
		if p, ok := r.MatchInline(tok); ok && len(p) > len(bestPrefix) {
			best, bestPrefix = r, p
		}
	}
	return best, bestPrefix, bestPrefix != ""
}

func looksLikeFlag(tok string) bool {
	return len(tok) > 1 && tok[0] == '-'
}

// TCPPlan is the result of inspecting a TCP-family argv.
type TCPPlan struct {
	tool     tool.Tool
	segments []segment
	host     string
	port     int
}

// TCP inspects argv for t.  It fails with *errors.MissingHostError when
// no host flag pair is present.
func TCP(t tool.Tool, argv []string) (*TCPPlan, error) {
	segs := tokenize(t.Rules(), argv)
	p := &TCPPlan{tool: t, segments: segs, port: t.DefaultPort}

	hostFound, portFound := false, false
	for _, s := range segs {
		switch {
		case s.role == tool.RoleHost && !hostFound:
			p.host, hostFound = s.value, true
		case s.role == tool.RolePort && !portFound:
			portFound = true
			if n, err := util.ParsePort(s.value); err == nil {
				p.port = n
			}
		}
	}
	if !hostFound {
		return nil, &mpcerrors.MissingHostError{Tool: t.Name}
	}
	return p, nil
}

// Host is the first host value found in argv.
func (p *TCPPlan) Host() string { return p.host }

// RemotePort is the first valid port value in argv, or the tool's
// default port.
func (p *TCPPlan) RemotePort() int { return p.port }

// Request is what the forwarder is asked to reach.
func (p *TCPPlan) Request() forwarder.Request {
	return forwarder.Request{Mode: forwarder.ModeTCP, Port: p.port, Host: p.host}
}

// Invocation rebuilds argv with every host value replaced by localhost
// and every port value replaced by localPort.
func (p *TCPPlan) Invocation(localPort int) invocation.Invocation {
	lp := strconv.Itoa(localPort)
	args := make([]string, 0, len(p.segments)*2)
	for _, s := range p.segments {
		if s.role == 0 {
			args = append(args, s.raw)
			continue
		}
		v := lp
		if s.role == tool.RoleHost {
			v = util.LocalHost
		}
		if s.inline {
			args = append(args, s.flag+v)
		} else {
			args = append(args, s.flag, v)
		}
	}
	return invocation.Invocation{Executable: p.tool.Exec(), Args: args}
}

// Rewrite is TCP followed by Invocation.
func Rewrite(t tool.Tool, argv []string, localPort int) (invocation.Invocation, error) {
	p, err := TCP(t, argv)
	if err != nil {
		return invocation.Invocation{}, err
	}
	return p.Invocation(localPort), nil
}

func (p *TCPPlan) String() string {
	return fmt.Sprintf("%s tcp %s:%d", p.tool.Name, p.host, p.port)
}
