package rewrite

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	mpcerrors "mpc/internal/errors"
	"mpc/internal/forwarder"
	"mpc/internal/invocation"
	"mpc/internal/tool"
	"mpc/util"
)

// HTTPPlan is the result of inspecting an HTTP-family argv.
type HTTPPlan struct {
	tool   tool.Tool
	argv   []string
	scheme string
	host   string
	port   int
}

// HTTP inspects argv for t.  The target URL is the first token starting
// with http:// or https://.  It fails with *errors.MissingURLError when
// there is none or it cannot be used.
func HTTP(t tool.Tool, argv []string) (*HTTPPlan, error) {
	raw := ""
	for _, a := range argv {
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			raw = a
			break
		}
	}
	if raw == "" {
		return nil, &mpcerrors.MissingURLError{Tool: t.Name}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &mpcerrors.MissingURLError{Tool: t.Name, Reason: err.Error()}
	}
	if u.Hostname() == "" {
		return nil, &mpcerrors.MissingURLError{Tool: t.Name, Reason: fmt.Sprintf("%q has no host", raw)}
	}

	p := &HTTPPlan{tool: t, argv: argv, scheme: u.Scheme, host: u.Hostname()}
	switch {
	case u.Port() != "":
		n, err := util.ParsePort(u.Port())
		if err != nil {
			return nil, &mpcerrors.MissingURLError{Tool: t.Name, Reason: err.Error()}
		}
		p.port = n
	case p.scheme == "https":
		p.port = 443
	default:
		p.port = 80
	}
	return p, nil
}

// Scheme is "http" or "https".
func (p *HTTPPlan) Scheme() string { return p.scheme }

// RemotePort is the URL's explicit port or the scheme default.
func (p *HTTPPlan) RemotePort() int { return p.port }

// Request is what the forwarder is asked to reach.
func (p *HTTPPlan) Request() forwarder.Request {
	return forwarder.Request{Mode: forwarder.Mode(p.scheme), Port: p.port, Host: p.host}
}

// ProxyURL is the local proxy address for localPort.
func (p *HTTPPlan) ProxyURL(localPort int) string {
	return p.scheme + "://" + util.FormatAddr(util.LocalHost, localPort)
}

// Invocation points the tool at the local proxy according to its proxy
// style.  ProxyNone leaves argv and environment exactly as given.
func (p *HTTPPlan) Invocation(localPort int) invocation.Invocation {
	proxy := p.ProxyURL(localPort)
	switch p.tool.Proxy {
	case tool.ProxyFlag:
		return invocation.New(p.tool.Exec(), prepend(p.argv, "--proxy", proxy))
	case tool.ProxyHTTPie:
		return invocation.New(p.tool.Exec(), prepend(p.argv, "--proxy="+p.scheme+":"+proxy))
	case tool.ProxyEnv:
		return invocation.New(p.tool.Exec(), p.argv).WithEnv(p.scheme+"_proxy", proxy)
	default:
		return invocation.New(p.tool.Exec(), p.argv)
	}
}

func (p *HTTPPlan) String() string {
	return p.tool.Name + " " + p.scheme + " " + p.host + ":" + strconv.Itoa(p.port) + " proxy=" + p.tool.Proxy.String()
}

// Configure is HTTP followed by Invocation.
func Configure(t tool.Tool, argv []string, localPort int) (invocation.Invocation, error) {
	p, err := HTTP(t, argv)
	if err != nil {
		return invocation.Invocation{}, err
	}
	return p.Invocation(localPort), nil
}

func prepend(argv []string, head ...string) []string {
	out := make([]string, 0, len(head)+len(argv))
	out = append(out, head...)
	return append(out, argv...)
}
