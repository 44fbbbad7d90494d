package rewrite

import (
	"fmt"

	"mpc/internal/forwarder"
	"mpc/internal/invocation"
	"mpc/internal/tool"
)

// Plan is an inspected argv waiting for a forwarder port.
type Plan interface {
	// Request describes the forwarder this plan needs.
	Request() forwarder.Request
	// Invocation builds the final process once the forwarder is
	// listening on localPort.
	Invocation(localPort int) invocation.Invocation
	String() string
}

var (
	_ Plan = (*TCPPlan)(nil)
	_ Plan = (*HTTPPlan)(nil)
)

// For inspects argv with the strategy for t's class.  SSH-family tools
// do not use a forwarder and have no plan; use SSH for them.
func For(t tool.Tool, argv []string) (Plan, error) {
	switch t.Class {
	case tool.ClassTCP:
		p, err := TCP(t, argv)
		if err != nil {
			return nil, err
		}
		return p, nil
	case tool.ClassHTTP:
		p, err := HTTP(t, argv)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("rewrite: %s tools take no forwarder plan", t.Class)
	}
}
