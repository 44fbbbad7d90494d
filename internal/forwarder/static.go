package forwarder

import (
	"context"

	"mpc/util"
)

// Static pretends to start a forwarder on a fixed port.  It is used by
// --dry-run, where nothing may be spawned.  A zero Port picks a port
// that is free right now.
type Static struct {
	Port int
}

// Start returns a no-op Handle.
func (s Static) Start(_ context.Context, req Request) (Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	port := s.Port
	if port == 0 {
		p, err := util.FindFreePort()
		if err != nil {
			return nil, err
		}
		port = p
	}
	return staticHandle(port), nil
}

type staticHandle int

func (h staticHandle) Port() int    { return int(h) }
func (h staticHandle) Close() error { return nil }

// ByMode routes raw TCP requests to one forwarder and the HTTP proxy
// modes to another.
type ByMode struct {
	TCP   Forwarder
	Proxy Forwarder
}

// Start hands req to the forwarder serving its mode.
func (b ByMode) Start(ctx context.Context, req Request) (Handle, error) {
	if req.Mode == ModeTCP {
		return b.TCP.Start(ctx, req)
	}
	return b.Proxy.Start(ctx, req)
}
