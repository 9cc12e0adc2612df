package connection

import "context"

// Client is the read-only view of the connection given to features. It can
// observe the connection and send requests through it, but cannot change
// its lifecycle.
type Client interface {
	State() State
	LastError() error
	Request(ctx context.Context, method string, params, result any) error
	Notify(ctx context.Context, method string, params any) error
	Subscribe(fn Observer) (unsubscribe func())
}

type client struct {
	o *Orchestrator
}

func (c client) State() State     { return c.o.State() }
func (c client) LastError() error { return c.o.LastError() }
func (c client) Subscribe(fn Observer) func() {
	return c.o.Subscribe(fn)
}

func (c client) Request(ctx context.Context, method string, params, result any) error {
	return c.o.Request(ctx, method, params, result)
}

func (c client) Notify(ctx context.Context, method string, params any) error {
	return c.o.Notify(ctx, method, params)
}
