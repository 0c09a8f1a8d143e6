package core

import (
	"fmt"

	"github.com/pwscan/pwscan-go/pkg/wire"
)

// Registry announces the service's objects.
type Registry struct {
	core     *Core
	onGlobal []func(*wire.Global)
	onRemove []func(id uint32)
}

// OnGlobal registers a handler called once per announced object.
func (r *Registry) OnGlobal(fn func(*wire.Global)) {
	r.onGlobal = append(r.onGlobal, fn)
}

// OnGlobalRemove registers a handler called when an object goes away.
func (r *Registry) OnGlobalRemove(fn func(id uint32)) {
	r.onRemove = append(r.onRemove, fn)
}

// Bind creates a proxy for g. Info or property events for the proxy are
// delivered to handlers registered on it before the next event is
// dispatched.
func (r *Registry) Bind(g *wire.Global) (*Proxy, error) {
	c := r.core
	if c.registry != r {
		return nil, ErrNotRegistry
	}

	c.lastID++
	p := &Proxy{core: c, id: c.lastID, globalID: g.ID, typ: g.Type}

	bind := wire.Bind{GlobalID: g.ID, Type: g.Type, Version: g.Version, NewID: p.id}
	if err := c.send(wire.OpBind, wire.CoreID, bind); err != nil {
		return nil, fmt.Errorf("bind global %d: %w", g.ID, err)
	}
	c.proxies[p.id] = p
	return p, nil
}

func (r *Registry) emitGlobal(g *wire.Global) {
	for _, fn := range r.onGlobal {
		fn(g)
	}
}

func (r *Registry) emitGlobalRemove(id uint32) {
	for _, fn := range r.onRemove {
		fn(id)
	}
}
