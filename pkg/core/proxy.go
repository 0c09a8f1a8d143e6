package core

import "github.com/pwscan/pwscan-go/pkg/wire"

// Proxy is the client-side handle of a bound object.
type Proxy struct {
	core     *Core
	id       uint32
	globalID uint32
	typ      string

	onInfo     []func(*wire.Info)
	onProperty []func(*wire.Property)
}

// ID returns the proxy's object id on this connection.
func (p *Proxy) ID() uint32 { return p.id }

// GlobalID returns the id of the bound global.
func (p *Proxy) GlobalID() uint32 { return p.globalID }

// Type returns the interface type of the bound global.
func (p *Proxy) Type() string { return p.typ }

// OnInfo registers a handler for info events of a bound node.
func (p *Proxy) OnInfo(fn func(*wire.Info)) {
	p.onInfo = append(p.onInfo, fn)
}

// OnProperty registers a handler for property events of a bound metadata object.
func (p *Proxy) OnProperty(fn func(*wire.Property)) {
	p.onProperty = append(p.onProperty, fn)
}

// Destroy releases the proxy. Events already queued for it are dropped.
func (p *Proxy) Destroy() error {
	c := p.core
	if _, ok := c.proxies[p.id]; !ok {
		return ErrUnknownProxy
	}
	delete(c.proxies, p.id)
	return c.send(wire.OpDestroy, wire.CoreID, wire.Destroy{ID: p.id})
}

func (p *Proxy) emitInfo(info *wire.Info) {
	for _, fn := range p.onInfo {
		fn(info)
	}
}

func (p *Proxy) emitProperty(prop *wire.Property) {
	for _, fn := range p.onProperty {
		fn(prop)
	}
}
