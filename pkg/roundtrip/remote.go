package roundtrip

import (
	"github.com/pwscan/pwscan-go/pkg/core"
	"github.com/pwscan/pwscan-go/pkg/wire"
)

// Remote is the connection a Session drives.
type Remote interface {
	GetRegistry() (Registry, error)
	Sync() (wire.Seq, error)
	OnDone(fn func(id uint32, seq wire.Seq))
	OnError(fn func(*core.RemoteError))
	Run() error
	Quit()
}

// Registry announces globals and binds them.
type Registry interface {
	OnGlobal(fn func(*wire.Global))
	Bind(g *wire.Global) (Proxy, error)
}

// Proxy is a bound global.
type Proxy interface {
	ID() uint32
	OnInfo(fn func(*wire.Info))
	OnProperty(fn func(*wire.Property))
	Destroy() error
}

var _ Proxy = (*core.Proxy)(nil)

// FromCore adapts a core connection to Remote.
func FromCore(c *core.Core) Remote {
	return coreRemote{c}
}

type coreRemote struct {
	*core.Core
}

func (r coreRemote) GetRegistry() (Registry, error) {
	reg, err := r.Core.GetRegistry()
	if err != nil {
		return nil, err
	}
	return coreRegistry{reg}, nil
}

type coreRegistry struct {
	*core.Registry
}

func (r coreRegistry) Bind(g *wire.Global) (Proxy, error) {
	p, err := r.Registry.Bind(g)
	if err != nil {
		return nil, err
	}
	return p, nil
}
