package roundtrip

import (
	"errors"

	"github.com/pwscan/pwscan-go/pkg/core"
	"github.com/pwscan/pwscan-go/pkg/props"
	"github.com/pwscan/pwscan-go/pkg/wire"
	"github.com/stretchr/testify/mock"
)

var errStalled = errors.New("script exhausted before quit")

// scriptedRegistry is a Registry the fake remote can announce globals on.
type scriptedRegistry interface {
	Registry
	announce(g *wire.Global)
}

// fakeRemote replays a script of events, one per dispatch step, the way a
// single-threaded loop would.
type fakeRemote struct {
	registry    scriptedRegistry
	registryErr error

	lastSeq    wire.Seq
	syncCalls  int
	failSyncAt int // 1-based call number, 0 never
	syncErr    error

	onDone  []func(uint32, wire.Seq)
	onError []func(*core.RemoteError)

	script   []func(*fakeRemote)
	quit     bool
	quitStep int
	steps    int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{registry: newFakeRegistry()}
}

func (r *fakeRemote) GetRegistry() (Registry, error) {
	if r.registryErr != nil {
		return nil, r.registryErr
	}
	return r.registry, nil
}

func (r *fakeRemote) Sync() (wire.Seq, error) {
	r.syncCalls++
	if r.failSyncAt == r.syncCalls {
		return 0, r.syncErr
	}
	r.lastSeq++
	return r.lastSeq, nil
}

func (r *fakeRemote) OnDone(fn func(uint32, wire.Seq))   { r.onDone = append(r.onDone, fn) }
func (r *fakeRemote) OnError(fn func(*core.RemoteError)) { r.onError = append(r.onError, fn) }

func (r *fakeRemote) Quit() {
	if !r.quit {
		r.quit = true
		r.quitStep = r.steps
	}
}

func (r *fakeRemote) Run() error {
	for len(r.script) > 0 && !r.quit {
		ev := r.script[0]
		r.script = r.script[1:]
		r.steps++
		ev(r)
	}
	if !r.quit {
		return errStalled
	}
	return nil
}

func (r *fakeRemote) then(evs ...func(*fakeRemote)) *fakeRemote {
	r.script = append(r.script, evs...)
	return r
}

func global(id uint32, typ string, kv ...string) func(*fakeRemote) {
	return func(r *fakeRemote) {
		r.registry.announce(&wire.Global{ID: id, Type: typ, Props: props.New(kv...)})
	}
}

func sinkGlobal(id uint32) func(*fakeRemote) {
	return global(id, wire.TypeNode, props.KeyMediaClass, "Audio/Sink")
}

func sourceGlobal(id uint32) func(*fakeRemote) {
	return global(id, wire.TypeNode, props.KeyMediaClass, "Audio/Source")
}

func settingsGlobal(id uint32) func(*fakeRemote) {
	return global(id, wire.TypeMetadata, props.KeyMetadataName, "settings")
}

func info(globalID uint32, kv ...string) func(*fakeRemote) {
	return func(r *fakeRemote) {
		p := r.registry.(*fakeRegistry).proxies[globalID]
		for _, fn := range p.onInfo {
			fn(&wire.Info{ID: globalID, ChangeMask: wire.ChangeMaskProps, Props: props.New(kv...)})
		}
	}
}

func property(globalID, subject uint32, key string, value *string) func(*fakeRemote) {
	return func(r *fakeRemote) {
		p := r.registry.(*fakeRegistry).proxies[globalID]
		for _, fn := range p.onProperty {
			fn(&wire.Property{Subject: subject, Key: key, Value: value})
		}
	}
}

func done(id uint32, seq wire.Seq) func(*fakeRemote) {
	return func(r *fakeRemote) {
		for _, fn := range r.onDone {
			fn(id, seq)
		}
	}
}

func remoteError(id uint32, status wire.Status) func(*fakeRemote) {
	return func(r *fakeRemote) {
		for _, fn := range r.onError {
			fn(&core.RemoteError{ID: id, Status: status})
		}
	}
}

type fakeRegistry struct {
	onGlobal []func(*wire.Global)
	proxies  map[uint32]*fakeProxy
	lastID   uint32
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{proxies: make(map[uint32]*fakeProxy), lastID: 1}
}

func (r *fakeRegistry) OnGlobal(fn func(*wire.Global)) { r.onGlobal = append(r.onGlobal, fn) }

func (r *fakeRegistry) Bind(g *wire.Global) (Proxy, error) {
	r.lastID++
	p := &fakeProxy{id: r.lastID}
	r.proxies[g.ID] = p
	return p, nil
}

func (r *fakeRegistry) announce(g *wire.Global) {
	for _, fn := range r.onGlobal {
		fn(g)
	}
}

type fakeProxy struct {
	id         uint32
	onInfo     []func(*wire.Info)
	onProperty []func(*wire.Property)
	destroyed  bool
}

func (p *fakeProxy) ID() uint32                         { return p.id }
func (p *fakeProxy) OnInfo(fn func(*wire.Info))         { p.onInfo = append(p.onInfo, fn) }
func (p *fakeProxy) OnProperty(fn func(*wire.Property)) { p.onProperty = append(p.onProperty, fn) }
func (p *fakeProxy) Destroy() error                     { p.destroyed = true; return nil }

// stubRegistry lets a test decide the outcome of each Bind.
type stubRegistry struct {
	mock.Mock
	onGlobal []func(*wire.Global)
}

func (s *stubRegistry) OnGlobal(fn func(*wire.Global)) { s.onGlobal = append(s.onGlobal, fn) }

func (s *stubRegistry) Bind(g *wire.Global) (Proxy, error) {
	args := s.Called(g.ID)
	p, _ := args.Get(0).(Proxy)
	return p, args.Error(1)
}

func (s *stubRegistry) announce(g *wire.Global) {
	for _, fn := range s.onGlobal {
		fn(g)
	}
}
