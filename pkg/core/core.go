package core

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/pwscan/pwscan-go/pkg/transport"
	"github.com/pwscan/pwscan-go/pkg/wire"
)

// DefaultName is announced in Hello when no name is configured.
const DefaultName = "pwscan"

// registryID is the proxy id used for the registry.
const registryID uint32 = 1

// Conn is the message connection a Core runs on. *transport.Conn
// satisfies it.
type Conn interface {
	Send(msg *wire.Message) error
	Receive() (*wire.Message, error)
	Close() error
}

var _ Conn = (*transport.Conn)(nil)

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the operational logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) { c.logger = logger }
}

// WithName sets the client name announced in Hello.
func WithName(name string) Option {
	return func(c *Core) { c.name = name }
}

// Core is a client connection to a graph service.
type Core struct {
	conn   Conn
	logger *slog.Logger
	name   string

	inbox   *inbox
	quit    atomic.Bool
	closed  atomic.Bool
	lastSeq atomic.Uint32
	lastID  uint32

	onDone  []func(id uint32, seq wire.Seq)
	onError []func(*RemoteError)

	registry *Registry
	proxies  map[uint32]*Proxy
}

// New announces the client on conn and starts reading events.
func New(conn Conn, opts ...Option) (*Core, error) {
	c := &Core{
		conn:    conn,
		logger:  slog.New(slog.DiscardHandler),
		name:    DefaultName,
		inbox:   newInbox(),
		lastID:  registryID,
		proxies: make(map[uint32]*Proxy),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.send(wire.OpHello, wire.CoreID, wire.Hello{Version: wire.ProtocolVersion, Name: c.name}); err != nil {
		return nil, fmt.Errorf("hello: %w", err)
	}

	go c.readLoop()
	return c, nil
}

func (c *Core) readLoop() {
	for {
		msg, err := c.conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrDisconnected
			} else if errors.Is(err, transport.ErrClosed) {
				err = ErrClosed
			}
			c.inbox.fail(err)
			return
		}
		c.inbox.push(msg)
	}
}

func (c *Core) send(op wire.Opcode, objectID uint32, payload any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	msg, err := wire.NewMessage(op, objectID, payload)
	if err != nil {
		return err
	}
	return c.conn.Send(msg)
}

// Sync asks the service for a Done event carrying the returned token.
// The Done arrives after every event caused by earlier requests.
func (c *Core) Sync() (wire.Seq, error) {
	seq := wire.Seq(c.lastSeq.Add(1))
	if err := c.send(wire.OpSync, wire.CoreID, wire.Sync{Seq: seq}); err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}
	c.logger.Debug("sync", "seq", seq)
	return seq, nil
}

// OnDone registers a handler for Done events. Handlers receive the id of
// the object that answered and the token.
func (c *Core) OnDone(fn func(id uint32, seq wire.Seq)) {
	c.onDone = append(c.onDone, fn)
}

// OnError registers a handler for Error events.
func (c *Core) OnError(fn func(*RemoteError)) {
	c.onError = append(c.onError, fn)
}

// GetRegistry requests the registry. Globals are announced once Run
// dispatches them. Repeated calls return the same registry.
func (c *Core) GetRegistry() (*Registry, error) {
	if c.registry != nil {
		return c.registry, nil
	}
	if err := c.send(wire.OpGetRegistry, wire.CoreID, wire.GetRegistry{NewID: registryID}); err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	c.registry = &Registry{core: c}
	return c.registry, nil
}

// Run dispatches events until Quit is called or the connection fails.
// It returns nil after Quit. A Quit issued while Run is not running makes
// the next Run return immediately.
func (c *Core) Run() error {
	defer func() {
		c.quit.Store(false)
		c.inbox.clearWakeups()
	}()

	for !c.quit.Load() {
		msg, err := c.inbox.pop()
		if err != nil {
			return err
		}
		if msg == nil {
			continue
		}
		c.dispatch(msg)
	}
	return nil
}

// Quit makes Run return once the current callback finishes. It may be
// called from a callback or from another goroutine.
func (c *Core) Quit() {
	c.quit.Store(true)
	c.inbox.wake()
}

// Close closes the connection. Pending events are dropped.
func (c *Core) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// Pending returns the number of received events not yet dispatched.
func (c *Core) Pending() int {
	return c.inbox.len()
}

func (c *Core) dispatch(msg *wire.Message) {
	switch msg.Op {
	case wire.OpDone:
		var p wire.Done
		if !c.decode(msg, &p) {
			return
		}
		for _, fn := range c.onDone {
			fn(p.ID, p.Seq)
		}

	case wire.OpError:
		var p wire.Error
		if !c.decode(msg, &p) {
			return
		}
		rerr := &RemoteError{ObjectID: msg.ObjectID, ID: p.ID, Seq: p.Seq, Status: p.Status, Message: p.Message}
		c.logger.Debug("remote error", "object", msg.ObjectID, "id", p.ID, "status", p.Status, "message", p.Message)
		for _, fn := range c.onError {
			fn(rerr)
		}

	case wire.OpGlobal:
		var p wire.Global
		if c.registry == nil || msg.ObjectID != registryID || !c.decode(msg, &p) {
			return
		}
		c.registry.emitGlobal(&p)

	case wire.OpGlobalRemove:
		var p wire.GlobalRemove
		if c.registry == nil || msg.ObjectID != registryID || !c.decode(msg, &p) {
			return
		}
		c.registry.emitGlobalRemove(p.ID)

	case wire.OpInfo:
		var p wire.Info
		proxy := c.proxyFor(msg)
		if proxy == nil || !c.decode(msg, &p) {
			return
		}
		proxy.emitInfo(&p)

	case wire.OpProperty:
		var p wire.Property
		proxy := c.proxyFor(msg)
		if proxy == nil || !c.decode(msg, &p) {
			return
		}
		proxy.emitProperty(&p)

	default:
		c.logger.Debug("ignoring message", "op", msg.Op, "object", msg.ObjectID)
	}
}

func (c *Core) decode(msg *wire.Message, v any) bool {
	if err := msg.DecodePayload(v); err != nil {
		c.logger.Debug("dropping undecodable event", "op", msg.Op, "object", msg.ObjectID, "error", err)
		return false
	}
	return true
}

func (c *Core) proxyFor(msg *wire.Message) *Proxy {
	p, ok := c.proxies[msg.ObjectID]
	if !ok {
		c.logger.Debug("event for unknown proxy", "op", msg.Op, "object", msg.ObjectID)
		return nil
	}
	return p
}
