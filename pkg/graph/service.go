package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync"

	"github.com/pwscan/pwscan-go/pkg/log"
	"github.com/pwscan/pwscan-go/pkg/transport"
	"github.com/pwscan/pwscan-go/pkg/wire"
)

// Config configures a Service.
type Config struct {
	// Network and Address to listen on. Only used by Start.
	Network string
	Address string

	// Logger for operational messages (optional).
	Logger *slog.Logger

	// ProtocolLogger captures frames and messages (optional).
	ProtocolLogger log.Logger
}

// Sender is the outbound half of a client connection. *transport.Conn
// satisfies it.
type Sender interface {
	SendPayload(op wire.Opcode, objectID uint32, payload any) error
	ID() string
}

// client is the per-connection state.
type client struct {
	conn       Sender
	name       string
	registryID uint32
	hasReg     bool
	proxies    map[uint32]uint32 // proxy id -> global id
}

// Service serves a graph to any number of clients.
type Service struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	name    string
	objects map[uint32]*Object
	clients map[string]*client

	server *transport.Server
}

// NewService creates a service for g. The graph is copied.
func NewService(g *Graph, config Config) *Service {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		config:  config,
		logger:  logger,
		name:    g.Name,
		objects: make(map[uint32]*Object, len(g.Objects)),
		clients: make(map[string]*client),
	}
	for _, o := range g.Objects {
		s.objects[o.ID] = o.clone()
	}
	return s
}

// Name returns the graph name.
func (s *Service) Name() string {
	return s.name
}

// Start listens on the configured address.
func (s *Service) Start(ctx context.Context) error {
	server, err := transport.NewServer(transport.ServerConfig{
		Network: s.config.Network,
		Address: s.config.Address,
		Logger:  s.config.ProtocolLogger,
		OnConnect: func(conn *transport.Conn) {
			s.connect(conn)
		},
		OnDisconnect: func(conn *transport.Conn) {
			s.disconnect(conn)
		},
		OnMessage: func(conn *transport.Conn, msg *wire.Message) {
			s.Handle(conn, msg)
		},
		OnError: func(conn *transport.Conn, err error) {
			if conn == nil {
				s.logger.Warn("listener error", "error", err)
				return
			}
			s.logger.Warn("connection error", "conn", conn.ID(), "error", err)
		},
	})
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	s.server = server
	s.logger.Info("serving graph", "name", s.name, "objects", s.ObjectCount(), "address", server.Addr())
	return nil
}

// Stop closes the listener and every connection.
func (s *Service) Stop() error {
	if s.server == nil {
		return nil
	}
	return s.server.Stop()
}

// Addr returns the listen address once started.
func (s *Service) Addr() net.Addr {
	if s.server == nil {
		return nil
	}
	return s.server.Addr()
}

// ClientCount returns the number of connected clients.
func (s *Service) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Serve handles one connection until it closes. It is used when the
// caller owns the connection, for example one end of a net.Pipe.
func (s *Service) Serve(conn *transport.Conn) error {
	s.connect(conn)
	defer s.disconnect(conn)

	for {
		msg, err := conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return err
		}
		s.Handle(conn, msg)
	}
}

func (s *Service) connect(conn Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[conn.ID()] = &client{conn: conn, proxies: make(map[uint32]uint32)}
	s.logger.Debug("client connected", "conn", conn.ID())
}

func (s *Service) disconnect(conn Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, conn.ID())
	s.logger.Debug("client disconnected", "conn", conn.ID())
}

// Handle processes one request from conn. Every event the request causes
// is written before Handle returns.
func (s *Service) Handle(conn Sender, msg *wire.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[conn.ID()]
	if !ok {
		c = &client{conn: conn, proxies: make(map[uint32]uint32)}
		s.clients[conn.ID()] = c
	}

	if err := s.handle(c, msg); err != nil {
		s.logger.Warn("dropping client", "conn", conn.ID(), "error", err)
		delete(s.clients, conn.ID())
	}
}

// handle returns an error only when the connection is unusable.
func (s *Service) handle(c *client, msg *wire.Message) error {
	switch msg.Op {
	case wire.OpHello:
		var p wire.Hello
		if err := msg.DecodePayload(&p); err != nil {
			return s.sendError(c, msg.ObjectID, 0, wire.StatusInvalid, err.Error())
		}
		c.name = p.Name
		if p.Version != wire.ProtocolVersion {
			s.logger.Warn("client protocol mismatch", "conn", c.conn.ID(), "version", p.Version)
		}
		return nil

	case wire.OpGetRegistry:
		var p wire.GetRegistry
		if err := msg.DecodePayload(&p); err != nil {
			return s.sendError(c, wire.CoreID, 0, wire.StatusInvalid, err.Error())
		}
		c.registryID = p.NewID
		c.hasReg = true
		for _, o := range s.sortedObjects() {
			g := o.Global()
			if err := c.conn.SendPayload(wire.OpGlobal, c.registryID, g); err != nil {
				return err
			}
		}
		return nil

	case wire.OpSync:
		var p wire.Sync
		if err := msg.DecodePayload(&p); err != nil {
			return s.sendError(c, wire.CoreID, 0, wire.StatusInvalid, err.Error())
		}
		return c.conn.SendPayload(wire.OpDone, wire.CoreID, wire.Done{ID: wire.CoreID, Seq: p.Seq})

	case wire.OpBind:
		var p wire.Bind
		if err := msg.DecodePayload(&p); err != nil {
			return s.sendError(c, wire.CoreID, 0, wire.StatusInvalid, err.Error())
		}
		return s.bind(c, p)

	case wire.OpDestroy:
		var p wire.Destroy
		if err := msg.DecodePayload(&p); err != nil {
			return s.sendError(c, wire.CoreID, 0, wire.StatusInvalid, err.Error())
		}
		delete(c.proxies, p.ID)
		return nil

	default:
		return s.sendError(c, msg.ObjectID, 0, wire.StatusProtocol, fmt.Sprintf("unexpected %s", msg.Op))
	}
}

func (s *Service) bind(c *client, p wire.Bind) error {
	o, ok := s.objects[p.GlobalID]
	if !ok {
		return s.sendError(c, wire.CoreID, p.GlobalID, wire.StatusNoEntity, fmt.Sprintf("no global %d", p.GlobalID))
	}
	if p.Type != o.Type {
		return s.sendError(c, wire.CoreID, p.GlobalID, wire.StatusInvalid, fmt.Sprintf("global %d is %s", p.GlobalID, o.Type))
	}
	if _, used := c.proxies[p.NewID]; used || p.NewID <= 1 {
		return s.sendError(c, wire.CoreID, p.NewID, wire.StatusInvalid, fmt.Sprintf("proxy id %d in use", p.NewID))
	}
	c.proxies[p.NewID] = o.ID
	return s.sendState(c, p.NewID, o)
}

// sendState writes what a freshly bound proxy receives: the info of a
// node, every entry of a metadata object, nothing for other types.
func (s *Service) sendState(c *client, proxyID uint32, o *Object) error {
	switch o.Type {
	case wire.TypeNode:
		info := wire.Info{
			ID:         o.ID,
			ChangeMask: wire.ChangeMaskState | wire.ChangeMaskProps,
			State:      "suspended",
			Props:      o.InfoProps(),
		}
		return c.conn.SendPayload(wire.OpInfo, proxyID, info)

	case wire.TypeMetadata:
		for _, e := range o.Metadata {
			value := e.Value
			prop := wire.Property{Subject: e.Subject, Key: e.Key, Type: e.Type, Value: &value}
			if err := c.conn.SendPayload(wire.OpProperty, proxyID, prop); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) sendError(c *client, objectID, id uint32, status wire.Status, message string) error {
	s.logger.Debug("request failed", "conn", c.conn.ID(), "id", id, "status", status, "message", message)
	return c.conn.SendPayload(wire.OpError, objectID, wire.Error{ID: id, Status: status, Message: message})
}

func (s *Service) sortedObjects() []*Object {
	out := make([]*Object, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
