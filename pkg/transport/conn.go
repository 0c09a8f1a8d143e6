package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pwscan/pwscan-go/pkg/log"
	"github.com/pwscan/pwscan-go/pkg/wire"
)

// ErrClosed is returned when sending or receiving on a closed connection.
var ErrClosed = errors.New("connection closed")

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithLogger enables protocol logging for the connection.
func WithLogger(logger log.Logger) ConnOption {
	return func(c *Conn) { c.logger = logger }
}

// WithMaxMessageSize overrides DefaultMaxMessageSize.
func WithMaxMessageSize(size uint32) ConnOption {
	return func(c *Conn) { c.maxSize = size }
}

// Conn is a framed message connection.
type Conn struct {
	id      string
	nc      net.Conn
	framer  *Framer
	role    log.Role
	logger  log.Logger
	maxSize uint32

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps nc. role names the local side for protocol logs.
func NewConn(nc net.Conn, role log.Role, opts ...ConnOption) *Conn {
	c := &Conn{
		id:      uuid.New().String(),
		nc:      nc,
		role:    role,
		maxSize: DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.framer = NewFramer(nc, c.maxSize)
	if c.logger != nil {
		c.framer.SetLogger(c.logger, c.id, c.role)
		c.logState("", "CONNECTED", "")
	}
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	if addr := c.nc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Send encodes and writes one message.
func (c *Conn) Send(msg *wire.Message) error {
	if c.closed.Load() {
		return ErrClosed
	}

	data, err := wire.EncodeMessage(msg)
	if err != nil {
		return err
	}
	if err := c.framer.WriteFrame(data); err != nil {
		if c.closed.Load() {
			return ErrClosed
		}
		return err
	}

	c.logMessage(msg, log.DirectionOut)
	return nil
}

// SendPayload builds a message from op, objectID and payload and sends it.
func (c *Conn) SendPayload(op wire.Opcode, objectID uint32, payload any) error {
	msg, err := wire.NewMessage(op, objectID, payload)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// Receive blocks until one message has been read. It returns io.EOF when
// the peer closes the stream cleanly and ErrClosed after Close.
func (c *Conn) Receive() (*wire.Message, error) {
	data, err := c.framer.ReadFrame()
	if err != nil {
		if c.closed.Load() {
			return nil, ErrClosed
		}
		return nil, err
	}

	msg, err := wire.DecodeMessage(data)
	if err != nil {
		c.logError(log.LayerWire, err, "decode message")
		return nil, fmt.Errorf("decode message: %w", err)
	}

	c.logMessage(msg, log.DirectionIn)
	return msg, nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.nc.Close()
		c.logState("CONNECTED", "DISCONNECTED", "")
	})
	return c.closeErr
}

func (c *Conn) event(dir log.Direction, layer log.Layer, cat log.Category) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		LocalRole:    c.role,
		RemoteAddr:   c.RemoteAddr(),
	}
}

func (c *Conn) logMessage(msg *wire.Message, dir log.Direction) {
	if c.logger == nil {
		return
	}
	ev := c.event(dir, log.LayerWire, log.CategoryMessage)
	ev.Message = log.NewMessageEvent(msg)
	c.logger.Log(ev)
}

func (c *Conn) logState(oldState, newState, reason string) {
	if c.logger == nil {
		return
	}
	ev := c.event(log.DirectionIn, log.LayerTransport, log.CategoryState)
	ev.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntityConnection,
		OldState: oldState,
		NewState: newState,
		Reason:   reason,
	}
	c.logger.Log(ev)
}

func (c *Conn) logError(layer log.Layer, err error, context string) {
	if c.logger == nil {
		return
	}
	ev := c.event(log.DirectionIn, layer, log.CategoryError)
	ev.Error = &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Context: context,
	}
	c.logger.Log(ev)
}
