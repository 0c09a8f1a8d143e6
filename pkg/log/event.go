package log

import (
	"time"

	"github.com/pwscan/pwscan-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this side is the client or the service.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message encoding layer (decoded CBOR).
	LayerWire Layer = 1
	// LayerSession is the scan session layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which side of the connection produced the log.
type Role uint8

const (
	// RoleClient indicates the scanning client.
	RoleClient Role = 0
	// RoleService indicates the graph service.
	RoleService Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded protocol message at the wire layer.
type MessageEvent struct {
	// Op is the message opcode.
	Op wire.Opcode `cbor:"1,keyasint"`

	// ObjectID is the target (requests) or source (events) object.
	ObjectID uint32 `cbor:"2,keyasint"`

	// Seq is set for Sync, Done and Error messages.
	Seq *wire.Seq `cbor:"3,keyasint,omitempty"`

	// GlobalID is set for Bind, Global and GlobalRemove messages.
	GlobalID *uint32 `cbor:"4,keyasint,omitempty"`

	// Type is the interface type for Bind and Global messages.
	Type string `cbor:"5,keyasint,omitempty"`

	// Key is the metadata key for Property messages.
	Key string `cbor:"6,keyasint,omitempty"`

	// Payload is the raw CBOR payload.
	Payload []byte `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a scan session state change.
	StateEntitySession StateEntity = 1
	// StateEntityBarrier indicates a change of the pending request set.
	StateEntityBarrier StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntityBarrier:
		return "BARRIER"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// NewMessageEvent summarizes msg for the wire layer. The raw payload is
// kept; well-known fields are lifted out of it when they decode.
func NewMessageEvent(msg *wire.Message) *MessageEvent {
	ev := &MessageEvent{
		Op:       msg.Op,
		ObjectID: msg.ObjectID,
		Payload:  msg.Payload,
	}

	switch msg.Op {
	case wire.OpSync:
		var p wire.Sync
		if msg.DecodePayload(&p) == nil {
			ev.Seq = &p.Seq
		}
	case wire.OpDone:
		var p wire.Done
		if msg.DecodePayload(&p) == nil {
			ev.Seq = &p.Seq
		}
	case wire.OpError:
		var p wire.Error
		if msg.DecodePayload(&p) == nil && p.Seq != 0 {
			ev.Seq = &p.Seq
		}
	case wire.OpBind:
		var p wire.Bind
		if msg.DecodePayload(&p) == nil {
			ev.GlobalID = &p.GlobalID
			ev.Type = p.Type
		}
	case wire.OpGlobal:
		var p wire.Global
		if msg.DecodePayload(&p) == nil {
			ev.GlobalID = &p.ID
			ev.Type = p.Type
		}
	case wire.OpGlobalRemove:
		var p wire.GlobalRemove
		if msg.DecodePayload(&p) == nil {
			ev.GlobalID = &p.ID
		}
	case wire.OpProperty:
		var p wire.Property
		if msg.DecodePayload(&p) == nil {
			ev.Key = p.Key
		}
	}
	return ev
}
