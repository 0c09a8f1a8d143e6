package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/pwscan/pwscan-go/pkg/props"
)

// ProtocolVersion is the version announced in Hello.
const ProtocolVersion uint32 = 3

// CoreID is the object id of the core. Done events for the client's own
// Sync requests carry this id.
const CoreID uint32 = 0

// Interface types announced in Global events.
const (
	TypeCore     = "PipeWire:Interface:Core"
	TypeNode     = "PipeWire:Interface:Node"
	TypeMetadata = "PipeWire:Interface:Metadata"
	TypeDevice   = "PipeWire:Interface:Device"
	TypePort     = "PipeWire:Interface:Port"
	TypeLink     = "PipeWire:Interface:Link"
	TypeClient   = "PipeWire:Interface:Client"
	TypeModule   = "PipeWire:Interface:Module"
)

// Message errors.
var (
	ErrInvalidOpcode  = errors.New("invalid opcode")
	ErrMissingPayload = errors.New("missing payload")
)

// Seq is the correlation token of a Sync request, echoed by its Done event.
type Seq uint32

// Message is the protocol envelope.
type Message struct {
	Op       Opcode          `cbor:"1,keyasint"`
	ObjectID uint32          `cbor:"2,keyasint"`
	Payload  cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

// Validate checks if the message is well formed.
func (m *Message) Validate() error {
	if !m.Op.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidOpcode, m.Op)
	}
	return nil
}

// Hello is the first request on every connection.
type Hello struct {
	Version uint32 `cbor:"1,keyasint"`
	Name    string `cbor:"2,keyasint,omitempty"`
}

// GetRegistry asks for the registry and allocates its proxy id.
type GetRegistry struct {
	NewID uint32 `cbor:"1,keyasint"`
}

// Sync requests a Done event with the same sequence number.
type Sync struct {
	Seq Seq `cbor:"1,keyasint"`
}

// Bind creates proxy NewID for global GlobalID.
type Bind struct {
	GlobalID uint32 `cbor:"1,keyasint"`
	Type     string `cbor:"2,keyasint"`
	Version  uint32 `cbor:"3,keyasint,omitempty"`
	NewID    uint32 `cbor:"4,keyasint"`
}

// Destroy releases proxy ID.
type Destroy struct {
	ID uint32 `cbor:"1,keyasint"`
}

// Done completes the Sync with the same sequence number.
type Done struct {
	ID  uint32 `cbor:"1,keyasint"`
	Seq Seq    `cbor:"2,keyasint"`
}

// Global announces an object. It is the discovered object descriptor:
// used to decide relevance and to bind, never retained.
type Global struct {
	ID      uint32     `cbor:"1,keyasint"`
	Type    string     `cbor:"2,keyasint"`
	Version uint32     `cbor:"3,keyasint,omitempty"`
	Props   props.Dict `cbor:"4,keyasint,omitempty"`
}

// GlobalRemove announces that global ID is gone.
type GlobalRemove struct {
	ID uint32 `cbor:"1,keyasint"`
}

// Change mask bits of Info events.
const (
	ChangeMaskState uint64 = 1 << iota
	ChangeMaskProps
	ChangeMaskParams
)

// Info carries the full info of a bound object.
type Info struct {
	ID         uint32     `cbor:"1,keyasint"`
	ChangeMask uint64     `cbor:"2,keyasint,omitempty"`
	State      string     `cbor:"3,keyasint,omitempty"`
	Props      props.Dict `cbor:"4,keyasint,omitempty"`
}

// Property carries one metadata entry. A nil Value means the key was removed.
type Property struct {
	Subject uint32  `cbor:"1,keyasint"`
	Key     string  `cbor:"2,keyasint"`
	Type    string  `cbor:"3,keyasint,omitempty"`
	Value   *string `cbor:"4,keyasint,omitempty"`
}

// Error reports a failed request on object ID.
type Error struct {
	ID      uint32 `cbor:"1,keyasint"`
	Seq     Seq    `cbor:"2,keyasint,omitempty"`
	Status  Status `cbor:"3,keyasint"`
	Message string `cbor:"4,keyasint,omitempty"`
}
