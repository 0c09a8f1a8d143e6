package wire

// Opcode identifies a protocol message.
type Opcode uint8

// Requests (client to service).
const (
	// OpHello announces the client and protocol version.
	OpHello Opcode = 1

	// OpGetRegistry creates the registry proxy; the service answers with
	// one Global event per existing object.
	OpGetRegistry Opcode = 2

	// OpSync requests a Done event carrying the same sequence number.
	OpSync Opcode = 3

	// OpBind creates a proxy for a global object.
	OpBind Opcode = 4

	// OpDestroy releases a proxy.
	OpDestroy Opcode = 5
)

// Events (service to client).
const (
	// OpDone completes a Sync.
	OpDone Opcode = 16

	// OpGlobal announces an object on the registry.
	OpGlobal Opcode = 17

	// OpGlobalRemove announces that an object went away.
	OpGlobalRemove Opcode = 18

	// OpInfo carries the full info of a bound object.
	OpInfo Opcode = 19

	// OpProperty carries one metadata property of a bound object.
	OpProperty Opcode = 20

	// OpError reports a failed request.
	OpError Opcode = 21
)

// String returns the opcode name.
func (o Opcode) String() string {
	switch o {
	case OpHello:
		return "Hello"
	case OpGetRegistry:
		return "GetRegistry"
	case OpSync:
		return "Sync"
	case OpBind:
		return "Bind"
	case OpDestroy:
		return "Destroy"
	case OpDone:
		return "Done"
	case OpGlobal:
		return "Global"
	case OpGlobalRemove:
		return "GlobalRemove"
	case OpInfo:
		return "Info"
	case OpProperty:
		return "Property"
	case OpError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsRequest returns true for client-to-service opcodes.
func (o Opcode) IsRequest() bool {
	return o >= OpHello && o <= OpDestroy
}

// IsEvent returns true for service-to-client opcodes.
func (o Opcode) IsEvent() bool {
	return o >= OpDone && o <= OpError
}

// IsValid returns true if the opcode is known.
func (o Opcode) IsValid() bool {
	return o.IsRequest() || o.IsEvent()
}
