package wire

// Status is the result code carried by an Error event. Values follow the
// negative errno convention of the graph service.
type Status int32

const (
	// StatusNoEntity indicates the referenced object does not exist.
	StatusNoEntity Status = -2

	// StatusInvalid indicates a malformed or inconsistent request.
	StatusInvalid Status = -22

	// StatusBusy indicates the id is already in use.
	StatusBusy Status = -16

	// StatusProtocol indicates a protocol violation.
	StatusProtocol Status = -71

	// StatusUnsupported indicates the request is not supported.
	StatusUnsupported Status = -95
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNoEntity:
		return "NO_ENTITY"
	case StatusInvalid:
		return "INVALID"
	case StatusBusy:
		return "BUSY"
	case StatusProtocol:
		return "PROTOCOL"
	case StatusUnsupported:
		return "UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}
