package core

import (
	"errors"
	"fmt"

	"github.com/pwscan/pwscan-go/pkg/wire"
)

// Sentinel errors.
var (
	// ErrClosed is returned by requests issued after Close.
	ErrClosed = errors.New("core closed")

	// ErrDisconnected is returned by Run when the service closes the stream.
	ErrDisconnected = errors.New("disconnected from service")

	// ErrUnknownProxy is returned when addressing a proxy that no longer exists.
	ErrUnknownProxy = errors.New("unknown proxy")

	// ErrNotRegistry is returned when binding a global that was not announced
	// by this core's registry.
	ErrNotRegistry = errors.New("registry not requested")
)

// RemoteError is an Error event sent by the service.
type RemoteError struct {
	// ObjectID is the object the event was addressed to.
	ObjectID uint32
	// ID is the object the failed request referred to.
	ID      uint32
	Seq     wire.Seq
	Status  wire.Status
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error on object %d: %s", e.ID, e.Status)
	}
	return fmt.Sprintf("remote error on object %d: %s: %s", e.ID, e.Status, e.Message)
}
