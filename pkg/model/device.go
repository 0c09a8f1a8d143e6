package model

import (
	"fmt"
	"log/slog"

	"github.com/pwscan/pwscan-go/pkg/props"
)

// Media classes of relevant nodes.
const (
	MediaClassSink   = "Audio/Sink"
	MediaClassSource = "Audio/Source"
)

// Device defaults for absent or unparsable properties.
const (
	DefaultChannels    = 2
	DefaultBufferLimit = 0
)

// Direction is the data flow of a device as seen by an application.
type Direction uint8

const (
	// DirectionUnknown is the zero value; ParseDevice never returns it when
	// given a known fallback.
	DirectionUnknown Direction = iota
	// DirectionInput is a sink: applications write audio into it.
	DirectionInput
	// DirectionOutput is a source: applications read audio from it.
	DirectionOutput
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DirectionOf maps a media class to a direction. ok is false for classes
// that are not audio devices, including the empty string.
func DirectionOf(mediaClass string) (dir Direction, ok bool) {
	switch mediaClass {
	case MediaClassSink:
		return DirectionInput, true
	case MediaClassSource:
		return DirectionOutput, true
	default:
		return DirectionUnknown, false
	}
}

// Device is an audio node resolved from its info event.
type Device struct {
	ID          uint32    `json:"id"`
	NodeName    string    `json:"node_name"`
	NickName    string    `json:"nick_name"`
	Description string    `json:"description"`
	Direction   Direction `json:"direction"`
	Channels    int       `json:"channels"`
	BufferLimit uint32    `json:"buffer_limit"`
}

// String implements fmt.Stringer.
func (d Device) String() string {
	return fmt.Sprintf("%d %s %q (%s) ch=%d limit=%d", d.ID, d.Direction, d.NodeName, d.Description, d.Channels, d.BufferLimit)
}

// ParseDevice builds a Device from the properties of an info event. Absent
// or unparsable values take their defaults. The direction comes from
// media.class; when that is missing or not an audio device class, fallback
// is used.
func ParseDevice(id uint32, dict props.Dict, fallback Direction) Device {
	dir, ok := DirectionOf(dict.String(props.KeyMediaClass, ""))
	if !ok {
		dir = fallback
	}

	d := Device{
		ID:          id,
		NodeName:    dict.String(props.KeyNodeName, props.Unknown),
		NickName:    dict.String(props.KeyNodeNick, props.Unknown),
		Description: dict.String(props.KeyNodeDescription, props.Unknown),
		Direction:   dir,
		Channels:    int(dict.Uint32(props.KeyAudioChannels, DefaultChannels)),
		BufferLimit: dict.Uint32(props.KeyClockQuantumLimit, DefaultBufferLimit),
	}
	return d
}

// LogDefaults reports at debug level which device properties fell back to
// their defaults.
func LogDefaults(logger *slog.Logger, id uint32, dict props.Dict) {
	for _, key := range []string{
		props.KeyNodeName,
		props.KeyNodeNick,
		props.KeyNodeDescription,
	} {
		if !dict.Has(key) {
			logger.Debug("device property missing", "id", id, "key", key)
		}
	}
	for _, key := range []string{props.KeyAudioChannels, props.KeyClockQuantumLimit} {
		v, ok := dict.Get(key)
		if !ok {
			logger.Debug("device property missing", "id", id, "key", key)
			continue
		}
		if _, err := props.ParseUint32(v); err != nil {
			logger.Debug("device property unparsable", "id", id, "key", key, "value", v)
		}
	}
}
