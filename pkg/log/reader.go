package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/pwscan/pwscan-go/pkg/wire"
)

// Filter selects events. A zero Filter selects everything; each set field
// narrows the selection.
type Filter struct {
	ConnectionID string
	Direction    *Direction
	Layer        *Layer
	Category     *Category

	// Op and ObjectID only select message events.
	Op       *wire.Opcode
	ObjectID *uint32

	// Events in [TimeStart, TimeEnd) are selected.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

// Matches reports whether event passes every criterion of f.
func (f *Filter) Matches(event Event) bool {
	switch {
	case f.ConnectionID != "" && f.ConnectionID != event.ConnectionID,
		f.Direction != nil && *f.Direction != event.Direction,
		f.Layer != nil && *f.Layer != event.Layer,
		f.Category != nil && *f.Category != event.Category,
		f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	}
	if f.Op == nil && f.ObjectID == nil {
		return true
	}
	msg := event.Message
	if msg == nil {
		return false
	}
	if f.Op != nil && msg.Op != *f.Op {
		return false
	}
	return f.ObjectID == nil || msg.ObjectID == *f.ObjectID
}

// Reader streams the events of a .plog file.
type Reader struct {
	f       *os.File
	dec     *cbor.Decoder
	filter  Filter
	skipped int
}

// NewReader opens path and yields every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and yields the events selected by filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{f: f, dec: NewDecoder(f), filter: filter}, nil
}

// Next returns the next selected event, or io.EOF at the end of the file.
// A file cut short in the middle of an event also ends with io.EOF.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		err := r.dec.Decode(&event)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, err
		}
		if r.filter.Matches(event) {
			return event, nil
		}
		r.skipped++
	}
}

// Skipped returns how many events the filter has rejected so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Close releases the file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// ReadAll returns every event of path selected by filter.
func ReadAll(path string, filter Filter) ([]Event, error) {
	r, err := NewFilteredReader(path, filter)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var events []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}
