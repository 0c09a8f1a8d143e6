package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pwscan/pwscan-go/pkg/log"
)

// A frame is a 4-byte big-endian payload length followed by the payload.
const (
	LengthPrefixSize = 4

	// DefaultMaxMessageSize bounds the payload of a single frame.
	DefaultMaxMessageSize = 64 << 10

	// MaxLogFrameDataSize bounds the bytes copied into a frame log event.
	MaxLogFrameDataSize = 4 << 10
)

// Framing errors.
var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrMessageEmpty    = errors.New("message is empty")
	ErrFrameTruncated  = errors.New("frame truncated")
)

// Framer reads and writes frames on a stream. Writes may come from any
// goroutine; reads must come from one.
type Framer struct {
	rw      io.ReadWriter
	maxSize uint32

	wmu    sync.Mutex
	header [LengthPrefixSize]byte

	logger log.Logger
	connID string
	role   log.Role
}

// NewFramer returns a Framer on rw. A maxSize of zero means
// DefaultMaxMessageSize.
func NewFramer(rw io.ReadWriter, maxSize uint32) *Framer {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Framer{rw: rw, maxSize: maxSize}
}

// SetLogger enables frame events for connection connID. A nil logger
// disables them. It must be called before the framer is used.
func (f *Framer) SetLogger(logger log.Logger, connID string, role log.Role) {
	f.logger, f.connID, f.role = logger, connID, role
}

func (f *Framer) checkSize(n uint32) error {
	switch {
	case n == 0:
		return ErrMessageEmpty
	case n > f.maxSize:
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, f.maxSize)
	}
	return nil
}

// WriteFrame sends data as one frame. The frame goes out in a single
// Write so concurrent writers never interleave.
func (f *Framer) WriteFrame(data []byte) error {
	if err := f.checkSize(uint32(len(data))); err != nil {
		return err
	}

	buf := make([]byte, LengthPrefixSize, LengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	buf = append(buf, data...)

	f.wmu.Lock()
	_, err := f.rw.Write(buf)
	f.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	f.logFrame(log.DirectionOut, data)
	return nil
}

// ReadFrame returns the payload of the next frame. It returns io.EOF when
// the stream ends between frames and ErrFrameTruncated when it ends inside
// one.
func (f *Framer) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.rw, f.header[:]); err != nil {
		switch {
		case err == io.EOF:
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	n := binary.BigEndian.Uint32(f.header[:])
	if err := f.checkSize(n); err != nil {
		return nil, err
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(f.rw, payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("read frame payload: %w", err)
	}

	f.logFrame(log.DirectionIn, payload)
	return payload, nil
}

func (f *Framer) logFrame(dir log.Direction, data []byte) {
	if f.logger == nil {
		return
	}
	ev := &log.FrameEvent{Size: LengthPrefixSize + len(data), Data: data}
	if len(data) > MaxLogFrameDataSize {
		ev.Data, ev.Truncated = data[:MaxLogFrameDataSize], true
	}
	f.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: f.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		LocalRole:    f.role,
		Frame:        ev,
	})
}
