package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/pwscan/pwscan-go/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readOnly turns a reader into a ReadWriter that refuses writes.
type readOnly struct{ io.Reader }

func (readOnly) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteFrameWritesLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFramer(&buf, 0)

	require.NoError(t, fw.WriteFrame([]byte{0xa1, 0x01, 0x02}))

	out := buf.Bytes()
	require.Len(t, out, LengthPrefixSize+3)
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(out[:4]))
	assert.Equal(t, []byte{0xa1, 0x01, 0x02}, out[4:])
}

func TestWriteFrameRejects(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		assert.ErrorIs(t, NewFramer(&buf, 0).WriteFrame(nil), ErrMessageEmpty)
		assert.Zero(t, buf.Len())
	})

	t.Run("too large", func(t *testing.T) {
		var buf bytes.Buffer
		assert.ErrorIs(t, NewFramer(&buf, 4).WriteFrame([]byte{1, 2, 3, 4, 5}), ErrMessageTooLarge)
		assert.Zero(t, buf.Len())
	})
}

func TestReadFrame(t *testing.T) {
	frame := func(length uint32, payload []byte) []byte {
		b := make([]byte, 4, 4+len(payload))
		binary.BigEndian.PutUint32(b, length)
		return append(b, payload...)
	}

	tests := []struct {
		name    string
		input   []byte
		want    []byte
		wantErr error
	}{
		{name: "valid", input: frame(2, []byte{7, 8}), want: []byte{7, 8}},
		{name: "eof", input: nil, wantErr: io.EOF},
		{name: "short prefix", input: []byte{0, 0}, wantErr: ErrFrameTruncated},
		{name: "short payload", input: frame(4, []byte{1}), wantErr: ErrFrameTruncated},
		{name: "zero length", input: frame(0, nil), wantErr: ErrMessageEmpty},
		{name: "oversized", input: frame(DefaultMaxMessageSize+1, nil), wantErr: ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := NewFramer(&readOnly{bytes.NewReader(tt.input)}, 0)
			got, err := fr.ReadFrame()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFramerRoundTripSequence(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf, 0)

	payloads := [][]byte{{1}, {2, 2}, bytes.Repeat([]byte{3}, 1000)}
	for _, p := range payloads {
		require.NoError(t, f.WriteFrame(p))
	}
	for _, p := range payloads {
		got, err := f.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := f.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFramerLogsTruncatedFrames(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingLogger{}
	f := NewFramer(&buf, 0)
	f.SetLogger(rec, "conn-1", log.RoleService)

	big := bytes.Repeat([]byte{9}, MaxLogFrameDataSize+10)
	require.NoError(t, f.WriteFrame(big))
	_, err := f.ReadFrame()
	require.NoError(t, err)

	events := rec.snapshot()
	require.Len(t, events, 2)

	out := events[0]
	assert.Equal(t, log.DirectionOut, out.Direction)
	assert.Equal(t, log.LayerTransport, out.Layer)
	assert.Equal(t, log.RoleService, out.LocalRole)
	assert.Equal(t, "conn-1", out.ConnectionID)
	require.NotNil(t, out.Frame)
	assert.Equal(t, LengthPrefixSize+len(big), out.Frame.Size)
	assert.Len(t, out.Frame.Data, MaxLogFrameDataSize)
	assert.True(t, out.Frame.Truncated)

	assert.Equal(t, log.DirectionIn, events[1].Direction)
}
