package core

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pwscan/pwscan-go/pkg/props"
	"github.com/pwscan/pwscan-go/pkg/transport"
	"github.com/pwscan/pwscan-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn feeds scripted events to a Core and records its requests.
type fakeConn struct {
	mu      sync.Mutex
	sent    []*wire.Message
	sendErr error

	in        chan *wire.Message
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan *wire.Message, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Send(msg *wire.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeConn) Receive() (*wire.Message, error) {
	select {
	case msg, ok := <-f.in:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-f.closed:
		return nil, transport.ErrClosed
	}
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) emit(t *testing.T, op wire.Opcode, objectID uint32, payload any) {
	t.Helper()
	msg, err := wire.NewMessage(op, objectID, payload)
	require.NoError(t, err)
	f.in <- msg
}

func (f *fakeConn) requests() []*wire.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*wire.Message(nil), f.sent...)
}

func newTestCore(t *testing.T) (*Core, *fakeConn) {
	t.Helper()
	fc := newFakeConn()
	c, err := New(fc, WithName("test"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, fc
}

// runAsync runs c.Run on a separate goroutine and returns its result channel.
func runAsync(c *Core) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- c.Run() }()
	return errc
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestNewSendsHello(t *testing.T) {
	_, fc := newTestCore(t)

	reqs := fc.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, wire.OpHello, reqs[0].Op)

	var hello wire.Hello
	require.NoError(t, reqs[0].DecodePayload(&hello))
	assert.Equal(t, wire.ProtocolVersion, hello.Version)
	assert.Equal(t, "test", hello.Name)
}

func TestNewFailsWhenHelloFails(t *testing.T) {
	fc := newFakeConn()
	fc.sendErr = errors.New("broken pipe")
	_, err := New(fc)
	assert.Error(t, err)
}

func TestSyncIssuesDistinctTokens(t *testing.T) {
	c, fc := newTestCore(t)

	a, err := c.Sync()
	require.NoError(t, err)
	b, err := c.Sync()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	reqs := fc.requests()
	require.Len(t, reqs, 3)
	var p wire.Sync
	require.NoError(t, reqs[2].DecodePayload(&p))
	assert.Equal(t, wire.OpSync, reqs[2].Op)
	assert.Equal(t, b, p.Seq)
}

func TestRunDispatchesInOrderAndQuits(t *testing.T) {
	c, fc := newTestCore(t)

	var got []wire.Seq
	c.OnDone(func(id uint32, seq wire.Seq) {
		got = append(got, seq)
		if seq == 2 {
			c.Quit()
		}
	})

	for _, seq := range []wire.Seq{1, 2, 3} {
		fc.emit(t, wire.OpDone, wire.CoreID, wire.Done{ID: wire.CoreID, Seq: seq})
	}

	require.NoError(t, waitRun(t, runAsync(c)))
	assert.Equal(t, []wire.Seq{1, 2}, got)

	// The third event stays queued for the next Run.
	require.Eventually(t, func() bool { return c.Pending() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRegistryBindAndProxyEvents(t *testing.T) {
	c, fc := newTestCore(t)

	reg, err := c.GetRegistry()
	require.NoError(t, err)
	same, err := c.GetRegistry()
	require.NoError(t, err)
	assert.Same(t, reg, same)

	var infos []*wire.Info
	var proxy *Proxy
	var bindErr error
	reg.OnGlobal(func(g *wire.Global) {
		proxy, bindErr = reg.Bind(g)
		if bindErr == nil {
			proxy.OnInfo(func(info *wire.Info) { infos = append(infos, info) })
		}
	})
	c.OnDone(func(uint32, wire.Seq) { c.Quit() })

	fc.emit(t, wire.OpGlobal, registryID, wire.Global{
		ID: 40, Type: wire.TypeNode, Version: 3,
		Props: props.New(props.KeyMediaClass, "Audio/Sink"),
	})
	fc.emit(t, wire.OpInfo, 2, wire.Info{ID: 40, Props: props.New(props.KeyNodeName, "sink")})
	fc.emit(t, wire.OpInfo, 9, wire.Info{ID: 99})
	fc.emit(t, wire.OpDone, wire.CoreID, wire.Done{ID: wire.CoreID, Seq: 1})

	require.NoError(t, waitRun(t, runAsync(c)))

	require.NoError(t, bindErr)
	require.NotNil(t, proxy)
	assert.Equal(t, uint32(2), proxy.ID())
	assert.Equal(t, uint32(40), proxy.GlobalID())
	assert.Equal(t, wire.TypeNode, proxy.Type())
	require.Len(t, infos, 1)
	assert.Equal(t, "sink", infos[0].Props.String(props.KeyNodeName, ""))

	reqs := fc.requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, wire.OpGetRegistry, reqs[1].Op)
	assert.Equal(t, wire.OpBind, reqs[2].Op)
	var bind wire.Bind
	require.NoError(t, reqs[2].DecodePayload(&bind))
	assert.Equal(t, wire.Bind{GlobalID: 40, Type: wire.TypeNode, Version: 3, NewID: 2}, bind)
}

func TestProxyDestroy(t *testing.T) {
	c, fc := newTestCore(t)
	reg, err := c.GetRegistry()
	require.NoError(t, err)

	p, err := reg.Bind(&wire.Global{ID: 7, Type: wire.TypeMetadata})
	require.NoError(t, err)

	require.NoError(t, p.Destroy())
	assert.ErrorIs(t, p.Destroy(), ErrUnknownProxy)

	reqs := fc.requests()
	assert.Equal(t, wire.OpDestroy, reqs[len(reqs)-1].Op)
}

func TestMetadataPropertyEvents(t *testing.T) {
	c, fc := newTestCore(t)
	reg, err := c.GetRegistry()
	require.NoError(t, err)

	p, err := reg.Bind(&wire.Global{ID: 31, Type: wire.TypeMetadata})
	require.NoError(t, err)

	var keys []string
	p.OnProperty(func(prop *wire.Property) { keys = append(keys, prop.Key) })
	c.OnDone(func(uint32, wire.Seq) { c.Quit() })

	v := "48000"
	fc.emit(t, wire.OpProperty, p.ID(), wire.Property{Key: "clock.rate", Value: &v})
	fc.emit(t, wire.OpProperty, p.ID(), wire.Property{Key: "log.level", Value: &v})
	fc.emit(t, wire.OpDone, wire.CoreID, wire.Done{ID: wire.CoreID, Seq: 1})

	require.NoError(t, waitRun(t, runAsync(c)))
	assert.Equal(t, []string{"clock.rate", "log.level"}, keys)
}

func TestRemoteErrorHandler(t *testing.T) {
	c, fc := newTestCore(t)

	var got *RemoteError
	c.OnError(func(err *RemoteError) {
		got = err
		c.Quit()
	})
	fc.emit(t, wire.OpError, wire.CoreID, wire.Error{ID: 5, Status: wire.StatusNoEntity, Message: "no global 5"})

	require.NoError(t, waitRun(t, runAsync(c)))
	require.NotNil(t, got)
	assert.Equal(t, uint32(5), got.ID)
	assert.Equal(t, wire.StatusNoEntity, got.Status)
	assert.Contains(t, got.Error(), "no global 5")
}

func TestRunReturnsOnDisconnect(t *testing.T) {
	c, fc := newTestCore(t)
	close(fc.in)

	assert.ErrorIs(t, waitRun(t, runAsync(c)), ErrDisconnected)
}

func TestCloseStopsRunAndRequests(t *testing.T) {
	c, _ := newTestCore(t)
	errc := runAsync(c)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, waitRun(t, errc), ErrClosed)

	_, err := c.Sync()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQuitFromAnotherGoroutine(t *testing.T) {
	c, _ := newTestCore(t)
	errc := runAsync(c)

	time.Sleep(10 * time.Millisecond)
	c.Quit()
	assert.NoError(t, waitRun(t, errc))
}

func TestQuitBeforeRun(t *testing.T) {
	c, fc := newTestCore(t)
	c.Quit()
	assert.NoError(t, waitRun(t, runAsync(c)))

	// The flag is cleared once Run returns.
	var seen int
	c.OnDone(func(uint32, wire.Seq) {
		seen++
		c.Quit()
	})
	fc.emit(t, wire.OpDone, wire.CoreID, wire.Done{ID: wire.CoreID, Seq: 1})
	assert.NoError(t, waitRun(t, runAsync(c)))
	assert.Equal(t, 1, seen)
}

func TestRunClearsUnusedWakeups(t *testing.T) {
	t.Run("QuitBeforeRun", func(t *testing.T) {
		c, _ := newTestCore(t)
		c.Quit()
		require.NoError(t, waitRun(t, runAsync(c)))
		assert.Zero(t, c.inbox.pendingWakeups())
	})

	t.Run("QuitFromCallback", func(t *testing.T) {
		c, fc := newTestCore(t)
		var seen []wire.Seq
		c.OnDone(func(_ uint32, seq wire.Seq) {
			seen = append(seen, seq)
			c.Quit()
		})
		fc.emit(t, wire.OpDone, wire.CoreID, wire.Done{ID: wire.CoreID, Seq: 1})
		require.NoError(t, waitRun(t, runAsync(c)))
		assert.Zero(t, c.inbox.pendingWakeups())

		// The next Run blocks for the next event instead of spinning on a
		// stale wakeup.
		fc.emit(t, wire.OpDone, wire.CoreID, wire.Done{ID: wire.CoreID, Seq: 2})
		require.NoError(t, waitRun(t, runAsync(c)))
		assert.Equal(t, []wire.Seq{1, 2}, seen)
	})
}

func TestBindOnForeignRegistry(t *testing.T) {
	c, _ := newTestCore(t)
	reg := &Registry{core: c}
	_, err := reg.Bind(&wire.Global{ID: 1, Type: wire.TypeNode})
	assert.ErrorIs(t, err, ErrNotRegistry)
}
