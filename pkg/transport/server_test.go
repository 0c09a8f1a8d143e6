package transport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pwscan/pwscan-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerRequiresAddress(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestServerEcho(t *testing.T) {
	for _, network := range []string{"unix", "tcp"} {
		t.Run(network, func(t *testing.T) {
			addr := filepath.Join(t.TempDir(), "s")
			if network == "tcp" {
				addr = "127.0.0.1:0"
			}

			disconnected := make(chan struct{}, 1)
			srv, err := NewServer(ServerConfig{
				Network: network,
				Address: addr,
				OnMessage: func(conn *Conn, msg *wire.Message) {
					var p wire.Sync
					if msg.Op == wire.OpSync && msg.DecodePayload(&p) == nil {
						_ = conn.SendPayload(wire.OpDone, wire.CoreID, wire.Done{ID: wire.CoreID, Seq: p.Seq})
					}
				},
				OnDisconnect: func(*Conn) { disconnected <- struct{}{} },
			})
			require.NoError(t, err)
			require.NoError(t, srv.Start(context.Background()))
			defer srv.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			conn, err := Dial(ctx, network, srv.Addr().String())
			require.NoError(t, err)

			require.NoError(t, conn.SendPayload(wire.OpSync, wire.CoreID, wire.Sync{Seq: 7}))
			msg, err := conn.Receive()
			require.NoError(t, err)
			assert.Equal(t, wire.OpDone, msg.Op)

			var done wire.Done
			require.NoError(t, msg.DecodePayload(&done))
			assert.Equal(t, wire.Seq(7), done.Seq)
			assert.Equal(t, 1, srv.ConnectionCount())

			require.NoError(t, conn.Close())
			select {
			case <-disconnected:
			case <-time.After(5 * time.Second):
				t.Fatal("no disconnect callback")
			}
			assert.Equal(t, 0, srv.ConnectionCount())
		})
	}
}

func TestServerStopClosesConnections(t *testing.T) {
	srv, err := NewServer(ServerConfig{Address: filepath.Join(t.TempDir(), "s")})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))

	conn, err := Dial(context.Background(), "unix", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, srv.Stop())

	_, err = conn.Receive()
	assert.Error(t, err)
}

func TestDialRejectsUnknownNetwork(t *testing.T) {
	_, err := Dial(context.Background(), "udp", "127.0.0.1:1")
	assert.Error(t, err)
}
