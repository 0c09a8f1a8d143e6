package roundtrip

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pwscan/pwscan-go/pkg/core"
	"github.com/pwscan/pwscan-go/pkg/log"
	"github.com/pwscan/pwscan-go/pkg/model"
	"github.com/pwscan/pwscan-go/pkg/props"
	"github.com/pwscan/pwscan-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestScenarioNoRelevantObjects(t *testing.T) {
	r := newFakeRemote().then(
		global(5, wire.TypePort),
		global(6, wire.TypeMetadata, props.KeyMetadataName, "default"),
		done(wire.CoreID, 1),
		done(wire.CoreID, 99),
	)

	s := NewSession(r)
	res, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, 3, r.quitStep)
	assert.Len(t, r.script, 1)
	assert.Empty(t, res.Devices)
	assert.False(t, res.HasSettings)
	assert.Equal(t, 0, s.SubscriptionCount())
}

func TestScenarioTwoDevicesOutOfOrderCompletion(t *testing.T) {
	// Tokens: 1 initial, 2 for D1, 3 for D2.
	r := newFakeRemote().then(
		sinkGlobal(40),
		sourceGlobal(41),
		info(40, props.KeyMediaClass, "Audio/Sink", props.KeyNodeName, "alsa_output.foo", props.KeyAudioChannels, "2"),
		info(41, props.KeyMediaClass, "Audio/Source", props.KeyNodeName, "alsa_input.bar", props.KeyAudioChannels, "1"),
		done(wire.CoreID, 3),
		done(wire.CoreID, 1),
		done(wire.CoreID, 2),
		done(wire.CoreID, 4),
	)

	s := NewSession(r)
	res, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, 7, r.quitStep, "loop must stop on the last of the three completions")
	require.Len(t, res.Devices, 2)

	names := map[string]model.Device{}
	for _, d := range res.Devices {
		names[d.NodeName] = d
	}
	foo := names["alsa_output.foo"]
	assert.Equal(t, model.DirectionInput, foo.Direction)
	assert.Equal(t, 2, foo.Channels)
	assert.Equal(t, uint32(40), foo.ID)

	bar := names["alsa_input.bar"]
	assert.Equal(t, model.DirectionOutput, bar.Direction)
	assert.Equal(t, 1, bar.Channels)
	assert.Equal(t, props.Unknown, bar.NickName)
}

func TestScenarioSettingsMalformedAllowedRates(t *testing.T) {
	r := newFakeRemote().then(
		settingsGlobal(31),
		property(31, 0, model.KeyClockRate, strp("48000")),
		property(31, 0, model.KeyClockAllowedRates, strp("[44100 48000]")),
		property(31, 0, model.KeyClockAllowedRates, strp("[44100 xyz]")),
		done(wire.CoreID, 1),
		done(wire.CoreID, 2),
	)

	res, err := NewSession(r).Run()
	require.NoError(t, err)

	require.True(t, res.HasSettings)
	assert.Equal(t, uint32(48000), res.Settings.Rate)
	assert.Equal(t, []uint32{44100, 48000}, res.Settings.AllowedRates)
}

func TestScenarioNodeWithoutMediaClassIgnored(t *testing.T) {
	r := newFakeRemote().then(
		global(50, wire.TypeNode, props.KeyNodeName, "mystery"),
		done(wire.CoreID, 1),
	)

	s := NewSession(r)
	res, err := s.Run()
	require.NoError(t, err)

	assert.Empty(t, res.Devices)
	assert.Equal(t, 1, r.syncCalls)
	assert.Empty(t, r.registry.(*fakeRegistry).proxies)
	_, ok := s.Subscription(50)
	assert.False(t, ok)
}

func TestUnknownAndForeignTokensNeverComplete(t *testing.T) {
	r := newFakeRemote().then(
		done(wire.CoreID, 77),
		done(5, 1), // tracked token, but not from the core
		done(wire.CoreID, 1),
	)

	s := NewSession(r)
	_, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, 3, r.quitStep)
	assert.Equal(t, 0, s.Pending())
}

func TestTerminatesAfterNPlusOneCompletions(t *testing.T) {
	for n := 0; n <= 5; n++ {
		for rot := 0; rot <= n; rot++ {
			t.Run(fmt.Sprintf("n=%d/rot=%d", n, rot), func(t *testing.T) {
				r := newFakeRemote()
				for i := 0; i < n; i++ {
					r.then(sinkGlobal(uint32(100 + i)))
				}

				// Tokens 1..n+1 completed in a rotated order.
				tokens := make([]wire.Seq, n+1)
				for i := range tokens {
					tokens[i] = wire.Seq((i+rot)%(n+1) + 1)
				}
				for _, seq := range tokens {
					r.then(done(wire.CoreID, seq))
				}
				r.then(done(wire.CoreID, 1000))

				s := NewSession(r)
				_, err := s.Run()
				require.NoError(t, err)
				assert.Equal(t, n+n+1, r.quitStep)
				assert.Equal(t, n, s.SubscriptionCount())
			})
		}
	}
}

func TestRepeatedInfoAppendsDevices(t *testing.T) {
	r := newFakeRemote().then(
		sinkGlobal(40),
		info(40, props.KeyNodeName, "first"),
		info(40, props.KeyNodeName, "second"),
		done(wire.CoreID, 1),
		done(wire.CoreID, 2),
	)

	res, err := NewSession(r).Run()
	require.NoError(t, err)
	require.Len(t, res.Devices, 2)
	assert.Equal(t, "first", res.Devices[0].NodeName)
	assert.Equal(t, "second", res.Devices[1].NodeName)
	// Info without media.class keeps the direction decided at discovery.
	assert.Equal(t, model.DirectionInput, res.Devices[1].Direction)
}

func TestInfoWithoutPropertiesIgnored(t *testing.T) {
	r := newFakeRemote().then(
		sinkGlobal(40),
		func(r *fakeRemote) {
			for _, fn := range r.registry.(*fakeRegistry).proxies[40].onInfo {
				fn(&wire.Info{ID: 40, ChangeMask: wire.ChangeMaskState, State: "running"})
			}
		},
		done(wire.CoreID, 1),
		done(wire.CoreID, 2),
	)

	res, err := NewSession(r).Run()
	require.NoError(t, err)
	assert.Empty(t, res.Devices)
}

func TestRepeatedGlobalIgnored(t *testing.T) {
	r := newFakeRemote().then(
		sinkGlobal(40),
		sinkGlobal(40),
		done(wire.CoreID, 1),
		done(wire.CoreID, 2),
	)

	s := NewSession(r)
	_, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, 2, r.syncCalls)
	assert.Equal(t, 1, s.SubscriptionCount())
}

func TestSettingsOtherSubjectAndUnknownKeysIgnored(t *testing.T) {
	r := newFakeRemote().then(
		settingsGlobal(31),
		property(31, 7, model.KeyClockRate, strp("96000")),
		property(31, 0, "clock.power-of-two-quantum", strp("true")),
		property(31, 0, model.KeyClockQuantum, strp("1024")),
		property(31, 0, model.KeyClockQuantum, nil),
		done(wire.CoreID, 1),
		done(wire.CoreID, 2),
	)

	res, err := NewSession(r).Run()
	require.NoError(t, err)
	assert.Equal(t, model.Settings{Quantum: 1024}, res.Settings)
}

func TestBindFailureIsFatal(t *testing.T) {
	reg := &stubRegistry{}
	reg.On("Bind", uint32(41)).Return(nil, errors.New("no such object"))

	r := newFakeRemote()
	r.registry = reg
	r.then(
		sinkGlobal(41),
		sinkGlobal(42),
		done(wire.CoreID, 1),
	)

	res, err := NewSession(r).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind global 41")
	assert.Empty(t, res.Devices)
	assert.Equal(t, 1, r.quitStep)
	reg.AssertExpectations(t)
	reg.AssertNotCalled(t, "Bind", uint32(42))
}

func TestSyncFailureIsFatal(t *testing.T) {
	t.Run("initial", func(t *testing.T) {
		r := newFakeRemote().then(done(wire.CoreID, 1))
		r.failSyncAt = 1
		r.syncErr = errors.New("connection reset")

		_, err := NewSession(r).Run()
		assert.ErrorIs(t, err, r.syncErr)
		assert.Len(t, r.script, 1, "loop must not run")
	})

	t.Run("mid enumeration", func(t *testing.T) {
		r := newFakeRemote().then(
			sinkGlobal(40),
			sinkGlobal(41),
			done(wire.CoreID, 1),
		)
		r.failSyncAt = 3
		r.syncErr = errors.New("connection reset")

		_, err := NewSession(r).Run()
		assert.ErrorIs(t, err, r.syncErr)
		assert.Equal(t, 2, r.quitStep)
	})
}

func TestRegistryFailureIsFatal(t *testing.T) {
	r := newFakeRemote()
	r.registryErr = errors.New("refused")

	_, err := NewSession(r).Run()
	assert.ErrorIs(t, err, ErrNoRegistry)
	assert.Equal(t, 0, r.syncCalls)
}

func TestRemoteErrorIsFatal(t *testing.T) {
	r := newFakeRemote().then(
		sinkGlobal(40),
		remoteError(40, wire.StatusNoEntity),
		done(wire.CoreID, 1),
		done(wire.CoreID, 2),
	)

	_, err := NewSession(r).Run()
	var rerr *core.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, wire.StatusNoEntity, rerr.Status)
}

func TestStalledServiceReportsError(t *testing.T) {
	r := newFakeRemote().then(
		sinkGlobal(40),
		done(wire.CoreID, 1),
	)

	s := NewSession(r)
	_, err := s.Run()
	assert.ErrorIs(t, err, errStalled)
	assert.Equal(t, 1, s.Pending())
}

func TestSubscriptionsRetainedUntilClose(t *testing.T) {
	r := newFakeRemote().then(
		sinkGlobal(40),
		settingsGlobal(31),
		done(wire.CoreID, 1),
		done(wire.CoreID, 2),
		done(wire.CoreID, 3),
	)

	s := NewSession(r)
	_, err := s.Run()
	require.NoError(t, err)

	require.Equal(t, 2, s.SubscriptionCount())
	sub, ok := s.Subscription(40)
	require.True(t, ok)
	assert.Equal(t, ListenerDevice, sub.Kind)
	assert.Equal(t, model.DirectionInput, sub.Direction)

	sub, ok = s.Subscription(31)
	require.True(t, ok)
	assert.Equal(t, ListenerSettings, sub.Kind)

	proxies := r.registry.(*fakeRegistry).proxies
	for _, p := range proxies {
		assert.False(t, p.destroyed)
	}

	require.NoError(t, s.Close())
	assert.Equal(t, 0, s.SubscriptionCount())
	for _, p := range proxies {
		assert.True(t, p.destroyed)
	}
	assert.NoError(t, s.Close())

	_, err = s.Run()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionRunsOnce(t *testing.T) {
	r := newFakeRemote().then(done(wire.CoreID, 1))
	s := NewSession(r)
	_, err := s.Run()
	require.NoError(t, err)

	_, err = s.Run()
	assert.ErrorIs(t, err, ErrSessionUsed)
}

type recordingLogger struct {
	events []log.Event
}

func (l *recordingLogger) Log(e log.Event) { l.events = append(l.events, e) }

func TestProtocolLoggerRecordsBarrier(t *testing.T) {
	rec := &recordingLogger{}
	r := newFakeRemote().then(
		sinkGlobal(40),
		done(wire.CoreID, 2),
		done(wire.CoreID, 1),
	)

	s := NewSession(r, WithProtocolLogger(rec))
	_, err := s.Run()
	require.NoError(t, err)

	var states []string
	for _, ev := range rec.events {
		require.NotNil(t, ev.StateChange)
		assert.Equal(t, log.LayerSession, ev.Layer)
		assert.Equal(t, s.ID(), ev.ConnectionID)
		states = append(states, ev.StateChange.Entity.String()+":"+ev.StateChange.NewState)
	}
	assert.Equal(t, []string{
		"SESSION:RUNNING",
		"BARRIER:PENDING_2",
		"BARRIER:PENDING_1",
		"BARRIER:PENDING_0",
		"SESSION:COMPLETE",
	}, states)
}
