package roundtrip

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pwscan/pwscan-go/pkg/barrier"
	"github.com/pwscan/pwscan-go/pkg/core"
	"github.com/pwscan/pwscan-go/pkg/log"
	"github.com/pwscan/pwscan-go/pkg/model"
	"github.com/pwscan/pwscan-go/pkg/props"
	"github.com/pwscan/pwscan-go/pkg/wire"
)

// Session errors.
var (
	ErrNoRegistry    = errors.New("cannot obtain registry")
	ErrSessionUsed   = errors.New("session already run")
	ErrSessionClosed = errors.New("session closed")
)

// ListenerKind says which listener a subscription carries.
type ListenerKind uint8

const (
	// ListenerDevice receives info events of an audio node.
	ListenerDevice ListenerKind = iota + 1
	// ListenerSettings receives property events of the settings object.
	ListenerSettings
)

func (k ListenerKind) String() string {
	switch k {
	case ListenerDevice:
		return "device"
	case ListenerSettings:
		return "settings"
	default:
		return "unknown"
	}
}

// Subscription is a bound global and the listener registered on it.
// Events stop once it is released by Close.
type Subscription struct {
	GlobalID uint32
	Kind     ListenerKind
	Proxy    Proxy

	// Direction decided at discovery, used when info lacks a usable class.
	Direction model.Direction
}

// Option configures a Session.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	protoLog log.Logger
}

// WithLogger sets the operational logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProtocolLogger records session and barrier state changes.
func WithProtocolLogger(logger log.Logger) Option {
	return func(o *options) { o.protoLog = logger }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Session is a single scan over a Remote. All of its state is touched
// only from the Remote's dispatch loop.
type Session struct {
	id       string
	remote   Remote
	registry Registry
	logger   *slog.Logger
	protoLog log.Logger

	store   *model.Store
	pending *barrier.Set[wire.Seq]
	subs    map[uint32]*Subscription

	err    error
	ran    bool
	closed bool
}

// NewSession creates a session on remote. Nothing is sent until Run.
func NewSession(remote Remote, opts ...Option) *Session {
	o := buildOptions(opts)
	id := uuid.New().String()
	return &Session{
		id:       id,
		remote:   remote,
		logger:   o.logger.With("session", id),
		protoLog: o.protoLog,
		store:    model.NewStore(),
		subs:     make(map[uint32]*Subscription),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Run performs the scan and blocks until every issued Sync has been
// answered. A session can run only once.
func (s *Session) Run() (model.Result, error) {
	if s.closed {
		return model.Result{}, ErrSessionClosed
	}
	if s.ran {
		return model.Result{}, ErrSessionUsed
	}
	s.ran = true

	reg, err := s.remote.GetRegistry()
	if err != nil {
		return model.Result{}, s.finish(fmt.Errorf("%w: %w", ErrNoRegistry, err))
	}
	s.registry = reg

	// The first Sync goes out before any handler exists. Its Done cannot
	// be dispatched until Run below.
	seq, err := s.remote.Sync()
	if err != nil {
		return model.Result{}, s.finish(fmt.Errorf("initial sync: %w", err))
	}
	s.pending = barrier.New(seq, s.remote.Quit)
	s.logger.Debug("tracking initial sync", "seq", seq)

	reg.OnGlobal(s.handleGlobal)
	s.remote.OnDone(s.handleDone)
	s.remote.OnError(s.handleRemoteError)

	s.logState(log.StateEntitySession, "", "RUNNING", "")

	if err := s.remote.Run(); err != nil && s.err == nil {
		s.err = fmt.Errorf("dispatch: %w", err)
	}
	if s.err != nil {
		return model.Result{}, s.finish(s.err)
	}
	if !s.pending.Done() {
		return model.Result{}, s.finish(errors.New("dispatch stopped before all requests completed"))
	}

	s.logState(log.StateEntitySession, "RUNNING", "COMPLETE", "")
	res := s.store.Snapshot()
	s.logger.Info("scan complete", "devices", len(res.Devices), "settings", res.HasSettings)
	return res, nil
}

// Close releases every subscription. Run must have returned.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for id, sub := range s.subs {
		if err := sub.Proxy.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("release global %d: %w", id, err))
		}
		delete(s.subs, id)
	}
	return errors.Join(errs...)
}

// Subscription returns the subscription for a global, if one was made.
func (s *Session) Subscription(globalID uint32) (*Subscription, bool) {
	sub, ok := s.subs[globalID]
	return sub, ok
}

// SubscriptionCount returns the number of retained subscriptions.
func (s *Session) SubscriptionCount() int {
	return len(s.subs)
}

// Pending returns the number of unanswered Syncs.
func (s *Session) Pending() int {
	if s.pending == nil {
		return 0
	}
	return s.pending.Len()
}

// fail records the first fatal error and stops the loop.
func (s *Session) fail(err error) {
	if s.err != nil {
		return
	}
	s.err = err
	s.logger.Error("aborting scan", "error", err)
	s.remote.Quit()
}

func (s *Session) finish(err error) error {
	s.logState(log.StateEntitySession, "RUNNING", "FAILED", err.Error())
	return err
}

// classify decides whether a global is worth binding.
func classify(g *wire.Global) (kind ListenerKind, dir model.Direction, ok bool) {
	switch g.Type {
	case wire.TypeNode:
		class, found := g.Props.Get(props.KeyMediaClass)
		if !found {
			return 0, 0, false
		}
		d, audio := model.DirectionOf(class)
		if !audio {
			return 0, 0, false
		}
		return ListenerDevice, d, true

	case wire.TypeMetadata:
		if g.Props.String(props.KeyMetadataName, "") != model.SettingsName {
			return 0, 0, false
		}
		return ListenerSettings, model.DirectionUnknown, true
	}
	return 0, 0, false
}

func (s *Session) handleGlobal(g *wire.Global) {
	if s.err != nil {
		return
	}

	kind, dir, ok := classify(g)
	if !ok {
		return
	}
	if _, dup := s.subs[g.ID]; dup {
		s.logger.Debug("ignoring repeated global", "id", g.ID)
		return
	}

	proxy, err := s.registry.Bind(g)
	if err != nil {
		s.fail(fmt.Errorf("bind global %d: %w", g.ID, err))
		return
	}

	sub := &Subscription{GlobalID: g.ID, Kind: kind, Proxy: proxy, Direction: dir}
	switch kind {
	case ListenerDevice:
		proxy.OnInfo(func(info *wire.Info) { s.handleInfo(sub, info) })
	case ListenerSettings:
		s.store.Settings()
		proxy.OnProperty(s.handleProperty)
	}
	s.subs[g.ID] = sub

	seq, err := s.remote.Sync()
	if err != nil {
		s.fail(fmt.Errorf("sync for global %d: %w", g.ID, err))
		return
	}
	s.track(seq)
	s.logger.Debug("bound global", "id", g.ID, "kind", kind, "proxy", proxy.ID(), "seq", seq)
}

func (s *Session) handleInfo(sub *Subscription, info *wire.Info) {
	if info.Props == nil {
		s.logger.Debug("info without properties", "id", sub.GlobalID)
		return
	}
	id := info.ID
	if id == 0 {
		id = sub.GlobalID
	}
	model.LogDefaults(s.logger, id, info.Props)
	s.store.AddDevice(model.ParseDevice(id, info.Props, sub.Direction))
}

func (s *Session) handleProperty(p *wire.Property) {
	if p.Subject != 0 {
		s.logger.Debug("ignoring property for other subject", "subject", p.Subject, "key", p.Key)
		return
	}
	applied, err := s.store.Settings().Apply(p.Key, p.Value)
	switch {
	case err != nil:
		s.logger.Debug("discarding settings update", "key", p.Key, "error", err)
	case !applied:
		s.logger.Debug("ignoring settings key", "key", p.Key)
	}
}

func (s *Session) handleDone(id uint32, seq wire.Seq) {
	if id != wire.CoreID {
		return
	}
	before := s.pending.Len()
	if !s.pending.Complete(seq) {
		s.logger.Debug("ignoring unknown sync", "seq", seq)
		return
	}
	s.logState(log.StateEntityBarrier, pendingState(before), pendingState(before-1), fmt.Sprintf("done %d", seq))
}

func (s *Session) handleRemoteError(err *core.RemoteError) {
	s.fail(err)
}

func (s *Session) track(seq wire.Seq) {
	before := s.pending.Len()
	if s.pending.Track(seq) {
		s.logState(log.StateEntityBarrier, pendingState(before), pendingState(before+1), fmt.Sprintf("sync %d", seq))
	}
}

func pendingState(n int) string {
	return fmt.Sprintf("PENDING_%d", n)
}

func (s *Session) logState(entity log.StateEntity, oldState, newState, reason string) {
	if s.protoLog == nil {
		return
	}
	s.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		LocalRole:    log.RoleClient,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
