package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"options-flow-tracker/aggregation"
	"options-flow-tracker/buffer"
	"options-flow-tracker/handlers"
	"options-flow-tracker/models"
)

const eventQueueSize = 1024

// ErrStopped is returned when an operation is attempted after Run has returned
var ErrStopped = errors.New("state store stopped")

// SnapshotSource supplies the authoritative backend snapshot
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// CommandClient issues auto-trade commands to the backend
type CommandClient interface {
	EnableAutoTrade(ctx context.Context) error
	DisableAutoTrade(ctx context.Context) error
	SimulateTrade(ctx context.Context, symbol string, side models.TradeSide) error
}

// SnapshotCache persists the last applied snapshot across restarts
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// Options configures a Store
type Options struct {
	BufferCapacity int
	Thresholds     *aggregation.Thresholds // nil uses the ±30 policy
	PollInterval   time.Duration           // 0 disables periodic refresh
}

// Store owns all mutable client state. Every mutation runs on the goroutine executing Run;
// network calls run elsewhere and report back as events.
type Store struct {
	opts     Options
	th       aggregation.Thresholds
	source   SnapshotSource
	commands CommandClient
	cache    SnapshotCache
	log      *logrus.Entry

	events chan event
	done   chan struct{}
	saves  chan *models.Snapshot // latest snapshot awaiting a cache write

	// Owned by the Run goroutine
	status       models.ConnectionStatus
	flows        *buffer.FlowBuffer
	snapshot     *models.Snapshot
	stale        bool
	issuedSeq    uint64
	settledSeq   uint64 // highest fetch whose result, success or failure, has been taken
	lastFetchErr string
	lastCmdErr   string
	version      uint64

	current atomic.Pointer[ReadModel]

	subsMu  sync.Mutex
	subs    map[int]chan *ReadModel
	nextSub int
	closed  bool

	inflight sync.WaitGroup
}

// New creates a Store. cache may be nil.
func New(opts Options, source SnapshotSource, commands CommandClient, cache SnapshotCache, logger *logrus.Logger) *Store {
	if opts.BufferCapacity <= 0 {
		opts.BufferCapacity = buffer.DefaultCapacity
	}
	th := aggregation.DefaultThresholds()
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}

	s := &Store{
		opts:     opts,
		th:       th,
		source:   source,
		commands: commands,
		cache:    cache,
		log:      logger.WithField("component", "store"),
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
		saves:    make(chan *models.Snapshot, 1),
		status:   models.StatusDisconnected,
		flows:    buffer.NewFlowBuffer(opts.BufferCapacity),
		stale:    true,
		subs:     make(map[int]chan *ReadModel),
	}
	s.current.Store(s.build())
	return s
}

// Run processes events until ctx is done. It issues the initial snapshot fetch, seeds from
// the cache when one is configured, and drives the optional poll timer.
func (s *Store) Run(ctx context.Context) error {
	defer func() {
		close(s.done)
		s.inflight.Wait()
		s.closeSubscribers()
	}()

	if s.cache != nil {
		s.goAsync(func() {
			snap, err := s.cache.LoadSnapshot(ctx)
			if err != nil {
				s.log.WithError(err).Debug("No cached snapshot available")
				return
			}
			s.post(seedEvent{snap: snap})
		})
		s.goAsync(func() { s.cacheWriter(ctx) })
	}
	s.refresh(ctx, "startup")

	var tick <-chan time.Time
	if s.opts.PollInterval > 0 {
		ticker := time.NewTicker(s.opts.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("State store stopped")
			return nil
		case <-tick:
			s.refresh(ctx, "poll")
		case ev := <-s.events:
			if s.apply(ctx, ev) {
				s.publish()
			}
		}
	}
}

// apply mutates state for one event and reports whether the read model changed
func (s *Store) apply(ctx context.Context, ev event) bool {
	switch e := ev.(type) {
	case flowEvent:
		s.flows.Push(e.event)
		return true

	case lifecycleEvent:
		s.log.Debugf("Lifecycle event %s, refreshing snapshot", e.kind)
		s.refresh(ctx, string(e.kind))
		return false

	case refreshEvent:
		s.refresh(ctx, e.reason)
		return false

	case statusEvent:
		if s.status == e.status {
			return false
		}
		s.status = e.status
		return true

	case snapshotEvent:
		return s.applySnapshot(ctx, e)

	case seedEvent:
		if s.snapshot != nil {
			return false
		}
		s.log.Info("📦 Seeded state from cached snapshot")
		s.snapshot = e.snap
		s.stale = true
		return true

	case toggleEvent:
		enabled := s.snapshot != nil && s.snapshot.Enabled
		if enabled {
			s.command(ctx, "disable", func(ctx context.Context) error { return s.commands.DisableAutoTrade(ctx) })
		} else {
			s.command(ctx, "enable", func(ctx context.Context) error { return s.commands.EnableAutoTrade(ctx) })
		}
		return false

	case simulateEvent:
		s.command(ctx, "simulate", func(ctx context.Context) error {
			return s.commands.SimulateTrade(ctx, e.symbol, e.side)
		})
		return false

	case commandEvent:
		if e.err != nil {
			s.log.WithError(e.err).Errorf("❌ Command %s failed", e.command)
			s.lastCmdErr = e.err.Error()
		} else {
			s.log.Infof("✅ Command %s accepted", e.command)
			s.lastCmdErr = ""
		}
		// Server state is only learned from a fetch, never assumed from the command outcome
		s.refresh(ctx, "after "+e.command)
		return true

	default:
		s.log.Warnf("Unknown store event %T", ev)
		return false
	}
}

func (s *Store) applySnapshot(ctx context.Context, e snapshotEvent) bool {
	if e.seq <= s.settledSeq {
		s.log.Debugf("Discarding superseded snapshot result #%d (applied #%d)", e.seq, s.settledSeq)
		return false
	}

	if e.err != nil {
		s.log.WithError(e.err).Errorf("❌ Snapshot fetch #%d failed, keeping previous state", e.seq)
		s.settledSeq = e.seq
		s.lastFetchErr = e.err.Error()
		return true
	}

	s.settledSeq = e.seq
	s.snapshot = e.snap
	s.stale = false
	s.lastFetchErr = ""

	if s.cache != nil {
		offerSave(s.saves, e.snap)
	}
	return true
}

// cacheWriter persists applied snapshots one at a time, so the cache never ends up
// holding an older snapshot than the last one applied.
func (s *Store) cacheWriter(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.saves:
			if err := s.cache.SaveSnapshot(ctx, snap); err != nil {
				s.log.WithError(err).Warn("Failed to cache snapshot")
			}
		}
	}
}

// offerSave replaces any pending save with snap. Only the Run goroutine sends.
func offerSave(ch chan *models.Snapshot, snap *models.Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// refresh starts a fetch tagged with the next request sequence number
func (s *Store) refresh(ctx context.Context, reason string) {
	s.issuedSeq++
	seq := s.issuedSeq
	s.log.Debugf("Snapshot fetch #%d (%s)", seq, reason)

	s.goAsync(func() {
		snap, err := s.source.FetchSnapshot(ctx)
		if err == nil && snap == nil {
			err = &models.FetchFailedError{Operation: "fetch snapshot", Err: errors.New("empty snapshot")}
		}
		if snap != nil {
			snap.Normalize()
		}
		s.post(snapshotEvent{seq: seq, snap: snap, err: err})
	})
}

func (s *Store) command(ctx context.Context, name string, fn func(context.Context) error) {
	if s.commands == nil {
		err := fmt.Errorf("%s: no command client configured", name)
		s.goAsync(func() { s.post(commandEvent{command: name, err: err}) })
		return
	}
	s.goAsync(func() {
		s.post(commandEvent{command: name, err: fn(ctx)})
	})
}

func (s *Store) goAsync(fn func()) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fn()
	}()
}

// post enqueues an event, giving up once the loop has stopped
func (s *Store) post(ev event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// build computes a fresh read model from the current state
func (s *Store) build() *ReadModel {
	s.version++
	rm := &ReadModel{
		Version:          s.version,
		Status:           s.status,
		Connected:        s.status == models.StatusConnected,
		Positions:        []models.Position{},
		RecentOrders:     []models.Position{},
		Signals:          map[string]models.SignalSummary{},
		View:             aggregation.Compute(s.flows.Snapshot(), s.snapshot, s.th),
		BufferSize:       s.flows.Size(),
		BufferCapacity:   s.flows.Capacity(),
		SnapshotStale:    s.stale,
		LastFetchError:   s.lastFetchErr,
		LastCommandError: s.lastCmdErr,
		UpdatedAt:        time.Now(),
	}

	if snap := s.snapshot; snap != nil {
		rm.AutoTradeEnabled = snap.Enabled
		rm.Positions = snap.Positions
		rm.RecentOrders = snap.RecentOrders
		rm.Signals = snap.Signals
		if !snap.FetchedAt.IsZero() {
			at := snap.FetchedAt
			rm.SnapshotAt = &at
		}
	}
	return rm
}

func (s *Store) publish() {
	rm := s.build()
	s.current.Store(rm)

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		offerLatest(ch, rm)
	}
}

// offerLatest replaces any unread value so slow subscribers only see the newest state
func offerLatest(ch chan *ReadModel, rm *ReadModel) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- rm:
	default:
	}
}

func (s *Store) closeSubscribers() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Current returns the latest published read model
func (s *Store) Current() *ReadModel {
	return s.current.Load()
}

// Subscribe returns a channel that always yields the newest read model, starting with the
// current one. The channel is closed when cancel is called or the store stops.
func (s *Store) Subscribe() (<-chan *ReadModel, func()) {
	ch := make(chan *ReadModel, 1)

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.current.Load()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// ToggleAutoTrade flips the backend enablement based on the last known flag
func (s *Store) ToggleAutoTrade() error {
	return s.enqueue(toggleEvent{})
}

// PlaceSimulatedTrade asks the backend to simulate a trade
func (s *Store) PlaceSimulatedTrade(symbol string, side models.TradeSide) error {
	return s.enqueue(simulateEvent{symbol: symbol, side: side})
}

// Refresh requests a snapshot fetch
func (s *Store) Refresh() error {
	return s.enqueue(refreshEvent{reason: "manual"})
}

// SetStatus records a connection status change. It matches websocket.StatusListener.
func (s *Store) SetStatus(status models.ConnectionStatus, _ error) {
	s.post(statusEvent{status: status})
}

func (s *Store) enqueue(ev event) error {
	if !s.post(ev) {
		return ErrStopped
	}
	return nil
}

// Handle implements handlers.MessageHandler
func (s *Store) Handle(msg handlers.Message) error {
	switch m := msg.(type) {
	case *handlers.FlowMessage:
		return s.enqueue(flowEvent{event: m.Event})
	case *handlers.LifecycleMessage:
		return s.enqueue(lifecycleEvent{kind: m.Type})
	default:
		return fmt.Errorf("store: unexpected message %T", msg)
	}
}

// Kinds implements handlers.MessageHandler
func (s *Store) Kinds() []models.EventKind {
	kinds := make([]models.EventKind, 0, len(models.FlowKinds)+len(models.LifecycleKinds))
	kinds = append(kinds, models.FlowKinds...)
	return append(kinds, models.LifecycleKinds...)
}
