package actor

import (
	"context"
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-gamecore/config"
	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/amp-labs/amp-gamecore/logger"
	"github.com/amp-labs/amp-gamecore/timer"
	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.uber.org/atomic"
)

// System owns every actor of a process: it creates them on first access,
// shares one worker pool across their lanes, routes timer firings and
// sweeps idle actors.
type System struct {
	cfg    config.ActorConfig
	nodeID uuid.UUID
	loc    *time.Location

	pool     pond.Pool
	ownsPool bool

	scheduler timer.Scheduler
	engine    *timer.Engine

	shards []*shard
	closed atomic.Bool

	defsMu sync.RWMutex
	defs   map[reflect.Type]*registration

	handlersMu sync.RWMutex
	handlers   map[timer.HandlerType]TimerHandler
}

type shard struct {
	mu     sync.RWMutex
	actors map[int64]*Actor
}

type registration struct {
	def        Definition
	generation uint64
}

// Option configures a System.
type Option func(*System)

// WithConfig replaces the default actor settings.
func WithConfig(cfg config.ActorConfig) Option {
	return func(s *System) {
		s.cfg = cfg
	}
}

// WithPool drains lanes on pool instead of a pool owned by the system. The
// caller stops it.
func WithPool(pool pond.Pool) Option {
	return func(s *System) {
		s.pool = pool
	}
}

// WithScheduler replaces the in-process timer engine. The scheduler reports
// firings by calling FireTimer.
func WithScheduler(scheduler timer.Scheduler) Option {
	return func(s *System) {
		s.scheduler = scheduler
	}
}

// WithLocation sets the zone calendar timers are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *System) {
		s.loc = loc
	}
}

// NewSystem builds a System. Without options it uses config.Default's actor
// settings, an unbounded pool and a timer.Engine.
func NewSystem(opts ...Option) *System {
	sys := &System{
		cfg:      config.Default().Actor,
		nodeID:   uuid.New(),
		loc:      time.Local,
		defs:     make(map[reflect.Type]*registration),
		handlers: make(map[timer.HandlerType]TimerHandler),
	}

	for _, opt := range opts {
		opt(sys)
	}

	if sys.cfg.Shards <= 0 {
		sys.cfg.Shards = 1
	}

	if sys.pool == nil {
		sys.pool = pond.NewPool(sys.cfg.PoolSize)
		sys.ownsPool = true
	}

	if sys.scheduler == nil {
		sys.engine = timer.NewEngine(sys.FireTimer)
		sys.scheduler = sys.engine
	}

	sys.shards = make([]*shard, sys.cfg.Shards)
	for i := range sys.shards {
		sys.shards[i] = &shard{actors: make(map[int64]*Actor)}
	}

	return sys
}

// NewSystemFromConfig builds a System from a loaded configuration.
func NewSystemFromConfig(cfg *config.Config, opts ...Option) (*System, error) {
	loc, err := cfg.Timer.TimeLocation()
	if err != nil {
		return nil, err
	}

	return NewSystem(append([]Option{WithConfig(cfg.Actor), WithLocation(loc)}, opts...)...), nil
}

// NodeID identifies this system instance in logs.
func (s *System) NodeID() uuid.UUID {
	return s.nodeID
}

// Location is the zone calendar timers are evaluated in.
func (s *System) Location() *time.Location {
	return s.loc
}

func (s *System) shardFor(id int64) *shard {
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(id))

	return s.shards[xxh3.Hash(buf[:])%uint64(len(s.shards))]
}

// RegisterAgent makes a capability available to every actor.
func (s *System) RegisterAgent(def Definition) error {
	if def.Capability == nil || def.NewAgent == nil {
		return fmt.Errorf("%w: incomplete definition", coreErrors.ErrCapabilityNotRegistered)
	}

	s.defsMu.Lock()
	defer s.defsMu.Unlock()

	s.defs[def.Capability] = &registration{def: def}

	return nil
}

// ReloadAgent swaps in a new build of a registered capability. Each actor
// rebuilds its agent on the next resolution; component state is kept and
// Active is not run again.
func (s *System) ReloadAgent(def Definition) error {
	s.defsMu.Lock()
	defer s.defsMu.Unlock()

	reg, ok := s.defs[def.Capability]
	if !ok {
		return fmt.Errorf("%w: %s", coreErrors.ErrCapabilityNotRegistered, def.Capability)
	}

	if def.NewState == nil {
		def.NewState = reg.def.NewState
	}

	s.defs[def.Capability] = &registration{def: def, generation: reg.generation + 1}

	return nil
}

func (s *System) registration(capability reflect.Type) (*registration, bool) {
	s.defsMu.RLock()
	defer s.defsMu.RUnlock()

	reg, ok := s.defs[capability]

	return reg, ok
}

// GetOrCreate returns the live actor with id, creating it with kind if there
// is none. The kind of an existing actor never changes. While an actor is
// being destroyed its id is still taken and GetOrCreate fails with
// ErrDeadActor.
func (s *System) GetOrCreate(ctx context.Context, id int64, kind Kind) (*Actor, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: system closed", coreErrors.ErrDeadActor)
	}

	sh := s.shardFor(id)

	sh.mu.RLock()
	act, ok := sh.actors[id]
	sh.mu.RUnlock()

	if ok {
		return liveActor(act)
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if act, ok := sh.actors[id]; ok {
		return liveActor(act)
	}

	act = newActor(s, id, kind)
	sh.actors[id] = act

	actorsCreated.WithLabelValues(string(kind)).Inc()

	logger.Get(ctx).Debug("actor created", "actor_id", id, "actor_kind", kind, "node", s.nodeID)

	return act, nil
}

func liveActor(act *Actor) (*Actor, error) {
	if act.Destroyed() {
		return nil, fmt.Errorf("%w: actor %d is being destroyed", coreErrors.ErrDeadActor, act.id)
	}

	return act, nil
}

// Get returns the actor registered under id, which may be mid-destroy.
func (s *System) Get(id int64) (*Actor, bool) {
	sh := s.shardFor(id)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	act, ok := sh.actors[id]

	return act, ok
}

// Len returns the number of live actors.
func (s *System) Len() int {
	total := 0

	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.actors)
		sh.mu.RUnlock()
	}

	return total
}

// Remove destroys the actor with id. Unknown ids are ignored.
func (s *System) Remove(ctx context.Context, id int64) error {
	act, ok := s.Get(id)
	if !ok {
		return nil
	}

	return act.Destroy(ctx)
}

func (s *System) forget(act *Actor) {
	sh := s.shardFor(act.id)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.actors[act.id] == act {
		delete(sh.actors, act.id)
	}
}

func recyclable(act *Actor) bool {
	return !act.Destroyed() && act.autoRecycle.Load() && act.refs.Load() == 0 && act.lane.Idle()
}

// Sweep destroys every actor that has auto-recycle on, holds no references
// and has an idle lane. It returns how many were destroyed.
func (s *System) Sweep(ctx context.Context) int {
	var victims []*Actor

	for _, sh := range s.shards {
		sh.mu.RLock()

		for _, act := range sh.actors {
			if recyclable(act) {
				victims = append(victims, act)
			}
		}

		sh.mu.RUnlock()
	}

	swept := 0

	for _, act := range victims {
		// The actor may have picked up work since the scan.
		if !recyclable(act) {
			continue
		}

		if err := act.Destroy(ctx); err != nil {
			logger.Get(ctx).Warn("recycled actor did not shut down cleanly",
				"actor_id", act.id, "actor_kind", act.kind, "error", err)
		}

		swept++
	}

	if swept > 0 {
		actorsRecycled.Add(float64(swept))
		logger.Get(ctx).Debug("actor sweep finished", "recycled", swept, "remaining", s.Len())
	}

	return swept
}

// RunSweeper calls Sweep every configured sweep interval until ctx is done.
func (s *System) RunSweeper(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Close destroys every actor, stops the owned timer engine and waits for the
// owned pool. Later GetOrCreate calls fail.
func (s *System) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var all []*Actor

	for _, sh := range s.shards {
		sh.mu.RLock()

		for _, act := range sh.actors {
			all = append(all, act)
		}

		sh.mu.RUnlock()
	}

	var errs coreErrors.Collection

	for _, act := range all {
		errs.Add(act.Destroy(ctx))
	}

	if s.engine != nil {
		s.engine.Close()
	}

	if s.ownsPool {
		s.pool.StopAndWait()
	}

	return errs.GetError()
}
