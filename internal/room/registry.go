package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"canvaslab/internal/canvas"
	"canvaslab/internal/logging"
	"canvaslab/internal/metrics"
	"canvaslab/internal/store"
)

var (
	// ErrInvalidRoomName rejects names outside the allowed pattern.
	ErrInvalidRoomName = errors.New("invalid room name")
	// ErrTooManyRooms caps concurrently live rooms.
	ErrTooManyRooms = errors.New("room limit reached")
)

// RegistryOptions tunes room lifecycle.
type RegistryOptions struct {
	// MaxRooms caps live rooms; zero means unlimited.
	MaxRooms int
	// MaxSessionsPerRoom is passed to each room; zero means unlimited.
	MaxSessionsPerRoom int
	// GracePeriod is how long an empty room stays live before its final
	// flush and unload.
	GracePeriod time.Duration
	Limits      canvas.Limits
	Log         *zap.Logger
}

// Registry is the process-wide name-to-room map. The map mutex is held
// only for pointer work; loading, flushing and stopping happen outside
// it under a per-name lock, so racing a create against an eviction of
// the same name is impossible.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	pending map[string]*time.Timer // grace timers for empty rooms

	locks sync.Map // room name -> *sync.Mutex

	st   *store.Store
	opts RegistryOptions
	log  *zap.Logger
}

// NewRegistry builds a registry over the given store.
func NewRegistry(st *store.Store, opts RegistryOptions) *Registry {
	log := opts.Log
	if log == nil {
		log = logging.L()
	}
	return &Registry{
		rooms:   make(map[string]*Room),
		pending: make(map[string]*time.Timer),
		st:      st,
		opts:    opts,
		log:     log,
	}
}

func (g *Registry) nameLock(name string) *sync.Mutex {
	v, _ := g.locks.LoadOrStore(name, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// GetOrCreate returns the live room for name, reviving it from its
// snapshot or creating a default document when there is none. A pending
// eviction for the name slides forward by one grace period.
func (g *Registry) GetOrCreate(name string) (*Room, error) {
	if !ValidName(name) {
		return nil, ErrInvalidRoomName
	}
	l := g.nameLock(name)
	l.Lock()
	defer l.Unlock()

	g.mu.Lock()
	if r, ok := g.rooms[name]; ok {
		g.touchEvictionLocked(name)
		g.mu.Unlock()
		return r, nil
	}
	count := len(g.rooms)
	g.mu.Unlock()

	if g.opts.MaxRooms > 0 && count >= g.opts.MaxRooms {
		return nil, ErrTooManyRooms
	}

	snap, err := g.st.Load(name)
	if err != nil {
		return nil, err
	}
	var state *canvas.State
	if snap != nil {
		state = canvas.FromSnapshot(snap, g.opts.Limits)
		g.log.Info("room loaded from snapshot", zap.String("room", name))
	} else {
		state = canvas.NewState(g.opts.Limits)
		g.log.Info("room created", zap.String("room", name))
	}
	r := New(name, state, Options{
		MaxSessions: g.opts.MaxSessionsPerRoom,
		OnEmpty:     g.scheduleEviction,
		Log:         g.log,
	})
	g.mu.Lock()
	g.rooms[name] = r
	g.mu.Unlock()
	metrics.ActiveRooms.Inc()
	// A room materialized over HTTP may never see a join, so it never
	// drains and never fires OnEmpty. Arm the grace timer now; if a
	// session arrives first, the eviction sees it and aborts.
	g.scheduleEviction(name)
	return r, nil
}

// Lookup returns the live room for name without creating one.
func (g *Registry) Lookup(name string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[name]
	return r, ok
}

// Rooms returns the live rooms for iteration by the snapshot writer.
func (g *Registry) Rooms() []*Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	return out
}

// Exists reports whether a name is taken by a live room or a snapshot.
func (g *Registry) Exists(name string) bool {
	if _, ok := g.Lookup(name); ok {
		return true
	}
	return g.st.Exists(name)
}

// GenerateUnusedName draws random candidates until one is free. The
// name space is large enough that a handful of tries always suffices;
// the bound only guards against a pathologically full disk.
func (g *Registry) GenerateUnusedName() (string, error) {
	for i := 0; i < 100; i++ {
		name := GenerateName()
		if !g.Exists(name) {
			return name, nil
		}
	}
	return "", errors.New("could not find a free room name")
}

// scheduleEviction is the OnEmpty callback. It runs on the actor
// goroutine and only arms a timer.
func (g *Registry) scheduleEviction(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, live := g.rooms[name]; !live {
		return
	}
	if t, ok := g.pending[name]; ok {
		t.Stop()
	}
	g.pending[name] = time.AfterFunc(g.opts.GracePeriod, func() { g.evict(name) })
}

// touchEvictionLocked pushes a pending eviction one grace period out.
// Cancelling outright would leak rooms that are fetched over HTTP but
// never joined; sliding keeps them on a timer while they stay empty.
// The eviction itself re-checks the user count, so a room that gained
// sessions in the meantime survives the timer firing.
func (g *Registry) touchEvictionLocked(name string) {
	if t, ok := g.pending[name]; ok {
		t.Reset(g.opts.GracePeriod)
	}
}

// evict unloads an empty room after its grace period: final flush, stop,
// forget. A join that landed since the timer fired aborts the eviction;
// a join racing the stop itself is closed and reconnects to a fresh
// room revived from the snapshot just written.
func (g *Registry) evict(name string) {
	l := g.nameLock(name)
	l.Lock()
	defer l.Unlock()

	g.mu.Lock()
	delete(g.pending, name)
	r, ok := g.rooms[name]
	g.mu.Unlock()
	if !ok {
		return
	}
	info, err := r.Info()
	if err == nil && info.UserCount > 0 {
		return
	}
	g.mu.Lock()
	delete(g.rooms, name)
	g.mu.Unlock()

	snap, _, dirty, err := r.Stop()
	if err == nil && dirty {
		if serr := g.st.Save(snap); serr != nil {
			g.log.Error("final flush failed", zap.String("room", name), zap.Error(serr))
			metrics.SnapshotErrors.Inc()
		} else {
			metrics.SnapshotWrites.Inc()
		}
	}
	metrics.ActiveRooms.Dec()
	g.log.Info("room evicted", zap.String("room", name))
}

// DeleteIdle removes a room's snapshot and uploads, but only when the
// room is not live. The name lock serializes this against a concurrent
// revival, so a join either completes first and blocks the delete, or
// finds no files and starts the room fresh. Returns false when the room
// was live and left alone.
func (g *Registry) DeleteIdle(name string) (bool, error) {
	if !ValidName(name) {
		return false, ErrInvalidRoomName
	}
	l := g.nameLock(name)
	l.Lock()
	defer l.Unlock()

	g.mu.Lock()
	_, live := g.rooms[name]
	g.mu.Unlock()
	if live {
		return false, nil
	}
	if err := g.st.Delete(name); err != nil {
		return false, err
	}
	g.log.Info("room deleted", zap.String("room", name))
	return true, nil
}

// Shutdown flushes and stops every live room. Rooms still unflushed
// when the context expires are stopped without a flush and logged.
func (g *Registry) Shutdown(ctx context.Context) {
	g.mu.Lock()
	rooms := make(map[string]*Room, len(g.rooms))
	for name, r := range g.rooms {
		rooms[name] = r
	}
	g.rooms = make(map[string]*Room)
	for name, t := range g.pending {
		t.Stop()
		delete(g.pending, name)
	}
	g.mu.Unlock()

	for name, r := range rooms {
		snap, _, dirty, err := r.Stop()
		metrics.ActiveRooms.Dec()
		if err != nil || !dirty {
			continue
		}
		select {
		case <-ctx.Done():
			g.log.Warn("shutdown deadline hit, room not flushed", zap.String("room", name))
			continue
		default:
		}
		if serr := g.st.Save(snap); serr != nil {
			g.log.Error("shutdown flush failed", zap.String("room", name), zap.Error(serr))
			metrics.SnapshotErrors.Inc()
		} else {
			metrics.SnapshotWrites.Inc()
		}
	}
	g.log.Info("registry shut down", zap.Int("rooms", len(rooms)))
}
