package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"quiz-room-service/internal/domain"
)

const (
	maxCodeAttempts  = 100
	directoryTimeout = 2 * time.Second
)

// RoomDirectory mirrors live room codes into shared storage (e.g. Redis) so
// operators can see which rooms exist. It is best-effort and never read back.
type RoomDirectory interface {
	Publish(ctx context.Context, code, admin string) error
	Touch(ctx context.Context, code string) error
	Remove(ctx context.Context, code string) error
}

// Registry owns every room of the process and the username -> room binding.
// It is constructed once at startup and injected into the transport.
type Registry struct {
	log       *slog.Logger
	sched     Scheduler
	directory RoomDirectory
	newCode   func() string

	mu    sync.RWMutex
	rooms map[string]*Room
	users map[string]string
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used by the registry and its rooms.
func WithLogger(log *slog.Logger) RegistryOption {
	return func(g *Registry) { g.log = log }
}

// WithScheduler replaces the wall-clock scheduler used for room timers.
func WithScheduler(s Scheduler) RegistryOption {
	return func(g *Registry) { g.sched = s }
}

// WithDirectory mirrors room lifecycle events into d.
func WithDirectory(d RoomDirectory) RegistryOption {
	return func(g *Registry) { g.directory = d }
}

// WithCodeGenerator replaces the random room code generator.
func WithCodeGenerator(fn func() string) RegistryOption {
	return func(g *Registry) { g.newCode = fn }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	g := &Registry{
		log:   slog.Default(),
		sched: NewScheduler(),
		rooms: make(map[string]*Room),
		users: make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.newCode == nil {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		// only called with g.mu held
		g.newCode = func() string {
			return fmt.Sprintf("%06d", rnd.Intn(1_000_000))
		}
	}
	return g
}

// CreateRoom registers a new room administered by admin and returns its code.
// The admin still has to join like everyone else.
func (g *Registry) CreateRoom(admin string) (string, error) {
	g.mu.Lock()
	code := ""
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate := g.newCode()
		if _, taken := g.rooms[candidate]; !taken {
			code = candidate
			break
		}
	}
	if code == "" {
		g.mu.Unlock()
		g.log.Warn("room code space exhausted", "admin", admin, "attempts", maxCodeAttempts)
		return "", domain.ErrRoomCreationExhausted
	}
	g.rooms[code] = newRoom(code, admin, g.sched, g.log, g.remove)
	g.mu.Unlock()

	g.log.Info("room created", "room", code, "admin", admin)
	g.mirror(func(ctx context.Context, d RoomDirectory) error { return d.Publish(ctx, code, admin) })
	return code, nil
}

// Resolve returns the room registered under code.
func (g *Registry) Resolve(code string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// RoomOf returns the code of the room username currently occupies.
func (g *Registry) RoomOf(username string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	code, ok := g.users[username]
	if !ok {
		return "", domain.ErrNotInRoom
	}
	return code, nil
}

// Bind records that username is in room code. Call it only after the room
// accepted the join.
func (g *Registry) Bind(username, code string) error {
	g.mu.Lock()
	if existing, ok := g.users[username]; ok && existing != code {
		g.mu.Unlock()
		return domain.ErrAlreadyInAnotherRoom
	}
	if _, ok := g.rooms[code]; !ok {
		g.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	g.users[username] = code
	g.mu.Unlock()

	g.mirror(func(ctx context.Context, d RoomDirectory) error { return d.Touch(ctx, code) })
	return nil
}

// Unbind forgets username's room. Call it only after the room confirmed the leave.
func (g *Registry) Unbind(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.users, username)
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// remove is invoked by a room whose idle grace elapsed.
func (g *Registry) remove(code string) {
	g.mu.Lock()
	delete(g.rooms, code)
	for username, bound := range g.users {
		if bound == code {
			delete(g.users, username)
		}
	}
	g.mu.Unlock()

	g.log.Info("room removed", "room", code)
	g.mirror(func(ctx context.Context, d RoomDirectory) error { return d.Remove(ctx, code) })
}

func (g *Registry) mirror(fn func(context.Context, RoomDirectory) error) {
	if g.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), directoryTimeout)
	defer cancel()
	if err := fn(ctx, g.directory); err != nil {
		g.log.Warn("room directory update failed", "err", err)
	}
}
