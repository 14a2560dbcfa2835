// Package registry tracks every live room by code and every bound connection
// by ID, and owns the offline grace timers that retire absent members.
package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cory-johannsen/impostor/internal/game/room"
	"github.com/cory-johannsen/impostor/internal/game/session"
)

// CodeAlphabet excludes I, O, 0 and 1, which read ambiguously aloud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Config holds registry behaviour.
type Config struct {
	// CodeLength is the number of characters in a room code.
	CodeLength int
	// CodeAttempts bounds code sampling before ErrCodeSpaceExhausted.
	CodeAttempts int
	// DefaultCategory is used when a room is created without a known category.
	DefaultCategory string
	// OfflineGrace is how long an offline member keeps its slot. Zero removes
	// offline members immediately.
	OfflineGrace time.Duration
	// Room carries per-room limits.
	Room room.Options
}

type binding struct {
	code      string
	sessionID string
}

// Registry maps room codes to rooms and connections to their membership.
// All methods are safe for concurrent use.
//
// Lock order is Registry then Room. Membership changes (create, join, leave,
// disconnect, grace expiry) hold the registry write lock so the connection
// index never disagrees with room membership.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*room.Room
	conns  map[string]binding
	timers map[string]*GraceTimer // sessionID → pending grace check
	closed bool

	cfg    Config
	deps   room.Deps
	logger *zap.Logger
}

// New creates an empty Registry.
//
// Precondition: deps.Picker, deps.Source, and logger must be non-nil;
// cfg.CodeLength and cfg.CodeAttempts must be > 0.
func New(cfg Config, deps room.Deps, logger *zap.Logger) *Registry {
	deps.Logger = logger
	return &Registry{
		rooms:  make(map[string]*room.Room),
		conns:  make(map[string]binding),
		timers: make(map[string]*GraceTimer),
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
}

// NormalizeCode upper-cases and trims a client-supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateRoom creates a room with a fresh code and admits conn as its host.
//
// An unknown or empty category falls back to the configured default.
// If conn was bound to another room it is marked offline there once the new
// room is open.
//
// Postcondition: Returns ErrInvalidCategory when neither category resolves
// and ErrCodeSpaceExhausted when no unused code was found.
func (g *Registry) CreateRoom(conn session.Conn, name, category string) (*room.Room, room.JoinResult, error) {
	bank := g.deps.Picker.Bank()
	if !bank.Has(category) {
		if !bank.Has(g.cfg.DefaultCategory) {
			return nil, room.JoinResult{}, fmt.Errorf("%w: %q", room.ErrInvalidCategory, category)
		}
		category = g.cfg.DefaultCategory
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	code, err := g.newCodeLocked()
	if err != nil {
		return nil, room.JoinResult{}, err
	}

	rm := room.New(code, category, g.deps, g.cfg.Room)
	res, err := rm.Open(conn, name)
	if err != nil {
		return nil, room.JoinResult{}, fmt.Errorf("opening room %s: %w", code, err)
	}
	g.rooms[code] = rm
	if prev, bound := g.conns[conn.ID()]; bound {
		g.releaseLocked(conn.ID(), prev)
	}
	g.conns[conn.ID()] = binding{code: code, sessionID: res.SessionID}
	g.logger.Info("room created",
		zap.String("code", code),
		zap.String("category", category),
		zap.Int("rooms", len(g.rooms)),
	)
	return rm, res, nil
}

// newCodeLocked samples codes until one is unused.
func (g *Registry) newCodeLocked() (string, error) {
	buf := make([]byte, g.cfg.CodeLength)
	for attempt := 0; attempt < g.cfg.CodeAttempts; attempt++ {
		for i := range buf {
			buf[i] = CodeAlphabet[g.deps.Source.Intn(len(CodeAlphabet))]
		}
		code := string(buf)
		if _, taken := g.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", room.ErrCodeSpaceExhausted, g.cfg.CodeAttempts)
}

// JoinRoom admits conn to the room with the given code, reconnecting
// sessionID when it names a current member.
//
// If conn was bound to a different room or session, that membership is marked
// offline once the join succeeds. Any pending grace check for the joined
// session is cancelled.
//
// Postcondition: Returns ErrRoomNotFound if no live room has the code. On
// error the registry and every room are unchanged.
func (g *Registry) JoinRoom(conn session.Conn, code, sessionID, name string) (*room.Room, room.JoinResult, error) {
	code = NormalizeCode(code)

	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[code]
	if !ok {
		return nil, room.JoinResult{}, fmt.Errorf("%w: %q", room.ErrRoomNotFound, code)
	}
	prev, bound := g.conns[conn.ID()]

	res, err := rm.Join(conn, sessionID, name)
	if err != nil {
		return nil, room.JoinResult{}, err
	}
	if res.ReplacedConnID != "" {
		delete(g.conns, res.ReplacedConnID)
	}
	if bound && (prev.code != code || prev.sessionID != res.SessionID) {
		g.releaseLocked(conn.ID(), prev)
	}
	g.stopTimerLocked(res.SessionID)
	g.conns[conn.ID()] = binding{code: code, sessionID: res.SessionID}
	return rm, res, nil
}

// LeaveRoom permanently removes sessionID from the room with the given code.
// The room is destroyed when it becomes empty.
//
// Postcondition: Returns ErrRoomNotFound or ErrSessionNotFound when either
// does not resolve.
func (g *Registry) LeaveRoom(code, sessionID string) error {
	code = NormalizeCode(code)

	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[code]
	if !ok {
		return fmt.Errorf("%w: %q", room.ErrRoomNotFound, code)
	}
	res, err := rm.Remove(sessionID)
	if err != nil {
		return err
	}
	g.stopTimerLocked(sessionID)
	if res.ConnID != "" {
		delete(g.conns, res.ConnID)
	}
	if res.Empty {
		g.destroyLocked(code)
	}
	return nil
}

// Disconnect marks the member bound to connID offline and schedules its
// grace check. Unbound connections are ignored.
func (g *Registry) Disconnect(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.detachLocked(connID)
}

// detachLocked unbinds connID and marks its member offline.
func (g *Registry) detachLocked(connID string) {
	b, ok := g.conns[connID]
	if !ok {
		return
	}
	delete(g.conns, connID)
	g.releaseLocked(connID, b)
}

// releaseLocked marks the member behind b offline, if it is still on connID,
// and schedules its grace check. The caller owns the connection index.
func (g *Registry) releaseLocked(connID string, b binding) {
	rm, ok := g.rooms[b.code]
	if !ok {
		return
	}
	off, err := rm.MarkOfflineSession(b.sessionID, connID)
	if err != nil {
		// The session was already rebound to a newer connection.
		return
	}
	g.scheduleLocked(b.code, off)
}

func (g *Registry) scheduleLocked(code string, off room.OfflineResult) {
	g.stopTimerLocked(off.SessionID)
	if g.closed {
		return
	}
	if g.cfg.OfflineGrace <= 0 {
		g.expireLocked(code, off.SessionID, off.Epoch)
		return
	}
	g.timers[off.SessionID] = NewGraceTimer(g.cfg.OfflineGrace, func() {
		g.expire(code, off.SessionID, off.Epoch)
	})
}

func (g *Registry) expire(code, sessionID string, epoch uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	// A timer may fire concurrently with Shutdown and block on the lock.
	if g.closed {
		return
	}
	g.expireLocked(code, sessionID, epoch)
}

// expireLocked removes sessionID if it is still offline at epoch and
// destroys the room if it became empty.
func (g *Registry) expireLocked(code, sessionID string, epoch uint64) {
	rm, ok := g.rooms[code]
	if !ok {
		delete(g.timers, sessionID)
		return
	}
	res, removed := rm.ExpireOffline(sessionID, epoch)
	if !removed {
		return
	}
	delete(g.timers, sessionID)
	g.logger.Info("offline grace expired",
		zap.String("code", code),
		zap.String("session_id", sessionID),
	)
	if res.Empty {
		g.destroyLocked(code)
	}
}

func (g *Registry) stopTimerLocked(sessionID string) {
	if gt, ok := g.timers[sessionID]; ok {
		gt.Stop()
		delete(g.timers, sessionID)
	}
}

// DestroyRoom removes the room immediately when it has no members.
// Rooms with offline members are destroyed by their grace checks instead.
//
// Postcondition: Returns true if the room no longer exists.
func (g *Registry) DestroyRoom(code string) bool {
	code = NormalizeCode(code)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[code]; !ok {
		return true
	}
	return g.destroyLocked(code)
}

func (g *Registry) destroyLocked(code string) bool {
	rm := g.rooms[code]
	if !rm.CloseIfEmpty() {
		return false
	}
	delete(g.rooms, code)
	g.logger.Info("room destroyed",
		zap.String("code", code),
		zap.Int("rooms", len(g.rooms)),
	)
	return true
}

// FindRoomForConnection returns the room and session bound to connID.
func (g *Registry) FindRoomForConnection(connID string) (*room.Room, string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.conns[connID]
	if !ok {
		return nil, "", false
	}
	rm, ok := g.rooms[b.code]
	if !ok {
		return nil, "", false
	}
	return rm, b.sessionID, true
}

// Room returns the live room with the given code.
func (g *Registry) Room(code string) (*room.Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rm, ok := g.rooms[NormalizeCode(code)]
	return rm, ok
}

// Codes returns the codes of all live rooms.
func (g *Registry) Codes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return lo.Keys(g.rooms)
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// PendingGraceChecks returns the number of scheduled grace timers.
func (g *Registry) PendingGraceChecks() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.timers)
}

// Shutdown stops every pending grace timer and schedules no new ones. Rooms
// are left as they are.
//
// Postcondition: no grace check removes a member after Shutdown returns.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	for id, gt := range g.timers {
		gt.Stop()
		delete(g.timers, id)
	}
	g.logger.Info("registry shut down", zap.Int("rooms", len(g.rooms)))
}
