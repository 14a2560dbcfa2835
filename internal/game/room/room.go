// Package room implements a single game room: its members, host authority,
// and the round engine that assigns the secret word and the impostor role.
package room

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cory-johannsen/impostor/internal/game/rng"
	"github.com/cory-johannsen/impostor/internal/game/session"
	"github.com/cory-johannsen/impostor/internal/game/words"
)

// Options holds the per-room limits and round behaviour.
type Options struct {
	// MaxPlayers caps the member count. Zero means 16.
	MaxPlayers int
	// MaxNameLength caps display names in runes. Zero means 24.
	MaxNameLength int
	// AutoStartWhenReady starts the next round once every member is ready.
	AutoStartWhenReady bool
	// MinReadyPlayers is the member count required before ready consensus starts a round.
	MinReadyPlayers int
}

func (o Options) withDefaults() Options {
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = 16
	}
	if o.MaxNameLength <= 0 {
		o.MaxNameLength = 24
	}
	if o.MinReadyPlayers <= 0 {
		o.MinReadyPlayers = 1
	}
	return o
}

// Deps are the collaborators shared by every room.
type Deps struct {
	// Picker selects the round word. Required.
	Picker *words.Picker
	// Source draws the impostor index. Required.
	Source rng.Source
	// Logger is required.
	Logger *zap.Logger
	// NewID generates session tokens. Defaults to uuid.NewString.
	NewID func() string
	// Now defaults to time.Now.
	Now func() time.Time
}

// JoinResult reports the outcome of Open or Join.
type JoinResult struct {
	Code        string
	SessionID   string
	Reconnected bool
	// ReplacedConnID is the connection that was bound to the session before a
	// reconnect, or empty.
	ReplacedConnID string
}

// OfflineResult reports the outcome of MarkOffline.
type OfflineResult struct {
	SessionID string
	Epoch     uint64
}

// RemoveResult reports the outcome of Remove and ExpireOffline.
type RemoveResult struct {
	// ConnID is the removed member's live connection, or empty if it was offline.
	ConnID string
	// NewHost is the host after removal, empty when the room is empty.
	NewHost string
	// Empty reports whether the room has no members left.
	Empty bool
}

// RoundResult describes a started round. It never leaves the server.
type RoundResult struct {
	Code       string
	Round      int
	Category   string
	WordIndex  int
	Word       string
	ImpostorID string
	Players    int
	StartedAt  time.Time
}

// Room is one game lobby identified by a short code.
//
// Invariant: host is empty iff members is empty, otherwise it is a member's ID.
// Invariant: members holds no duplicate session IDs and is ordered by join time.
// Invariant: round never decreases.
//
// All methods are safe for concurrent use; each mutating method runs to
// completion under the room lock, and every event it pushes is enqueued
// before the lock is released.
type Room struct {
	mu       sync.Mutex
	code     string
	category string
	host     string
	members  []*session.Session
	state    State
	round    int
	history  map[string][]int
	closed   bool

	opts   Options
	picker *words.Picker
	src    rng.Source
	newID  func() string
	now    func() time.Time
	logger *zap.Logger
}

// New creates an empty room. The first member admitted with Open becomes host.
//
// Precondition: code must be non-empty; category must exist in deps.Picker's bank;
// deps.Picker, deps.Source, and deps.Logger must be non-nil.
func New(code, category string, deps Deps, opts Options) *Room {
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Room{
		code:     code,
		category: category,
		state:    StateWaiting,
		history:  make(map[string][]int),
		opts:     opts.withDefaults(),
		picker:   deps.Picker,
		src:      deps.Source,
		newID:    deps.NewID,
		now:      deps.Now,
		logger:   deps.Logger.With(zap.String("code", code)),
	}
}

// Code returns the room code.
func (r *Room) Code() string {
	return r.code
}

// Open admits the room creator as its first member and host, and confirms the
// new identity to conn with roomCreated.
//
// Precondition: the room must be empty.
// Postcondition: the creator is the only member and the host.
func (r *Room) Open(conn session.Conn, name string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return JoinResult{}, ErrRoomNotFound
	}
	if len(r.members) != 0 {
		return JoinResult{}, fmt.Errorf("room %s already opened", r.code)
	}
	sess := r.admitLocked(conn, name)
	r.sendLocked(sess, session.Event{Name: EventRoomCreated, Data: Identity{Code: r.code, SessionID: sess.ID}})
	r.broadcastLocked()
	r.logger.Info("room opened", zap.String("category", r.category))
	return JoinResult{Code: r.code, SessionID: sess.ID}, nil
}

// Join adds a member or reattaches an existing one.
//
// A presentedID naming a current member reconnects that session on conn and
// updates its name when name is non-blank. Any other presentedID is ignored and
// a fresh session is created. A reconnect during an active round re-sends the
// member's roundData.
//
// Postcondition: on success the session is online on conn; the member count
// grows by one only for new sessions. Returns ErrRoomNotFound for closed rooms
// and ErrRoomFull when a new member would exceed MaxPlayers.
func (r *Room) Join(conn session.Conn, presentedID, name string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return JoinResult{}, ErrRoomNotFound
	}

	if existing, ok := r.memberLocked(presentedID); ok && presentedID != "" {
		var replaced string
		if existing.Conn != nil && existing.Conn.ID() != conn.ID() {
			replaced = existing.Conn.ID()
		}
		existing.Attach(conn)
		if clean := session.SanitizeName(name, r.opts.MaxNameLength); clean != session.DefaultName {
			existing.Name = clean
		}
		r.sendLocked(existing, session.Event{Name: EventReconnected, Data: Identity{Code: r.code, SessionID: existing.ID}})
		if r.state == StateRoundActive && existing.Assignment != nil && existing.Assignment.Round == r.round {
			r.sendLocked(existing, session.Event{Name: EventRoundData, Data: *existing.Assignment})
		}
		r.broadcastLocked()
		r.logger.Info("player reconnected",
			zap.String("session_id", existing.ID),
			zap.String("conn_id", conn.ID()),
		)
		return JoinResult{Code: r.code, SessionID: existing.ID, Reconnected: true, ReplacedConnID: replaced}, nil
	}

	if len(r.members) >= r.opts.MaxPlayers {
		return JoinResult{}, ErrRoomFull
	}
	sess := r.admitLocked(conn, name)
	r.broadcastLocked()
	r.logger.Info("player joined",
		zap.String("session_id", sess.ID),
		zap.Int("players", len(r.members)),
	)
	return JoinResult{Code: r.code, SessionID: sess.ID}, nil
}

// admitLocked appends a new session. The first member becomes host.
func (r *Room) admitLocked(conn session.Conn, name string) *session.Session {
	id := r.newID()
	for _, taken := r.memberLocked(id); taken; _, taken = r.memberLocked(id) {
		id = r.newID()
	}
	sess := session.New(id, session.SanitizeName(name, r.opts.MaxNameLength), conn, r.now())
	r.members = append(r.members, sess)
	if r.host == "" {
		r.host = sess.ID
	}
	return sess
}

// MarkOffline clears the connection of the member bound to connID.
// The member keeps its slot and host authority.
//
// Postcondition: Returns ErrSessionNotFound if no member is bound to connID.
func (r *Room) MarkOffline(connID string) (OfflineResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := lo.Find(r.members, func(s *session.Session) bool {
		return s.Conn != nil && s.Conn.ID() == connID
	})
	if !ok {
		return OfflineResult{}, ErrSessionNotFound
	}
	return r.markOfflineLocked(sess), nil
}

// MarkOfflineSession clears the connection of sessionID, but only while that
// session is still bound to connID. A connection that has since been moved to
// another session of the same room leaves that session untouched.
//
// Postcondition: Returns ErrSessionNotFound if sessionID is not a member bound
// to connID.
func (r *Room) MarkOfflineSession(sessionID, connID string) (OfflineResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.memberLocked(sessionID)
	if !ok || sess.Conn == nil || sess.Conn.ID() != connID {
		return OfflineResult{}, ErrSessionNotFound
	}
	return r.markOfflineLocked(sess), nil
}

func (r *Room) markOfflineLocked(sess *session.Session) OfflineResult {
	epoch := sess.Detach(r.now())
	r.broadcastLocked()
	r.logger.Info("player offline",
		zap.String("session_id", sess.ID),
		zap.Uint64("epoch", epoch),
	)
	return OfflineResult{SessionID: sess.ID, Epoch: epoch}
}

// Remove deletes the member with sessionID. If it was host, authority moves
// to the earliest-joined remaining member.
//
// Postcondition: Returns ErrSessionNotFound if sessionID is not a member.
func (r *Room) Remove(sessionID string) (RemoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return RemoveResult{}, ErrRoomNotFound
	}
	return r.removeLocked(sessionID, "left")
}

// ExpireOffline removes sessionID if it is still offline at the given epoch.
// It is the deferred grace check; any reconnect or newer disconnect since the
// check was scheduled makes it a no-op.
//
// Postcondition: removed is true only when the member was removed.
func (r *Room) ExpireOffline(sessionID string, epoch uint64) (res RemoveResult, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return RemoveResult{}, false
	}
	sess, ok := r.memberLocked(sessionID)
	if !ok || sess.Online() || sess.OfflineEpoch != epoch {
		return RemoveResult{Empty: len(r.members) == 0}, false
	}
	res, err := r.removeLocked(sessionID, "grace expired")
	return res, err == nil
}

func (r *Room) removeLocked(sessionID, reason string) (RemoveResult, error) {
	_, idx, ok := lo.FindIndexOf(r.members, func(s *session.Session) bool { return s.ID == sessionID })
	if !ok {
		return RemoveResult{}, ErrSessionNotFound
	}
	removed := r.members[idx]
	r.members = append(r.members[:idx:idx], r.members[idx+1:]...)

	if r.host == sessionID {
		r.host = ""
		if len(r.members) > 0 {
			r.host = r.members[0].ID
		}
		r.logger.Info("host migrated",
			zap.String("from", sessionID),
			zap.String("to", r.host),
		)
	}

	var connID string
	if removed.Conn != nil {
		connID = removed.Conn.ID()
	}
	r.broadcastLocked()
	r.logger.Info("player removed",
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.Int("players", len(r.members)),
	)
	return RemoveResult{ConnID: connID, NewHost: r.host, Empty: len(r.members) == 0}, nil
}

// SetCategory changes the room's category. Only the host may do this.
// The new category's anti-repeat history starts empty.
//
// Postcondition: on error nothing changes; on success categoryChanged and
// roomUpdate are pushed to every online member.
func (r *Room) SetCategory(issuer, category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if issuer == "" || issuer != r.host {
		return ErrNotHost
	}
	if !r.picker.Bank().Has(category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	r.category = category
	delete(r.history, category)

	for _, m := range r.members {
		r.sendLocked(m, session.Event{Name: EventCategoryChanged, Data: category})
	}
	r.broadcastLocked()
	r.logger.Info("category changed", zap.String("category", category))
	return nil
}

// SetReady updates a member's ready flag. When ready consensus is enabled and
// every member is ready, the next round starts on the host's authority and
// its result is returned.
//
// Postcondition: Returns ErrSessionNotFound if sessionID is not a member.
func (r *Room) SetReady(sessionID string, ready bool) (*RoundResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomNotFound
	}
	sess, ok := r.memberLocked(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.Ready = ready
	r.broadcastLocked()

	if !r.opts.AutoStartWhenReady || len(r.members) < r.opts.MinReadyPlayers {
		return nil, nil
	}
	if !lo.EveryBy(r.members, func(s *session.Session) bool { return s.Ready }) {
		return nil, nil
	}
	res, err := r.startRoundLocked()
	if err != nil {
		// Consensus start failures are not the ready issuer's fault.
		r.logger.Warn("ready consensus could not start round", zap.Error(err))
		return nil, nil
	}
	return &res, nil
}

// StartRound runs the round engine. Only the host may start a round.
//
// The word comes from the anti-repeat picker over the room's history for its
// category; the impostor is drawn uniformly over the ordered member list. The
// impostor privately receives {role: impostor, word: null}; every other member
// privately receives {role: player, word}.
//
// Postcondition: on error no state changes and nothing is delivered. On success
// the round number has increased by one and the state is round_active.
func (r *Room) StartRound(issuer string) (RoundResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return RoundResult{}, ErrRoomNotFound
	}
	if len(r.members) == 0 {
		return RoundResult{}, ErrEmptyRoom
	}
	if issuer == "" || issuer != r.host {
		return RoundResult{}, ErrNotHost
	}
	return r.startRoundLocked()
}

func (r *Room) startRoundLocked() (RoundResult, error) {
	if len(r.members) == 0 {
		return RoundResult{}, ErrEmptyRoom
	}
	next, err := Next(r.state, TriggerStartRound)
	if err != nil {
		return RoundResult{}, err
	}
	idx, hist, err := r.picker.Pick(r.category, r.history[r.category])
	if err != nil {
		return RoundResult{}, err
	}
	word, err := r.picker.Bank().Word(r.category, idx)
	if err != nil {
		return RoundResult{}, err
	}

	// Nothing below can fail.
	r.history[r.category] = hist
	impostor := r.members[r.src.Intn(len(r.members))]
	r.round++
	r.state = next

	for _, m := range r.members {
		a := &session.Assignment{Round: r.round, Role: session.RolePlayer, Word: &word}
		if m == impostor {
			a = &session.Assignment{Round: r.round, Role: session.RoleImpostor}
		}
		m.Assignment = a
		m.Ready = false
		r.sendLocked(m, session.Event{Name: EventRoundData, Data: *a})
	}
	r.broadcastLocked()

	res := RoundResult{
		Code:       r.code,
		Round:      r.round,
		Category:   r.category,
		WordIndex:  idx,
		Word:       word,
		ImpostorID: impostor.ID,
		Players:    len(r.members),
		StartedAt:  r.now(),
	}
	r.logger.Info("round started",
		zap.Int("round", res.Round),
		zap.String("category", res.Category),
		zap.Int("players", res.Players),
	)
	r.logger.Debug("round word", zap.Int("word_index", idx))
	return res, nil
}

// CloseIfEmpty marks the room closed when it has no members.
// A closed room rejects every further operation with ErrRoomNotFound.
//
// Postcondition: Returns true if the room is (now) closed.
func (r *Room) CloseIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) == 0 {
		r.closed = true
	}
	return r.closed
}

// View returns the room's public state.
func (r *Room) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

// Host returns the host's session ID, or empty when the room has no members.
func (r *Room) Host() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

// MemberCount returns the number of members, online or not.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// History returns a copy of the anti-repeat history for category.
func (r *Room) History(category string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.history[category]...)
}

// SessionForConn returns the ID of the member currently bound to connID.
func (r *Room) SessionForConn(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := lo.Find(r.members, func(s *session.Session) bool {
		return s.Conn != nil && s.Conn.ID() == connID
	})
	if !ok {
		return "", false
	}
	return sess.ID, true
}

// OfflineSessions returns the IDs and epochs of all offline members.
func (r *Room) OfflineSessions() []OfflineResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	offline := lo.Filter(r.members, func(s *session.Session, _ int) bool { return !s.Online() })
	return lo.Map(offline, func(s *session.Session, _ int) OfflineResult {
		return OfflineResult{SessionID: s.ID, Epoch: s.OfflineEpoch}
	})
}

func (r *Room) memberLocked(sessionID string) (*session.Session, bool) {
	return lo.Find(r.members, func(s *session.Session) bool { return s.ID == sessionID })
}

func (r *Room) viewLocked() View {
	return View{
		Code:     r.code,
		Category: r.category,
		State:    r.state,
		Round:    r.round,
		Players: lo.Map(r.members, func(s *session.Session, _ int) PlayerView {
			return PlayerView{
				SessionID: s.ID,
				Name:      s.Name,
				Host:      s.ID == r.host,
				Ready:     s.Ready,
				Online:    s.Online(),
			}
		}),
	}
}

// broadcastLocked pushes roomUpdate and updatePlayers to every online member.
func (r *Room) broadcastLocked() {
	view := r.viewLocked()
	names := lo.Map(r.members, func(s *session.Session, _ int) string {
		if s.Online() {
			return s.Name
		}
		return s.Name + offlineSuffix
	})
	for _, m := range r.members {
		r.sendLocked(m, session.Event{Name: EventRoomUpdate, Data: view})
		r.sendLocked(m, session.Event{Name: EventUpdatePlayers, Data: names})
	}
}

func (r *Room) sendLocked(m *session.Session, evt session.Event) {
	if m.AssignmentPending && evt.Name != EventRoundData {
		r.redeliverLocked(m)
	}
	delivered, err := m.Send(evt)
	if evt.Name == EventRoundData {
		if err != nil {
			// roundData cannot be rebuilt from a later roomUpdate.
			m.AssignmentPending = true
			r.logger.Error("round data not delivered, will retry",
				zap.String("session_id", m.ID),
				zap.Error(err),
			)
			return
		}
		if delivered {
			m.AssignmentPending = false
		}
	}
	if err != nil {
		r.logger.Warn("dropping event",
			zap.String("event", evt.Name),
			zap.String("session_id", m.ID),
			zap.Error(err),
		)
	}
}

// redeliverLocked re-sends a member's undelivered assignment for the current round.
func (r *Room) redeliverLocked(m *session.Session) {
	if r.state != StateRoundActive || m.Assignment == nil || m.Assignment.Round != r.round {
		m.AssignmentPending = false
		return
	}
	r.sendLocked(m, session.Event{Name: EventRoundData, Data: *m.Assignment})
}
