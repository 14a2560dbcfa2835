package session

import (
	"strings"
	"time"
	"unicode"
)

// DefaultName is used when a player supplies no usable display name.
const DefaultName = "Anon"

// Role is the private role a member holds for one round.
type Role string

const (
	RolePlayer   Role = "player"
	RoleImpostor Role = "impostor"
)

// Assignment is one member's private round data.
//
// Invariant: Word is nil exactly when Role == RoleImpostor.
type Assignment struct {
	Round int     `json:"round"`
	Role  Role    `json:"role"`
	Word  *string `json:"word"`
}

// Session is a durable player identity, independent of any connection.
//
// A Session is owned by exactly one room and is only read or written while
// that room's lock is held.
type Session struct {
	// ID is the opaque session token presented by the client on reconnect.
	ID string
	// Name is the sanitized display name.
	Name string
	// Conn is the current live connection, nil while offline.
	Conn Conn
	// Ready is the member's ready flag for the next round.
	Ready bool
	// JoinedAt records when the session first joined its room.
	JoinedAt time.Time
	// OfflineSince is the time the member last went offline; zero while online.
	OfflineSince time.Time
	// OfflineEpoch increments on every transition to offline.
	OfflineEpoch uint64
	// Assignment is the member's role for the current round, nil before the first round.
	Assignment *Assignment
	// AssignmentPending is set when pushing Assignment failed on a live
	// connection; it is re-sent ahead of the next event.
	AssignmentPending bool
}

// New creates an online Session.
//
// Precondition: id must be non-empty; conn may be nil for an offline member.
func New(id, name string, conn Conn, now time.Time) *Session {
	return &Session{
		ID:       id,
		Name:     name,
		Conn:     conn,
		JoinedAt: now,
	}
}

// Online reports whether the session has a live connection.
func (s *Session) Online() bool {
	return s.Conn != nil
}

// Attach binds conn to the session and clears the offline markers.
//
// Postcondition: s.Online() is true.
func (s *Session) Attach(conn Conn) {
	s.Conn = conn
	s.OfflineSince = time.Time{}
}

// Detach clears the connection and returns the new offline epoch.
//
// Postcondition: s.Online() is false; OfflineEpoch has been incremented.
func (s *Session) Detach(now time.Time) uint64 {
	s.Conn = nil
	s.OfflineSince = now
	s.OfflineEpoch++
	return s.OfflineEpoch
}

// Send pushes evt to the session's connection. Offline sessions are skipped.
//
// Postcondition: Returns false if the session is offline, true otherwise,
// along with any push error.
func (s *Session) Send(evt Event) (bool, error) {
	if s.Conn == nil {
		return false, nil
	}
	return true, s.Conn.Push(evt)
}

// SanitizeName trims name, removes control characters, and truncates it to
// maxLen runes. An empty result becomes DefaultName.
//
// Precondition: maxLen > 0.
func SanitizeName(name string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)
	if runes := []rune(cleaned); len(runes) > maxLen {
		cleaned = strings.TrimSpace(string(runes[:maxLen]))
	}
	if cleaned == "" {
		return DefaultName
	}
	return cleaned
}
