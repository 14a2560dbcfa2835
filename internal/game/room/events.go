package room

import "github.com/cory-johannsen/impostor/internal/game/session"

// Server to client event names.
const (
	EventRoomUpdate      = "roomUpdate"
	EventUpdatePlayers   = "updatePlayers"
	EventCategoryChanged = "categoryChanged"
	EventRoundData       = "roundData"
	EventRoomCreated     = "roomCreated"
	EventReconnected     = "reconnected"
)

// offlineSuffix is appended to offline member names in updatePlayers.
const offlineSuffix = " (offline)"

// PlayerView is the public view of one member.
// The session token is kept server side and never serialized.
type PlayerView struct {
	SessionID string `json:"-"`
	Name      string `json:"name"`
	Host      bool   `json:"host"`
	Ready     bool   `json:"ready"`
	Online    bool   `json:"online"`
}

// View is the public state of a room as broadcast in roomUpdate.
type View struct {
	Code     string       `json:"code"`
	Category string       `json:"category"`
	State    State        `json:"state"`
	Round    int          `json:"round"`
	Players  []PlayerView `json:"players"`
}

// Identity confirms a session to its own connection in roomCreated and reconnected.
type Identity struct {
	Code      string `json:"code"`
	SessionID string `json:"sessionId"`
}

// RoundData is the private roundData payload.
type RoundData = session.Assignment
