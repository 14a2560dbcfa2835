package gameserver

// Client event names.
const (
	EventCreateRoom     = "createRoom"
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventSetCategory    = "setCategory"
	EventStartRound     = "startRound"
	EventSetReady       = "setReady"
	EventListCategories = "listCategories"
)

// Server events for failures of calls that carried no ack id.
const (
	EventErrorMsg   = "errorMsg"
	EventJoinFailed = "joinFailed"
)

// CreateRoomRequest opens a new room with the caller as host.
type CreateRoomRequest struct {
	Name     string `json:"name" validate:"max=256"`
	Category string `json:"category" validate:"max=128"`
}

// JoinRoomRequest joins a room, reconnecting SessionID when it is a member.
type JoinRoomRequest struct {
	Name      string `json:"name" validate:"max=256"`
	Code      string `json:"code" validate:"required,max=16"`
	SessionID string `json:"sessionId" validate:"omitempty,max=128"`
}

// LeaveRoomRequest permanently removes a session from a room.
type LeaveRoomRequest struct {
	Code      string `json:"code" validate:"required,max=16"`
	SessionID string `json:"sessionId" validate:"required,max=128"`
}

// SetCategoryRequest changes a room's category.
type SetCategoryRequest struct {
	Code     string `json:"code" validate:"required,max=16"`
	Category string `json:"category" validate:"required,max=128"`
}

// StartRoundRequest starts the next round.
type StartRoundRequest struct {
	Code string `json:"code" validate:"required,max=16"`
}

// SetReadyRequest updates the caller's ready flag.
type SetReadyRequest struct {
	Ready *bool `json:"ready" validate:"required"`
}

// Ack is the acknowledgement payload for every event except listCategories.
type Ack struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	ErrorCode   string `json:"errorCode,omitempty"`
	Code        string `json:"code,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	Reconnected bool   `json:"reconnected,omitempty"`
}

func okAck() Ack {
	return Ack{OK: true}
}

func failAck(err error) Ack {
	return Ack{OK: false, Error: err.Error(), ErrorCode: ErrorCode(err)}
}
