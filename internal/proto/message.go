package proto

// Push protocol message types. Messages are flat JSON objects, one per
// logical action.
const (
	TypeJoin   = "join"
	TypeUpdate = "update"
	TypeLeave  = "leave"
	TypeState  = "state"
	TypeError  = "error"
)

// ClientMessage is the envelope for every message a push client sends.
// Coordinates are pointers so an absent field can be told apart from an
// explicit zero.
type ClientMessage struct {
	Type     string   `json:"type"`
	Room     string   `json:"room,omitempty"`
	PlayerID string   `json:"player_id,omitempty"`
	Name     string   `json:"name,omitempty"`
	Shape    string   `json:"shape,omitempty"`
	Color    string   `json:"color,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
}

// Player is the wire form of one room occupant. LastSeen is Unix
// milliseconds and only set on pull state responses.
type Player struct {
	PlayerID string  `json:"player_id"`
	Name     string  `json:"name,omitempty"`
	Shape    string  `json:"shape,omitempty"`
	Color    string  `json:"color,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	LastSeen int64   `json:"last_seen,omitempty"`
}

// StateMessage answers a successful join with the room's full membership.
type StateMessage struct {
	Type    string   `json:"type"`
	Room    string   `json:"room"`
	Players []Player `json:"players"`
	You     string   `json:"you"`
}

// UpdateMessage notifies the rest of a room about one player's change.
type UpdateMessage struct {
	Type   string `json:"type"`
	Player Player `json:"player"`
}

// LeaveMessage notifies a room that a player is gone.
type LeaveMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
}

// ErrorMessage is an inline protocol error; the connection stays open.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// JoinRequest is the body of POST /rooms/{room_id}/join.
type JoinRequest struct {
	PlayerID string   `json:"player_id"`
	Name     string   `json:"name"`
	Shape    string   `json:"shape"`
	Color    string   `json:"color"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
}

// UpdateRequest is the body of POST /rooms/{room_id}/update. Display
// attributes are only consulted when the update turns into an implicit
// join.
type UpdateRequest struct {
	PlayerID string   `json:"player_id"`
	Name     string   `json:"name"`
	Shape    string   `json:"shape"`
	Color    string   `json:"color"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
}

// LeaveRequest is the body of POST /rooms/{room_id}/leave.
type LeaveRequest struct {
	PlayerID string `json:"player_id"`
}

// StateResponse is the body of GET /rooms/{room_id}/state.
type StateResponse struct {
	Room    string   `json:"room"`
	Players []Player `json:"players"`
	You     string   `json:"you,omitempty"`
}

// OKResponse acknowledges a pull-model mutation.
type OKResponse struct {
	OK   bool   `json:"ok"`
	Room string `json:"room,omitempty"`
}
