package core

import "time"

// Display defaults applied when a client omits an attribute.
const (
	DefaultName  = "player"
	DefaultShape = "square"
	DefaultColor = "#00ff00"

	DefaultX float64 = 120
	DefaultY float64 = 120
)

// Attrs carries the client-supplied attributes of a player at join time.
// Adapters resolve defaults before handing Attrs to the registry.
type Attrs struct {
	Name  string
	Shape string
	Color string
	X     float64
	Y     float64
}

// ApplyDefaults fills in any display attribute the client omitted.
// Coordinates are resolved by the adapters, which can tell an absent field
// from an explicit zero.
func (a *Attrs) ApplyDefaults() {
	if a.Name == "" {
		a.Name = DefaultName
	}
	if a.Shape == "" {
		a.Shape = DefaultShape
	}
	if a.Color == "" {
		a.Color = DefaultColor
	}
}

// playerRecord is the live state of one player within a room. Records are
// owned exclusively by the registry and only ever touched under the room's
// mutex; everything handed outward is a PlayerInfo copy.
type playerRecord struct {
	playerID string
	name     string
	shape    string
	color    string
	x, y     float64
	lastSeen time.Time

	// conn is the delivery handle for push players; nil for pull players.
	conn Sender
}

// PlayerInfo is an immutable snapshot of one player's attributes.
type PlayerInfo struct {
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	Shape    string    `json:"shape"`
	Color    string    `json:"color"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	LastSeen time.Time `json:"-"`
}

func (p *playerRecord) info() PlayerInfo {
	return PlayerInfo{
		PlayerID: p.playerID,
		Name:     p.name,
		Shape:    p.shape,
		Color:    p.color,
		X:        p.x,
		Y:        p.y,
		LastSeen: p.lastSeen,
	}
}
