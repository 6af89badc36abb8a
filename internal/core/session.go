package core

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/gridroom/gridroom-server/internal/proto"
)

// SessionState names the lifecycle stage of one push connection.
type SessionState int

const (
	// StateConnected means the connection is open but no room was joined.
	StateConnected SessionState = iota
	// StateJoined means the connection is bound to a room and player id.
	StateJoined
	// StateClosed means the session finished its cleanup and accepts nothing.
	StateClosed
)

// Session drives the push protocol for one connection: it guards which
// messages are legal in which state, applies them to the registry, and fans
// out notifications to the rest of the room. It is constructable without a
// live socket; the transport hands it a Sender for replies.
//
// A session is not safe for concurrent use. The transport calls it from a
// single read loop, and Close exactly once on every exit path.
type Session struct {
	connID   string
	state    SessionState
	roomID   string
	playerID string

	reg    *Registry
	fanout *Fanout
	conn   Sender
	log    *zerolog.Logger
}

// NewSession builds a session in the connected (no room) state.
func NewSession(connID string, reg *Registry, fanout *Fanout, conn Sender, logger *zerolog.Logger) *Session {
	return &Session{
		connID: connID,
		state:  StateConnected,
		reg:    reg,
		fanout: fanout,
		conn:   conn,
		log:    logger,
	}
}

// State returns the session's current lifecycle stage.
func (s *Session) State() SessionState { return s.state }

// RoomID returns the room the session is joined to, if any.
func (s *Session) RoomID() string { return s.roomID }

// PlayerID returns the player id the session is bound to, if any.
func (s *Session) PlayerID() string { return s.playerID }

// HandleMessage dispatches one inbound message. Protocol violations are
// answered with an inline error message and keep the connection open; the
// returned error is only non-nil when the reply itself could not be sent.
func (s *Session) HandleMessage(ctx context.Context, msg *proto.ClientMessage) error {
	if s.state == StateClosed {
		return nil
	}

	switch msg.Type {
	case proto.TypeJoin:
		return s.handleJoin(ctx, msg)
	case proto.TypeUpdate:
		if s.state != StateJoined {
			return s.sendError(ctx, coreError(ErrCodeJoinRequired, "join required"))
		}
		return s.handleUpdate(ctx, msg)
	default:
		return s.sendError(ctx, coreError(ErrCodeBadRequest, "unknown message type"))
	}
}

func (s *Session) handleJoin(ctx context.Context, msg *proto.ClientMessage) error {
	if msg.Room == "" || msg.PlayerID == "" {
		return s.sendError(ctx, coreError(ErrCodeInvalidArgument, "room and player_id required"))
	}

	// Joining a different room moves the player: the old record would
	// otherwise linger until disconnect, and a record may live in at most
	// one room.
	if s.state == StateJoined && s.roomID != msg.Room {
		s.leaveRoom(ctx)
	}

	attrs := Attrs{
		Name:  msg.Name,
		Shape: msg.Shape,
		Color: msg.Color,
		X:     coord(msg.X, DefaultX),
		Y:     coord(msg.Y, DefaultY),
	}
	attrs.ApplyDefaults()

	players, err := s.reg.Join(msg.Room, msg.PlayerID, attrs, s.conn)
	if err != nil {
		return s.sendError(ctx, coreError(ErrCodeInvalidArgument, err.Error()))
	}

	s.state = StateJoined
	s.roomID = msg.Room
	s.playerID = msg.PlayerID

	state := proto.StateMessage{
		Type:    proto.TypeState,
		Room:    s.roomID,
		Players: wirePlayers(players),
		You:     s.playerID,
	}
	if err := s.send(ctx, state); err != nil {
		return err
	}

	s.fanout.Broadcast(ctx, s.roomID, proto.UpdateMessage{
		Type: proto.TypeUpdate,
		Player: proto.Player{
			PlayerID: s.playerID,
			Name:     attrs.Name,
			Shape:    attrs.Shape,
			Color:    attrs.Color,
			X:        attrs.X,
			Y:        attrs.Y,
		},
	}, s.playerID)
	return nil
}

func (s *Session) handleUpdate(ctx context.Context, msg *proto.ClientMessage) error {
	x := coord(msg.X, 0)
	y := coord(msg.Y, 0)

	found, err := s.reg.Update(s.roomID, s.playerID, x, y)
	if err != nil {
		return s.sendError(ctx, coreError(ErrCodeInvalidArgument, err.Error()))
	}
	if !found {
		// The record was swept or pruned out from under the connection;
		// push connections do not upsert.
		return nil
	}

	s.fanout.Broadcast(ctx, s.roomID, proto.UpdateMessage{
		Type:   proto.TypeUpdate,
		Player: proto.Player{PlayerID: s.playerID, X: x, Y: y},
	}, s.playerID)
	return nil
}

// Close runs the mandatory exit-path cleanup: leave the room and tell the
// remaining occupants. Safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	if s.state == StateJoined {
		s.leaveRoom(ctx)
	}
	s.state = StateClosed
}

func (s *Session) leaveRoom(ctx context.Context) {
	if err := s.reg.Leave(s.roomID, s.playerID); err != nil && s.log != nil {
		s.log.Warn().Err(err).Str("conn_id", s.connID).Msg("leave on close")
	}
	s.fanout.Broadcast(ctx, s.roomID, proto.LeaveMessage{
		Type:     proto.TypeLeave,
		PlayerID: s.playerID,
	}, "")
	s.roomID = ""
	s.playerID = ""
	s.state = StateConnected
}

func (s *Session) send(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.conn.Send(ctx, data)
}

func (s *Session) sendError(ctx context.Context, cerr *CoreError) error {
	if s.log != nil {
		s.log.Debug().Str("conn_id", s.connID).Str("code", cerr.Code).Msg(cerr.Message)
	}
	return s.send(ctx, proto.ErrorMessage{Type: proto.TypeError, Message: cerr.Message})
}

func coord(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func wirePlayers(players []PlayerInfo) []proto.Player {
	out := make([]proto.Player, 0, len(players))
	for _, p := range players {
		out = append(out, proto.Player{
			PlayerID: p.PlayerID,
			Name:     p.Name,
			Shape:    p.Shape,
			Color:    p.Color,
			X:        p.X,
			Y:        p.Y,
		})
	}
	return out
}
