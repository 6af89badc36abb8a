package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gridroom/gridroom-server/internal/core"
	"github.com/gridroom/gridroom-server/internal/proto"
)

// RoomHandlers serves the pull-model endpoints. Every handler sweeps the
// touched room first, so staleness is bounded by the room's own traffic;
// there is deliberately no background sweeper.
type RoomHandlers struct {
	reg *core.Registry
	ttl time.Duration
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(reg *core.Registry, ttl time.Duration, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{reg: reg, ttl: ttl, log: logger}
}

// Join handles POST /rooms/:room_id/join.
func (h *RoomHandlers) Join(c *gin.Context) {
	roomID := c.Param("room_id")

	var req proto.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Str("room", roomID).Msg("invalid join request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.PlayerID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "player_id required"})
		return
	}

	h.reg.SweepStale(roomID, h.ttl)

	attrs := joinAttrs(req.Name, req.Shape, req.Color, req.X, req.Y)
	if _, err := h.reg.Join(roomID, req.PlayerID, attrs, nil); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, proto.OKResponse{OK: true, Room: roomID})
}

// Update handles POST /rooms/:room_id/update. An update for a player the
// room does not know performs an implicit join, which makes the pull
// protocol self-healing against lost join calls.
func (h *RoomHandlers) Update(c *gin.Context) {
	roomID := c.Param("room_id")

	var req proto.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Str("room", roomID).Msg("invalid update request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.PlayerID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "player_id required"})
		return
	}

	h.reg.SweepStale(roomID, h.ttl)

	x, y := coordOr(req.X, 0), coordOr(req.Y, 0)
	found, err := h.reg.Update(roomID, req.PlayerID, x, y)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		attrs := joinAttrs(req.Name, req.Shape, req.Color, req.X, req.Y)
		if _, err := h.reg.Join(roomID, req.PlayerID, attrs, nil); err != nil {
			h.fail(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, proto.OKResponse{OK: true})
}

// State handles GET /rooms/:room_id/state. The sweep runs first so a read
// never returns a record that should already have expired.
func (h *RoomHandlers) State(c *gin.Context) {
	roomID := c.Param("room_id")

	h.reg.SweepStale(roomID, h.ttl)

	snapshot := h.reg.Snapshot(roomID)
	players := make([]proto.Player, 0, len(snapshot))
	for _, p := range snapshot {
		players = append(players, proto.Player{
			PlayerID: p.PlayerID,
			Name:     p.Name,
			Shape:    p.Shape,
			Color:    p.Color,
			X:        p.X,
			Y:        p.Y,
			LastSeen: p.LastSeen.UnixMilli(),
		})
	}

	c.JSON(http.StatusOK, proto.StateResponse{
		Room:    roomID,
		Players: players,
		You:     c.Query("player_id"),
	})
}

// Leave handles POST /rooms/:room_id/leave. Leaving an unknown player is a
// no-op, not an error.
func (h *RoomHandlers) Leave(c *gin.Context) {
	roomID := c.Param("room_id")

	var req proto.LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Str("room", roomID).Msg("invalid leave request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.PlayerID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "player_id required"})
		return
	}

	h.reg.SweepStale(roomID, h.ttl)

	if err := h.reg.Leave(roomID, req.PlayerID); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, proto.OKResponse{OK: true})
}

// fail maps a registry error onto the pull protocol's error taxonomy.
func (h *RoomHandlers) fail(c *gin.Context, err error) {
	if errors.Is(err, core.ErrInvalidArgument) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	h.log.Error().Err(err).Msg("registry operation failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func joinAttrs(name, shape, color string, x, y *float64) core.Attrs {
	attrs := core.Attrs{
		Name:  name,
		Shape: shape,
		Color: color,
		X:     coordOr(x, core.DefaultX),
		Y:     coordOr(y, core.DefaultY),
	}
	attrs.ApplyDefaults()
	return attrs
}

func coordOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
