package http

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gridroom/gridroom-server/internal/core"
	"github.com/gridroom/gridroom-server/internal/proto"
	"github.com/gridroom/gridroom-server/internal/utils"
)

// sendTimeout bounds one delivery to a push client so a stalled connection
// turns into a fanout failure instead of blocking its whole room.
const sendTimeout = 5 * time.Second

// WSHandler upgrades HTTP connections and bridges them to a push session.
type WSHandler struct {
	reg             *core.Registry
	fanout          *core.Fanout
	maxMessageBytes int64
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(reg *core.Registry, fanout *core.Fanout, maxMessageBytes int64, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{reg: reg, fanout: fanout, maxMessageBytes: maxMessageBytes, log: logger}
}

// wsSender adapts a websocket connection to the core Sender contract.
// coder/websocket serializes concurrent writers internally.
type wsSender struct {
	conn *websocket.Conn
}

func (s wsSender) Send(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, payload)
}

// Handle runs one push connection: accept, read loop, mandatory cleanup.
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// Origin checking is left to the deployment edge, matching the
		// service's allow-all CORS posture.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	conn.SetReadLimit(h.maxMessageBytes)

	connID := utils.NewConnID()
	sess := core.NewSession(connID, h.reg, h.fanout, wsSender{conn: conn}, h.log)

	// Cleanup must run on every exit path, not just explicit leaves. The
	// request context is already dead once the peer is gone, so the leave
	// broadcast gets its own deadline.
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		sess.Close(closeCtx)
	}()

	ctx := c.Request.Context()
	readErr := h.readLoop(ctx, conn, sess, connID)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if readErr != nil && !errors.Is(readErr, context.Canceled) {
		if s := websocket.CloseStatus(readErr); s > 0 {
			status = s
		}
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
			h.log.Debug().Err(readErr).Str("conn_id", connID).Msg("ws connection closed with error")
		}
	}
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session, connID string) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var msg proto.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed frames (including non-numeric coordinates) are a
			// protocol violation, not a transport failure: answer inline
			// and keep reading.
			h.log.Debug().Err(err).Str("conn_id", connID).Msg("malformed ws message")
			if sendErr := h.sendError(ctx, conn, "invalid message"); sendErr != nil {
				return sendErr
			}
			continue
		}

		if err := sess.HandleMessage(ctx, &msg); err != nil {
			return err
		}
	}
}

func (h *WSHandler) sendError(ctx context.Context, conn *websocket.Conn, message string) error {
	data, err := json.Marshal(proto.ErrorMessage{Type: proto.TypeError, Message: message})
	if err != nil {
		return err
	}
	return wsSender{conn: conn}.Send(ctx, data)
}
