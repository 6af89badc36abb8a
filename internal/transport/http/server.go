package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gridroom/gridroom-server/internal/config"
	"github.com/gridroom/gridroom-server/internal/core"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the HTTP server carrying both delivery adapters: the
// push endpoint on /ws and the pull endpoints under /rooms.
func NewServer(reg *core.Registry, fanout *core.Fanout, stats *core.Stats, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/stats", statsHandler(reg, stats))

	ws := NewWSHandler(reg, fanout, cfg.MaxMessageBytes, logger)
	router.GET("/ws", ws.Handle)

	rh := NewRoomHandlers(reg, cfg.PresenceTTL, logger)
	rooms := router.Group("/rooms/:room_id")
	rooms.POST("/join", rh.Join)
	rooms.POST("/update", rh.Update)
	rooms.GET("/state", rh.State)
	rooms.POST("/leave", rh.Leave)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// healthHandler reports process liveness only; it checks no dependencies.
func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, gin.H{"status": "ok"})
}

func statsHandler(reg *core.Registry, stats *core.Stats) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{
			"rooms":    len(reg.Rooms()),
			"players":  reg.PlayerCount(),
			"counters": stats.Snapshot(),
		})
	}
}
