package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/gridroom/gridroom-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:5000/ws", "WebSocket address")
	room := flag.String("room", "r1", "room to join")
	player := flag.String("player", "smoke", "player id")
	moves := flag.Int("moves", 3, "number of position updates to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	x, y := 120.0, 120.0
	join := proto.ClientMessage{Type: proto.TypeJoin, Room: *room, PlayerID: *player, X: &x, Y: &y}
	if err := wsjson.Write(ctx, conn, join); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	var state proto.StateMessage
	if err := wsjson.Read(ctx, conn, &state); err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	fmt.Printf("joined room=%s you=%s occupants=%d\n", state.Room, state.You, len(state.Players))

	for i := 0; i < *moves; i++ {
		mx, my := x+float64(i+1), y-float64(i+1)
		update := proto.ClientMessage{Type: proto.TypeUpdate, X: &mx, Y: &my}
		if err := wsjson.Write(ctx, conn, update); err != nil {
			return fmt.Errorf("send update %d: %w", i, err)
		}
		fmt.Printf("moved to (%.0f,%.0f)\n", mx, my)
		time.Sleep(200 * time.Millisecond)
	}

	return nil
}
