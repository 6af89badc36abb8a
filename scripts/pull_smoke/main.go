package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gridroom/gridroom-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("pull_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:5000", "server base URL")
	room := flag.String("room", "r1", "room to join")
	player := flag.String("player", "poller", "player id")
	polls := flag.Int("polls", 3, "number of state polls")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	roomBase := *base + "/rooms/" + *room

	joinBody, _ := json.Marshal(map[string]any{"player_id": *player, "x": 120, "y": 120})
	if err := post(client, roomBase+"/join", joinBody); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	fmt.Printf("joined room=%s as %s\n", *room, *player)

	for i := 0; i < *polls; i++ {
		updateBody, _ := json.Marshal(map[string]any{"player_id": *player, "x": 120 + i, "y": 120 - i})
		if err := post(client, roomBase+"/update", updateBody); err != nil {
			return fmt.Errorf("update %d: %w", i, err)
		}

		resp, err := client.Get(roomBase + "/state?player_id=" + *player)
		if err != nil {
			return fmt.Errorf("state %d: %w", i, err)
		}
		var state proto.StateResponse
		err = json.NewDecoder(resp.Body).Decode(&state)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode state %d: %w", i, err)
		}
		fmt.Printf("poll %d: %d occupant(s)\n", i, len(state.Players))
		time.Sleep(500 * time.Millisecond)
	}

	leaveBody, _ := json.Marshal(map[string]string{"player_id": *player})
	if err := post(client, roomBase+"/leave", leaveBody); err != nil {
		return fmt.Errorf("leave: %w", err)
	}
	fmt.Println("left")
	return nil
}

func post(client *http.Client, url string, body []byte) error {
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
