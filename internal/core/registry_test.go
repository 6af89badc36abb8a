package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestRegistry() *Registry {
	return NewRegistry(nil, nil)
}

func testAttrs(x, y float64) Attrs {
	a := Attrs{X: x, Y: y}
	a.ApplyDefaults()
	return a
}

func findPlayer(t *testing.T, players []PlayerInfo, id string) PlayerInfo {
	t.Helper()
	for _, p := range players {
		if p.PlayerID == id {
			return p
		}
	}
	t.Fatalf("player %q not found in snapshot %+v", id, players)
	return PlayerInfo{}
}

func TestJoinReplacesExistingPlayer(t *testing.T) {
	reg := newTestRegistry()

	if _, err := reg.Join("r1", "p1", Attrs{Name: "first", Shape: "square", Color: "#fff", X: 1, Y: 2}, nil); err != nil {
		t.Fatalf("first join: %v", err)
	}
	snapshot, err := reg.Join("r1", "p1", Attrs{Name: "second", Shape: "circle", Color: "#000", X: 3, Y: 4}, nil)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}

	if len(snapshot) != 1 {
		t.Fatalf("expected 1 player after re-join, got %d", len(snapshot))
	}
	p := snapshot[0]
	if p.Name != "second" || p.Shape != "circle" || p.X != 3 || p.Y != 4 {
		t.Fatalf("re-join did not replace attributes: %+v", p)
	}
}

func TestJoinValidation(t *testing.T) {
	reg := newTestRegistry()

	if _, err := reg.Join("", "p1", testAttrs(0, 0), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty room, got %v", err)
	}
	if _, err := reg.Join("r1", "", testAttrs(0, 0), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty player, got %v", err)
	}
	if len(reg.Rooms()) != 0 {
		t.Fatalf("rejected joins must not create rooms, got %v", reg.Rooms())
	}
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	reg := newTestRegistry()

	if _, err := reg.Join("r1", "p1", testAttrs(0, 0), nil); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := reg.Join("r1", "p2", testAttrs(0, 0), nil); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := reg.Leave("r1", "p1"); err != nil {
		t.Fatalf("leave p1: %v", err)
	}
	if len(reg.Rooms()) != 1 {
		t.Fatalf("room must survive while p2 remains, rooms=%v", reg.Rooms())
	}

	if err := reg.Leave("r1", "p2"); err != nil {
		t.Fatalf("leave p2: %v", err)
	}
	if len(reg.Rooms()) != 0 {
		t.Fatalf("room must be deleted once empty, rooms=%v", reg.Rooms())
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	reg := newTestRegistry()

	if err := reg.Leave("r1", "ghost"); err != nil {
		t.Fatalf("leave on unknown room must be a no-op, got %v", err)
	}

	if _, err := reg.Join("r1", "p1", testAttrs(0, 0), nil); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := reg.Leave("r1", "p1"); err != nil {
		t.Fatalf("first leave: %v", err)
	}
	if err := reg.Leave("r1", "p1"); err != nil {
		t.Fatalf("second leave must be a no-op, got %v", err)
	}
}

func TestCrossRoomIsolation(t *testing.T) {
	reg := newTestRegistry()

	if _, err := reg.Join("a", "p1", testAttrs(1, 1), nil); err != nil {
		t.Fatalf("join a: %v", err)
	}
	if _, err := reg.Join("b", "p1", testAttrs(9, 9), nil); err != nil {
		t.Fatalf("join b: %v", err)
	}

	if _, err := reg.Update("a", "p1", 5, 5); err != nil {
		t.Fatalf("update a: %v", err)
	}

	pa := findPlayer(t, reg.Snapshot("a"), "p1")
	pb := findPlayer(t, reg.Snapshot("b"), "p1")
	if pa.X != 5 || pa.Y != 5 {
		t.Fatalf("room a not updated: %+v", pa)
	}
	if pb.X != 9 || pb.Y != 9 {
		t.Fatalf("room b must be untouched by room a's update: %+v", pb)
	}

	if err := reg.Leave("a", "p1"); err != nil {
		t.Fatalf("leave a: %v", err)
	}
	if len(reg.Snapshot("b")) != 1 {
		t.Fatalf("leaving room a must not affect room b")
	}
}

func TestUpdateUnknownPlayer(t *testing.T) {
	reg := newTestRegistry()

	found, err := reg.Update("r1", "p1", 1, 2)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if found {
		t.Fatal("update on unknown room must report not found")
	}
	if len(reg.Rooms()) != 0 {
		t.Fatalf("update on unknown room must not create it, rooms=%v", reg.Rooms())
	}
}

func TestSweepStaleBoundary(t *testing.T) {
	reg := newTestRegistry()

	base := time.Now()
	now := base
	reg.now = func() time.Time { return now }

	ttl := 10 * time.Second

	if _, err := reg.Join("r1", "stale", testAttrs(0, 0), nil); err != nil {
		t.Fatalf("join stale: %v", err)
	}

	// Fresh player joins one epsilon inside the window.
	now = base.Add(2 * time.Millisecond)
	if _, err := reg.Join("r1", "fresh", testAttrs(0, 0), nil); err != nil {
		t.Fatalf("join fresh: %v", err)
	}

	// Advance so stale is just past the TTL and fresh is just within it.
	now = base.Add(ttl + time.Millisecond)

	evicted := reg.SweepStale("r1", ttl)
	if len(evicted) != 1 || evicted[0] != "stale" {
		t.Fatalf("expected exactly [stale] evicted, got %v", evicted)
	}

	snapshot := reg.Snapshot("r1")
	if len(snapshot) != 1 || snapshot[0].PlayerID != "fresh" {
		t.Fatalf("expected only fresh to survive, got %+v", snapshot)
	}
}

func TestSweepStaleDeletesEmptyRoom(t *testing.T) {
	reg := newTestRegistry()

	base := time.Now()
	now := base
	reg.now = func() time.Time { return now }

	if _, err := reg.Join("r1", "p1", testAttrs(0, 0), nil); err != nil {
		t.Fatalf("join: %v", err)
	}

	now = base.Add(time.Minute)
	reg.SweepStale("r1", time.Second)

	if len(reg.Rooms()) != 0 {
		t.Fatalf("sweep emptying a room must delete it, rooms=%v", reg.Rooms())
	}
}

func TestUpdateRefreshesLastSeen(t *testing.T) {
	reg := newTestRegistry()

	base := time.Now()
	now := base
	reg.now = func() time.Time { return now }

	if _, err := reg.Join("r1", "p1", testAttrs(0, 0), nil); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Keep updating past the TTL; the player must never expire.
	ttl := 10 * time.Second
	for i := 0; i < 3; i++ {
		now = now.Add(8 * time.Second)
		if _, err := reg.Update("r1", "p1", float64(i), float64(i)); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		reg.SweepStale("r1", ttl)
	}

	if len(reg.Snapshot("r1")) != 1 {
		t.Fatal("active player must survive sweeps")
	}
}

func TestScenarioJoinUpdateLeave(t *testing.T) {
	reg := newTestRegistry()

	snapshot, err := reg.Join("r1", "p1", testAttrs(120, 120), nil)
	if err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if len(snapshot) != 1 {
		t.Fatalf("expected snapshot of 1, got %d", len(snapshot))
	}
	p1 := findPlayer(t, snapshot, "p1")
	if p1.X != 120 || p1.Y != 120 {
		t.Fatalf("p1 position wrong: %+v", p1)
	}

	if _, err := reg.Join("r1", "p2", testAttrs(50, 50), nil); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	if len(reg.Snapshot("r1")) != 2 {
		t.Fatal("both players must be visible")
	}

	if _, err := reg.Update("r1", "p1", 10, 10); err != nil {
		t.Fatalf("update p1: %v", err)
	}
	snap := reg.Snapshot("r1")
	p1 = findPlayer(t, snap, "p1")
	p2 := findPlayer(t, snap, "p2")
	if p1.X != 10 || p1.Y != 10 {
		t.Fatalf("p1 not moved: %+v", p1)
	}
	if p2.X != 50 || p2.Y != 50 {
		t.Fatalf("p2 must be unchanged: %+v", p2)
	}

	if err := reg.Leave("r1", "p1"); err != nil {
		t.Fatalf("leave p1: %v", err)
	}
	if len(reg.Rooms()) != 1 {
		t.Fatal("room must still exist while p2 present")
	}
	if err := reg.Leave("r1", "p2"); err != nil {
		t.Fatalf("leave p2: %v", err)
	}
	if len(reg.Rooms()) != 0 {
		t.Fatal("room must be gone after last leave")
	}
}

func TestConcurrentUpdatesDoNotBleed(t *testing.T) {
	reg := newTestRegistry()

	const players = 100
	for i := 0; i < players; i++ {
		id := fmt.Sprintf("p%d", i)
		if _, err := reg.Join("r1", id, testAttrs(0, 0), nil); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i)
			if _, err := reg.Update("r1", id, float64(i), float64(-i)); err != nil {
				t.Errorf("update %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	snapshot := reg.Snapshot("r1")
	if len(snapshot) != players {
		t.Fatalf("expected %d players, got %d", players, len(snapshot))
	}
	for i := 0; i < players; i++ {
		id := fmt.Sprintf("p%d", i)
		p := findPlayer(t, snapshot, id)
		if p.X != float64(i) || p.Y != float64(-i) {
			t.Fatalf("player %s corrupted: got (%v,%v)", id, p.X, p.Y)
		}
	}
}

func TestConcurrentJoinsDifferentRooms(t *testing.T) {
	reg := newTestRegistry()

	const rooms = 50
	var wg sync.WaitGroup
	for i := 0; i < rooms; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room := fmt.Sprintf("room-%d", i)
			if _, err := reg.Join(room, "p1", testAttrs(0, 0), nil); err != nil {
				t.Errorf("join %s: %v", room, err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(reg.Rooms()); got != rooms {
		t.Fatalf("expected %d rooms, got %d", rooms, got)
	}
}

func TestConcurrentJoinLeaveSameRoom(t *testing.T) {
	reg := newTestRegistry()

	// Hammer the create/delete race: rooms are created lazily and deleted
	// eagerly, so joins must never land in an unlinked room.
	const iterations = 200
	var wg sync.WaitGroup
	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i)
			if _, err := reg.Join("contested", id, testAttrs(0, 0), nil); err != nil {
				t.Errorf("join %s: %v", id, err)
				return
			}
			if err := reg.Leave("contested", id); err != nil {
				t.Errorf("leave %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	if len(reg.Snapshot("contested")) != 0 {
		t.Fatal("all players left; room must be empty")
	}
}
