package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// room holds the member set for one room id. Access goes through the room's
// own mutex so rooms never contend with each other. gone marks a room that
// was emptied and unlinked from the registry map; holders of a stale pointer
// must re-resolve.
type room struct {
	mu      sync.Mutex
	members map[string]*playerRecord
	gone    bool
}

func (rm *room) snapshotLocked() []PlayerInfo {
	players := make([]PlayerInfo, 0, len(rm.members))
	for _, rec := range rm.members {
		players = append(players, rec.info())
	}
	return players
}

// Registry owns every room and player record in the process. It is created
// once at startup, injected into both transport adapters, and torn down
// with the process; all state is memory-resident and lost on restart.
//
// All mutations against the same room are serialized by that room's mutex;
// operations on different rooms proceed in parallel.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	stats *Stats
	log   *zerolog.Logger

	// now is the clock used for last_seen stamps; swapped out in tests.
	now func() time.Time
}

// NewRegistry constructs an empty registry. stats may be nil.
func NewRegistry(stats *Stats, logger *zerolog.Logger) *Registry {
	if stats == nil {
		stats = NewStats()
	}
	return &Registry{
		rooms: make(map[string]*room),
		stats: stats,
		log:   logger,
		now:   time.Now,
	}
}

func requireIDs(roomID, playerID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: room_id required", ErrInvalidArgument)
	}
	if playerID == "" {
		return fmt.Errorf("%w: player_id required", ErrInvalidArgument)
	}
	return nil
}

// lookup resolves the live room for id, optionally creating it, and returns
// it with its mutex held. The caller must unlock. The retry loop covers the
// window where a room is unlinked between the map read and the room lock.
func (r *Registry) lookup(id string, create bool) *room {
	for {
		r.mu.RLock()
		rm := r.rooms[id]
		r.mu.RUnlock()

		if rm == nil {
			if !create {
				return nil
			}
			r.mu.Lock()
			rm = r.rooms[id]
			if rm == nil {
				rm = &room{members: make(map[string]*playerRecord)}
				r.rooms[id] = rm
			}
			r.mu.Unlock()
		}

		rm.mu.Lock()
		if rm.gone {
			rm.mu.Unlock()
			continue
		}
		return rm
	}
}

// unlinkIfEmpty removes a room from the registry map if it has no members.
// Lock order is registry before room, so callers must not hold the room
// mutex.
func (r *Registry) unlinkIfEmpty(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[id]
	if rm == nil {
		return
	}
	rm.mu.Lock()
	if len(rm.members) == 0 {
		rm.gone = true
		delete(r.rooms, id)
	}
	rm.mu.Unlock()
}

// Join inserts or replaces the record for playerID in roomID and returns a
// snapshot of the room's membership. Re-joining with an existing player_id
// silently replaces the prior record, which covers reconnect/refresh flows.
// conn is the delivery handle for push players; pull adapters pass nil.
func (r *Registry) Join(roomID, playerID string, attrs Attrs, conn Sender) ([]PlayerInfo, error) {
	if err := requireIDs(roomID, playerID); err != nil {
		return nil, err
	}

	rm := r.lookup(roomID, true)
	rm.members[playerID] = &playerRecord{
		playerID: playerID,
		name:     attrs.Name,
		shape:    attrs.Shape,
		color:    attrs.Color,
		x:        attrs.X,
		y:        attrs.Y,
		lastSeen: r.now(),
		conn:     conn,
	}
	snapshot := rm.snapshotLocked()
	rm.mu.Unlock()

	r.stats.Joins.Add(1)
	if r.log != nil {
		r.log.Debug().Str("room", roomID).Str("player_id", playerID).Msg("player joined")
	}
	return snapshot, nil
}

// Update mutates the position and last_seen of an existing player. It
// reports false, with no side effects, when the player or room is unknown;
// the pull adapter escalates that to an implicit join while the push
// adapter ignores it.
func (r *Registry) Update(roomID, playerID string, x, y float64) (bool, error) {
	if err := requireIDs(roomID, playerID); err != nil {
		return false, err
	}

	rm := r.lookup(roomID, false)
	if rm == nil {
		return false, nil
	}
	rec, ok := rm.members[playerID]
	if ok {
		rec.x = x
		rec.y = y
		rec.lastSeen = r.now()
	}
	rm.mu.Unlock()

	if ok {
		r.stats.Updates.Add(1)
	}
	return ok, nil
}

// Leave removes the record for playerID and deletes the room once its last
// member is gone. Leaving twice, or leaving a player that never joined, is
// a no-op.
func (r *Registry) Leave(roomID, playerID string) error {
	if err := requireIDs(roomID, playerID); err != nil {
		return err
	}

	rm := r.lookup(roomID, false)
	if rm == nil {
		return nil
	}
	_, existed := rm.members[playerID]
	delete(rm.members, playerID)
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		r.unlinkIfEmpty(roomID)
	}
	if existed {
		r.stats.Leaves.Add(1)
		if r.log != nil {
			r.log.Debug().Str("room", roomID).Str("player_id", playerID).Msg("player left")
		}
	}
	return nil
}

// Snapshot returns the current membership of roomID. Order carries no
// meaning. An unknown room yields an empty slice.
func (r *Registry) Snapshot(roomID string) []PlayerInfo {
	rm := r.lookup(roomID, false)
	if rm == nil {
		return []PlayerInfo{}
	}
	snapshot := rm.snapshotLocked()
	rm.mu.Unlock()
	return snapshot
}

// SweepStale evicts every player whose last_seen is older than now minus
// ttl and returns the evicted ids. It runs opportunistically before pull
// reads and writes, never on a timer, so an untouched room may hold stale
// entries until the next request lands on it.
func (r *Registry) SweepStale(roomID string, ttl time.Duration) []string {
	rm := r.lookup(roomID, false)
	if rm == nil {
		return nil
	}

	cutoff := r.now().Add(-ttl)
	var evicted []string
	for id, rec := range rm.members {
		if rec.lastSeen.Before(cutoff) {
			delete(rm.members, id)
			evicted = append(evicted, id)
		}
	}
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		r.unlinkIfEmpty(roomID)
	}
	if len(evicted) > 0 {
		r.stats.SweptPlayers.Add(int64(len(evicted)))
		if r.log != nil {
			r.log.Debug().Str("room", roomID).Int("evicted", len(evicted)).Msg("swept stale players")
		}
	}
	return evicted
}

// Rooms returns the ids of all rooms that currently have members.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// PlayerCount returns the total number of players across all rooms.
func (r *Registry) PlayerCount() int {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	total := 0
	for _, rm := range rooms {
		rm.mu.Lock()
		total += len(rm.members)
		rm.mu.Unlock()
	}
	return total
}

type recipient struct {
	playerID string
	conn     Sender
}

// recipients returns the delivery handles of every push-connected player in
// roomID except skipID. Only the membership read holds the room lock; the
// sends themselves happen outside it.
func (r *Registry) recipients(roomID, skipID string) []recipient {
	rm := r.lookup(roomID, false)
	if rm == nil {
		return nil
	}
	out := make([]recipient, 0, len(rm.members))
	for id, rec := range rm.members {
		if id == skipID || rec.conn == nil {
			continue
		}
		out = append(out, recipient{playerID: id, conn: rec.conn})
	}
	rm.mu.Unlock()
	return out
}
