package core

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Sender is the delivery side of one push connection. Implementations must
// tolerate concurrent Send calls and should bound how long a send may block.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// DeliveryFailure pairs one failed send with the player it was addressed
// to, so failures can be attributed without inspecting transport internals.
type DeliveryFailure struct {
	PlayerID string
	Err      error
}

// FanoutResult reports the outcome of one Broadcast call.
type FanoutResult struct {
	Delivered int
	Failures  []DeliveryFailure
}

// Fanout delivers payloads to every push connection in a room. A failed
// delivery is treated as a disconnect: the player is removed from the room
// and the failure is never surfaced to the broadcaster.
type Fanout struct {
	reg   *Registry
	stats *Stats
	log   *zerolog.Logger
}

// NewFanout constructs a fanout over reg. stats may be nil.
func NewFanout(reg *Registry, stats *Stats, logger *zerolog.Logger) *Fanout {
	if stats == nil {
		stats = NewStats()
	}
	return &Fanout{reg: reg, stats: stats, log: logger}
}

// Broadcast sends payload to every connected player in roomID except
// skipID. Deliveries run concurrently and the call returns only after every
// attempt has finished. The recipient list is read under the room lock, but
// sends happen outside it so one stalled client cannot hold up the room.
// Membership may change between the read and the failure pruning; pruning a
// player who already left is a no-op.
func (f *Fanout) Broadcast(ctx context.Context, roomID string, payload any, skipID string) FanoutResult {
	data, err := json.Marshal(payload)
	if err != nil {
		if f.log != nil {
			f.log.Error().Err(err).Str("room", roomID).Msg("marshal broadcast payload")
		}
		return FanoutResult{}
	}

	recipients := f.reg.recipients(roomID, skipID)
	if len(recipients) == 0 {
		return FanoutResult{}
	}

	errs := make([]error, len(recipients))
	var wg sync.WaitGroup
	for i, rc := range recipients {
		wg.Add(1)
		go func(i int, rc recipient) {
			defer wg.Done()
			errs[i] = rc.conn.Send(ctx, data)
		}(i, rc)
	}
	wg.Wait()

	var result FanoutResult
	for i, rc := range recipients {
		if errs[i] == nil {
			result.Delivered++
			continue
		}
		result.Failures = append(result.Failures, DeliveryFailure{PlayerID: rc.playerID, Err: errs[i]})
		f.stats.FailedDeliveries.Add(1)
		if f.log != nil {
			f.log.Warn().Err(errs[i]).Str("room", roomID).Str("player_id", rc.playerID).
				Msg("delivery failed, removing player")
		}
		// A dead connection is indistinguishable from a disconnect.
		_ = f.reg.Leave(roomID, rc.playerID)
	}

	f.stats.Broadcasts.Add(1)
	return result
}
