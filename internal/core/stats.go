package core

import "sync/atomic"

// Stats tracks process-wide counters exposed by the /stats endpoint.
type Stats struct {
	Joins            atomic.Int64
	Updates          atomic.Int64
	Leaves           atomic.Int64
	SweptPlayers     atomic.Int64
	Broadcasts       atomic.Int64
	FailedDeliveries atomic.Int64
}

// NewStats returns a zeroed counter set.
func NewStats() *Stats {
	return &Stats{}
}

// Snapshot returns a read-only copy of the counters for HTTP output.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"joins":             s.Joins.Load(),
		"updates":           s.Updates.Load(),
		"leaves":            s.Leaves.Load(),
		"swept_players":     s.SweptPlayers.Load(),
		"broadcasts":        s.Broadcasts.Load(),
		"failed_deliveries": s.FailedDeliveries.Load(),
	}
}
