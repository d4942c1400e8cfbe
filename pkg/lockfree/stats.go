package lockfree

import (
	"sync/atomic"
	"time"
)

// Stats holds the counters shared by the hot-tier indexes. All methods are
// safe for concurrent use.
type Stats struct {
	items                  atomic.Int64
	queries                atomic.Uint64
	queryMicros            atomic.Uint64
	promotions             atomic.Uint64
	demotions              atomic.Uint64
	similarityComputations atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Items                  int64
	Queries                uint64
	TotalQueryTime         time.Duration
	Promotions             uint64
	Demotions              uint64
	SimilarityComputations uint64
}

// AvgQueryTime returns the mean query latency, zero with no queries.
func (s StatsSnapshot) AvgQueryTime() time.Duration {
	if s.Queries == 0 {
		return 0
	}
	return s.TotalQueryTime / time.Duration(s.Queries)
}

func (s *Stats) IncItems()                       { s.items.Add(1) }
func (s *Stats) DecItems()                       { s.items.Add(-1) }
func (s *Stats) IncPromotions()                  { s.promotions.Add(1) }
func (s *Stats) IncDemotions()                   { s.demotions.Add(1) }
func (s *Stats) AddSimilarityComputations(n int) { s.similarityComputations.Add(uint64(n)) }

// ObserveQuery counts one query that took d.
func (s *Stats) ObserveQuery(d time.Duration) {
	s.queries.Add(1)
	s.queryMicros.Add(uint64(d.Microseconds()))
}

// Snapshot copies the counters. Fields are read independently, so a
// snapshot taken under load may mix slightly different instants.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Items:                  s.items.Load(),
		Queries:                s.queries.Load(),
		TotalQueryTime:         time.Duration(s.queryMicros.Load()) * time.Microsecond,
		Promotions:             s.promotions.Load(),
		Demotions:              s.demotions.Load(),
		SimilarityComputations: s.similarityComputations.Load(),
	}
}
