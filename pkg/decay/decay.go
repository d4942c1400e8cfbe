// Package decay scores how "warm" a record is from its access history and
// maps the score onto a temperature.
//
// Every record belongs to a memory class with its own half-life:
//   - Episodic: conversations and session data (7-day half-life)
//   - Semantic: entities and facts (69-day half-life)
//   - Procedural: action outcomes and learned patterns (693-day half-life)
//
// A score in [0, 1] combines:
//   - Recency: exponential decay since the last access
//   - Frequency: logarithmic growth with the access count
//   - Importance: the class default or a manual weight
//
// The score maps onto Hot, Warm or Cold through two thresholds. The
// coordinator uses the result to move records between tiers, and the
// hot-tier indexes use it to report per-node temperature.
//
// Example Usage:
//
//	scorer := decay.NewScorer(decay.DefaultConfig())
//
//	access := decay.Access{
//		Class:       decay.ClassEpisodic,
//		LastAccess:  time.Now().Add(-48 * time.Hour),
//		AccessCount: 3,
//	}
//
//	score := scorer.Score(access)
//	switch scorer.Classify(score) {
//	case decay.Hot:
//		// keep in the active tier
//	case decay.Cold:
//		// candidate for archiving
//	}
//
// The Sweeper runs a caller-supplied pass on a fixed interval until stopped.
package decay

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/logging"
)

// Class is a memory class. It selects the decay rate and default
// importance of a record.
type Class string

const (
	// ClassEpisodic decays in about a week.
	ClassEpisodic Class = "EPISODIC"

	// ClassSemantic decays in about ten weeks.
	ClassSemantic Class = "SEMANTIC"

	// ClassProcedural decays in about two years.
	ClassProcedural Class = "PROCEDURAL"
)

// lambda per hour
var classLambda = map[Class]float64{
	ClassEpisodic:   0.00412,   // ~7 day half-life (168 hours)
	ClassSemantic:   0.000418,  // ~69 day half-life (1656 hours)
	ClassProcedural: 0.0000417, // ~693 day half-life (16632 hours)
}

var classImportance = map[Class]float64{
	ClassEpisodic:   0.3,
	ClassSemantic:   0.6,
	ClassProcedural: 0.9,
}

// Temperature is the access-derived heat of a record.
type Temperature string

const (
	Hot  Temperature = "hot"
	Warm Temperature = "warm"
	Cold Temperature = "cold"
)

// Config holds the score weights and temperature thresholds.
type Config struct {
	RecencyWeight    float64
	FrequencyWeight  float64
	ImportanceWeight float64

	// HotThreshold and ColdThreshold split the score range. Scores at or
	// above HotThreshold are Hot, scores below ColdThreshold are Cold.
	HotThreshold  float64
	ColdThreshold float64

	// ArchiveThreshold marks records that should leave every hot tier.
	ArchiveThreshold float64

	// SaturationAccesses is the access count at which the frequency
	// factor reaches 1.
	SaturationAccesses float64
}

// DefaultConfig returns the weights used across tierdb.
func DefaultConfig() Config {
	return Config{
		RecencyWeight:      0.4,
		FrequencyWeight:    0.3,
		ImportanceWeight:   0.3,
		HotThreshold:       0.6,
		ColdThreshold:      0.25,
		ArchiveThreshold:   0.05,
		SaturationAccesses: 100,
	}
}

// Access is the access history of one record.
type Access struct {
	Class       Class
	LastAccess  time.Time
	AccessCount uint64

	// Importance overrides the class default when non-zero.
	Importance float64
}

// Scorer computes decay scores. It is safe for concurrent use; the clock
// can be replaced for tests.
type Scorer struct {
	cfg Config
	now func() time.Time
}

// NewScorer returns a scorer using cfg.
func NewScorer(cfg Config) *Scorer {
	if cfg.SaturationAccesses <= 0 {
		cfg.SaturationAccesses = 100
	}
	return &Scorer{cfg: cfg, now: time.Now}
}

// WithClock returns a copy of s that reads time from now.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	c := *s
	c.now = now
	return &c
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Score returns the decay score of a in [0, 1].
func (s *Scorer) Score(a Access) float64 {
	hours := s.now().Sub(a.LastAccess).Hours()
	if hours < 0 {
		hours = 0
	}
	lambda, ok := classLambda[a.Class]
	if !ok {
		lambda = classLambda[ClassSemantic]
	}
	recency := math.Exp(-lambda * hours)

	frequency := math.Log1p(float64(a.AccessCount)) / math.Log1p(s.cfg.SaturationAccesses)
	frequency = min(frequency, 1)

	importance := a.Importance
	if importance == 0 {
		importance, ok = classImportance[a.Class]
		if !ok {
			importance = 0.5
		}
	}

	score := s.cfg.RecencyWeight*recency +
		s.cfg.FrequencyWeight*frequency +
		s.cfg.ImportanceWeight*importance
	return max(0, min(score, 1))
}

// Classify maps a score onto a temperature.
func (s *Scorer) Classify(score float64) Temperature {
	switch {
	case score >= s.cfg.HotThreshold:
		return Hot
	case score < s.cfg.ColdThreshold:
		return Cold
	default:
		return Warm
	}
}

// Temperature is Classify(Score(a)).
func (s *Scorer) Temperature(a Access) Temperature {
	return s.Classify(s.Score(a))
}

// ShouldArchive reports whether score is below the archive threshold.
func (s *Scorer) ShouldArchive(score float64) bool {
	return score < s.cfg.ArchiveThreshold
}

// Stats summarizes the scores of a set of records.
type Stats struct {
	Total         int
	ByTemperature map[Temperature]int
	ByClass       map[Class]int
	Archivable    int
	AvgScore      float64
}

// Summarize scores every access in records.
func (s *Scorer) Summarize(records []Access) Stats {
	st := Stats{
		ByTemperature: make(map[Temperature]int, 3),
		ByClass:       make(map[Class]int, 3),
	}
	var total float64
	for _, a := range records {
		score := s.Score(a)
		total += score
		st.Total++
		st.ByClass[a.Class]++
		st.ByTemperature[s.Classify(score)]++
		if s.ShouldArchive(score) {
			st.Archivable++
		}
	}
	if st.Total > 0 {
		st.AvgScore = total / float64(st.Total)
	}
	return st
}

// HalfLife returns the half-life of class.
func HalfLife(class Class) time.Duration {
	lambda := classLambda[class]
	if lambda == 0 {
		return 0
	}
	return time.Duration(math.Ln2 / lambda * float64(time.Hour))
}

// Sweeper runs a pass function on a fixed interval in the background.
type Sweeper struct {
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSweeper returns a stopped sweeper.
func NewSweeper(interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{interval: interval, log: logging.OrNop(log)}
}

// Start launches pass on every tick. A second Start is a no-op until Stop.
// Errors from pass are logged and do not stop the sweeper.
func (s *Sweeper) Start(pass func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := pass(ctx); err != nil {
					s.log.Warn("sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop cancels the running pass and waits for the goroutine to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()
	s.wg.Wait()
}
