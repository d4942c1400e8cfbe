package decay

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedScorer(now time.Time) *Scorer {
	return NewScorer(DefaultConfig()).WithClock(func() time.Time { return now })
}

func TestScore(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	t.Run("fresh_unaccessed_episodic_is_warm", func(t *testing.T) {
		a := Access{Class: ClassEpisodic, LastAccess: now}
		assert.InDelta(t, 0.49, s.Score(a), 1e-9)
		assert.Equal(t, Warm, s.Temperature(a))
	})

	t.Run("frequent_access_is_hot", func(t *testing.T) {
		a := Access{Class: ClassEpisodic, LastAccess: now, AccessCount: 100}
		assert.InDelta(t, 0.79, s.Score(a), 1e-9)
		assert.Equal(t, Hot, s.Temperature(a))
	})

	t.Run("month_old_episodic_is_cold", func(t *testing.T) {
		a := Access{Class: ClassEpisodic, LastAccess: now.Add(-30 * 24 * time.Hour)}
		assert.Equal(t, Cold, s.Temperature(a))
		assert.False(t, s.ShouldArchive(s.Score(a)))
	})

	t.Run("procedural_outlives_episodic", func(t *testing.T) {
		old := now.Add(-90 * 24 * time.Hour)
		ep := s.Score(Access{Class: ClassEpisodic, LastAccess: old})
		pr := s.Score(Access{Class: ClassProcedural, LastAccess: old})
		assert.Greater(t, pr, ep)
	})

	t.Run("future_access_clamps", func(t *testing.T) {
		a := Access{Class: ClassSemantic, LastAccess: now.Add(time.Hour), AccessCount: 1000, Importance: 1}
		assert.InDelta(t, 1.0, s.Score(a), 1e-9)
	})

	t.Run("unknown_class_uses_semantic_rate", func(t *testing.T) {
		a := Access{Class: "OTHER", LastAccess: now.Add(-24 * time.Hour), Importance: 0.6}
		b := Access{Class: ClassSemantic, LastAccess: now.Add(-24 * time.Hour)}
		assert.InDelta(t, s.Score(b), s.Score(a), 1e-9)
	})
}

func TestHalfLife(t *testing.T) {
	assert.InDelta(t, 7, HalfLife(ClassEpisodic).Hours()/24, 0.1)
	assert.InDelta(t, 69, HalfLife(ClassSemantic).Hours()/24, 0.5)
	assert.InDelta(t, 693, HalfLife(ClassProcedural).Hours()/24, 1)
	assert.Zero(t, HalfLife("OTHER"))
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	s := fixedScorer(now)
	st := s.Summarize([]Access{
		{Class: ClassEpisodic, LastAccess: now, AccessCount: 100},
		{Class: ClassEpisodic, LastAccess: now.Add(-60 * 24 * time.Hour)},
		{Class: ClassSemantic, LastAccess: now},
	})
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.ByClass[ClassEpisodic])
	assert.Equal(t, 1, st.ByTemperature[Hot])
	assert.Equal(t, 1, st.ByTemperature[Cold])
	assert.Greater(t, st.AvgScore, 0.0)

	assert.Zero(t, s.Summarize(nil).AvgScore)
}

func TestSweeper(t *testing.T) {
	var runs atomic.Int32
	sw := NewSweeper(5*time.Millisecond, nil)
	sw.Start(func(context.Context) error {
		runs.Add(1)
		return nil
	})
	sw.Start(func(context.Context) error { panic("second start must be ignored") })

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
	sw.Stop()
	sw.Stop()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}
