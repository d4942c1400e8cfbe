package coordinator

import (
	"fmt"

	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/storage"
)

// InsertSummary stores s in the summaries tier (session, daily, weekly or
// monthly), opening the tier if needed.
func (c *Coordinator) InsertSummary(tier storage.TemperatureTier, s *models.Summary) error {
	if s == nil {
		return storage.ErrInvalidID
	}
	l, ok := c.summaries[tier]
	if !ok {
		return fmt.Errorf("%w: summaries has no %s tier", storage.ErrInvalidOperation, tier)
	}
	m, err := l.Get()
	if err != nil {
		return err
	}
	return c.insert(m, s)
}

// GetSummary searches session, daily, weekly, then monthly.
func (c *Coordinator) GetSummary(id models.NodeID) (*models.Summary, error) {
	tiers := storage.Summaries.DefaultTiers()
	steps := make([]tierStep, 0, len(tiers))
	for _, tier := range tiers {
		steps = append(steps, lazyStep(c.summaries[tier], tier))
	}
	return find[*models.Summary](c, id, steps)
}
