package coordinator

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/decay"
	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/storage"
)

// AccessCountKey is the metadata key read as a message's access count when
// scoring its temperature.
const AccessCountKey = "access_count"

// SweepResult reports one maintenance pass.
type SweepResult struct {
	Promoted         int // messages moved active -> recent
	Archived         int // messages moved recent -> archive
	EntitiesPromoted int // entities moved active -> stable
	// Active scores the messages left in conversations/active.
	Active decay.Stats
}

// Sweep runs one maintenance pass as of now: it promotes old active
// messages to recent, archives old recent messages by quarter, and moves
// frequently mentioned entities to knowledge/stable. A cancelled ctx stops
// the pass between records.
func (c *Coordinator) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	if err := c.checkOpen(); err != nil {
		return res, err
	}

	var toPromote []models.NodeID
	var remaining []decay.Access
	for n, err := range c.conversationsActive.Nodes() {
		if err != nil {
			return res, err
		}
		msg, ok := n.(*models.Message)
		if !ok {
			continue
		}
		ts := time.UnixMilli(msg.Timestamp)
		if now.Sub(ts) >= c.opts.PromotionAge {
			toPromote = append(toPromote, msg.NodeID)
			continue
		}
		remaining = append(remaining, decay.Access{
			Class:       decay.ClassEpisodic,
			LastAccess:  ts,
			AccessCount: uint64(max(metadataInt(msg.Metadata, AccessCountKey), 1)),
		})
	}

	var errs error
	for _, id := range toPromote {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		moved, err := c.PromoteMessageToRecent(id, now)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if moved {
			res.Promoted++
		}
	}

	recent, err := c.conversationsRecent.Get()
	if err != nil {
		return res, multierr.Append(errs, err)
	}
	var toArchive []models.NodeID
	for n, err := range recent.Nodes() {
		if err != nil {
			return res, multierr.Append(errs, err)
		}
		if msg, ok := n.(*models.Message); ok && now.Sub(time.UnixMilli(msg.Timestamp)) >= c.opts.ArchiveAge {
			toArchive = append(toArchive, msg.NodeID)
		}
	}
	for _, id := range toArchive {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		moved, err := c.ArchiveMessage(id, now)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if moved {
			res.Archived++
		}
	}

	var stable []models.NodeID
	for n, err := range c.knowledgeActive.Nodes() {
		if err != nil {
			return res, multierr.Append(errs, err)
		}
		if e, ok := n.(*models.Entity); ok && mentionCount(e.Metadata) >= c.opts.StableMentions {
			stable = append(stable, e.NodeID)
		}
	}
	for _, id := range stable {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		moved, err := c.PromoteEntityToStable(id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if moved {
			res.EntitiesPromoted++
		}
	}

	res.Active = c.scorer.Summarize(remaining)
	c.log.Info("maintenance pass",
		zap.Int("promoted", res.Promoted),
		zap.Int("archived", res.Archived),
		zap.Int("entities_promoted", res.EntitiesPromoted),
		zap.Int("active", res.Active.Total),
		zap.Int("active_cold", res.Active.ByTemperature[decay.Cold]))
	return res, errs
}

// metadataInt reads an integer from md. Decoded metadata holds JSON numbers
// as float64.
func metadataInt(md models.Metadata, key string) int {
	switch v := md[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// StartMaintenance runs Sweep every MaintenanceInterval until
// StopMaintenance or Close. Calling it twice is a no-op.
func (c *Coordinator) StartMaintenance() {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.sweeper != nil || c.closed.Load() {
		return
	}
	c.sweeper = decay.NewSweeper(c.opts.MaintenanceInterval, c.log)
	c.sweeper.Start(func(ctx context.Context) error {
		_, err := c.Sweep(ctx, c.now())
		return err
	})
}

// StopMaintenance stops a running maintenance loop.
func (c *Coordinator) StopMaintenance() {
	c.sweepMu.Lock()
	s := c.sweeper
	c.sweeper = nil
	c.sweepMu.Unlock()
	if s != nil {
		s.Stop()
	}
}

// TierOf reports which tier of conversations currently holds the message
// id, NoTier when none does.
func (c *Coordinator) TierOf(id models.NodeID) (storage.TemperatureTier, string, error) {
	if err := c.checkOpen(); err != nil {
		return storage.NoTier, "", err
	}
	for _, s := range c.conversationSteps("") {
		m, err := s.get()
		if err != nil {
			return storage.NoTier, "", err
		}
		ok, err := m.HasNode(id)
		if err != nil {
			return storage.NoTier, "", err
		}
		if ok {
			return s.loc.tier, s.loc.quarter, nil
		}
	}
	return storage.NoTier, "", nil
}
