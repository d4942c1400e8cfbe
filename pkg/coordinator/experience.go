package coordinator

import (
	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/storage"
)

// PatternContext is the conversation context of recorded patterns.
const PatternContext = "pattern_learning"

// InsertActionOutcome stores o in experience.
func (c *Coordinator) InsertActionOutcome(o *models.ActionOutcome) error {
	if o == nil {
		return storage.ErrInvalidID
	}
	return c.insert(c.experience, o)
}

// GetActionOutcome returns the outcome stored under id, or nil.
func (c *Coordinator) GetActionOutcome(id models.NodeID) (*models.ActionOutcome, error) {
	return find[*models.ActionOutcome](c, id, []tierStep{fixed(c.experience, storage.NoTier)})
}

// UpdateActionOutcomeWithFeedback attaches fb to the outcome id. It returns
// a storage.ErrNotFound error when no such outcome exists.
func (c *Coordinator) UpdateActionOutcomeWithFeedback(id models.NodeID, fb models.UserFeedback) error {
	o, err := c.GetActionOutcome(id)
	if err != nil {
		return err
	}
	if o == nil {
		return storage.NotFound(string(id))
	}
	o.UserFeedback = &fb
	return c.insert(c.experience, o)
}

// GetActionOutcomesByType returns every outcome whose action type equals
// actionType, in ID order.
func (c *Coordinator) GetActionOutcomesByType(actionType string) ([]*models.ActionOutcome, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	ids, err := c.experience.NodesByProperty("action_type", actionType)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ActionOutcome, 0, len(ids))
	for _, id := range ids {
		o, ok, err := nodeAs[*models.ActionOutcome](c.experience, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// RecordSuccessPattern stores a learned success pattern as the outcome
// "pattern_{patternID}" of type "success_pattern_{actionType}". Recording
// the same pattern again replaces it.
func (c *Coordinator) RecordSuccessPattern(patternID, actionType string, confidence float32) error {
	return c.recordPattern(patternID, "success", actionType, models.Metadata{"confidence": confidence})
}

// RecordErrorPattern is RecordSuccessPattern for a recurring error.
func (c *Coordinator) RecordErrorPattern(patternID, actionType string, errorCount uint32) error {
	return c.recordPattern(patternID, "error", actionType, models.Metadata{"error_count": errorCount})
}

func (c *Coordinator) recordPattern(patternID, kind, actionType string, args models.Metadata) error {
	if patternID == "" {
		return storage.ErrInvalidID
	}
	return c.InsertActionOutcome(&models.ActionOutcome{
		NodeID:              models.NodeID("pattern_" + patternID),
		ActionType:          kind + "_pattern_" + actionType,
		ActionArgs:          args,
		Result:              models.Metadata{"pattern_id": patternID, "type": kind},
		Timestamp:           c.now().UnixMilli(),
		ConversationContext: PatternContext,
	})
}
