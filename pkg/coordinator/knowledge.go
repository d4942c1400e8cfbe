package coordinator

import (
	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/storage"
)

// MentionCountKey is the entity metadata key counted towards promotion to
// knowledge/stable.
const MentionCountKey = "mention_count"

// InsertEntity stores e in knowledge/active.
func (c *Coordinator) InsertEntity(e *models.Entity) error {
	if e == nil {
		return storage.ErrInvalidID
	}
	return c.insert(c.knowledgeActive, e)
}

// InsertInferredEntity stores a low-confidence entity in knowledge/inferred.
func (c *Coordinator) InsertInferredEntity(e *models.Entity) error {
	if e == nil {
		return storage.ErrInvalidID
	}
	inferred, err := c.knowledgeInferred.Get()
	if err != nil {
		return err
	}
	return c.insert(inferred, e)
}

// GetEntity searches knowledge active, then stable, then inferred.
func (c *Coordinator) GetEntity(id models.NodeID) (*models.Entity, error) {
	return find[*models.Entity](c, id, []tierStep{
		fixed(c.knowledgeActive, storage.Active),
		fixed(c.knowledgeStable, storage.Stable),
		lazyStep(c.knowledgeInferred, storage.Inferred),
	})
}

// EntitiesByType returns the IDs of active and stable entities of
// entityType, active first.
func (c *Coordinator) EntitiesByType(entityType string) ([]models.NodeID, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	active, err := c.knowledgeActive.NodesByProperty("entity_type", entityType)
	if err != nil {
		return nil, err
	}
	stable, err := c.knowledgeStable.NodesByProperty("entity_type", entityType)
	if err != nil {
		return nil, err
	}
	return append(active, stable...), nil
}

// PromoteEntityToStable moves the entity id from knowledge/active to
// knowledge/stable. It reports false when active holds no such entity.
func (c *Coordinator) PromoteEntityToStable(id models.NodeID) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	e, ok, err := nodeAs[*models.Entity](c.knowledgeActive, id)
	if err != nil || !ok {
		return false, err
	}
	if err := moveNode(e, c.knowledgeActive, c.knowledgeStable); err != nil {
		return false, err
	}
	c.remember(nodeHintKey(models.KindEntity, id), location{tier: storage.Stable})
	c.promotions.Add(1)
	c.log.Debug("entity promoted", zap.String("id", string(id)), zap.String("to", "stable"))
	return true, nil
}

func mentionCount(md models.Metadata) int { return metadataInt(md, MentionCountKey) }
