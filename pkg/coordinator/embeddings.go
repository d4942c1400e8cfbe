package coordinator

import (
	"github.com/orneryd/tierdb/pkg/math/vector"
	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/storage"
)

func embeddingHintKey(id models.EmbeddingID) string { return storage.EmbeddingPrefix + string(id) }

// InsertEmbedding stores e in embeddings/active.
func (c *Coordinator) InsertEmbedding(e *models.Embedding) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.embeddingsActive.InsertEmbedding(e); err != nil {
		return err
	}
	c.forget(embeddingHintKey(e.ID))
	return nil
}

// GetEmbedding searches embeddings active, then recent, then every archive
// quarter newest first.
func (c *Coordinator) GetEmbedding(id models.EmbeddingID) (*models.Embedding, error) {
	return c.findEmbedding(id, "")
}

// GetEmbeddingWithHint is GetEmbedding searching the archive quarter of
// timestampHint (Unix milliseconds) before the other quarters.
func (c *Coordinator) GetEmbeddingWithHint(id models.EmbeddingID, timestampHint int64) (*models.Embedding, error) {
	return c.findEmbedding(id, QuarterOfMillis(timestampHint))
}

func (c *Coordinator) findEmbedding(id models.EmbeddingID, hintQuarter string) (*models.Embedding, error) {
	if id == "" {
		return nil, storage.ErrInvalidID
	}
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	steps := []tierStep{
		fixed(c.embeddingsActive, storage.Active),
		lazyStep(c.embeddingsRecent, storage.Recent),
	}
	if hintQuarter != "" {
		steps = append(steps, archiveStep(c.embeddingsArchives, hintQuarter))
	}
	for _, q := range c.embeddingsArchives.Known() {
		if q != hintQuarter {
			steps = append(steps, archiveStep(c.embeddingsArchives, q))
		}
	}

	key := embeddingHintKey(id)
	if loc, ok := c.hint(key); ok {
		for _, s := range steps {
			if s.loc != loc {
				continue
			}
			if m, err := s.get(); err == nil {
				if e, err := m.GetEmbedding(id); err == nil && e != nil {
					return e, nil
				}
			}
			c.forget(key)
			break
		}
	}
	for i, s := range steps {
		m, err := s.get()
		if err != nil {
			return nil, err
		}
		e, err := m.GetEmbedding(id)
		if err != nil {
			return nil, err
		}
		if e != nil {
			if i > 0 {
				c.remember(key, s.loc)
			}
			return e, nil
		}
	}
	return nil, nil
}

// SearchEmbeddings returns the k embeddings in embeddings/active most
// similar to query.
func (c *Coordinator) SearchEmbeddings(query []float32, k int) ([]vector.Scored, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.embeddingsActive.SearchEmbeddings(query, k)
}
