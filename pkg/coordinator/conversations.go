package coordinator

import (
	"time"

	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/storage"
)

// nodeAs returns the node stored under id in m when it is a T. A node of
// another variant under the same ID counts as absent.
func nodeAs[T models.Node](m *storage.StorageManager, id models.NodeID) (T, bool, error) {
	var zero T
	n, err := m.GetNode(id)
	if err != nil || n == nil {
		return zero, false, err
	}
	v, ok := n.(T)
	return v, ok, nil
}

// tierStep is one stop of a fallthrough search.
type tierStep struct {
	loc location
	get func() (*storage.StorageManager, error)
}

func fixed(m *storage.StorageManager, tier storage.TemperatureTier) tierStep {
	return tierStep{loc: location{tier: tier}, get: func() (*storage.StorageManager, error) { return m, nil }}
}

func lazyStep(l *lazyTier, tier storage.TemperatureTier) tierStep {
	return tierStep{loc: location{tier: tier}, get: l.Get}
}

func archiveStep(set *archiveSet, quarter string) tierStep {
	return tierStep{
		loc: location{tier: storage.Archive, quarter: quarter},
		get: func() (*storage.StorageManager, error) { return set.GetOrLoad(quarter) },
	}
}

// find walks steps in order and returns the first T stored under id. A
// hinted location, when present, is tried before the walk.
func find[T models.Node](c *Coordinator, id models.NodeID, steps []tierStep) (T, error) {
	var zero T
	if id == "" {
		return zero, storage.ErrInvalidID
	}
	if err := c.checkOpen(); err != nil {
		return zero, err
	}
	key := nodeHintKey(kindOf[T](), id)
	if loc, ok := c.hint(key); ok {
		for _, s := range steps {
			if s.loc != loc {
				continue
			}
			m, err := s.get()
			if err != nil {
				break
			}
			if v, ok, err := nodeAs[T](m, id); err == nil && ok {
				return v, nil
			}
			c.forget(key)
			break
		}
	}
	for _, s := range steps {
		m, err := s.get()
		if err != nil {
			return zero, err
		}
		v, ok, err := nodeAs[T](m, id)
		if err != nil {
			return zero, err
		}
		if ok {
			if s.loc.tier != steps[0].loc.tier {
				c.remember(key, s.loc)
			}
			return v, nil
		}
	}
	return zero, nil
}

func (c *Coordinator) conversationSteps(hintQuarter string) []tierStep {
	steps := []tierStep{
		fixed(c.conversationsActive, storage.Active),
		lazyStep(c.conversationsRecent, storage.Recent),
	}
	if hintQuarter != "" {
		steps = append(steps, archiveStep(c.conversationsArchives, hintQuarter))
	}
	for _, q := range c.conversationsArchives.Known() {
		if q != hintQuarter {
			steps = append(steps, archiveStep(c.conversationsArchives, q))
		}
	}
	return steps
}

// InsertMessage stores msg in conversations/active.
func (c *Coordinator) InsertMessage(msg *models.Message) error {
	if msg == nil {
		return storage.ErrInvalidID
	}
	return c.insert(c.conversationsActive, msg)
}

// GetMessage searches active, then recent, then every archive quarter
// newest first. It returns nil when no tier holds a message under id.
func (c *Coordinator) GetMessage(id models.NodeID) (*models.Message, error) {
	return find[*models.Message](c, id, c.conversationSteps(""))
}

// GetMessageWithHint is GetMessage searching the archive quarter of
// timestampHint (Unix milliseconds) before the other quarters.
func (c *Coordinator) GetMessageWithHint(id models.NodeID, timestampHint int64) (*models.Message, error) {
	return find[*models.Message](c, id, c.conversationSteps(QuarterOfMillis(timestampHint)))
}

// InsertChat stores chat in conversations/active.
func (c *Coordinator) InsertChat(chat *models.Chat) error {
	if chat == nil {
		return storage.ErrInvalidID
	}
	return c.insert(c.conversationsActive, chat)
}

// GetChat searches active, then recent. Chats are not archived.
func (c *Coordinator) GetChat(id models.NodeID) (*models.Chat, error) {
	return find[*models.Chat](c, id, []tierStep{
		fixed(c.conversationsActive, storage.Active),
		lazyStep(c.conversationsRecent, storage.Recent),
	})
}

// MessagesByChat returns the IDs of the active messages of chat.
func (c *Coordinator) MessagesByChat(chat models.NodeID) ([]models.NodeID, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.conversationsActive.NodesByProperty("chat_id", string(chat))
}

// PromoteMessageToRecent moves the message id from active to recent when
// it is at least PromotionAge older than now. It reports whether the
// message moved; a missing or too young message is not an error.
func (c *Coordinator) PromoteMessageToRecent(id models.NodeID, now time.Time) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	msg, ok, err := nodeAs[*models.Message](c.conversationsActive, id)
	if err != nil || !ok {
		return false, err
	}
	if now.Sub(time.UnixMilli(msg.Timestamp)) < c.opts.PromotionAge {
		return false, nil
	}
	recent, err := c.conversationsRecent.Get()
	if err != nil {
		return false, err
	}
	if err := moveNode(msg, c.conversationsActive, recent); err != nil {
		return false, err
	}
	c.remember(nodeHintKey(models.KindMessage, id), location{tier: storage.Recent})
	c.promotions.Add(1)
	c.log.Debug("message promoted", zap.String("id", string(id)), zap.String("to", "recent"))
	return true, nil
}

// ArchiveMessage moves the message id from recent to the archive quarter of
// its timestamp when it is at least ArchiveAge older than now.
func (c *Coordinator) ArchiveMessage(id models.NodeID, now time.Time) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	recent, err := c.conversationsRecent.Get()
	if err != nil {
		return false, err
	}
	msg, ok, err := nodeAs[*models.Message](recent, id)
	if err != nil || !ok {
		return false, err
	}
	if now.Sub(time.UnixMilli(msg.Timestamp)) < c.opts.ArchiveAge {
		return false, nil
	}
	quarter := QuarterOfMillis(msg.Timestamp)
	archive, err := c.conversationsArchives.GetOrLoad(quarter)
	if err != nil {
		return false, err
	}
	if err := moveNode(msg, recent, archive); err != nil {
		return false, err
	}
	c.remember(nodeHintKey(models.KindMessage, id), location{tier: storage.Archive, quarter: quarter})
	c.archives.Add(1)
	c.log.Debug("message archived", zap.String("id", string(id)), zap.String("quarter", quarter))
	return true, nil
}

// insert stores n in m and drops any stale location hint for it.
func (c *Coordinator) insert(m *storage.StorageManager, n models.Node) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := m.InsertNode(n); err != nil {
		return err
	}
	c.forget(nodeHintKey(n.Kind(), n.ID()))
	return nil
}

// moveNode inserts n into dst, then deletes it from src.
func moveNode(n models.Node, src, dst *storage.StorageManager) error {
	if err := dst.InsertNode(n); err != nil {
		return err
	}
	_, err := src.DeleteNode(n.ID())
	return err
}
