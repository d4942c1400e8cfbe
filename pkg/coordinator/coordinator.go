// Package coordinator composes the per-type storage managers into one
// memory system.
//
// Hot tiers are opened when the coordinator is created: conversations and
// embeddings active, knowledge active and stable, tool-results, experience
// and meta. Warm and cold tiers are opened on first use, each behind a
// circuit breaker so a tier that keeps failing to open stops being retried
// on every read:
//
//	conversations/recent, conversations/archive/{YYYY-Qn}
//	embeddings/recent, embeddings/archive/{YYYY-Qn}
//	knowledge/inferred
//	summaries/{session,daily,weekly,monthly}
//
// Getters search the hot tier first and fall through to warmer and colder
// tiers in a per-type order. A location hint cache remembers where a record
// was last found so repeated reads skip the fallthrough.
//
// Promotions move a record between tiers by inserting it into the target
// and then deleting it from the source. There is no cross-store transaction,
// so a failure between the two steps leaves the record in both tiers; the
// fallthrough order returns the hotter copy and the next promotion retries
// the delete.
//
// Example Usage:
//
//	c, err := coordinator.Open(coordinator.Options{BasePath: dir})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	err = c.InsertMessage(&models.Message{NodeID: "msg_1", ChatID: "chat_1", Timestamp: ts})
//	msg, err := c.GetMessage("msg_1")
package coordinator

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/cache"
	"github.com/orneryd/tierdb/pkg/decay"
	"github.com/orneryd/tierdb/pkg/logging"
	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/storage"
)

// ErrClosed is returned by operations on a closed coordinator.
var ErrClosed = errors.New("coordinator: closed")

// Default lifecycle ages and sizes.
const (
	DefaultPromotionAge   = 30 * 24 * time.Hour
	DefaultArchiveAge     = 90 * 24 * time.Hour
	DefaultStableMentions = 10
	DefaultHintCacheSize  = 10_000
	DefaultHintTTL        = 10 * time.Minute
)

// Options configures a Coordinator.
type Options struct {
	// BasePath is the root of the tier tree. Empty means
	// storage.DefaultBasePath().
	BasePath string

	// Storage is the template for every tier's manager. Type, Tier and
	// Indexing are set per tier. A nil Storage.Schema selects
	// storage.DefaultSchema, shared by all tiers.
	Storage storage.Options

	// NoCache turns off the node cache hot tiers get when Storage.Cache is
	// nil.
	NoCache bool

	// PromotionAge is the minimum age of a message moved from active to
	// recent; ArchiveAge the minimum age moved from recent to an archive.
	PromotionAge time.Duration
	ArchiveAge   time.Duration

	// StableMentions is the mention_count at which a maintenance pass moves
	// an entity from knowledge/active to knowledge/stable.
	StableMentions int

	Breaker BreakerSettings

	// HintCacheSize bounds the location hint cache. Negative disables it.
	HintCacheSize int
	HintTTL       time.Duration

	// MaintenanceInterval is the period of StartMaintenance.
	MaintenanceInterval time.Duration

	Logger *zap.Logger

	// Now replaces the clock, for tests.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.BasePath == "" && !o.Storage.Store.InMemory {
		o.BasePath = storage.DefaultBasePath()
	}
	if o.Storage.Schema == nil {
		o.Storage.Schema = storage.DefaultSchema()
	}
	if o.PromotionAge <= 0 {
		o.PromotionAge = DefaultPromotionAge
	}
	if o.ArchiveAge <= 0 {
		o.ArchiveAge = DefaultArchiveAge
	}
	if o.StableMentions <= 0 {
		o.StableMentions = DefaultStableMentions
	}
	if o.Breaker.MaxFailures == 0 {
		o.Breaker = DefaultBreakerSettings()
	}
	if o.HintCacheSize == 0 {
		o.HintCacheSize = DefaultHintCacheSize
	}
	if o.HintTTL <= 0 {
		o.HintTTL = DefaultHintTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// location is where a record was last seen.
type location struct {
	tier    storage.TemperatureTier
	quarter string
}

// Coordinator is the composition root of the memory system.
//
// Thread Safety:
//
//	Coordinator is safe for concurrent use. Close must not race other calls.
type Coordinator struct {
	opts Options
	log  *zap.Logger

	conversationsActive *storage.StorageManager
	knowledgeActive     *storage.StorageManager
	knowledgeStable     *storage.StorageManager
	embeddingsActive    *storage.StorageManager
	toolResults         *storage.StorageManager
	experience          *storage.StorageManager
	meta                *storage.StorageManager

	conversationsRecent   *lazyTier
	conversationsArchives *archiveSet
	embeddingsRecent      *lazyTier
	embeddingsArchives    *archiveSet
	knowledgeInferred     *lazyTier
	summaries             map[storage.TemperatureTier]*lazyTier

	hints  *cache.LRU[location]
	scorer *decay.Scorer

	sweepMu sync.Mutex
	sweeper *decay.Sweeper

	lazyLoads  atomic.Uint64
	promotions atomic.Uint64
	archives   atomic.Uint64
	closed     atomic.Bool
}

// Open creates a coordinator, opening every hot tier. If any hot tier fails
// to open, the tiers already opened are closed and the error is returned.
func Open(opts Options) (*Coordinator, error) {
	opts.setDefaults()
	c := &Coordinator{
		opts:   opts,
		log:    logging.OrNop(opts.Logger).Named("coordinator"),
		scorer: decay.NewScorer(decay.DefaultConfig()).WithClock(opts.Now),
	}
	if opts.HintCacheSize > 0 {
		c.hints = cache.NewLRU[location](opts.HintCacheSize, opts.HintTTL)
	}

	hot := []struct {
		dst    **storage.StorageManager
		dbType storage.DatabaseType
		tier   storage.TemperatureTier
	}{
		{&c.conversationsActive, storage.Conversations, storage.Active},
		{&c.knowledgeActive, storage.Knowledge, storage.Active},
		{&c.knowledgeStable, storage.Knowledge, storage.Stable},
		{&c.embeddingsActive, storage.Embeddings, storage.Active},
		{&c.toolResults, storage.ToolResults, storage.NoTier},
		{&c.experience, storage.Experience, storage.NoTier},
		{&c.meta, storage.Meta, storage.NoTier},
	}
	var opened []*storage.StorageManager
	for _, h := range hot {
		m, err := c.openTier(h.dbType, h.tier, "")
		if err != nil {
			for _, o := range opened {
				err = multierr.Append(err, o.Close())
			}
			return nil, fmt.Errorf("coordinator: open %s: %w", tierName(h.dbType, h.tier), err)
		}
		*h.dst = m
		opened = append(opened, m)
	}

	c.conversationsRecent = c.lazy(storage.Conversations, storage.Recent)
	c.embeddingsRecent = c.lazy(storage.Embeddings, storage.Recent)
	c.knowledgeInferred = c.lazy(storage.Knowledge, storage.Inferred)
	c.conversationsArchives = c.newArchiveSet(storage.Conversations)
	c.embeddingsArchives = c.newArchiveSet(storage.Embeddings)
	c.summaries = make(map[storage.TemperatureTier]*lazyTier, 4)
	for _, tier := range storage.Summaries.DefaultTiers() {
		c.summaries[tier] = c.lazy(storage.Summaries, tier)
	}

	c.log.Info("coordinator opened",
		zap.String("base", opts.BasePath),
		zap.Bool("in_memory", opts.Storage.Store.InMemory),
		zap.Int("hot_tiers", len(opened)))
	return c, nil
}

// New opens a coordinator at the platform default base path.
func New() (*Coordinator, error) {
	return Open(Options{})
}

// WithBasePath opens a coordinator rooted at base.
func WithBasePath(base string) (*Coordinator, error) {
	return Open(Options{BasePath: base})
}

func tierName(dbType storage.DatabaseType, tier storage.TemperatureTier) string {
	if tier == storage.NoTier {
		return dbType.Name()
	}
	return dbType.Name() + "/" + tier.Name()
}

// openTier opens one tier with indexing and the node cache. A non-empty
// quarter nests the store under the tier directory.
func (c *Coordinator) openTier(dbType storage.DatabaseType, tier storage.TemperatureTier, quarter string) (*storage.StorageManager, error) {
	opts := c.opts.Storage
	opts.Type = dbType
	opts.Tier = tier
	opts.Indexing = true
	if opts.Vectors != nil {
		// A caller-supplied vector index can back only one store.
		opts.Vectors = nil
	}
	if opts.Cache == nil && tier.IsHot() && !c.opts.NoCache {
		opts.Cache = storage.DefaultCacheOptions()
	}
	if opts.Logger == nil {
		opts.Logger = c.log
	}
	path := ""
	if !opts.Store.InMemory {
		path = dbType.Path(c.opts.BasePath, tier)
		if quarter != "" {
			path = filepath.Join(path, quarter)
		}
	}
	return storage.Open(path, opts)
}

func (c *Coordinator) lazy(dbType storage.DatabaseType, tier storage.TemperatureTier) *lazyTier {
	return newLazyTier(tierName(dbType, tier), func() (*storage.StorageManager, error) {
		return c.openTier(dbType, tier, "")
	}, c.opts.Breaker, c.log, c.onLazyLoad)
}

func (c *Coordinator) onLazyLoad(name string) {
	c.lazyLoads.Add(1)
	c.log.Info("tier loaded", zap.String("tier", name))
}

func (c *Coordinator) newArchiveSet(dbType storage.DatabaseType) *archiveSet {
	return &archiveSet{
		root:     dbType.Path(c.opts.BasePath, storage.Archive),
		inMemory: c.opts.Storage.Store.InMemory,
		open: func(quarter string) (*storage.StorageManager, error) {
			return c.openTier(dbType, storage.Archive, quarter)
		},
		newTier: func(name string, open func() (*storage.StorageManager, error)) *lazyTier {
			return newLazyTier(name, open, c.opts.Breaker, c.log, c.onLazyLoad)
		},
		quarters: make(map[string]*lazyTier),
	}
}

func (c *Coordinator) checkOpen() error {
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (c *Coordinator) now() time.Time { return c.opts.Now() }

// nodeHintKey scopes a node's hint to its kind, so a message and an entity
// sharing an ID keep separate locations.
func nodeHintKey(kind models.NodeKind, id models.NodeID) string {
	return string(kind) + ":" + string(id)
}

// kindOf returns the kind of the variant T. Kind never dereferences its
// receiver, so the nil value of T answers it.
func kindOf[T models.Node]() models.NodeKind {
	var zero T
	return zero.Kind()
}

func (c *Coordinator) hint(key string) (location, bool) {
	if c.hints == nil {
		return location{}, false
	}
	return c.hints.Get(key)
}

func (c *Coordinator) remember(key string, loc location) {
	if c.hints != nil {
		c.hints.Put(key, loc)
	}
}

func (c *Coordinator) forget(key string) {
	if c.hints != nil {
		c.hints.Remove(key)
	}
}

// =============================================================================
// Direct access
// =============================================================================

// ConversationsActive returns the conversations/active manager.
func (c *Coordinator) ConversationsActive() *storage.StorageManager { return c.conversationsActive }

// KnowledgeActive returns the knowledge/active manager.
func (c *Coordinator) KnowledgeActive() *storage.StorageManager { return c.knowledgeActive }

// KnowledgeStable returns the knowledge/stable manager.
func (c *Coordinator) KnowledgeStable() *storage.StorageManager { return c.knowledgeStable }

// EmbeddingsActive returns the embeddings/active manager.
func (c *Coordinator) EmbeddingsActive() *storage.StorageManager { return c.embeddingsActive }

// ToolResults returns the tool-results manager.
func (c *Coordinator) ToolResults() *storage.StorageManager { return c.toolResults }

// Experience returns the experience manager.
func (c *Coordinator) Experience() *storage.StorageManager { return c.experience }

// Meta returns the meta manager.
func (c *Coordinator) Meta() *storage.StorageManager { return c.meta }

// ConversationsRecent returns conversations/recent, opening it if needed.
func (c *Coordinator) ConversationsRecent() (*storage.StorageManager, error) {
	return c.conversationsRecent.Get()
}

// EmbeddingsRecent returns embeddings/recent, opening it if needed.
func (c *Coordinator) EmbeddingsRecent() (*storage.StorageManager, error) {
	return c.embeddingsRecent.Get()
}

// KnowledgeInferred returns knowledge/inferred, opening it if needed.
func (c *Coordinator) KnowledgeInferred() (*storage.StorageManager, error) {
	return c.knowledgeInferred.Get()
}

// GetOrLoadArchive returns the conversations archive of quarter
// ("YYYY-Qn"), opening it if needed.
func (c *Coordinator) GetOrLoadArchive(quarter string) (*storage.StorageManager, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.conversationsArchives.GetOrLoad(quarter)
}

// GetOrLoadEmbeddingArchive is GetOrLoadArchive for embeddings.
func (c *Coordinator) GetOrLoadEmbeddingArchive(quarter string) (*storage.StorageManager, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.embeddingsArchives.GetOrLoad(quarter)
}

// ArchiveQuarters returns the known conversation archive quarters, newest
// first.
func (c *Coordinator) ArchiveQuarters() []string {
	return c.conversationsArchives.Known()
}

// =============================================================================
// Lifecycle
// =============================================================================

// Stats summarizes the coordinator.
type Stats struct {
	// Tiers holds the stats of every open tier, keyed "type/tier" or
	// "type/archive/YYYY-Qn".
	Tiers      map[string]storage.Stats
	LazyLoads  uint64
	Promotions uint64
	Archived   uint64
	Hints      cache.Stats
}

// Stats collects the stats of every open tier. Lazy tiers that were never
// opened are not included.
func (c *Coordinator) Stats() (Stats, error) {
	if err := c.checkOpen(); err != nil {
		return Stats{}, err
	}
	st := Stats{
		Tiers:      make(map[string]storage.Stats),
		LazyLoads:  c.lazyLoads.Load(),
		Promotions: c.promotions.Load(),
		Archived:   c.archives.Load(),
	}
	if c.hints != nil {
		st.Hints = c.hints.Stats()
	}
	var errs error
	add := func(name string, m *storage.StorageManager) {
		if m == nil {
			return
		}
		s, err := m.Stats()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		st.Tiers[name] = s
	}
	for name, m := range c.hotTiers() {
		add(name, m)
	}
	for _, l := range c.lazyTiers() {
		add(l.name, l.Loaded())
	}
	for _, set := range []*archiveSet{c.conversationsArchives, c.embeddingsArchives} {
		set.mu.Lock()
		for _, l := range set.quarters {
			add(l.name, l.Loaded())
		}
		set.mu.Unlock()
	}
	return st, errs
}

// HotTiers returns the eagerly opened managers keyed "type/tier".
func (c *Coordinator) HotTiers() map[string]*storage.StorageManager { return c.hotTiers() }

func (c *Coordinator) hotTiers() map[string]*storage.StorageManager {
	return map[string]*storage.StorageManager{
		tierName(storage.Conversations, storage.Active): c.conversationsActive,
		tierName(storage.Knowledge, storage.Active):     c.knowledgeActive,
		tierName(storage.Knowledge, storage.Stable):     c.knowledgeStable,
		tierName(storage.Embeddings, storage.Active):    c.embeddingsActive,
		tierName(storage.ToolResults, storage.NoTier):   c.toolResults,
		tierName(storage.Experience, storage.NoTier):    c.experience,
		tierName(storage.Meta, storage.NoTier):          c.meta,
	}
}

func (c *Coordinator) lazyTiers() []*lazyTier {
	out := []*lazyTier{c.conversationsRecent, c.embeddingsRecent, c.knowledgeInferred}
	for _, tier := range storage.Summaries.DefaultTiers() {
		out = append(out, c.summaries[tier])
	}
	return out
}

// Close stops maintenance and closes every open tier. Errors from
// individual tiers are combined.
func (c *Coordinator) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.StopMaintenance()

	var err error
	for name, m := range c.hotTiers() {
		if cerr := m.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", name, cerr))
		}
	}
	for _, l := range c.lazyTiers() {
		if cerr := l.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", l.name, cerr))
		}
	}
	err = multierr.Append(err, c.conversationsArchives.Close())
	err = multierr.Append(err, c.embeddingsArchives.Close())
	if c.hints != nil {
		c.hints.Clear()
	}
	c.log.Info("coordinator closed", zap.Error(err))
	return err
}
