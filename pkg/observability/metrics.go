// Package observability exports coordinator state as Prometheus metrics.
//
// The Collector reads coordinator stats on every scrape, so nothing on the
// storage hot path touches a metric. Each Collector owns its registry.
//
// Example Usage:
//
//	col := observability.NewCollector("tierdb", coord)
//	http.Handle("/metrics", col.Handler())
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/concurrency"
	"github.com/orneryd/tierdb/pkg/coordinator"
	"github.com/orneryd/tierdb/pkg/logging"
	"github.com/orneryd/tierdb/pkg/storage"
)

// Source is the view of a coordinator the collector scrapes.
type Source interface {
	Stats() (coordinator.Stats, error)
}

// Collector holds the metric descriptors and the registry they are
// registered with.
type Collector struct {
	namespace string
	registry  *prometheus.Registry
	src       Source
	log       *zap.Logger

	nodes        *prometheus.Desc
	edges        *prometheus.Desc
	embeddings   *prometheus.Desc
	vectors      *prometheus.Desc
	cacheHits    *prometheus.Desc
	cacheMisses  *prometheus.Desc
	lazyLoads    *prometheus.Desc
	promotions   *prometheus.Desc
	archived     *prometheus.Desc
	hintHits     *prometheus.Desc
	hintMisses   *prometheus.Desc
	hintSize     *prometheus.Desc
	scrapeErrors prometheus.Counter
}

// NewCollector creates a collector over src and registers it, together
// with the Go runtime collectors, on a fresh registry.
func NewCollector(namespace string, src Source) *Collector {
	return NewCollectorWithLogger(namespace, src, nil)
}

// NewCollectorWithLogger is NewCollector logging failed scrapes to log.
func NewCollectorWithLogger(namespace string, src Source, log *zap.Logger) *Collector {
	tier := []string{"tier"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	c := &Collector{
		namespace:   namespace,
		registry:    prometheus.NewRegistry(),
		src:         src,
		log:         logging.OrNop(log),
		nodes:       desc("tier_nodes", "Nodes stored in a tier", tier),
		edges:       desc("tier_edges", "Edges stored in a tier", tier),
		embeddings:  desc("tier_embeddings", "Embeddings stored in a tier", tier),
		vectors:     desc("tier_vector_index_entries", "Entries in a tier's vector index", tier),
		cacheHits:   desc("tier_node_cache_hits_total", "Node cache hits of a tier", tier),
		cacheMisses: desc("tier_node_cache_misses_total", "Node cache misses of a tier", tier),
		lazyLoads:   desc("lazy_tier_loads_total", "Warm and cold tiers opened on demand", nil),
		promotions:  desc("promotions_total", "Records moved to a colder or more stable tier", nil),
		archived:    desc("archived_messages_total", "Messages moved to a quarterly archive", nil),
		hintHits:    desc("location_hint_hits_total", "Location hint cache hits", nil),
		hintMisses:  desc("location_hint_misses_total", "Location hint cache misses", nil),
		hintSize:    desc("location_hints", "Entries in the location hint cache", nil),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_errors_total",
			Help:      "Scrapes that failed to read coordinator stats",
		}),
	}
	c.registry.MustRegister(
		c,
		c.scrapeErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.nodes, c.edges, c.embeddings, c.vectors, c.cacheHits, c.cacheMisses,
		c.lazyLoads, c.promotions, c.archived, c.hintHits, c.hintMisses, c.hintSize,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st, err := c.src.Stats()
	if err != nil {
		c.scrapeErrors.Inc()
		c.log.Warn("collect coordinator stats", zap.Error(err))
		if st.Tiers == nil {
			return
		}
	}
	for name, s := range st.Tiers {
		ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(s.Nodes), name)
		ch <- prometheus.MustNewConstMetric(c.edges, prometheus.GaugeValue, float64(s.Edges), name)
		ch <- prometheus.MustNewConstMetric(c.embeddings, prometheus.GaugeValue, float64(s.Embeddings), name)
		ch <- prometheus.MustNewConstMetric(c.vectors, prometheus.GaugeValue, float64(s.Vectors), name)
		ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(s.CacheHits), name)
		ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(s.CacheMisses), name)
	}
	ch <- prometheus.MustNewConstMetric(c.lazyLoads, prometheus.CounterValue, float64(st.LazyLoads))
	ch <- prometheus.MustNewConstMetric(c.promotions, prometheus.CounterValue, float64(st.Promotions))
	ch <- prometheus.MustNewConstMetric(c.archived, prometheus.CounterValue, float64(st.Archived))
	ch <- prometheus.MustNewConstMetric(c.hintHits, prometheus.CounterValue, float64(st.Hints.Hits))
	ch <- prometheus.MustNewConstMetric(c.hintMisses, prometheus.CounterValue, float64(st.Hints.Misses))
	ch <- prometheus.MustNewConstMetric(c.hintSize, prometheus.GaugeValue, float64(st.Hints.Size))
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RegisterTiers calls RegisterAdaptive for every manager in tiers whose
// vector index is adaptive.
func (c *Collector) RegisterTiers(tiers map[string]*storage.StorageManager) error {
	for name, m := range tiers {
		if m == nil || m.Indexes() == nil {
			continue
		}
		if av, ok := m.Indexes().Vectors().(*concurrency.AdaptiveVector); ok {
			if err := c.RegisterAdaptive(name, av); err != nil {
				return err
			}
		}
	}
	return nil
}

// RegisterAdaptive adds mode and hot-tier metrics for an adaptive vector
// index under the given tier label.
func (c *Collector) RegisterAdaptive(tier string, idx *concurrency.AdaptiveVector) error {
	namespace := c.namespace
	labels := prometheus.Labels{"tier": tier}
	mode := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "vector_index_lock_free",
		Help:        "1 when the tier's vector index runs on the lock-free backend",
		ConstLabels: labels,
	}, func() float64 {
		if idx.Mode() == concurrency.LockFree {
			return 1
		}
		return 0
	})
	switches := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "vector_index_mode_switches_total",
		Help:        "Mode switches of the tier's vector index",
		ConstLabels: labels,
	}, func() float64 { return float64(idx.Controller().Switches()) })
	queries := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "hot_vector_queries_total",
		Help:        "Searches served by the lock-free hot vector index",
		ConstLabels: labels,
	}, func() float64 { return float64(idx.HotStats().Queries) })
	for _, col := range []prometheus.Collector{mode, switches, queries} {
		if err := c.registry.Register(col); err != nil {
			return err
		}
	}
	return nil
}
