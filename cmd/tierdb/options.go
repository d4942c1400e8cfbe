package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/concurrency"
	"github.com/orneryd/tierdb/pkg/config"
	"github.com/orneryd/tierdb/pkg/coordinator"
	"github.com/orneryd/tierdb/pkg/kv"
	"github.com/orneryd/tierdb/pkg/storage"
)

// coordinatorOptions maps a loaded configuration onto coordinator options.
func coordinatorOptions(cfg *config.Config, log *zap.Logger) (coordinator.Options, error) {
	store := kv.Options{
		InMemory:       cfg.Storage.InMemory,
		SyncWrites:     cfg.Storage.SyncWrites,
		LowMemory:      cfg.Storage.LowMemory,
		MaxReaders:     cfg.ReadPool.MaxReaders,
		MaxIdleReaders: cfg.ReadPool.MaxIdle,
	}
	if p := cfg.Storage.EncryptionPassphrase; p != "" {
		key, err := kv.DeriveEncryptionKey(p, nil, 0)
		if err != nil {
			return coordinator.Options{}, fmt.Errorf("derive encryption key: %w", err)
		}
		store.EncryptionKey = key
	}

	opts := coordinator.Options{
		BasePath: cfg.Storage.BaseDir,
		Storage: storage.Options{
			Store: store,
			Adaptive: concurrency.Config{
				LockFreeThreshold:    cfg.Adaptive.LockFreeThreshold,
				TraditionalThreshold: cfg.Adaptive.TraditionalThreshold,
				MinSwitchInterval:    cfg.Adaptive.MinSwitchInterval,
				CheckEvery:           cfg.Adaptive.CheckEvery,
				Window:               cfg.Adaptive.Window,
			},
		},
		PromotionAge:   cfg.Tiers.PromotionAge,
		ArchiveAge:     cfg.Tiers.ArchiveAge,
		StableMentions: cfg.Tiers.StableMentions,
		Breaker: coordinator.BreakerSettings{
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
		},
		HintCacheSize:       cfg.Cache.HintSize,
		HintTTL:             cfg.Cache.HintTTL,
		MaintenanceInterval: cfg.Tiers.MaintenanceInterval,
		Logger:              log,
	}
	if cfg.Cache.Enabled {
		opts.Storage.Cache = &storage.CacheOptions{
			NumCounters: cfg.Cache.NumCounters,
			MaxCost:     cfg.Cache.MaxCost,
			TTL:         cfg.Cache.TTL,
		}
	} else {
		opts.NoCache = true
	}
	if cfg.Cache.HintSize == 0 {
		opts.HintCacheSize = -1
	}
	return opts, nil
}
