package config

import (
	"math"
	"os"
	"path/filepath"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := LoadDefaults()

	assert.Empty(t, cfg.Storage.BaseDir)
	assert.False(t, cfg.Storage.InMemory)
	assert.Equal(t, 64, cfg.ReadPool.MaxReaders)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, int64(32<<20), cfg.Cache.MaxCost)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, int64(10_000), cfg.Adaptive.LockFreeThreshold)
	assert.Equal(t, int64(1_000), cfg.Adaptive.TraditionalThreshold)
	assert.Equal(t, 30*24*time.Hour, cfg.Tiers.PromotionAge)
	assert.Equal(t, 90*24*time.Hour, cfg.Tiers.ArchiveAge)
	assert.Equal(t, uint32(3), cfg.Breaker.MaxFailures)
	assert.Equal(t, "tierdb", cfg.Metrics.Namespace)
	assert.Zero(t, cfg.Memory.RuntimeLimit)
	assert.Equal(t, 100, cfg.Memory.GCPercent)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		t.Setenv("TIERDB_DATA_DIR", "/data/tierdb")
		t.Setenv("TIERDB_LOW_MEMORY", "yes")
		t.Setenv("TIERDB_CACHE_MAX_COST", "64MB")
		t.Setenv("TIERDB_PROMOTION_AGE", "48h")
		t.Setenv("TIERDB_MIN_SWITCH_INTERVAL", "5")
		t.Setenv("TIERDB_BREAKER_MAX_FAILURES", "7")
		t.Setenv("TIERDB_LOG_LEVEL", "debug")
		t.Setenv("TIERDB_MEMORY_LIMIT", "2GB")

		cfg := LoadFromEnv()
		assert.Equal(t, "/data/tierdb", cfg.Storage.BaseDir)
		assert.True(t, cfg.Storage.LowMemory)
		assert.Equal(t, int64(64<<20), cfg.Cache.MaxCost)
		assert.Equal(t, 48*time.Hour, cfg.Tiers.PromotionAge)
		assert.Equal(t, 5*time.Second, cfg.Adaptive.MinSwitchInterval, "bare integers are seconds")
		assert.Equal(t, uint32(7), cfg.Breaker.MaxFailures)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, int64(2<<30), cfg.Memory.RuntimeLimit)
		assert.Equal(t, "2GB", cfg.Memory.RuntimeLimitStr)
	})

	t.Run("invalid_values_keep_defaults", func(t *testing.T) {
		t.Setenv("TIERDB_READ_POOL_MAX", "many")
		t.Setenv("TIERDB_CACHE_TTL", "soon")

		cfg := LoadFromEnv()
		assert.Equal(t, 64, cfg.ReadPool.MaxReaders)
		assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	})
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tierdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  base_dir: /srv/tierdb
  sync_writes: true
cache:
  max_cost: 128MB
  ttl: 1m
tiers:
  promotion_age: 168h
breaker:
  open_timeout: 2m
logging:
  level: warn
  development: true
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/tierdb", cfg.Storage.BaseDir)
	assert.True(t, cfg.Storage.SyncWrites)
	assert.Equal(t, int64(128<<20), cfg.Cache.MaxCost)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Tiers.PromotionAge)
	assert.Equal(t, 2*time.Minute, cfg.Breaker.OpenTimeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 90*24*time.Hour, cfg.Tiers.ArchiveAge)
	assert.Equal(t, uint32(3), cfg.Breaker.MaxFailures)

	t.Run("env_wins_over_file", func(t *testing.T) {
		t.Setenv("TIERDB_LOG_LEVEL", "error")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.Logging.Level)
		assert.Equal(t, "/srv/tierdb", cfg.Storage.BaseDir)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("tiers: [unclosed"), 0o644))
		_, err := LoadFromFile(bad)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"encrypted_in_memory", func(c *Config) {
			c.Storage.InMemory = true
			c.Storage.EncryptionPassphrase = "secret"
		}, "encryption"},
		{"zero_cache_cost", func(c *Config) { c.Cache.MaxCost = 0 }, "cache max cost"},
		{"inverted_thresholds", func(c *Config) { c.Adaptive.TraditionalThreshold = 20_000 }, "threshold"},
		{"archive_before_promotion", func(c *Config) { c.Tiers.ArchiveAge = time.Hour }, "archive age"},
		{"zero_breaker", func(c *Config) { c.Breaker.MaxFailures = 0 }, "breaker"},
		{"negative_memory_limit", func(c *Config) { c.Memory.RuntimeLimit = -1 }, "memory limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("disabled_cache_ignores_cost", func(t *testing.T) {
		cfg := LoadDefaults()
		cfg.Cache.Enabled = false
		cfg.Cache.MaxCost = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestString(t *testing.T) {
	cfg := LoadDefaults()
	cfg.Storage.BaseDir = "/data"
	cfg.Storage.EncryptionPassphrase = "hunter2"

	s := cfg.String()
	assert.Contains(t, s, "/data")
	assert.Contains(t, s, "Encrypted: true")
	assert.Contains(t, s, "32.00 MB")
	assert.NotContains(t, s, "hunter2")

	cfg.Storage.InMemory = true
	assert.Contains(t, cfg.String(), "(memory)")
}

func TestParseMemorySize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"bytes_numeric", "1024", 1024},
		{"bytes_with_b_suffix", "1024B", 1024},
		{"kilobytes", "1KB", 1024},
		{"megabytes_lowercase", "512mb", 512 * 1024 * 1024},
		{"gigabytes", "1G", 1024 * 1024 * 1024},
		{"terabytes", "1TB", 1024 * 1024 * 1024 * 1024},
		{"zero", "0", 0},
		{"unlimited", "unlimited", 0},
		{"empty", "", 0},
		{"whitespace", "  2GB  ", 2 * 1024 * 1024 * 1024},
		{"invalid", "abc", 0},
		{"negative", "-1GB", -1 * 1024 * 1024 * 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseMemorySize(tt.input))
		})
	}
}

func TestFormatMemorySize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.50 KB"},
		{512 * 1024 * 1024, "512.00 MB"},
		{4 * 1024 * 1024 * 1024, "4.00 GB"},
		{1024 * 1024 * 1024 * 1024, "1.00 TB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMemorySize(tt.bytes))
		})
	}
}

func TestMemoryConfig_ApplyRuntimeMemory(t *testing.T) {
	t.Cleanup(func() {
		debug.SetMemoryLimit(math.MaxInt64)
		debug.SetGCPercent(100)
	})

	before := debug.SetMemoryLimit(-1)
	(&MemoryConfig{GCPercent: 100}).ApplyRuntimeMemory()
	assert.Equal(t, before, debug.SetMemoryLimit(-1), "defaults are a no-op")

	cfg2 := &MemoryConfig{RuntimeLimit: 1 << 30, GCPercent: 50}
	cfg2.ApplyRuntimeMemory()
	assert.Equal(t, int64(1<<30), debug.SetMemoryLimit(-1))
}
