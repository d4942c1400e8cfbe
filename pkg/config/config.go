// Package config loads tierdb configuration from defaults, an optional YAML
// file and TIERDB_ environment variables, in that order of precedence.
//
// Example Usage:
//
//	cfg, err := config.Load("tierdb.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	fmt.Println(cfg)
//
// Environment Variables:
//
//   - TIERDB_DATA_DIR="/var/lib/tierdb"
//   - TIERDB_IN_MEMORY=true
//   - TIERDB_SYNC_WRITES=true
//   - TIERDB_LOW_MEMORY=true
//   - TIERDB_ENCRYPTION_PASSPHRASE="..."
//   - TIERDB_READ_POOL_MAX=64
//   - TIERDB_READ_POOL_IDLE=16
//   - TIERDB_CACHE_ENABLED=true
//   - TIERDB_CACHE_MAX_COST="32MB"
//   - TIERDB_CACHE_TTL=30s
//   - TIERDB_LOCKFREE_THRESHOLD=10000
//   - TIERDB_TRADITIONAL_THRESHOLD=1000
//   - TIERDB_MIN_SWITCH_INTERVAL=30s
//   - TIERDB_PROMOTION_AGE=720h
//   - TIERDB_ARCHIVE_AGE=2160h
//   - TIERDB_MAINTENANCE_INTERVAL=1h
//   - TIERDB_BREAKER_MAX_FAILURES=3
//   - TIERDB_LOG_LEVEL=info
//   - TIERDB_METRICS_ENABLED=true
//   - TIERDB_MEMORY_LIMIT="2GB"
//
// For a complete list, see LoadFromEnv.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tierdb configuration.
//
// Configuration is organized into sections:
//   - Storage: base directory and badger settings
//   - ReadPool: pooled read transactions per store
//   - Cache: node read cache and tier location hints
//   - Adaptive: lock-free/lock-based switching of the vector indexes
//   - Tiers: promotion ages and maintenance
//   - Breaker: lazy tier open protection
//   - Logging, Metrics, Memory
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	ReadPool ReadPoolConfig `yaml:"read_pool"`
	Cache    CacheConfig    `yaml:"cache"`
	Adaptive AdaptiveConfig `yaml:"adaptive"`
	Tiers    TiersConfig    `yaml:"tiers"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Memory   MemoryConfig   `yaml:"memory"`
}

// StorageConfig holds store settings shared by every tier.
type StorageConfig struct {
	// BaseDir is the root of the tier tree. Empty selects the platform
	// default.
	BaseDir string `yaml:"base_dir"`
	// InMemory keeps every tier in RAM; nothing survives a restart.
	InMemory   bool `yaml:"in_memory"`
	SyncWrites bool `yaml:"sync_writes"`
	LowMemory  bool `yaml:"low_memory"`
	// EncryptionPassphrase enables at-rest encryption. Never logged.
	EncryptionPassphrase string `yaml:"encryption_passphrase"`
}

// ReadPoolConfig bounds pooled read transactions per store.
type ReadPoolConfig struct {
	MaxReaders int `yaml:"max_readers"`
	MaxIdle    int `yaml:"max_idle"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// MaxCostStr is the byte budget of each hot tier's node cache, e.g.
	// "32MB".
	MaxCostStr  string        `yaml:"max_cost"`
	MaxCost     int64         `yaml:"-"`
	NumCounters int64         `yaml:"num_counters"`
	TTL         time.Duration `yaml:"ttl"`

	// HintSize bounds the tier location hint cache. Zero disables it.
	HintSize int           `yaml:"hint_size"`
	HintTTL  time.Duration `yaml:"hint_ttl"`
}

// AdaptiveConfig tunes the adaptive vector indexes.
type AdaptiveConfig struct {
	LockFreeThreshold    int64         `yaml:"lock_free_threshold"`
	TraditionalThreshold int64         `yaml:"traditional_threshold"`
	MinSwitchInterval    time.Duration `yaml:"min_switch_interval"`
	CheckEvery           uint64        `yaml:"check_every"`
	Window               time.Duration `yaml:"window"`
}

// TiersConfig holds lifecycle ages.
type TiersConfig struct {
	PromotionAge        time.Duration `yaml:"promotion_age"`
	ArchiveAge          time.Duration `yaml:"archive_age"`
	StableMentions      int           `yaml:"stable_mentions"`
	MaintenanceEnabled  bool          `yaml:"maintenance_enabled"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

// BreakerConfig tunes the circuit breaker of each lazy tier.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (debug, info, warn, error)
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// MemoryConfig holds Go runtime memory settings.
type MemoryConfig struct {
	// RuntimeLimitStr is the soft memory limit, e.g. "2GB". Empty or
	// "unlimited" means no limit.
	RuntimeLimitStr string `yaml:"runtime_limit"`
	RuntimeLimit    int64  `yaml:"-"`
	// GCPercent is passed to debug.SetGCPercent. 100 is the Go default.
	GCPercent int `yaml:"gc_percent"`
}

// LoadDefaults returns the built-in configuration.
func LoadDefaults() *Config {
	cfg := &Config{
		ReadPool: ReadPoolConfig{MaxReaders: 64, MaxIdle: 16},
		Cache: CacheConfig{
			Enabled:     true,
			MaxCostStr:  "32MB",
			NumCounters: 100_000,
			TTL:         30 * time.Second,
			HintSize:    10_000,
			HintTTL:     10 * time.Minute,
		},
		Adaptive: AdaptiveConfig{
			LockFreeThreshold:    10_000,
			TraditionalThreshold: 1_000,
			MinSwitchInterval:    30 * time.Second,
			CheckEvery:           1_000,
			Window:               time.Second,
		},
		Tiers: TiersConfig{
			PromotionAge:        30 * 24 * time.Hour,
			ArchiveAge:          90 * 24 * time.Hour,
			StableMentions:      10,
			MaintenanceEnabled:  true,
			MaintenanceInterval: time.Hour,
		},
		Breaker: BreakerConfig{MaxFailures: 3, OpenTimeout: 30 * time.Second},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "tierdb"},
		Memory:  MemoryConfig{GCPercent: 100},
	}
	cfg.resolve()
	return cfg
}

// LoadFromEnv returns the defaults overridden by TIERDB_ environment
// variables.
func LoadFromEnv() *Config {
	cfg := LoadDefaults()
	cfg.applyEnv()
	return cfg
}

// LoadFromFile returns the defaults overridden by the YAML file at path.
// Keys missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := LoadDefaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.resolve()
	return cfg, nil
}

// Load reads path when non-empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := LoadDefaults()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Storage.BaseDir = getEnv("TIERDB_DATA_DIR", c.Storage.BaseDir)
	c.Storage.InMemory = getEnvBool("TIERDB_IN_MEMORY", c.Storage.InMemory)
	c.Storage.SyncWrites = getEnvBool("TIERDB_SYNC_WRITES", c.Storage.SyncWrites)
	c.Storage.LowMemory = getEnvBool("TIERDB_LOW_MEMORY", c.Storage.LowMemory)
	c.Storage.EncryptionPassphrase = getEnv("TIERDB_ENCRYPTION_PASSPHRASE", c.Storage.EncryptionPassphrase)

	c.ReadPool.MaxReaders = getEnvInt("TIERDB_READ_POOL_MAX", c.ReadPool.MaxReaders)
	c.ReadPool.MaxIdle = getEnvInt("TIERDB_READ_POOL_IDLE", c.ReadPool.MaxIdle)

	c.Cache.Enabled = getEnvBool("TIERDB_CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.MaxCostStr = getEnv("TIERDB_CACHE_MAX_COST", c.Cache.MaxCostStr)
	c.Cache.NumCounters = int64(getEnvInt("TIERDB_CACHE_NUM_COUNTERS", int(c.Cache.NumCounters)))
	c.Cache.TTL = getEnvDuration("TIERDB_CACHE_TTL", c.Cache.TTL)
	c.Cache.HintSize = getEnvInt("TIERDB_HINT_CACHE_SIZE", c.Cache.HintSize)
	c.Cache.HintTTL = getEnvDuration("TIERDB_HINT_CACHE_TTL", c.Cache.HintTTL)

	c.Adaptive.LockFreeThreshold = int64(getEnvInt("TIERDB_LOCKFREE_THRESHOLD", int(c.Adaptive.LockFreeThreshold)))
	c.Adaptive.TraditionalThreshold = int64(getEnvInt("TIERDB_TRADITIONAL_THRESHOLD", int(c.Adaptive.TraditionalThreshold)))
	c.Adaptive.MinSwitchInterval = getEnvDuration("TIERDB_MIN_SWITCH_INTERVAL", c.Adaptive.MinSwitchInterval)
	c.Adaptive.CheckEvery = uint64(getEnvInt("TIERDB_CHECK_EVERY", int(c.Adaptive.CheckEvery)))
	c.Adaptive.Window = getEnvDuration("TIERDB_ADAPTIVE_WINDOW", c.Adaptive.Window)

	c.Tiers.PromotionAge = getEnvDuration("TIERDB_PROMOTION_AGE", c.Tiers.PromotionAge)
	c.Tiers.ArchiveAge = getEnvDuration("TIERDB_ARCHIVE_AGE", c.Tiers.ArchiveAge)
	c.Tiers.StableMentions = getEnvInt("TIERDB_STABLE_MENTIONS", c.Tiers.StableMentions)
	c.Tiers.MaintenanceEnabled = getEnvBool("TIERDB_MAINTENANCE_ENABLED", c.Tiers.MaintenanceEnabled)
	c.Tiers.MaintenanceInterval = getEnvDuration("TIERDB_MAINTENANCE_INTERVAL", c.Tiers.MaintenanceInterval)

	c.Breaker.MaxFailures = uint32(getEnvInt("TIERDB_BREAKER_MAX_FAILURES", int(c.Breaker.MaxFailures)))
	c.Breaker.OpenTimeout = getEnvDuration("TIERDB_BREAKER_OPEN_TIMEOUT", c.Breaker.OpenTimeout)

	c.Logging.Level = getEnv("TIERDB_LOG_LEVEL", c.Logging.Level)
	c.Logging.Development = getEnvBool("TIERDB_LOG_DEVELOPMENT", c.Logging.Development)

	c.Metrics.Enabled = getEnvBool("TIERDB_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Namespace = getEnv("TIERDB_METRICS_NAMESPACE", c.Metrics.Namespace)

	c.Memory.RuntimeLimitStr = getEnv("TIERDB_MEMORY_LIMIT", c.Memory.RuntimeLimitStr)
	c.Memory.GCPercent = getEnvInt("TIERDB_GC_PERCENT", c.Memory.GCPercent)

	c.resolve()
}

// resolve parses the size strings.
func (c *Config) resolve() {
	c.Cache.MaxCost = parseMemorySize(c.Cache.MaxCostStr)
	c.Memory.RuntimeLimit = parseMemorySize(c.Memory.RuntimeLimitStr)
}

// Validate checks the configuration for values the stores cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.InMemory && c.Storage.EncryptionPassphrase != "" {
		errs = append(errs, errors.New("encryption requires an on-disk store"))
	}
	if c.ReadPool.MaxReaders < 0 {
		errs = append(errs, fmt.Errorf("invalid read pool size: %d", c.ReadPool.MaxReaders))
	}
	if c.Cache.Enabled && c.Cache.MaxCost <= 0 {
		errs = append(errs, fmt.Errorf("invalid cache max cost: %q", c.Cache.MaxCostStr))
	}
	if c.Adaptive.TraditionalThreshold > c.Adaptive.LockFreeThreshold {
		errs = append(errs, fmt.Errorf("traditional threshold %d above lock-free threshold %d",
			c.Adaptive.TraditionalThreshold, c.Adaptive.LockFreeThreshold))
	}
	if c.Adaptive.CheckEvery == 0 {
		errs = append(errs, errors.New("adaptive check_every must be positive"))
	}
	if c.Tiers.PromotionAge <= 0 || c.Tiers.ArchiveAge <= 0 {
		errs = append(errs, errors.New("tier ages must be positive"))
	} else if c.Tiers.ArchiveAge < c.Tiers.PromotionAge {
		errs = append(errs, fmt.Errorf("archive age %s shorter than promotion age %s",
			c.Tiers.ArchiveAge, c.Tiers.PromotionAge))
	}
	if c.Breaker.MaxFailures == 0 {
		errs = append(errs, errors.New("breaker max_failures must be positive"))
	}
	if c.Memory.RuntimeLimit < 0 {
		errs = append(errs, fmt.Errorf("invalid memory limit: %q", c.Memory.RuntimeLimitStr))
	}
	return errors.Join(errs...)
}

// String returns a representation safe for logging. The encryption
// passphrase is never included.
func (c *Config) String() string {
	dir := c.Storage.BaseDir
	if c.Storage.InMemory {
		dir = "(memory)"
	} else if dir == "" {
		dir = "(default)"
	}
	return fmt.Sprintf(
		"Config{DataDir: %s, Encrypted: %v, Cache: %v/%s, Promotion: %s, Archive: %s, Log: %s, Metrics: %v}",
		dir,
		c.Storage.EncryptionPassphrase != "",
		c.Cache.Enabled, FormatMemorySize(c.Cache.MaxCost),
		c.Tiers.PromotionAge, c.Tiers.ArchiveAge,
		c.Logging.Level,
		c.Metrics.Enabled,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Try parsing as seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited"
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// ApplyRuntimeMemory applies the runtime memory settings to the Go runtime.
// Should be called early in main() before heavy allocations.
func (c *MemoryConfig) ApplyRuntimeMemory() {
	if c.RuntimeLimit > 0 {
		debug.SetMemoryLimit(c.RuntimeLimit)
	}
	if c.GCPercent != 100 && c.GCPercent != 0 {
		debug.SetGCPercent(c.GCPercent)
	}
}
