// Package concurrency switches hot-tier indexes between a lock-based and a
// lock-free backend according to measured load.
//
// A Controller watches the operation rate through a LoadMeter. When the
// rate exceeds LockFreeThreshold it proposes LockFree; when it falls to
// TraditionalThreshold or below it proposes Traditional. Switches are at
// least MinSwitchInterval apart, and the rate is checked on every
// CheckEvery-th operation.
//
// AdaptiveVector and AdaptiveGraph route every call to the active backend.
// A mode switch migrates all data from the old backend to the new one
// before any further operation runs, so callers never see a partial view.
// The facades run the controller's checks and overrides under the same lock
// as the migration, so the controller's mode and the active backend change
// together.
//
// Example:
//
//	idx := concurrency.NewAdaptiveVector(concurrency.DefaultConfig(), logger)
//	_ = idx.Add("emb_1", vec)
//	hits, _ := idx.Search(query, 10)
//	fmt.Println(idx.Mode()) // traditional until load rises
package concurrency

import (
	"sync"
	"sync/atomic"
	"time"
)

// Mode selects a backend.
type Mode int32

const (
	Traditional Mode = iota
	LockFree
)

func (m Mode) String() string {
	switch m {
	case Traditional:
		return "traditional"
	case LockFree:
		return "lock_free"
	default:
		return "unknown"
	}
}

// Config tunes a Controller.
type Config struct {
	// LockFreeThreshold is the ops-per-window rate above which LockFree is
	// chosen.
	LockFreeThreshold int64
	// TraditionalThreshold is the rate at or below which Traditional is chosen.
	TraditionalThreshold int64
	// MinSwitchInterval is the minimum time between two switches.
	MinSwitchInterval time.Duration
	// CheckEvery is how many operations pass between rate checks.
	CheckEvery uint64
	// Window is the measurement window of the rate.
	Window time.Duration
}

// DefaultConfig returns 10,000 / 1,000 ops per second, 30s between
// switches, and a check every 1,000 operations.
func DefaultConfig() Config {
	return Config{
		LockFreeThreshold:    10_000,
		TraditionalThreshold: 1_000,
		MinSwitchInterval:    30 * time.Second,
		CheckEvery:           1_000,
		Window:               time.Second,
	}
}

// Controller holds the desired mode and decides when it changes.
type Controller struct {
	cfg   Config
	now   func() time.Time
	meter *LoadMeter
	ops   atomic.Uint64

	adaptive atomic.Bool

	mu         sync.RWMutex
	mode       Mode
	lastSwitch time.Time
	switches   uint64
}

// NewController returns a controller in Traditional mode with adaptive
// switching enabled.
func NewController(cfg Config) *Controller {
	return newController(cfg, time.Now)
}

func newController(cfg Config, now func() time.Time) *Controller {
	def := DefaultConfig()
	if cfg.CheckEvery == 0 {
		cfg.CheckEvery = def.CheckEvery
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	c := &Controller{
		cfg:        cfg,
		now:        now,
		meter:      newLoadMeter(cfg.Window, now),
		lastSwitch: now(),
	}
	c.adaptive.Store(true)
	return c
}

// Config returns the controller's configuration.
func (c *Controller) Config() Config { return c.cfg }

// Mode returns the desired mode.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// LastSwitch returns when the mode last changed or was set.
func (c *Controller) LastSwitch() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSwitch
}

// Switches returns how many times the mode changed.
func (c *Controller) Switches() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.switches
}

// SetMode forces mode and restarts the switch interval.
func (c *Controller) SetMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != mode {
		c.switches++
	}
	c.mode = mode
	c.lastSwitch = c.now()
}

// SetAdaptive enables or disables automatic switching.
func (c *Controller) SetAdaptive(enabled bool) { c.adaptive.Store(enabled) }

// Adaptive reports whether automatic switching is enabled.
func (c *Controller) Adaptive() bool { return c.adaptive.Load() }

// Load returns the current operation rate.
func (c *Controller) Load() int64 { return c.meter.Rate() }

// Ops returns the number of operations recorded.
func (c *Controller) Ops() uint64 { return c.ops.Load() }

// RecordOp counts one operation. On every CheckEvery-th operation it runs
// Check and returns its result.
func (c *Controller) RecordOp() (Mode, bool) {
	if !c.recordOp() {
		return 0, false
	}
	return c.Check()
}

// recordOp counts one operation and reports whether a check is due.
func (c *Controller) recordOp() bool {
	c.meter.Record(1)
	return c.ops.Add(1)%c.cfg.CheckEvery == 0
}

// Check switches the mode if the current rate calls for it. It returns the
// new mode and true when a switch happened.
func (c *Controller) Check() (Mode, bool) {
	if !c.adaptive.Load() {
		return 0, false
	}
	rate := c.meter.Rate()

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastSwitch) < c.cfg.MinSwitchInterval {
		return 0, false
	}
	var next Mode
	switch {
	case c.mode == Traditional && rate > c.cfg.LockFreeThreshold:
		next = LockFree
	case c.mode == LockFree && rate <= c.cfg.TraditionalThreshold:
		next = Traditional
	default:
		return 0, false
	}
	c.mode = next
	c.lastSwitch = now
	c.switches++
	return next, true
}
