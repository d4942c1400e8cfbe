// Package storage provides the per-tier storage managers of tierdb.
//
// The memory system is split into database types, each holding one kind of
// record, and most types are further split into temperature tiers:
//
//	conversations/{active,recent,archive}   source: chats and messages
//	experience                              source: action outcomes, feedback
//	knowledge/{active,stable,inferred}      derived: entities
//	embeddings/{active,recent,archive}      derived: vectors
//	summaries/{session,daily,weekly,monthly} derived: summaries
//	tool-results                            external: searches, scraped pages
//	meta                                    index: routing and statistics
//	model-cache                             single-tier model registry
//
// Each (type, tier) pair is one badger instance behind a StorageManager.
// Which tier a record lives in is decided by the coordinator, never by the
// manager itself.
package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

// DatabaseType names one database of the memory system.
type DatabaseType int

const (
	Conversations DatabaseType = iota
	Knowledge
	Embeddings
	ToolResults
	Experience
	Summaries
	Meta
	ModelCache
)

// CoreDatabaseTypes lists the seven types the coordinator manages.
var CoreDatabaseTypes = []DatabaseType{
	Conversations, Knowledge, Embeddings, ToolResults, Experience, Summaries, Meta,
}

// Name returns the directory name of the type.
func (d DatabaseType) Name() string {
	switch d {
	case Conversations:
		return "conversations"
	case Knowledge:
		return "knowledge"
	case Embeddings:
		return "embeddings"
	case ToolResults:
		return "tool-results"
	case Experience:
		return "experience"
	case Summaries:
		return "summaries"
	case Meta:
		return "meta"
	case ModelCache:
		return "model-cache"
	default:
		return "unknown"
	}
}

func (d DatabaseType) String() string { return d.Name() }

// IsSource reports whether the type holds primary data that cannot be
// regenerated.
func (d DatabaseType) IsSource() bool { return d == Conversations || d == Experience }

// IsDerived reports whether the type can be rebuilt from source data.
func (d DatabaseType) IsDerived() bool {
	return d == Knowledge || d == Embeddings || d == Summaries
}

// IsExternal reports whether the type caches data fetched from outside.
func (d DatabaseType) IsExternal() bool { return d == ToolResults }

// IsIndex reports whether the type holds routing and statistics data.
func (d DatabaseType) IsIndex() bool { return d == Meta }

// DefaultTiers returns the tiers of the type, hottest first. Single-tier
// types return nil.
func (d DatabaseType) DefaultTiers() []TemperatureTier {
	switch d {
	case Conversations, Embeddings:
		return []TemperatureTier{Active, Recent, Archive}
	case Knowledge:
		return []TemperatureTier{Active, Stable, Inferred}
	case Summaries:
		return []TemperatureTier{Session, Daily, Weekly, Monthly}
	default:
		return nil
	}
}

// SupportsTier reports whether tier is one of the type's tiers. NoTier is
// supported by every type.
func (d DatabaseType) SupportsTier(tier TemperatureTier) bool {
	if tier == NoTier {
		return true
	}
	for _, t := range d.DefaultTiers() {
		if t == tier {
			return true
		}
	}
	return false
}

// Path returns the directory of (d, tier) under base. A tier the type does
// not have maps to the type's own directory.
func (d DatabaseType) Path(base string, tier TemperatureTier) string {
	if tier != NoTier && d.SupportsTier(tier) {
		return filepath.Join(base, d.Name(), tier.Name())
	}
	return filepath.Join(base, d.Name())
}

// TemperatureTier classifies how hot a partition of a database is.
type TemperatureTier int

const (
	// NoTier marks single-tier databases.
	NoTier TemperatureTier = iota
	Active
	Recent
	Archive
	Stable
	Inferred
	Session
	Daily
	Weekly
	Monthly
)

// Name returns the directory name of the tier, empty for NoTier.
func (t TemperatureTier) Name() string {
	switch t {
	case Active:
		return "active"
	case Recent:
		return "recent"
	case Archive:
		return "archive"
	case Stable:
		return "stable"
	case Inferred:
		return "inferred"
	case Session:
		return "session"
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	default:
		return ""
	}
}

func (t TemperatureTier) String() string {
	if t == NoTier {
		return "none"
	}
	return t.Name()
}

// IsHot reports whether the tier is opened eagerly and kept loaded.
func (t TemperatureTier) IsHot() bool { return t == Active || t == Stable || t == Session }

// IsWarm reports whether the tier is loaded on first access.
func (t TemperatureTier) IsWarm() bool { return t == Recent || t == Daily }

// IsCold reports whether the tier is loaded on demand and rarely read.
func (t TemperatureTier) IsCold() bool {
	return t == Archive || t == Inferred || t == Weekly || t == Monthly
}

const appDir = "tierdb"

// DefaultBasePath returns the platform data directory for tierdb:
//
//	Windows: %APPDATA%\tierdb\db
//	macOS:   ~/Library/Application Support/tierdb/db
//	Linux:   $XDG_DATA_HOME/tierdb/db or ~/.local/share/tierdb/db
//
// It falls back to ./tierdb/db when no home directory is known.
func DefaultBasePath() string {
	fallback := filepath.Join(".", appDir, "db")
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, appDir, "db")
		}
		return fallback
	case "darwin":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Application Support", appDir, "db")
		}
		return fallback
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appDir, "db")
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".local", "share", appDir, "db")
		}
		return fallback
	}
}
