package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseTypeNames(t *testing.T) {
	tests := []struct {
		dbType DatabaseType
		name   string
	}{
		{Conversations, "conversations"},
		{Knowledge, "knowledge"},
		{Embeddings, "embeddings"},
		{ToolResults, "tool-results"},
		{Experience, "experience"},
		{Summaries, "summaries"},
		{Meta, "meta"},
		{ModelCache, "model-cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.dbType.Name())
			assert.Equal(t, tt.name, tt.dbType.String())
		})
	}
	assert.Len(t, CoreDatabaseTypes, 7)
	assert.NotContains(t, CoreDatabaseTypes, ModelCache)
}

func TestDatabaseTypeCategories(t *testing.T) {
	assert.True(t, Conversations.IsSource())
	assert.True(t, Experience.IsSource())
	assert.False(t, Knowledge.IsSource())

	for _, d := range []DatabaseType{Knowledge, Embeddings, Summaries} {
		assert.True(t, d.IsDerived(), d.Name())
	}
	assert.False(t, Conversations.IsDerived())

	assert.True(t, ToolResults.IsExternal())
	assert.True(t, Meta.IsIndex())
	assert.False(t, ModelCache.IsIndex())
}

func TestDefaultTiers(t *testing.T) {
	assert.Equal(t, []TemperatureTier{Active, Recent, Archive}, Conversations.DefaultTiers())
	assert.Equal(t, []TemperatureTier{Active, Recent, Archive}, Embeddings.DefaultTiers())
	assert.Equal(t, []TemperatureTier{Active, Stable, Inferred}, Knowledge.DefaultTiers())
	assert.Equal(t, []TemperatureTier{Session, Daily, Weekly, Monthly}, Summaries.DefaultTiers())
	for _, d := range []DatabaseType{ToolResults, Experience, Meta, ModelCache} {
		assert.Empty(t, d.DefaultTiers(), d.Name())
		assert.True(t, d.SupportsTier(NoTier))
		assert.False(t, d.SupportsTier(Active))
	}
	assert.True(t, Knowledge.SupportsTier(Stable))
	assert.False(t, Conversations.SupportsTier(Stable))
}

func TestPath(t *testing.T) {
	base := filepath.Join("data", "db")

	t.Run("tiered", func(t *testing.T) {
		assert.Equal(t, filepath.Join(base, "conversations", "active"), Conversations.Path(base, Active))
		assert.Equal(t, filepath.Join(base, "knowledge", "inferred"), Knowledge.Path(base, Inferred))
		assert.Equal(t, filepath.Join(base, "summaries", "weekly"), Summaries.Path(base, Weekly))
	})

	t.Run("untiered_or_unsupported", func(t *testing.T) {
		assert.Equal(t, filepath.Join(base, "conversations"), Conversations.Path(base, NoTier))
		assert.Equal(t, filepath.Join(base, "tool-results"), ToolResults.Path(base, Active))
		assert.Equal(t, filepath.Join(base, "embeddings"), Embeddings.Path(base, Stable))
	})
}

func TestTemperatureTier(t *testing.T) {
	hot := []TemperatureTier{Active, Stable, Session}
	warm := []TemperatureTier{Recent, Daily}
	cold := []TemperatureTier{Archive, Inferred, Weekly, Monthly}

	for _, tier := range hot {
		assert.True(t, tier.IsHot(), tier.Name())
		assert.False(t, tier.IsWarm() || tier.IsCold(), tier.Name())
	}
	for _, tier := range warm {
		assert.True(t, tier.IsWarm(), tier.Name())
		assert.False(t, tier.IsHot() || tier.IsCold(), tier.Name())
	}
	for _, tier := range cold {
		assert.True(t, tier.IsCold(), tier.Name())
		assert.False(t, tier.IsHot() || tier.IsWarm(), tier.Name())
	}

	assert.Equal(t, "", NoTier.Name())
	assert.Equal(t, "none", NoTier.String())
	assert.Equal(t, "monthly", Monthly.String())
}

func TestDefaultBasePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg")
	t.Setenv("HOME", "/home/u")
	t.Setenv("APPDATA", `C:\AppData`)

	p := DefaultBasePath()
	assert.Equal(t, "db", filepath.Base(p))
	assert.Equal(t, "tierdb", filepath.Base(filepath.Dir(p)))
}
