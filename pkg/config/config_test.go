package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/mcc/pkg/cli"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.True(t, cfg.IsFeatureEnabled(FeatStrictRank))
	assert.False(t, cfg.IsFeatureEnabled(FeatWidenLongFloat))
	assert.False(t, cfg.IsWarningEnabled(WarnNarrowing))
	assert.True(t, cfg.IsWarningEnabled(WarnExtra))

	rules := cfg.Rules()
	assert.True(t, rules.StrictRank)
	assert.False(t, rules.WidenLongFloat)

	for i := Feature(0); i < FeatCount; i++ {
		assert.NotEmpty(t, cfg.Features[i].Name)
	}
	for i := Warning(0); i < WarnCount; i++ {
		assert.NotEmpty(t, cfg.Warnings[i].Name)
	}
}

func TestDirectiveFlags(t *testing.T) {
	t.Run("enables and disables by name", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, cfg.ProcessDirectiveFlags("-Wnarrowing -Fno-strict-rank Fwiden-long-float"))
		assert.True(t, cfg.IsWarningEnabled(WarnNarrowing))
		assert.False(t, cfg.IsFeatureEnabled(FeatStrictRank))
		assert.True(t, cfg.IsFeatureEnabled(FeatWidenLongFloat))
	})

	t.Run("Wall toggles every warning", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, cfg.ProcessDirectiveFlags("-Wall"))
		for i := Warning(0); i < WarnCount; i++ {
			assert.True(t, cfg.IsWarningEnabled(i))
		}
		require.NoError(t, cfg.ProcessDirectiveFlags("-Wno-all"))
		assert.False(t, cfg.IsWarningEnabled(WarnExtra))
	})

	t.Run("unknown names are reported and the rest still applies", func(t *testing.T) {
		cfg := NewConfig()
		err := cfg.ProcessDirectiveFlags("-Wbogus -Wshadow -Xfoo")
		assert.ErrorIs(t, err, ErrUnknownFlag)
		assert.Contains(t, err.Error(), "-Wbogus")
		assert.Contains(t, err.Error(), "-Xfoo")
		assert.True(t, cfg.IsWarningEnabled(WarnShadow))
	})
}

func TestProcessFlagsOrder(t *testing.T) {
	cfg := NewConfig()
	given := []string{"Wno-narrowing", "Wall"}
	err := cfg.ProcessFlags(func(fn func(string)) {
		for _, name := range given {
			fn(name)
		}
	})
	require.NoError(t, err)
	assert.False(t, cfg.IsWarningEnabled(WarnNarrowing))
	assert.True(t, cfg.IsWarningEnabled(WarnShadow))
}

func TestClone(t *testing.T) {
	base := NewConfig()
	clone := base.Clone()
	clone.SetWarning(WarnShadow, true)
	clone.SetFeature(FeatStrictRank, false)
	assert.False(t, base.IsWarningEnabled(WarnShadow))
	assert.True(t, base.IsFeatureEnabled(FeatStrictRank))
}

func TestFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("mcc")
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)
	require.Len(t, warningFlags, int(WarnCount))
	require.Len(t, featureFlags, int(FeatCount))

	cfg.SetWarning(WarnShadow, true) // e.g. from a config file

	require.NoError(t, fs.Parse([]string{"-Wnarrowing", "-Fno-strict-rank", "in.c"}))
	cfg.ApplyFlagGroups(fs, warningFlags, featureFlags)

	assert.True(t, cfg.IsWarningEnabled(WarnNarrowing))
	assert.False(t, cfg.IsFeatureEnabled(FeatStrictRank))
	assert.True(t, cfg.IsWarningEnabled(WarnShadow), "flags not given keep earlier settings")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcc.yaml")
	content := "features:\n  strict-rank: false\nwarnings:\n  narrowing: true\ntarget: arm64\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFile(path))
	assert.False(t, cfg.IsFeatureEnabled(FeatStrictRank))
	assert.True(t, cfg.IsWarningEnabled(WarnNarrowing))
	assert.Equal(t, "arm64", cfg.QbeTarget)

	err := cfg.LoadYAML([]byte("warnings:\n  nope: true\n"))
	assert.ErrorIs(t, err, ErrUnknownFlag)

	assert.Error(t, cfg.LoadFile(filepath.Join(dir, "missing.yaml")))
}

func TestSetTarget(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.SetTarget("linux", "amd64", "amd64_sysv"))
	assert.Equal(t, 8, cfg.WordSize)
	assert.Equal(t, "l", cfg.WordType)

	require.NoError(t, cfg.SetTarget("linux", "arm", "rv32"))
	assert.Equal(t, 4, cfg.WordSize)

	assert.Error(t, cfg.SetTarget("linux", "amd64", "vax"))
	assert.Equal(t, 8, cfg.WordSize)
}
