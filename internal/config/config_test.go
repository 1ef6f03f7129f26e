package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scrypster/cuemap/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultShardCountIs128(t *testing.T) {
	_ = os.Unsetenv("CUEMAP_SHARD_COUNT")
	cfg := config.Load()
	assert.Equal(t, 128, cfg.Engine.ShardCount)
}

func TestLoad_CanOverrideShardCount(t *testing.T) {
	t.Setenv("CUEMAP_SHARD_COUNT", "64")
	cfg := config.Load()
	assert.Equal(t, 64, cfg.Engine.ShardCount)
}

func TestLoad_UnparseableIntFallsBackToDefault(t *testing.T) {
	t.Setenv("CUEMAP_SHARD_COUNT", "not-a-number")
	cfg := config.Load()
	assert.Equal(t, 128, cfg.Engine.ShardCount)
}

func TestLoad_DefaultSnapshotIntervalIs300Seconds(t *testing.T) {
	_ = os.Unsetenv("CUEMAP_SNAPSHOT_INTERVAL_SECONDS")
	cfg := config.Load()
	assert.Equal(t, 300, cfg.Storage.SnapshotIntervalSeconds)
	assert.Equal(t, 300e9, float64(cfg.Storage.SnapshotInterval()))
}

func TestLoad_DisableSnapshotsRecognizesTruthyValues(t *testing.T) {
	t.Setenv("CUEMAP_DISABLE_SNAPSHOTS", "true")
	cfg := config.Load()
	assert.True(t, cfg.Storage.DisableSnapshots)
}

func TestLoad_DisableSnapshotsDefaultsFalse(t *testing.T) {
	_ = os.Unsetenv("CUEMAP_DISABLE_SNAPSHOTS")
	cfg := config.Load()
	assert.False(t, cfg.Storage.DisableSnapshots)
}

func TestSecurityConfig_MasterKeyFromHex(t *testing.T) {
	sec := config.SecurityConfig{MasterKeyHex: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"}
	key, err := sec.MasterKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestSecurityConfig_MasterKeyFromPassphraseIsStretchedTo32Bytes(t *testing.T) {
	sec := config.SecurityConfig{MasterPassphrase: "correct horse battery staple"}
	key, err := sec.MasterKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestSecurityConfig_MasterKeyPrefersHexOverPassphrase(t *testing.T) {
	sec := config.SecurityConfig{
		MasterKeyHex:     "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
		MasterPassphrase: "ignored",
	}
	hexKey, err := sec.MasterKey()
	require.NoError(t, err)

	passphraseOnly := config.SecurityConfig{MasterPassphrase: "ignored"}
	passphraseKey, err := passphraseOnly.MasterKey()
	require.NoError(t, err)

	assert.NotEqual(t, passphraseKey, hexKey)
}

func TestSecurityConfig_MasterKeyReturnsNilWhenUnconfigured(t *testing.T) {
	sec := config.SecurityConfig{}
	key, err := sec.MasterKey()
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestSecurityConfig_MasterKeyRejectsInvalidHex(t *testing.T) {
	sec := config.SecurityConfig{MasterKeyHex: "not-hex"}
	_, err := sec.MasterKey()
	assert.Error(t, err)
}

func TestSecurityConfig_MasterKeyRejectsWrongLength(t *testing.T) {
	sec := config.SecurityConfig{MasterKeyHex: "aabbcc"}
	_, err := sec.MasterKey()
	assert.Error(t, err)
}

func TestValidate_ReportsEveryInvalidFieldAtOnce(t *testing.T) {
	cfg := &config.Config{
		Engine:   config.EngineConfig{ShardCount: 0},
		Storage:  config.StorageConfig{SnapshotIntervalSeconds: -1},
		Security: config.SecurityConfig{MasterKeyHex: "not-hex"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "ShardCount")
	assert.Contains(t, msg, "SnapshotIntervalSeconds")
	assert.Contains(t, msg, "MASTER_KEY_HEX")
}

func TestValidate_PassesForDefaults(t *testing.T) {
	cfg := config.Load()
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLOverrides_OverwritesOnlySpecifiedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cuemap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  snapshot_dir: /var/lib/cuemap/snapshots
jobs:
  disable_background_jobs: true
`), 0o644))

	cfg := config.Load()
	originalShardCount := cfg.Engine.ShardCount

	require.NoError(t, cfg.LoadYAMLOverrides(path))

	assert.Equal(t, "/var/lib/cuemap/snapshots", cfg.Storage.SnapshotDir)
	assert.True(t, cfg.Jobs.DisableBackgroundJobs)
	assert.Equal(t, originalShardCount, cfg.Engine.ShardCount, "fields absent from the overlay must be left untouched")
}

func TestLoadYAMLOverrides_MissingFileReturnsError(t *testing.T) {
	cfg := config.Load()
	err := cfg.LoadYAMLOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
