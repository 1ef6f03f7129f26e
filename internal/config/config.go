// Package config loads cuemap's runtime configuration from CUEMAP_-
// prefixed environment variables, with an optional YAML file layered
// on top (its values override the env vars) for settings an operator wants to check into source
// control rather than export as env vars. Mirrors the teacher's
// internal/config/config.go: one Config struct composed of section
// structs, loaded through typed getEnv* helpers with defaults baked
// in, and a Validate() that reports every invalid field at once rather
// than failing on the first.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/scrypster/cuemap/internal/payload"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the engine, storage, security, and jobs
// layers need at startup.
type Config struct {
	Engine   EngineConfig
	Storage  StorageConfig
	Security SecurityConfig
	Jobs     JobsConfig
}

// EngineConfig controls the in-memory engine's internal sharding.
type EngineConfig struct {
	// ShardCount is the number of shards each sharded map (memories, cue
	// index, co-occurrence, project registry) splits across. Default 128,
	// per spec.md §9's shard-count note and the original's
	// DASHMAP_SHARD_COUNT constant.
	ShardCount int
}

// StorageConfig controls snapshot persistence (spec.md §4.10).
type StorageConfig struct {
	// SnapshotDir is where per-project .bin/_lexicon.bin/_aliases.bin
	// files are read from and written to. Empty disables persistence
	// entirely (no directory to snapshot into).
	SnapshotDir string
	// SnapshotIntervalSeconds is how often the background ticker saves
	// every project. Default 300.
	SnapshotIntervalSeconds int
	// DisableSnapshots turns off the periodic ticker without touching
	// SnapshotDir, so a one-shot save/load at startup/shutdown can still
	// use the same directory.
	DisableSnapshots bool
}

// SnapshotInterval returns StorageConfig.SnapshotIntervalSeconds as a
// time.Duration, for direct use by persistence.NewManager.
func (s StorageConfig) SnapshotInterval() time.Duration {
	return time.Duration(s.SnapshotIntervalSeconds) * time.Second
}

// SecurityConfig controls at-rest payload encryption (spec.md §4.11).
type SecurityConfig struct {
	// MasterKeyHex is a 32-byte AEAD key, hex-encoded. Takes precedence
	// over MasterPassphrase if both are set.
	MasterKeyHex string
	// MasterPassphrase is stretched into a 32-byte key via Argon2id
	// against a fixed salt (internal/payload.DeriveKey) when MasterKeyHex
	// is empty.
	MasterPassphrase string
}

// MasterKey resolves the configured key material into the 32-byte key
// engines need, or nil if no encryption is configured (payloads stored
// compressed-only). Returns an error if MasterKeyHex is set but isn't
// valid 32-byte hex.
func (s SecurityConfig) MasterKey() ([]byte, error) {
	if s.MasterKeyHex != "" {
		key, err := hex.DecodeString(s.MasterKeyHex)
		if err != nil {
			return nil, fmt.Errorf("config: CUEMAP_MASTER_KEY_HEX is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("config: CUEMAP_MASTER_KEY_HEX must decode to 32 bytes, got %d", len(key))
		}
		return key, nil
	}
	if s.MasterPassphrase != "" {
		return payload.DeriveKey(s.MasterPassphrase), nil
	}
	return nil, nil
}

// JobsConfig controls the background job system (spec.md §4.9).
type JobsConfig struct {
	// DisableBackgroundJobs short-circuits job processing entirely — a
	// benchmarking flag, per spec.md §6.
	DisableBackgroundJobs bool
}

const (
	defaultShardCount              = 128
	defaultSnapshotIntervalSeconds = 300
)

// Load reads configuration from CUEMAP_-prefixed environment variables,
// applying defaults for anything unset.
func Load() *Config {
	return &Config{
		Engine: EngineConfig{
			ShardCount: getEnvInt("CUEMAP_SHARD_COUNT", defaultShardCount),
		},
		Storage: StorageConfig{
			SnapshotDir:             getEnv("CUEMAP_SNAPSHOT_DIR", ""),
			SnapshotIntervalSeconds: getEnvInt("CUEMAP_SNAPSHOT_INTERVAL_SECONDS", defaultSnapshotIntervalSeconds),
			DisableSnapshots:        getEnvBool("CUEMAP_DISABLE_SNAPSHOTS", false),
		},
		Security: SecurityConfig{
			MasterKeyHex:     getEnv("CUEMAP_MASTER_KEY_HEX", ""),
			MasterPassphrase: getEnv("CUEMAP_MASTER_PASSPHRASE", ""),
		},
		Jobs: JobsConfig{
			DisableBackgroundJobs: getEnvBool("CUEMAP_DISABLE_BACKGROUND_JOBS", false),
		},
	}
}

// yamlOverlay mirrors Config's shape for partial YAML files: every field
// is a pointer so an absent key in the file leaves the env-derived value
// untouched.
type yamlOverlay struct {
	Engine *struct {
		ShardCount *int `yaml:"shard_count"`
	} `yaml:"engine"`
	Storage *struct {
		SnapshotDir             *string `yaml:"snapshot_dir"`
		SnapshotIntervalSeconds *int    `yaml:"snapshot_interval_seconds"`
		DisableSnapshots        *bool   `yaml:"disable_snapshots"`
	} `yaml:"storage"`
	Security *struct {
		MasterKeyHex     *string `yaml:"master_key_hex"`
		MasterPassphrase *string `yaml:"master_passphrase"`
	} `yaml:"security"`
	Jobs *struct {
		DisableBackgroundJobs *bool `yaml:"disable_background_jobs"`
	} `yaml:"jobs"`
}

// LoadYAMLOverrides layers a YAML file's settings on top of cfg,
// overwriting only the fields the file actually specifies. Config files
// are optional; env vars remain the primary configuration surface.
func (c *Config) LoadYAMLOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if overlay.Engine != nil {
		if overlay.Engine.ShardCount != nil {
			c.Engine.ShardCount = *overlay.Engine.ShardCount
		}
	}
	if overlay.Storage != nil {
		if overlay.Storage.SnapshotDir != nil {
			c.Storage.SnapshotDir = *overlay.Storage.SnapshotDir
		}
		if overlay.Storage.SnapshotIntervalSeconds != nil {
			c.Storage.SnapshotIntervalSeconds = *overlay.Storage.SnapshotIntervalSeconds
		}
		if overlay.Storage.DisableSnapshots != nil {
			c.Storage.DisableSnapshots = *overlay.Storage.DisableSnapshots
		}
	}
	if overlay.Security != nil {
		if overlay.Security.MasterKeyHex != nil {
			c.Security.MasterKeyHex = *overlay.Security.MasterKeyHex
		}
		if overlay.Security.MasterPassphrase != nil {
			c.Security.MasterPassphrase = *overlay.Security.MasterPassphrase
		}
	}
	if overlay.Jobs != nil {
		if overlay.Jobs.DisableBackgroundJobs != nil {
			c.Jobs.DisableBackgroundJobs = *overlay.Jobs.DisableBackgroundJobs
		}
	}
	return nil
}

// Validate reports every invalid field at once via errors.Join, rather
// than stopping at the first problem.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.ShardCount < 1 {
		errs = append(errs, fmt.Errorf("config: Engine.ShardCount must be >= 1, got %d", c.Engine.ShardCount))
	}
	if c.Storage.SnapshotIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("config: Storage.SnapshotIntervalSeconds must be >= 1, got %d", c.Storage.SnapshotIntervalSeconds))
	}
	if c.Security.MasterKeyHex != "" {
		if _, err := c.Security.MasterKey(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// getEnv retrieves a string environment variable or returns a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a
// default. An unparseable value falls back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a
// default. Recognizes "true"/"1"/"yes" and "false"/"0"/"no" in lower-case,
// Title-case or UPPER-case spelling; anything else falls back to the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
