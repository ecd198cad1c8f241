package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/netcache-project/netcache/pkg/storage"
	"gopkg.in/yaml.v3"
)

// Config mirrors spec.md §6 "Configuration keys" — plain seconds/bytes so
// the YAML file stays free of Go duration syntax, converted to
// storage.Config's typed fields by ToStorageConfig.
type Config struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`

	ReadOnly bool `yaml:"read_only"`

	Timeout    int `yaml:"timeout"`     // seconds, default blob TTL
	MaxTimeout int `yaml:"max_timeout"` // seconds, maximum blob TTL

	Timestamp   string `yaml:"timestamp"` // space-separated tokens; "onread" updates access time on reads
	DropIfDirty bool   `yaml:"drop_if_dirty"`

	MaxBlobSize int64 `yaml:"max_blob_size"` // bytes, 0 = unlimited

	DBRotatePeriod int `yaml:"db_rotate_period"` // seconds

	PurgeThreadDelay int `yaml:"purge_thread_delay"` // seconds
	PurgeBatchSize   int `yaml:"purge_batch_size"`
	PurgeBatchSleep  int `yaml:"purge_batch_sleep"` // milliseconds
}

// Load reads and parses a YAML configuration file, applying defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 3600 // 1 hour
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = 86400 // 24 hours
	}
	if c.PurgeThreadDelay <= 0 {
		c.PurgeThreadDelay = 30
	}
	if c.PurgeBatchSize <= 0 {
		c.PurgeBatchSize = 256
	}
}

// TimestampOnRead reports whether the "onread" token is present in the
// configured timestamp token list.
func (c *Config) TimestampOnRead() bool {
	for _, tok := range strings.Fields(c.Timestamp) {
		if tok == "onread" {
			return true
		}
	}
	return false
}

// ToStorageConfig converts the registry config to pkg/storage's typed
// Config.
func (c *Config) ToStorageConfig() storage.Config {
	return storage.Config{
		Path:            c.Path,
		Name:            c.Name,
		ReadOnly:        c.ReadOnly,
		DefaultTTL:      time.Duration(c.Timeout) * time.Second,
		MaxTTL:          time.Duration(c.MaxTimeout) * time.Second,
		TimestampOnRead: c.TimestampOnRead(),
		DropIfDirty:     c.DropIfDirty,
		MaxBlobSize:     c.MaxBlobSize,
		RotatePeriod:    time.Duration(c.DBRotatePeriod) * time.Second,
		GCInterval:      time.Duration(c.PurgeThreadDelay) * time.Second,
		GCBatchSize:     c.PurgeBatchSize,
		GCBatchSleep:    time.Duration(c.PurgeBatchSleep) * time.Millisecond,
	}
}
