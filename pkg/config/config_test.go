package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "netcache.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "path: /var/lib/netcache\nname: nc\n")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Timeout != 3600 {
		t.Errorf("Timeout = %d, want 3600", c.Timeout)
	}
	if c.MaxTimeout != 86400 {
		t.Errorf("MaxTimeout = %d, want 86400", c.MaxTimeout)
	}
	if c.PurgeThreadDelay != 30 {
		t.Errorf("PurgeThreadDelay = %d, want 30", c.PurgeThreadDelay)
	}
	if c.PurgeBatchSize != 256 {
		t.Errorf("PurgeBatchSize = %d, want 256", c.PurgeBatchSize)
	}
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfigFile(t, `
path: /data/netcache
name: nc
read_only: true
timeout: 60
max_timeout: 120
timestamp: onread
drop_if_dirty: true
max_blob_size: 1048576
db_rotate_period: 10
purge_thread_delay: 5
purge_batch_size: 64
purge_batch_sleep: 100
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.ReadOnly {
		t.Error("ReadOnly should be true")
	}
	if !c.TimestampOnRead() {
		t.Error("TimestampOnRead should be true")
	}
	if !c.DropIfDirty {
		t.Error("DropIfDirty should be true")
	}
	if c.MaxBlobSize != 1048576 {
		t.Errorf("MaxBlobSize = %d, want 1048576", c.MaxBlobSize)
	}
}

func TestTimestampOnReadRequiresToken(t *testing.T) {
	c := Config{Timestamp: "something_else"}
	if c.TimestampOnRead() {
		t.Error("TimestampOnRead should be false without the onread token")
	}
}

func TestToStorageConfigConvertsDurations(t *testing.T) {
	c := Config{
		Path: "/data", Name: "nc",
		Timeout: 60, MaxTimeout: 120,
		DBRotatePeriod:   10,
		PurgeThreadDelay: 5,
		PurgeBatchSleep:  250,
	}
	sc := c.ToStorageConfig()
	if sc.DefaultTTL != 60*time.Second {
		t.Errorf("DefaultTTL = %v, want 60s", sc.DefaultTTL)
	}
	if sc.MaxTTL != 120*time.Second {
		t.Errorf("MaxTTL = %v, want 120s", sc.MaxTTL)
	}
	if sc.RotatePeriod != 10*time.Second {
		t.Errorf("RotatePeriod = %v, want 10s", sc.RotatePeriod)
	}
	if sc.GCInterval != 5*time.Second {
		t.Errorf("GCInterval = %v, want 5s", sc.GCInterval)
	}
	if sc.GCBatchSleep != 250*time.Millisecond {
		t.Errorf("GCBatchSleep = %v, want 250ms", sc.GCBatchSleep)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
