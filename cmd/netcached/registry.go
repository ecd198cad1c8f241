package main

import (
	"github.com/netcache-project/netcache/pkg/config"
	"github.com/netcache-project/netcache/pkg/storage"
)

// storageOpen opens the registry described by cfg. Split out of serve.go so
// stats and admin can share the same config-to-storage wiring.
func storageOpen(cfg *config.Config) (*storage.Storage, error) {
	return storage.Open(cfg.ToStorageConfig())
}
