/*
Package config loads NetCache's registry configuration from a YAML file
(spec.md §6 "Configuration keys") and converts it to the typed
durations/sizes pkg/storage.Config expects.

# Usage

	cfg, err := config.Load("netcache.yaml")
	if err != nil {
		log.Fatal(err.Error())
	}
	s, err := storage.Open(cfg.ToStorageConfig())
*/
package config
