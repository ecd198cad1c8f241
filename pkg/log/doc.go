/*
Package log provides structured logging for NetCache using zerolog.

It wraps zerolog with a package-level Logger plus helpers for deriving
component-scoped child loggers, so every subsystem (tree, storage, gc,
server) tags its lines with a "component" field that can be filtered on
in aggregation tools.

The global Logger writes JSON to stderr at info level from the moment
the package is imported, so code that logs before (or without ever
calling) Init never hits a nil-writer panic. Init reconfigures it with
the level, format and output a deployment wants.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	log.Info("cache server starting")

	storageLog := log.WithComponent("storage")
	storageLog.Warn().Err(err).Msg("gc: dead-id query failed")

# Integration points

  - pkg/storage: part rotation, GC passes, blob lock contention
  - cmd/netcached: startup and shutdown banners

# Log levels

Debug is for development and troubleshooting only; Info is the default
production level; Warn flags conditions worth a human's attention
without being a failure; Error is a failed operation; Fatal logs and
calls os.Exit(1), reserved for unrecoverable startup failures.
*/
package log
