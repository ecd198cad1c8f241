/*
Package metrics provides Prometheus instrumentation and health/readiness
endpoints for NetCache.

It exposes a read-only stats surface over the coordinate cache and the
storage engine: tree shape, part and blob counts, GC outcomes, blob lock
contention, and blob access latency. This is distinct from the excluded
statistics-aggregation subsystem — these are operational gauges for an
operator's dashboard, not a query-able client-facing API.

# Metrics

Tree:
  - netcache_tree_height
  - netcache_tree_values_total
  - netcache_tree_nodes_total
  - netcache_tree_heartbeat_duration_seconds

Storage:
  - netcache_storage_parts_total
  - netcache_storage_blobs_total{part}
  - netcache_gc_pass_duration_seconds
  - netcache_gc_reclaimed_total
  - netcache_gc_incomplete_passes_total
  - netcache_gc_parts_removed_total
  - netcache_part_rotations_total

Blob locks and access:
  - netcache_blob_lock_contention_total{mode}
  - netcache_blob_lock_wait_duration_seconds{mode}
  - netcache_blob_access_total{kind, result}
  - netcache_blob_access_duration_seconds{kind}

# Usage

	http.Handle("/metrics", metrics.Handler())
	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())
	http.HandleFunc("/live", metrics.LivenessHandler())

	metrics.RegisterComponent("storage", true, "")

# Health vs readiness

Health reports every registered component's status. Readiness additionally
gates on a fixed critical set ("storage" today) — a process can be alive
and healthy in every component it has started, yet not ready until its
storage engine has finished opening.
*/
package metrics
