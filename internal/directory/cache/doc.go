// Package cache holds directory lookup snapshots in memory with TTL expiration.
//
// A snapshot is the candidate list returned by the directory for one filter. Serving
// it from the cache is what the routing telemetry reports as the "cached" query mode.
//   - Entries are JSON-encoded so cached snapshots are isolated from callers
//   - Configurable TTL (default 1 hour) via config file or environment variable
//   - SHA256-based keys over the normalized filter for deterministic lookups
//
// Invalidation on node changes is not performed here; entries live until their TTL
// passes or the cache is cleared.
package cache
