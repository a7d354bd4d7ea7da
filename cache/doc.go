// Package cache provides result caching for orchestrated requests: a
// stale-while-revalidate TTL cache (SWR), byte-oriented shared stores
// (in-memory and valkey-backed), a deterministic request keyer, and TTL
// policies.
package cache
