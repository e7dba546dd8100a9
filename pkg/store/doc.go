// Package store provides the canonical async-state store behind the
// apiq engine: keyed call states with deduplication, freshness,
// subscriptions, retry policy, prefix invalidation, and
// snapshot/restore for optimistic updates.
//
// # Lifecycle
//
// Every query key owns at most one state. A state is created pending,
// settles exactly once per fetch into success or failure, and is
// replaced wholesale by later fetches; settled snapshots are never
// mutated. Concurrent queries for the same key join the in-flight
// fetch instead of dispatching again.
//
// Mutations flow through the store for ordering and observability but
// leave no retained state: their pending and settled snapshots are
// delivered to subscribers and callers only.
//
// # Freshness and retries
//
// A success stays fresh for the request TTL (store default when zero);
// fresh states are served without dispatching. Failures are never
// fresh: the next query fetches again. The configured RetryConfig
// applies to query fetches only; mutations run exactly once, since
// the store cannot know they are idempotent.
//
// # Snapshot cache
//
// An optional Cache persists settled query payloads. On a cold key the
// store hydrates from the cache before dispatching, and successful
// fetches are written through. Backends: in-memory, NATS JetStream KV,
// or none; see CacheConfig.
package store
