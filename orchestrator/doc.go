// Package orchestrator composes deduplication, caching, bounded
// concurrency, and retries behind a single Execute entry point.
//
// A call travels the pipeline in order: concurrent callers with the same
// key collapse into one execution, the survivor consults the
// stale-while-revalidate cache, and only a genuine miss reaches the
// concurrency limiter and the retry loop around the caller's operation.
// Successful results flow back into the cache on the way out.
package orchestrator
