// Package dedupe collapses concurrent identical requests into a single
// underlying execution.
//
// A Group tracks one pending call per key. The first caller for a key starts
// the work; callers arriving while it is in flight join as waiters and the
// settled outcome — value or error — is fanned out identically to all of
// them. The pending entry is removed under the same lock that publishes the
// outcome, so there is no window where a late caller could re-trigger the
// work or miss the fan-out.
//
// Deduplication is orthogonal to caching: a Group governs concurrent
// callers, a cache governs temporal reuse across calls that do not overlap.
package dedupe
