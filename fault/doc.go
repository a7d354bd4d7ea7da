// Package fault defines the failure taxonomy shared by the orchestration
// components.
//
// Failures are classified exactly once, at the boundary where a raw operation
// error is first observed. Everything downstream (retry policy, cache, facade)
// inspects only the classified kind:
//
//   - Transient: network-like failures worth retrying.
//   - Timeout: deadline expiry, a transient subtype.
//   - Permanent: validation/auth-like failures that never self-resolve.
//
// ExhaustedError wraps the final transient failure once the retry budget is
// spent, carrying the total attempt count for callers.
package fault
