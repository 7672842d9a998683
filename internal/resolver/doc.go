// Package resolver implements the per-unique-name resolution protocol around
// the NCBI lookup client and the checkpoint cache.
//
// Each cache miss costs exactly one attempt-sequence: synonym substitution,
// query-term variants tried in order, optional species-rank verification of
// candidates, and a shared rate limiter with extended backoff after failures.
// Failures never escape to the caller; an unresolvable name becomes an empty
// string, which the cache then treats as a sticky confirmed miss.
package resolver
