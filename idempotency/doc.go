// Package idempotency deduplicates repeated operations by key, recording the
// first result and replaying it to later callers until a TTL expires.
// Concurrent duplicates are coalesced onto one in-flight execution. Errors
// are never recorded. Deduplication is per process only.
package idempotency
