package ports

import "context"

// AnonymousQuotaStore tracks daily consumption per fingerprint. Records are
// keyed by (fingerprint, UTC calendar date) so a date change supersedes the
// previous record instead of mutating it in place — reading a stale-dated
// record is equivalent to count 0.
type AnonymousQuotaStore interface {
	// Count returns today's consumption for the fingerprint; a missing
	// record reads as 0.
	Count(ctx context.Context, fingerprint, date string) (int, error)
	// Increment atomically adds one to today's counter and returns the new
	// value, creating the record (with a one-day TTL) on first use.
	Increment(ctx context.Context, fingerprint, date string) (int, error)
}
