// Package dedupe provides a bounded, time-limited seen-set.
//
// The realtime feed delivers rows at least once, and agent requests may be
// retried by a client that never saw the acknowledgement. Both sides use a
// Cache to recognize keys they have already handled:
//
//	seen := dedupe.New[string](dedupe.DefaultTTL, dedupe.DefaultMaxSize)
//	defer seen.Close()
//	if !seen.MarkIfNew(row.ID) {
//		return // duplicate
//	}
package dedupe
