// Package history implements the Price-History Sync Engine.
//
// One sync for (token, interval):
//   - derives the cursor from the store (latest stored bucket, never persisted)
//   - fetches [cursor - width, now] from the source, or the configured lookback
//     when the series is empty
//   - normalizes samples into buckets and upserts them in one atomic call
//
// Re-fetching the cursor's own bucket lets a still-open bucket pick up its final
// price. Syncs are idempotent: running twice over unchanged source data leaves
// the store unchanged.
package history
