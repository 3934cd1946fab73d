// Package poller implements the Sync Poller component.
//
// The Sync Poller:
//   - Runs a catalog sync on its own interval (default 30 minutes)
//   - Runs price-history syncs for the top active markets on a second interval
//   - Bounds concurrency through the history engine's SyncMany
//   - Polls immediately on start, then on every tick
package poller
