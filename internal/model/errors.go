package model

import "errors"

// Error taxonomy shared by the sync engines and the read path.
// Callers wrap these with context and test with errors.Is.
var (
	// ErrUnknownMarket means the token id is not in the catalog.
	ErrUnknownMarket = errors.New("unknown market")

	// ErrUnsupportedInterval means the interval is not one of Intervals().
	ErrUnsupportedInterval = errors.New("unsupported interval")

	// ErrSourceUnavailable means the external market source failed or timed out.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrStoreUnavailable means the time-series store failed; nothing was committed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSyncInProgress means another sync holds the lock for the same key.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrInvalidTokenID means a token id failed format validation.
	ErrInvalidTokenID = errors.New("invalid token id")
)
