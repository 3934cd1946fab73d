// Package model defines shared data types used across the Polymarket data service.
//
// Conventions:
//   - Prices: integer hundred-thousandths (0-100,000 = $0.00-$1.00)
//   - Timestamps: int64 microseconds since Unix epoch
//   - Token IDs: CLOB token id strings (decimal digits for live markets)
//
// The catalog is keyed by a market's YES-outcome token id. Price history is keyed
// by (token id, interval, bucket timestamp).
package model
