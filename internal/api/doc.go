// Package api provides the Polymarket REST client used as the external market source.
//
// REST endpoints:
//   - Gamma (market catalog): https://gamma-api.polymarket.com
//   - CLOB (price history):   https://clob.polymarket.com
//
// Both are public; no credentials are sent. Requests are rate limited client-side
// and retried with exponential backoff on 5xx and 429 responses.
package api
