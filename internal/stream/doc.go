// Package stream implements the live trade tap.
//
// The tap subscribes to the Polymarket CLOB market channel for the top active
// markets, turns last_trade_price events into samples and writes them into the
// current bucket of one interval. It complements the history poller: polling
// backfills and corrects, the tap keeps the newest bucket fresh between polls.
//
// Connection handling:
//   - Text "PING" keepalives every PingInterval; any inbound frame counts as liveness
//   - No traffic for ReadTimeout marks the connection stale
//   - Reconnect with exponential backoff between ReconnectBaseDelay and ReconnectMaxDelay
//   - The subscription is rebuilt from the catalog on every (re)connect
package stream
