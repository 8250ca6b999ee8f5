// Package dedupe remembers which inbound event ids have already been
// observed so that platform re-deliveries of the same event are dropped.
//
// Retention is windowed: a key is forgotten after its TTL, when the cache
// reaches its size cap (oldest first), or explicitly via Forget when
// processing of the event failed and a re-delivery should be let through.
package dedupe
