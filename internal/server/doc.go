// Package server exposes coven-helpdesk's operational HTTP surface.
//
// # Endpoints
//
//	GET /health              liveness, always "OK"
//	GET /health/ready        200 once every transport is connected, else 503
//	GET /api/turns           page of ledger turns (user, since, limit, cursor)
//	GET /api/turns/{id}      one ledger turn
//	GET /api/turns/stream    server-sent "turn" events as they are recorded
//	GET /api/stats           session, dedupe, outcome, and transport counters
//
// # Listening
//
// Without tailscale the server binds server.http_addr. With tailscale
// enabled it starts a tsnet node named tailscale.hostname and serves on
// :80, on :443 with TLS (tailscale.https or cert_file/key_file), or on a
// public Funnel.
package server
