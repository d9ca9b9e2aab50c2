// Package status exposes a running server's counters over HTTP and reads
// them back.
//
// The server side is a small read-only JSON API:
//   - GET /status   domain.Stats for the server
//   - GET /healthz  "ok" while the server is accepting
//
// The client side, HTTP, fetches /status with a context for cancellation
// and deadlines. Non-2xx statuses are returned as errors carrying the URL
// and status text. No session material is ever exposed.
package status
