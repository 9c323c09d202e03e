// Package protocol drives the host/worker handshake over a shared segment
// and a signal channel.
//
// One run performs exactly one exchange:
//
//	host:   write request -> signal len -> wait -> read response
//	worker: wait -> read request -> write response -> signal len
//
// The segment has no locks. Only the side that holds the turn may touch it,
// and a side gets the turn only by starting the exchange (host) or by
// receiving a length signal. That rule is enforced by construction: the
// segment is private to the orchestrator and reachable only through a turn
// value handed out at those two points.
//
// Every failure takes the same path: best-effort cleanup, state Failed, and
// the original error returned to the caller. Cleanup errors are logged, not
// returned.
package protocol
