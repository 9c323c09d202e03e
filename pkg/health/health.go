// Package health exposes liveness and readiness probes for a running role.
package health

import (
	"errors"

	"github.com/heptiolabs/healthcheck"
)

// maxGoroutines is generous: a role runs one goroutine plus the admin server.
const maxGoroutines = 256

var (
	ErrFailed       = errors.New("exchange failed")
	ErrNotListening = errors.New("listener not connected")
)

// Reporter is the view of an orchestrator the probes need. Implementations
// must be safe to call from the HTTP server's goroutines.
type Reporter interface {
	Listening() bool
	Failed() bool
}

// NewHandler returns a handler serving /live and /ready for r.
//
// Liveness fails once the run has failed. Readiness holds while the segment
// and channel are connected.
func NewHandler(r Reporter) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(maxGoroutines))
	h.AddLivenessCheck("exchange", func() error {
		if r.Failed() {
			return ErrFailed
		}
		return nil
	})
	h.AddReadinessCheck("listener", func() error {
		if !r.Listening() {
			return ErrNotListening
		}
		return nil
	})
	return h
}
