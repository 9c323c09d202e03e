// Package channel provides the signal channel that host and worker use to
// tell each other how many bytes were just placed in the shared segment.
//
// A channel is a pair of one-directional named queues. Each role receives on
// its inbound queue and sends on its outbound queue; the host's inbound queue
// is the worker's outbound queue and vice versa. Exactly one short text
// message, a decimal byte count, crosses the channel per turn.
package channel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNotConnected = errors.New("signal channel not connected")
	ErrConnected    = errors.New("signal channel already connected")
	ErrTimeout      = errors.New("signal channel wait timed out")
	ErrClosed       = errors.New("signal channel closed")
	ErrBadLength    = errors.New("malformed length signal")
)

// Channel is the contract the protocol orchestrator consumes.
//
// SendWait returns once the message has been accepted. ReceiveWait returns
// once a message is available. Both block without a timeout unless ctx
// carries a deadline, in which case they fail with ErrTimeout when it passes.
type Channel interface {
	Connect(ctx context.Context, inbound, outbound string) error
	SendWait(ctx context.Context, text string) error
	ReceiveWait(ctx context.Context) (string, error)
	// Disconnect closes both queues and, when owner is set, removes them.
	Disconnect(owner bool) error
}

// Remover is implemented by channels that can drop queue names from the
// namespace without closing live handles. It must be safe to call while
// another goroutine is blocked in SendWait or ReceiveWait.
type Remover interface {
	Remove(names ...string) error
}

// FormatLength encodes a payload length as a signal message.
func FormatLength(n int) string {
	return strconv.Itoa(n)
}

// ParseLength decodes a signal message into a payload length.
func ParseLength(msg string) (int, error) {
	n, err := strconv.Atoi(msg)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadLength, msg)
	}
	return n, nil
}
