// Package mq wraps the POSIX message queue system calls.
//
// golang.org/x/sys/unix exposes the syscall numbers but no wrappers, so the
// calls are issued directly. Send and receive return the raw errno so that
// callers can tell EINTR and ETIMEDOUT apart from real failures.
package mq

import "errors"

const (
	// DefaultMaxMsg is the queue depth used when a queue is created.
	DefaultMaxMsg = 8
	// DefaultMsgSize bounds one message; lengths are a handful of digits.
	DefaultMsgSize = 64
)

// ErrUnsupported is returned on platforms without POSIX message queues.
var ErrUnsupported = errors.New("message queues are not supported on this platform")

// Attr mirrors struct mq_attr. C long is Go int on every Linux ABI.
type Attr struct {
	Flags   int
	MaxMsg  int
	MsgSize int
	CurMsgs int
	_       [4]int
}
