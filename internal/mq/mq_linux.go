//go:build linux

package mq

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	ipcshm "github.com/srediag/shm-exchange/internal/shm"
)

// Open opens the named queue with the given access mode. O_CREAT is always
// set, creating the queue with attr and perm when absent.
func Open(name string, flag int, perm uint32, attr *Attr) (int, error) {
	if err := ipcshm.ValidateName(name); err != nil {
		return -1, err
	}
	// the kernel takes the name without its leading slash
	p, err := unix.BytePtrFromString(strings.TrimPrefix(name, "/"))
	if err != nil {
		return -1, err
	}
	fd, _, errno := unix.Syscall6(unix.SYS_MQ_OPEN,
		uintptr(unsafe.Pointer(p)),
		uintptr(flag|unix.O_CREAT|unix.O_CLOEXEC),
		uintptr(perm),
		uintptr(unsafe.Pointer(attr)),
		0, 0)
	if errno != 0 {
		return -1, fmt.Errorf("mq_open %s: %w", name, errno)
	}
	return int(fd), nil
}

func timespec(deadline time.Time) *unix.Timespec {
	if deadline.IsZero() {
		return nil
	}
	ts := unix.NsecToTimespec(deadline.UnixNano())
	return &ts
}

// TimedSend enqueues msg. A zero deadline blocks until there is room.
func TimedSend(fd int, msg []byte, prio uint, deadline time.Time) error {
	var p unsafe.Pointer
	if len(msg) > 0 {
		p = unsafe.Pointer(&msg[0])
	}
	_, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDSEND,
		uintptr(fd),
		uintptr(p),
		uintptr(len(msg)),
		uintptr(prio),
		uintptr(unsafe.Pointer(timespec(deadline))),
		0)
	if errno != 0 {
		return errno
	}
	return nil
}

// TimedReceive dequeues the oldest highest-priority message into buf, which
// must be at least the queue's MsgSize. A zero deadline blocks until a
// message arrives.
func TimedReceive(fd int, buf []byte, deadline time.Time) (int, error) {
	if len(buf) == 0 {
		return 0, unix.EMSGSIZE
	}
	n, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDRECEIVE,
		uintptr(fd),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0,
		uintptr(unsafe.Pointer(timespec(deadline))),
		0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// GetAttr returns the attributes of the open queue.
func GetAttr(fd int) (Attr, error) {
	var attr Attr
	_, _, errno := unix.Syscall(unix.SYS_MQ_GETSETATTR, uintptr(fd), 0, uintptr(unsafe.Pointer(&attr)))
	if errno != 0 {
		return Attr{}, fmt.Errorf("mq_getattr: %w", errno)
	}
	return attr, nil
}

// Close releases the queue descriptor.
func Close(fd int) error {
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("mq_close: %w", err)
	}
	return nil
}

// Unlink removes the named queue.
func Unlink(name string) error {
	if err := ipcshm.ValidateName(name); err != nil {
		return err
	}
	p, err := unix.BytePtrFromString(strings.TrimPrefix(name, "/"))
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_MQ_UNLINK, uintptr(unsafe.Pointer(p)), 0, 0)
	if errno != 0 {
		return fmt.Errorf("mq_unlink %s: %w", name, errno)
	}
	return nil
}

// IsInterrupted reports whether err is EINTR.
func IsInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}

// IsTimeout reports whether err is ETIMEDOUT.
func IsTimeout(err error) bool {
	return errors.Is(err, unix.ETIMEDOUT)
}
