// Package shm contains the OS-level shared memory primitives used by pkg/shm.
//
// Objects live in the POSIX shared memory namespace. On Linux that namespace
// is the tmpfs mounted at /dev/shm, so shm_open and shm_unlink reduce to open
// and unlink on that directory.
package shm

import (
	"errors"
	"fmt"
	"strings"
)

// MaxNameLen is the longest object name accepted by the kernel (NAME_MAX).
const MaxNameLen = 255

var (
	// ErrUnsupported is returned on platforms without POSIX shared memory.
	ErrUnsupported = errors.New("shared memory is not supported on this platform")
	// ErrInvalidName is returned for names that are not legal in the namespace.
	ErrInvalidName = errors.New("invalid shared memory object name")
)

// MappedRegion is a memory-mapped view of an open shared memory object.
type MappedRegion struct {
	Addr []byte
	Size int
}

// ValidateName checks that name is a legal POSIX IPC name: a leading slash
// followed by 1..NAME_MAX bytes that contain no further slash.
func ValidateName(name string) error {
	if !strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w %q: must start with '/'", ErrInvalidName, name)
	}
	rest := name[1:]
	if rest == "" {
		return fmt.Errorf("%w %q: empty", ErrInvalidName, name)
	}
	if len(rest) > MaxNameLen {
		return fmt.Errorf("%w %q: longer than %d bytes", ErrInvalidName, name, MaxNameLen)
	}
	if strings.ContainsRune(rest, '/') {
		return fmt.Errorf("%w %q: contains '/'", ErrInvalidName, name)
	}
	if strings.ContainsRune(rest, 0) {
		return fmt.Errorf("%w %q: contains NUL", ErrInvalidName, name)
	}
	return nil
}
