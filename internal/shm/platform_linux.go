//go:build linux

package shm

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

// DevShmDir is where Linux exposes the shared memory namespace.
const DevShmDir = "/dev/shm"

// Path returns the filesystem path backing the named object.
func Path(name string) string {
	return filepath.Join(DevShmDir, strings.TrimPrefix(name, "/"))
}

// Open opens the named object read/write, creating it with owner-only
// permissions when it does not exist yet.
func Open(name string) (int, error) {
	if err := ValidateName(name); err != nil {
		return -1, err
	}
	fd, err := unix.Open(Path(name), unix.O_RDWR|unix.O_CREAT|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0600)
	if err != nil {
		return -1, fmt.Errorf("shm_open %s: %w", name, err)
	}
	return fd, nil
}

// Size returns the current real size of the object behind fd.
func Size(fd int) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, fmt.Errorf("fstat: %w", err)
	}
	return st.Size, nil
}

// Truncate sets the size of the object behind fd.
func Truncate(fd int, size int64) error {
	if err := unix.Ftruncate(fd, size); err != nil {
		return fmt.Errorf("ftruncate %d: %w", size, err)
	}
	return nil
}

// MapRegion maps size bytes of the object read/write and shared.
func MapRegion(fd int, size int) (*MappedRegion, error) {
	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %d: %w", size, err)
	}
	return &MappedRegion{Addr: addr, Size: size}, nil
}

// UnmapRegion unmaps the region. A nil region is a no-op.
func UnmapRegion(region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	if err := unix.Munmap(region.Addr); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	region.Addr = nil
	region.Size = 0
	return nil
}

// Close releases the object handle.
func Close(fd int) error {
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Unlink removes the named object from the namespace.
func Unlink(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := unix.Unlink(Path(name)); err != nil {
		return fmt.Errorf("shm_unlink %s: %w", name, err)
	}
	return nil
}

// Stat returns the real size of the named object without opening a handle
// that outlives the call.
func Stat(name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	var st unix.Stat_t
	if err := unix.Stat(Path(name), &st); err != nil {
		return 0, fmt.Errorf("stat %s: %w", name, err)
	}
	return st.Size, nil
}

// PageSize returns the system page size.
func PageSize() int {
	return unix.Getpagesize()
}

// CanGrow reports whether the filesystem holding path has room for another
// size bytes. Paths outside /dev/shm are not checked.
func CanGrow(size uint64, path string) bool {
	if !strings.HasPrefix(path, DevShmDir) {
		return true
	}
	stat, err := disk.Usage(DevShmDir)
	if err != nil {
		// unknown free space: let ftruncate decide
		return true
	}
	return stat.Free >= size
}
