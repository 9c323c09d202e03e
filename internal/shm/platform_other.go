//go:build !linux

package shm

import "os"

// DevShmDir is empty on platforms without a shared memory filesystem.
const DevShmDir = ""

func Path(name string) string { return name }

func Open(name string) (int, error) { return -1, ErrUnsupported }

func Size(fd int) (int64, error) { return 0, ErrUnsupported }

func Truncate(fd int, size int64) error { return ErrUnsupported }

func MapRegion(fd int, size int) (*MappedRegion, error) { return nil, ErrUnsupported }

func UnmapRegion(region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	return ErrUnsupported
}

func Close(fd int) error { return ErrUnsupported }

func Unlink(name string) error { return ErrUnsupported }

func Stat(name string) (int64, error) { return 0, ErrUnsupported }

func PageSize() int { return os.Getpagesize() }

func CanGrow(size uint64, path string) bool { return true }
