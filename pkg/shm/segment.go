package shm

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/srediag/shm-exchange/internal/logging"
	internalshm "github.com/srediag/shm-exchange/internal/shm"
)

const instrumentationName = "github.com/srediag/shm-exchange/pkg/shm"

var (
	ErrNotConnected  = errors.New("segment not connected")
	ErrConnected     = errors.New("segment already connected")
	ErrEmptySegment  = errors.New("segment has zero size, nothing to map")
	ErrEmptyPayload  = errors.New("empty payload")
	ErrNoSpace       = errors.New("not enough space left on " + internalshm.DevShmDir)
	ErrOutOfRange    = errors.New("read beyond mapped region")
	ErrInvalidText   = errors.New("payload is not valid UTF-8")
	ErrInvalidLength = errors.New("negative read length")
)

// Options configures a Segment.
type Options struct {
	Logger *zap.Logger
	Meter  metric.Meter
}

// Stats is a snapshot of a segment's mapping state.
type Stats struct {
	MappedSize int
	Resizes    uint64
	Remaps     uint64
}

// Segment is one named shared memory object and its current mapping.
//
// The mapped size is 0 until the first successful mapping and is always a
// multiple of the page size afterwards. The zero value is not usable; call
// New.
type Segment struct {
	name     string
	fd       int
	region   *internalshm.MappedRegion
	pageSize int
	stats    Stats

	log          *zap.Logger
	resizes      metric.Int64Counter
	remaps       metric.Int64Counter
	bytesWritten metric.Int64Counter
	bytesRead    metric.Int64Counter
}

// New returns a disconnected segment. The page size is queried once here.
func New(opts Options) *Segment {
	meter := opts.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(instrumentationName)
	}
	return &Segment{
		fd:           -1,
		pageSize:     internalshm.PageSize(),
		log:          logging.OrNop(opts.Logger).Named("shm"),
		resizes:      counter(meter, "shm.segment.resizes", "", "Number of segment truncations."),
		remaps:       counter(meter, "shm.segment.remaps", "", "Number of segment (re)mappings."),
		bytesWritten: counter(meter, "shm.segment.bytes_written", "By", "Payload bytes written."),
		bytesRead:    counter(meter, "shm.segment.bytes_read", "By", "Payload bytes read."),
	}
}

func counter(m metric.Meter, name, unit, desc string) metric.Int64Counter {
	opts := []metric.Int64CounterOption{metric.WithDescription(desc)}
	if unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	c, err := m.Int64Counter(name, opts...)
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

// Name returns the name passed to the last Connect.
func (s *Segment) Name() string { return s.name }

// PageSize returns the page size used for rounding.
func (s *Segment) PageSize() int { return s.pageSize }

// Connected reports whether the segment holds an open handle.
func (s *Segment) Connected() bool { return s.fd >= 0 }

// MappedSize returns the size of the current mapping, 0 when unmapped.
func (s *Segment) MappedSize() int {
	if s.region == nil {
		return 0
	}
	return s.region.Size
}

// Stats returns a snapshot of the mapping counters.
func (s *Segment) Stats() Stats {
	st := s.stats
	st.MappedSize = s.MappedSize()
	return st
}

// RequiredSize rounds n up to the next multiple of the page size.
func (s *Segment) RequiredSize(n int) int {
	return (n + s.pageSize - 1) / s.pageSize * s.pageSize
}

// Connect opens the named object, creating it with owner-only read/write
// permissions when it does not exist, and maps it if it is non-empty.
func (s *Segment) Connect(ctx context.Context, name string) error {
	if s.Connected() {
		return fmt.Errorf("connect %s: %w", name, ErrConnected)
	}
	fd, err := internalshm.Open(name)
	if err != nil {
		s.log.Error("Error opening shared memory", zap.String("name", name), zap.Error(err))
		return err
	}
	s.name = name
	s.fd = fd
	return s.UpdateMap()
}

// UpdateMap refreshes the mapping when the object's real size no longer
// matches the mapped size. Equal sizes are a no-op; a real size of zero with
// a mismatch is an error.
func (s *Segment) UpdateMap() error {
	if !s.Connected() {
		return ErrNotConnected
	}
	size, err := internalshm.Size(s.fd)
	if err != nil {
		s.log.Error("Error reading shared memory size", zap.String("name", s.name), zap.Error(err))
		return err
	}
	if int(size) == s.MappedSize() {
		return nil
	}
	if size == 0 {
		s.log.Error("Invalid segment size", zap.String("name", s.name), zap.Int("mapped", s.MappedSize()))
		return ErrEmptySegment
	}

	if err := internalshm.UnmapRegion(s.region); err != nil {
		s.log.Error("Error unmapping stale mapping", zap.String("name", s.name), zap.Error(err))
		return err
	}
	s.region = nil

	region, err := internalshm.MapRegion(s.fd, int(size))
	if err != nil {
		s.log.Error("Error mapping shared memory", zap.String("name", s.name), zap.Error(err))
		return err
	}
	s.region = region
	s.stats.Remaps++
	s.remaps.Add(context.Background(), 1)
	s.log.Info("Shared memory update map", zap.String("name", s.name), zap.Int64("bytes", size))
	return nil
}

// Write copies payload to offset 0, first resizing the object to the
// page-rounded payload length when that differs from its real size. Bytes
// past the payload are left untouched.
func (s *Segment) Write(ctx context.Context, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if !s.Connected() {
		return ErrNotConnected
	}
	current, err := internalshm.Size(s.fd)
	if err != nil {
		s.log.Error("Error reading shared memory size", zap.String("name", s.name), zap.Error(err))
		return err
	}
	s.log.Debug("Shared memory write", zap.String("name", s.name), zap.Int("bytes", len(payload)))

	required := int64(s.RequiredSize(len(payload)))
	if required != current {
		s.log.Info("Shared memory resize", zap.String("name", s.name),
			zap.Int64("from", current), zap.Int64("to", required))
		if required > current && !internalshm.CanGrow(uint64(required-current), internalshm.Path(s.name)) {
			s.log.Error("Error resizing shared memory", zap.String("name", s.name), zap.Error(ErrNoSpace))
			return ErrNoSpace
		}
		if err := internalshm.Truncate(s.fd, required); err != nil {
			s.log.Error("Error resizing shared memory", zap.String("name", s.name), zap.Error(err))
			return err
		}
		s.stats.Resizes++
		s.resizes.Add(ctx, 1)
	}
	// also picks up a resize done by the peer
	if err := s.UpdateMap(); err != nil {
		return err
	}

	copy(s.region.Addr, payload)
	s.bytesWritten.Add(ctx, int64(len(payload)))
	return nil
}

// ReadBytes refreshes the mapping and returns a copy of the first n bytes.
func (s *Segment) ReadBytes(ctx context.Context, n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrInvalidLength
	}
	if err := s.UpdateMap(); err != nil {
		return nil, err
	}
	if n > s.MappedSize() {
		s.log.Error("Error reading shared memory", zap.String("name", s.name),
			zap.Int("bytes", n), zap.Int("mapped", s.MappedSize()))
		return nil, fmt.Errorf("read %d of %d bytes: %w", n, s.MappedSize(), ErrOutOfRange)
	}
	out := make([]byte, n)
	if n > 0 {
		copy(out, s.region.Addr[:n])
	}
	s.bytesRead.Add(ctx, int64(n))
	return out, nil
}

// Read is ReadBytes for text payloads; it fails when the bytes are not
// valid UTF-8.
func (s *Segment) Read(ctx context.Context, n int) (string, error) {
	b, err := s.ReadBytes(ctx, n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		s.log.Error("Error decoding shared memory payload", zap.String("name", s.name), zap.Int("bytes", n))
		return "", ErrInvalidText
	}
	s.log.Debug("Shared memory read", zap.String("name", s.name), zap.Int("bytes", n))
	return string(b), nil
}

// Disconnect unmaps the region, optionally removes the object from the
// namespace and always closes the handle. Every step is attempted; the
// returned error combines whatever failed. Disconnecting twice is a no-op.
func (s *Segment) Disconnect(remove bool) error {
	var err error
	if s.region != nil {
		if e := internalshm.UnmapRegion(s.region); e != nil {
			s.log.Warn("Error munmap", zap.String("name", s.name), zap.Error(e))
			err = multierr.Append(err, e)
		}
		s.region = nil
	}
	if s.Connected() {
		if remove {
			if e := internalshm.Unlink(s.name); e != nil {
				s.log.Warn("Error unlinking shared memory", zap.String("name", s.name), zap.Error(e))
				err = multierr.Append(err, e)
			} else {
				s.log.Info("Shared memory removed", zap.String("name", s.name))
			}
		}
		if e := internalshm.Close(s.fd); e != nil {
			s.log.Warn("Error closing shared memory", zap.String("name", s.name), zap.Error(e))
			err = multierr.Append(err, e)
		}
		s.fd = -1
	}
	return err
}

// Remove deletes the named object from the namespace. Processes that still
// have it mapped keep their mapping.
func Remove(name string) error {
	return internalshm.Unlink(name)
}

// Size returns the real size of the named object.
func Size(name string) (int64, error) {
	return internalshm.Stat(name)
}
