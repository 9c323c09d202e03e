package protocol

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	internalshm "github.com/srediag/shm-exchange/internal/shm"
	"github.com/srediag/shm-exchange/pkg/channel"
	"github.com/srediag/shm-exchange/pkg/config"
	"github.com/srediag/shm-exchange/pkg/metrics"
	"github.com/srediag/shm-exchange/pkg/shm"
)

type ProtocolTestSuite struct {
	suite.Suite
	ctx context.Context
	cfg *config.Config
}

func (s *ProtocolTestSuite) SetupSuite() {
	if runtime.GOOS != "linux" {
		s.T().Skip("POSIX shared memory tests run on linux only")
	}
	if _, err := os.Stat(internalshm.DevShmDir); err != nil {
		s.T().Skipf("%s unavailable: %v", internalshm.DevShmDir, err)
	}
	s.ctx = context.Background()
}

func (s *ProtocolTestSuite) SetupTest() {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s.cfg = config.Default(true)
	s.cfg.SegmentName = "/shmx_seg_" + id
	s.cfg.HostQueue = "/shmx_host_" + id
	s.cfg.WorkerQueue = "/shmx_worker_" + id
}

func (s *ProtocolTestSuite) TearDownTest() {
	_ = os.RemoveAll(internalshm.Path(s.cfg.SegmentName))
	_ = channel.NewLoopback(nil).Remove(s.cfg.HostQueue, s.cfg.WorkerQueue)
}

func (s *ProtocolTestSuite) segmentGone() {
	_, err := shm.Size(s.cfg.SegmentName)
	s.ErrorIs(err, os.ErrNotExist)
}

func (s *ProtocolTestSuite) TestPairOverLoopback() {
	resp, err := Pair(s.ctx, s.cfg, WithChannelFactory(LoopbackChannel))
	s.Require().NoError(err)
	s.Equal("payload of task-1 processed", resp)
	s.segmentGone()
}

func (s *ProtocolTestSuite) TestPairOverMessageQueues() {
	probe := channel.NewMQueue(nil)
	if err := probe.Connect(s.ctx, s.cfg.HostQueue, s.cfg.WorkerQueue); err != nil {
		s.T().Skipf("message queues unavailable: %v", err)
	}
	s.Require().NoError(probe.Disconnect(true))

	s.cfg.SignalTimeout = 5 * time.Second
	resp, err := Pair(s.ctx, s.cfg)
	s.Require().NoError(err)
	s.Equal("payload of task-1 processed", resp)
	s.segmentGone()
}

func (s *ProtocolTestSuite) TestHostAndWorkerFinishDone() {
	host, err := NewHost(s.cfg, WithChannelFactory(LoopbackChannel))
	s.Require().NoError(err)
	worker, err := NewWorker(s.cfg, WithChannelFactory(LoopbackChannel))
	s.Require().NoError(err)
	s.Equal(StateIdle, host.State())

	done := make(chan error, 1)
	go func() { done <- worker.Run(s.ctx) }()
	s.Require().NoError(host.Run(s.ctx))
	s.Require().NoError(<-done)

	s.Equal(StateDone, host.State())
	s.Equal(StateDone, worker.State())
	s.False(host.Listening())
	s.False(host.Failed())
	s.Equal("payload of task-1", worker.Request())
	s.Equal("payload of task-1 processed", host.Response())
	s.segmentGone()
}

func (s *ProtocolTestSuite) TestRunTwice() {
	stub := &stubChannel{recvErr: channel.ErrClosed}
	worker, err := NewWorker(s.cfg, WithChannelFactory(stub.factory()))
	s.Require().NoError(err)

	s.Error(worker.Run(s.ctx))
	s.ErrorIs(worker.Run(s.ctx), ErrAlreadyRun)
	s.Equal(StateFailed, worker.State())
}

func (s *ProtocolTestSuite) TestLargeResponseResizes() {
	page := os.Getpagesize()
	s.cfg.Request = strings.Repeat("x", page-4)
	reg := prometheus.NewPedanticRegistry()
	m := metrics.New(reg)

	resp, err := Pair(s.ctx, s.cfg, WithChannelFactory(LoopbackChannel), WithMetrics(m))
	s.Require().NoError(err)
	s.Equal(s.cfg.Request+" processed", resp)
	s.Equal(float64(2*page), testutil.ToFloat64(m.SegmentSize.WithLabelValues("host")))
	s.Equal(float64(2*page), testutil.ToFloat64(m.SegmentSize.WithLabelValues("worker")))
}

func (s *ProtocolTestSuite) TestMetricsRecorded() {
	reg := prometheus.NewPedanticRegistry()
	m := metrics.New(reg)

	_, err := Pair(s.ctx, s.cfg, WithChannelFactory(LoopbackChannel), WithMetrics(m))
	s.Require().NoError(err)
	s.Equal(1.0, testutil.ToFloat64(m.Exchanges.WithLabelValues("host", metrics.ResultSuccess)))
	s.Equal(1.0, testutil.ToFloat64(m.Exchanges.WithLabelValues("worker", metrics.ResultSuccess)))
	s.Equal(0.0, testutil.ToFloat64(m.CleanupErrors.WithLabelValues("host")))
	s.Equal(2, testutil.CollectAndCount(m.Duration))
}

func (s *ProtocolTestSuite) TestSignalTimeout() {
	s.cfg.SignalTimeout = 50 * time.Millisecond
	reg := prometheus.NewPedanticRegistry()
	m := metrics.New(reg)
	worker, err := NewWorker(s.cfg, WithChannelFactory(LoopbackChannel), WithMetrics(m))
	s.Require().NoError(err)

	err = worker.Run(s.ctx)
	s.ErrorIs(err, channel.ErrTimeout)
	s.True(worker.Failed())
	s.False(worker.Listening())
	s.Equal(1.0, testutil.ToFloat64(m.Exchanges.WithLabelValues("worker", metrics.ResultFailure)))
}

func (s *ProtocolTestSuite) TestContextDeadline() {
	ctx, cancel := context.WithTimeout(s.ctx, 50*time.Millisecond)
	defer cancel()
	host, err := NewHost(s.cfg, WithChannelFactory(LoopbackChannel))
	s.Require().NoError(err)

	s.ErrorIs(host.Run(ctx), channel.ErrTimeout)
	s.segmentGone()
}

func (s *ProtocolTestSuite) TestAbortReleasesBlockedHost() {
	host, err := NewHost(s.cfg, WithChannelFactory(LoopbackChannel))
	s.Require().NoError(err)

	done := make(chan error, 1)
	go func() { done <- host.Run(s.ctx) }()
	s.Eventually(host.Listening, time.Second, 5*time.Millisecond)

	s.Require().NoError(host.Abort())
	select {
	case err := <-done:
		s.ErrorIs(err, channel.ErrClosed)
	case <-time.After(2 * time.Second):
		s.FailNow("host still blocked after abort")
	}
	s.True(host.Failed())
	s.segmentGone()
}

func (s *ProtocolTestSuite) TestWorkerAbortIsNoop() {
	worker, err := NewWorker(s.cfg, WithChannelFactory(LoopbackChannel))
	s.Require().NoError(err)
	s.NoError(worker.Abort())
}

func (s *ProtocolTestSuite) TestHostSendFailureSkipsReceive() {
	stub := &stubChannel{sendErr: errors.New("queue full")}
	host, err := NewHost(s.cfg, WithChannelFactory(stub.factory()))
	s.Require().NoError(err)

	err = host.Run(s.ctx)
	s.ErrorIs(err, stub.sendErr)
	s.Zero(stub.receives)
	s.Equal([]bool{true}, stub.disconnects)
	s.True(host.Failed())
	s.segmentGone()
}

func (s *ProtocolTestSuite) TestHostReceiveFailure() {
	stub := &stubChannel{recvErr: channel.ErrClosed}
	host, err := NewHost(s.cfg, WithChannelFactory(stub.factory()))
	s.Require().NoError(err)

	s.ErrorIs(host.Run(s.ctx), channel.ErrClosed)
	s.Equal([]string{"17"}, stub.sent)
	s.Equal(StateFailed, host.State())
}

func (s *ProtocolTestSuite) TestWorkerMalformedLength() {
	stub := &stubChannel{recv: []string{"seventeen"}}
	worker, err := NewWorker(s.cfg, WithChannelFactory(stub.factory()))
	s.Require().NoError(err)

	s.ErrorIs(worker.Run(s.ctx), channel.ErrBadLength)
	s.Empty(stub.sent)
	s.Equal([]bool{false}, stub.disconnects)
	size, err := shm.Size(s.cfg.SegmentName)
	s.Require().NoError(err)
	s.Zero(size)
}

func (s *ProtocolTestSuite) TestWorkerLengthBeyondSegment() {
	seg := shm.New(shm.Options{})
	s.Require().NoError(seg.Connect(s.ctx, s.cfg.SegmentName))
	s.Require().NoError(seg.Write(s.ctx, []byte("hello")))
	s.Require().NoError(seg.Disconnect(false))

	stub := &stubChannel{recv: []string{"1000000"}}
	worker, err := NewWorker(s.cfg, WithChannelFactory(stub.factory()))
	s.Require().NoError(err)

	s.ErrorIs(worker.Run(s.ctx), shm.ErrOutOfRange)
	s.Empty(stub.sent)
}

func (s *ProtocolTestSuite) TestSegmentFailureSkipsChannel() {
	s.Require().NoError(os.Mkdir(internalshm.Path(s.cfg.SegmentName), 0o700))
	stub := &stubChannel{}
	host, err := NewHost(s.cfg, WithChannelFactory(stub.factory()))
	s.Require().NoError(err)

	s.Error(host.Run(s.ctx))
	s.Zero(stub.connects)
	s.True(host.Failed())
}

func (s *ProtocolTestSuite) TestChannelFailureRemovesSegment() {
	stub := &stubChannel{connectErr: errors.New("no queue")}
	host, err := NewHost(s.cfg, WithChannelFactory(stub.factory()))
	s.Require().NoError(err)

	s.ErrorIs(host.Run(s.ctx), stub.connectErr)
	s.Equal(1, stub.connects)
	s.False(host.Listening())
	s.segmentGone()
}

func (s *ProtocolTestSuite) TestAbortUsesRemover() {
	stub := &stubChannel{}
	host, err := NewHost(s.cfg, WithChannelFactory(stub.factory()))
	s.Require().NoError(err)

	s.NoError(host.Abort())
	s.Equal([]string{s.cfg.HostQueue, s.cfg.WorkerQueue}, stub.removed)
}

func (s *ProtocolTestSuite) TestNewSelectsRole() {
	r, err := New(s.cfg)
	s.Require().NoError(err)
	s.IsType(&Host{}, r)

	r, err = New(s.cfg.Peer())
	s.Require().NoError(err)
	s.IsType(&Worker{}, r)
}

func (s *ProtocolTestSuite) TestNewRejectsInvalidConfig() {
	s.cfg.WorkerQueue = s.cfg.HostQueue
	_, err := NewHost(s.cfg)
	s.Error(err)

	_, err = NewWorker(nil)
	s.Error(err)
}

func TestProtocolTestSuite(t *testing.T) {
	suite.Run(t, new(ProtocolTestSuite))
}
