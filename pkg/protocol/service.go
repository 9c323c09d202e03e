package protocol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/srediag/shm-exchange/internal/logging"
	"github.com/srediag/shm-exchange/pkg/channel"
	"github.com/srediag/shm-exchange/pkg/config"
	"github.com/srediag/shm-exchange/pkg/metrics"
	"github.com/srediag/shm-exchange/pkg/shm"
)

const instrumentationName = "github.com/srediag/shm-exchange/pkg/protocol"

// ErrAlreadyRun is returned by Run on an orchestrator that has already run.
var ErrAlreadyRun = errors.New("exchange already run")

// service is the part shared by Host and Worker: it owns the segment and the
// channel for the lifetime of one run.
type service struct {
	cfg     config.Config
	seg     *shm.Segment
	ch      channel.Channel
	metrics *metrics.Metrics
	tracer  trace.Tracer

	rootLog *zap.Logger
	log     *zap.Logger

	state     atomic.Int32
	listening atomic.Bool
}

func newService(cfg *config.Config, host bool, opts []Option) (*service, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	c := *cfg
	c.Host = host
	if err := c.Validate(); err != nil {
		return nil, err
	}

	o := options{channel: MQueueChannel}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer(instrumentationName)
	}
	log := logging.OrNop(o.logger).Named(c.Role())

	return &service{
		cfg:     c,
		seg:     shm.New(shm.Options{Logger: log, Meter: o.meter}),
		ch:      o.channel(log),
		metrics: o.metrics,
		tracer:  o.tracer,
		rootLog: log,
		log:     log,
	}, nil
}

// State returns the current state. It is safe to call from any goroutine.
func (s *service) State() State { return State(s.state.Load()) }

// Listening reports whether the segment and the channel are both connected.
func (s *service) Listening() bool { return s.listening.Load() }

// Failed reports whether the run ended in StateFailed.
func (s *service) Failed() bool { return s.State() == StateFailed }

func (s *service) setState(to State) {
	from := s.State()
	if !canTransition(from, to) {
		s.log.DPanic("Invalid state transition", zap.Stringer("from", from), zap.Stringer("to", to))
		return
	}
	s.state.Store(int32(to))
	s.log.Debug("State changed", zap.Stringer("from", from), zap.Stringer("to", to))
}

// begin claims the orchestrator for one run and returns the function that
// must be called with the run's result.
func (s *service) begin(ctx context.Context) (context.Context, func(error), error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return ctx, nil, ErrAlreadyRun
	}
	id := uuid.NewString()
	s.log = s.rootLog.With(zap.String("exchange", id))

	role := s.cfg.Role()
	ctx, span := s.tracer.Start(ctx, "shmx."+role,
		trace.WithAttributes(
			attribute.String("shmx.exchange_id", id),
			attribute.String("shmx.segment", s.cfg.SegmentName),
		))
	start := time.Now()

	return ctx, func(err error) {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultFailure
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		if s.metrics != nil {
			s.metrics.Exchanges.WithLabelValues(role, result).Inc()
			s.metrics.Duration.WithLabelValues(role).Observe(time.Since(start).Seconds())
		}
	}, nil
}

// startListener connects the segment, then the channel. The channel is not
// touched when the segment fails.
func (s *service) startListener(ctx context.Context) error {
	if err := s.seg.Connect(ctx, s.cfg.SegmentName); err != nil {
		return fmt.Errorf("connect segment: %w", err)
	}
	if err := s.ch.Connect(ctx, s.cfg.InboundQueue(), s.cfg.OutboundQueue()); err != nil {
		return fmt.Errorf("connect channel: %w", err)
	}
	s.listening.Store(true)
	s.setState(StateConnected)
	s.log.Info("Listener started",
		zap.String("segment", s.cfg.SegmentName),
		zap.String("inbound", s.cfg.InboundQueue()),
		zap.String("outbound", s.cfg.OutboundQueue()))
	return nil
}

// stopListener releases everything the run acquired. The host also removes
// the segment and both queues from the namespace.
func (s *service) stopListener() error {
	s.listening.Store(false)
	owner := s.cfg.Host
	err := multierr.Combine(s.ch.Disconnect(owner), s.seg.Disconnect(owner))
	if err != nil {
		s.log.Warn("Error stopping listener", zap.Error(err))
		if s.metrics != nil {
			s.metrics.CleanupErrors.WithLabelValues(s.cfg.Role()).Inc()
		}
		return err
	}
	s.log.Info("Listener stopped", zap.Bool("removed", owner))
	return nil
}

// fail is the single error path: clean up, mark the run failed, and hand the
// original error back.
func (s *service) fail(err error) error {
	s.log.Error("Exchange failed", zap.Error(err))
	_ = s.stopListener()
	s.state.Store(int32(StateFailed))
	return err
}

func (s *service) finish() {
	_ = s.stopListener()
	s.setState(StateDone)
}

func (s *service) signalCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.SignalTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.SignalTimeout)
	}
	return context.WithCancel(ctx)
}

// awaitTurn blocks until the peer signals and returns the turn together with
// the announced payload length.
func (s *service) awaitTurn(ctx context.Context) (turn, int, error) {
	sctx, cancel := s.signalCtx(ctx)
	defer cancel()
	msg, err := s.ch.ReceiveWait(sctx)
	if err != nil {
		return turn{}, 0, fmt.Errorf("wait for signal: %w", err)
	}
	n, err := channel.ParseLength(msg)
	if err != nil {
		return turn{}, 0, fmt.Errorf("wait for signal: %w", err)
	}
	s.log.Debug("Turn received", zap.Int("bytes", n))
	return turn{s: s}, n, nil
}

// passTurn gives the segment to the peer. t must not be used afterwards.
func (s *service) passTurn(ctx context.Context, t turn, n int) error {
	if t.s != s {
		return errors.New("pass turn: turn not held")
	}
	sctx, cancel := s.signalCtx(ctx)
	defer cancel()
	if err := s.ch.SendWait(sctx, channel.FormatLength(n)); err != nil {
		return fmt.Errorf("signal peer: %w", err)
	}
	s.log.Debug("Turn passed", zap.Int("bytes", n))
	return nil
}

// Abort removes the segment and the queue names so that nothing outlives an
// interrupted host. It only unlinks names and is safe to call while Run is
// blocked. It is a no-op for the worker.
func (s *service) Abort() error {
	if !s.cfg.Host {
		return nil
	}
	var err error
	if e := shm.Remove(s.cfg.SegmentName); e != nil && !errors.Is(e, os.ErrNotExist) {
		err = multierr.Append(err, e)
	}
	if r, ok := s.ch.(channel.Remover); ok {
		err = multierr.Append(err, r.Remove(s.cfg.HostQueue, s.cfg.WorkerQueue))
	}
	if err != nil {
		s.rootLog.Warn("Error aborting exchange", zap.Error(err))
		return err
	}
	s.rootLog.Info("Exchange aborted", zap.String("segment", s.cfg.SegmentName))
	return nil
}
