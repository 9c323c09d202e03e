package protocol

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/srediag/shm-exchange/pkg/channel"
	"github.com/srediag/shm-exchange/pkg/metrics"
)

// ChannelFactory builds the signal channel for one role.
type ChannelFactory func(logger *zap.Logger) channel.Channel

var (
	// MQueueChannel uses POSIX message queues. It is the default.
	MQueueChannel ChannelFactory = func(l *zap.Logger) channel.Channel { return channel.NewMQueue(l) }
	// LoopbackChannel keeps both queues in process memory.
	LoopbackChannel ChannelFactory = func(l *zap.Logger) channel.Channel { return channel.NewLoopback(l) }
)

type options struct {
	logger  *zap.Logger
	channel ChannelFactory
	metrics *metrics.Metrics
	tracer  trace.Tracer
	meter   metric.Meter
}

// Option configures a Host or Worker.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithChannelFactory selects the signal channel implementation.
func WithChannelFactory(f ChannelFactory) Option {
	return func(o *options) { o.channel = f }
}

// WithMetrics records exchange metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the tracer used for run spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMeter sets the meter handed to the segment.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}
