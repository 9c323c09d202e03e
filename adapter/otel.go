// Package adapter connects the exchange to process-wide integrations.
package adapter

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/shm-exchange/pkg/protocol"
)

const instrumentationName = "github.com/srediag/shm-exchange"

// Tracer returns a tracer from the global provider. It records nothing
// until the embedding program installs a provider with otel.SetTracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Meter returns a meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// OTelOptions wires the global tracer and meter into an orchestrator.
func OTelOptions() []protocol.Option {
	return []protocol.Option{
		protocol.WithTracer(Tracer()),
		protocol.WithMeter(Meter()),
	}
}
