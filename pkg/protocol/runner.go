package protocol

import (
	"context"

	"github.com/srediag/shm-exchange/pkg/config"
)

// Runner is what the command line drives: either a Host or a Worker.
type Runner interface {
	Run(ctx context.Context) error
	Abort() error
	State() State
	Listening() bool
	Failed() bool
}

var (
	_ Runner = (*Host)(nil)
	_ Runner = (*Worker)(nil)
)

// New returns the orchestrator for the role selected by cfg.Host.
func New(cfg *config.Config, opts ...Option) (Runner, error) {
	if cfg != nil && cfg.Host {
		return NewHost(cfg, opts...)
	}
	return NewWorker(cfg, opts...)
}
