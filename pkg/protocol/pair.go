package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"

	"github.com/srediag/shm-exchange/pkg/config"
)

// Pair runs a host and a worker for cfg side by side in this process and
// returns the host's view of the response.
//
// A failure on either side aborts the host so that the other side's wait is
// released where the channel allows it. A message queue wait is only
// released by a deadline, so use ctx or SignalTimeout to bound it.
func Pair(ctx context.Context, cfg *config.Config, opts ...Option) (string, error) {
	host, err := NewHost(cfg, opts...)
	if err != nil {
		return "", err
	}
	worker, err := NewWorker(cfg, opts...)
	if err != nil {
		return "", err
	}

	pool, err := ants.NewPool(2)
	if err != nil {
		return "", fmt.Errorf("create pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var hostErr, workerErr error
	run := func(r Runner, out *error) func() {
		return func() {
			defer wg.Done()
			if *out = r.Run(ctx); *out != nil {
				_ = host.Abort()
			}
		}
	}

	wg.Add(2)
	if err := pool.Submit(run(worker, &workerErr)); err != nil {
		wg.Done()
		wg.Done()
		return "", fmt.Errorf("start worker: %w", err)
	}
	if err := pool.Submit(run(host, &hostErr)); err != nil {
		wg.Done()
		_ = host.Abort()
		wg.Wait()
		return "", multierr.Append(fmt.Errorf("start host: %w", err), workerErr)
	}
	wg.Wait()

	if err := multierr.Combine(hostErr, workerErr); err != nil {
		return "", err
	}
	return host.Response(), nil
}
