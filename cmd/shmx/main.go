// Command shmx runs one side, or both sides, of a shared memory exchange.
//
// Start the worker first, then the host:
//
//	shmx &
//	shmx -host
//
// Settings come from SHMX_* environment variables; -host overrides
// SHMX_HOST. The host removes the segment and both queues on exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/srediag/shm-exchange/adapter"
	"github.com/srediag/shm-exchange/internal/logging"
	"github.com/srediag/shm-exchange/pkg/config"
	"github.com/srediag/shm-exchange/pkg/health"
	"github.com/srediag/shm-exchange/pkg/metrics"
	"github.com/srediag/shm-exchange/pkg/protocol"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("shmx", flag.ContinueOnError)
	host := fs.Bool("host", false, "run as host (default: worker)")
	pair := fs.Bool("pair", false, "run host and worker in this process")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "host" {
			cfg.Host = *host
		}
	})

	log, err := logging.New(cfg.Logging())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := append([]protocol.Option{
		protocol.WithLogger(log),
		protocol.WithMetrics(metrics.New(reg)),
	}, adapter.OTelOptions()...)

	if *pair {
		return runPair(cfg, reg, log, opts)
	}
	return runRole(cfg, reg, log, opts)
}

func runRole(cfg *config.Config, reg *prometheus.Registry, log *zap.Logger, opts []protocol.Option) int {
	r, err := protocol.New(cfg, opts...)
	if err != nil {
		log.Error("Invalid configuration", zap.Error(err))
		return 1
	}
	stop, err := serveAdmin(cfg, reg, r, log)
	if err != nil {
		return 1
	}
	defer stop()
	abortOnSignal(r, log)

	if err := r.Run(context.Background()); err != nil {
		log.Error("Exchange failed", zap.String("role", cfg.Role()), zap.Error(err))
		return 1
	}
	if h, ok := r.(*protocol.Host); ok {
		fmt.Println(h.Response())
	}
	return 0
}

func runPair(cfg *config.Config, reg *prometheus.Registry, log *zap.Logger, opts []protocol.Option) int {
	// separate handle used only to unlink the shared names on a signal
	cleaner, err := protocol.NewHost(cfg, protocol.WithLogger(log))
	if err != nil {
		log.Error("Invalid configuration", zap.Error(err))
		return 1
	}
	stop, err := serveAdmin(cfg, reg, nil, log)
	if err != nil {
		return 1
	}
	defer stop()
	abortOnSignal(cleaner, log)

	resp, err := protocol.Pair(context.Background(), cfg, opts...)
	if err != nil {
		log.Error("Exchange failed", zap.Error(err))
		return 1
	}
	fmt.Println(resp)
	return 0
}

func serveAdmin(cfg *config.Config, reg *prometheus.Registry, rep health.Reporter, log *zap.Logger) (func(), error) {
	if cfg.AdminAddr == "" {
		return func() {}, nil
	}
	a, err := startAdmin(cfg.AdminAddr, reg, rep, log)
	if err != nil {
		log.Error("Error starting admin server", zap.String("addr", cfg.AdminAddr), zap.Error(err))
		return nil, err
	}
	return a.stop, nil
}

type aborter interface {
	Abort() error
}

// abortOnSignal unlinks the shared names and exits with failure on SIGTERM
// or SIGINT. The blocked run is not waited for.
func abortOnSignal(a aborter, log *zap.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-ch
		log.Warn("Received signal, aborting", zap.Stringer("signal", sig))
		if err := a.Abort(); err != nil {
			log.Error("Error aborting", zap.Error(err))
		}
		_ = log.Sync()
		os.Exit(1)
	}()
}
