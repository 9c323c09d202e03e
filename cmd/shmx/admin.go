package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/srediag/shm-exchange/pkg/health"
)

// adminServer serves metrics, health probes and pprof while a role runs.
type adminServer struct {
	srv *http.Server
	log *zap.Logger
}

func newAdminMux(reg *prometheus.Registry, rep health.Reporter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	if rep != nil {
		h := health.NewHandler(rep)
		mux.HandleFunc("/live", h.LiveEndpoint)
		mux.HandleFunc("/ready", h.ReadyEndpoint)
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// startAdmin listens on addr and serves in the background. The listener is
// bound before returning so that a bad address fails the run up front.
func startAdmin(addr string, reg *prometheus.Registry, rep health.Reporter, log *zap.Logger) (*adminServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	a := &adminServer{
		srv: &http.Server{
			Handler:           newAdminMux(reg, rep),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
	go func() {
		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Admin server stopped", zap.Error(err))
		}
	}()
	log.Info("Admin server listening", zap.String("addr", ln.Addr().String()))
	return a, nil
}

func (a *adminServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Warn("Error stopping admin server", zap.Error(err))
	}
}
