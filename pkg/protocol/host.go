package protocol

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/srediag/shm-exchange/pkg/config"
)

// Host starts the exchange: it writes the request, waits for the worker and
// reads the response. It owns the shared names and removes them on exit.
type Host struct {
	*service
	response string
}

// NewHost returns an idle host for cfg. cfg is copied; its Host field is
// ignored.
func NewHost(cfg *config.Config, opts ...Option) (*Host, error) {
	s, err := newService(cfg, true, opts)
	if err != nil {
		return nil, err
	}
	return &Host{service: s}, nil
}

// Run performs one exchange. A Host can run only once.
func (h *Host) Run(ctx context.Context) error {
	ctx, end, err := h.begin(ctx)
	if err != nil {
		return err
	}
	err = h.run(ctx)
	end(err)
	return err
}

func (h *Host) run(ctx context.Context) error {
	if err := h.startListener(ctx); err != nil {
		return h.fail(err)
	}
	h.setState(StateExchanging)

	t := turn{s: h.service}
	n, err := t.write(ctx, []byte(h.cfg.Request))
	if err != nil {
		return h.fail(fmt.Errorf("write request: %w", err))
	}
	if err := h.passTurn(ctx, t, n); err != nil {
		return h.fail(err)
	}
	h.log.Info("Request sent", zap.Int("bytes", n))

	t, n, err = h.awaitTurn(ctx)
	if err != nil {
		return h.fail(err)
	}
	resp, err := t.read(ctx, n)
	if err != nil {
		return h.fail(fmt.Errorf("read response: %w", err))
	}
	h.response = resp
	h.log.Info("Response received", zap.Int("bytes", n), zap.String("response", resp))

	h.finish()
	return nil
}

// Response is the worker's reply. It is set once Run has returned nil.
func (h *Host) Response() string { return h.response }
