package protocol

import (
	"context"
	"fmt"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	"github.com/srediag/shm-exchange/pkg/config"
)

// Worker answers one request: it waits for the host, reads the request and
// writes it back followed by the configured marker.
type Worker struct {
	*service
	request string
}

// NewWorker returns an idle worker for cfg. cfg is copied; its Host field is
// ignored.
func NewWorker(cfg *config.Config, opts ...Option) (*Worker, error) {
	s, err := newService(cfg, false, opts)
	if err != nil {
		return nil, err
	}
	return &Worker{service: s}, nil
}

// Run performs one exchange. A Worker can run only once.
func (w *Worker) Run(ctx context.Context) error {
	ctx, end, err := w.begin(ctx)
	if err != nil {
		return err
	}
	err = w.run(ctx)
	end(err)
	return err
}

func (w *Worker) run(ctx context.Context) error {
	if err := w.startListener(ctx); err != nil {
		return w.fail(err)
	}

	t, n, err := w.awaitTurn(ctx)
	if err != nil {
		return w.fail(err)
	}
	w.setState(StateExchanging)
	req, err := t.read(ctx, n)
	if err != nil {
		return w.fail(fmt.Errorf("read request: %w", err))
	}
	w.request = req
	w.log.Info("Request received", zap.Int("bytes", n), zap.String("request", req))

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	w.respond(buf, req)

	n, err = t.write(ctx, buf.B)
	if err != nil {
		return w.fail(fmt.Errorf("write response: %w", err))
	}
	if err := w.passTurn(ctx, t, n); err != nil {
		return w.fail(err)
	}
	w.log.Info("Response sent", zap.Int("bytes", n))

	w.finish()
	return nil
}

func (w *Worker) respond(buf *bytebufferpool.ByteBuffer, req string) {
	_, _ = buf.WriteString(req)
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(w.cfg.ResponseMarker)
}

// Request is the payload read from the host. It is set once Run has
// returned nil.
func (w *Worker) Request() string { return w.request }
