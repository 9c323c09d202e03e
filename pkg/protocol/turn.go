package protocol

import (
	"context"
	"errors"
)

const (
	directionIn  = "in"
	directionOut = "out"
)

var errNoTurn = errors.New("segment accessed without holding the turn")

// turn is the right to touch the segment. The host holds one at the start of
// the exchange; otherwise a turn is only obtained from awaitTurn and given
// up through passTurn.
type turn struct {
	s *service
}

func (t turn) write(ctx context.Context, payload []byte) (int, error) {
	if t.s == nil {
		return 0, errNoTurn
	}
	if err := t.s.seg.Write(ctx, payload); err != nil {
		return 0, err
	}
	t.observe(directionOut, len(payload))
	return len(payload), nil
}

func (t turn) read(ctx context.Context, n int) (string, error) {
	if t.s == nil {
		return "", errNoTurn
	}
	text, err := t.s.seg.Read(ctx, n)
	if err != nil {
		return "", err
	}
	t.observe(directionIn, n)
	return text, nil
}

func (t turn) observe(direction string, n int) {
	m := t.s.metrics
	if m == nil {
		return
	}
	role := t.s.cfg.Role()
	m.PayloadBytes.WithLabelValues(role, direction).Observe(float64(n))
	m.SegmentSize.WithLabelValues(role).Set(float64(t.s.seg.MappedSize()))
}
