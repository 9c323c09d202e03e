package channel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/srediag/shm-exchange/internal/logging"
	"github.com/srediag/shm-exchange/internal/mq"
)

// MQueue is a Channel over POSIX message queues.
type MQueue struct {
	inbound  string
	outbound string
	recvFd   int
	sendFd   int
	msgSize  int
	log      *zap.Logger
}

// NewMQueue returns a disconnected POSIX message queue channel.
func NewMQueue(logger *zap.Logger) *MQueue {
	return &MQueue{
		recvFd: -1,
		sendFd: -1,
		log:    logging.OrNop(logger).Named("mq"),
	}
}

// Connect opens both queues, creating them when absent so that either side
// may start first.
func (q *MQueue) Connect(ctx context.Context, inbound, outbound string) error {
	if q.recvFd >= 0 || q.sendFd >= 0 {
		return ErrConnected
	}
	attr := &mq.Attr{MaxMsg: mq.DefaultMaxMsg, MsgSize: mq.DefaultMsgSize}
	recv, err := mq.Open(inbound, os.O_RDONLY, 0600, attr)
	if err != nil {
		q.log.Error("Error opening inbound queue", zap.String("queue", inbound), zap.Error(err))
		return err
	}
	send, err := mq.Open(outbound, os.O_WRONLY, 0600, attr)
	if err != nil {
		q.log.Error("Error opening outbound queue", zap.String("queue", outbound), zap.Error(err))
		_ = mq.Close(recv)
		return err
	}
	// an existing queue keeps the attributes it was created with
	a, err := mq.GetAttr(recv)
	if err != nil {
		q.log.Error("Error reading inbound queue attributes", zap.String("queue", inbound), zap.Error(err))
		_ = mq.Close(recv)
		_ = mq.Close(send)
		return err
	}
	q.inbound, q.outbound = inbound, outbound
	q.recvFd, q.sendFd = recv, send
	q.msgSize = a.MsgSize
	q.log.Debug("Message queues connected", zap.String("inbound", inbound), zap.String("outbound", outbound))
	return nil
}

// retry repeats op while the syscall is interrupted by a signal. Go's
// runtime preempts with signals, so EINTR is routine on long waits.
func retry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil || mq.IsInterrupted(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(&backoff.ZeroBackOff{}, ctx))
}

func deadlineOf(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}

// SendWait enqueues text on the outbound queue.
func (q *MQueue) SendWait(ctx context.Context, text string) error {
	if q.sendFd < 0 {
		return ErrNotConnected
	}
	msg := []byte(text)
	deadline := deadlineOf(ctx)
	err := retry(ctx, func() error {
		return mq.TimedSend(q.sendFd, msg, 0, deadline)
	})
	if err != nil {
		if mq.IsTimeout(err) {
			err = ErrTimeout
		}
		q.log.Error("Error sending message", zap.String("queue", q.outbound), zap.Error(err))
		return fmt.Errorf("send on %s: %w", q.outbound, err)
	}
	q.log.Debug("Message sent", zap.String("queue", q.outbound), zap.String("message", text))
	return nil
}

// ReceiveWait dequeues one message from the inbound queue.
func (q *MQueue) ReceiveWait(ctx context.Context) (string, error) {
	if q.recvFd < 0 {
		return "", ErrNotConnected
	}
	buf := make([]byte, q.msgSize)
	deadline := deadlineOf(ctx)
	var n int
	err := retry(ctx, func() error {
		var err error
		n, err = mq.TimedReceive(q.recvFd, buf, deadline)
		return err
	})
	if err != nil {
		if mq.IsTimeout(err) {
			err = ErrTimeout
		}
		q.log.Error("Error receiving message", zap.String("queue", q.inbound), zap.Error(err))
		return "", fmt.Errorf("receive on %s: %w", q.inbound, err)
	}
	msg := string(buf[:n])
	q.log.Debug("Message received", zap.String("queue", q.inbound), zap.String("message", msg))
	return msg, nil
}

// Disconnect closes both queue handles and removes the queues when owner.
func (q *MQueue) Disconnect(owner bool) error {
	var err error
	for _, fd := range []*int{&q.recvFd, &q.sendFd} {
		if *fd < 0 {
			continue
		}
		if e := mq.Close(*fd); e != nil {
			q.log.Warn("Error closing queue", zap.Error(e))
			err = multierr.Append(err, e)
		}
		*fd = -1
	}
	if owner {
		err = multierr.Append(err, q.Remove(q.inbound, q.outbound))
	}
	return err
}

// Remove unlinks the named queues. Open handles stay valid; queues that are
// already gone are skipped.
func (q *MQueue) Remove(names ...string) error {
	var err error
	for _, name := range names {
		if name == "" {
			continue
		}
		if e := mq.Unlink(name); e != nil && !errors.Is(e, os.ErrNotExist) {
			q.log.Warn("Error removing queue", zap.String("queue", name), zap.Error(e))
			err = multierr.Append(err, e)
		} else if e == nil {
			q.log.Info("Message queue removed", zap.String("queue", name))
		}
	}
	return err
}
