package protocol

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/srediag/shm-exchange/pkg/channel"
)

// stubChannel is a scripted Channel that records how it was used.
type stubChannel struct {
	mu sync.Mutex

	connectErr error
	sendErr    error
	recv       []string
	recvErr    error

	connects    int
	sent        []string
	receives    int
	disconnects []bool
	removed     []string
}

func (c *stubChannel) factory() ChannelFactory {
	return func(*zap.Logger) channel.Channel { return c }
}

func (c *stubChannel) Connect(ctx context.Context, inbound, outbound string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	return c.connectErr
}

func (c *stubChannel) SendWait(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *stubChannel) ReceiveWait(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receives++
	if c.recvErr != nil {
		return "", c.recvErr
	}
	if len(c.recv) == 0 {
		return "", channel.ErrTimeout
	}
	msg := c.recv[0]
	c.recv = c.recv[1:]
	return msg, nil
}

func (c *stubChannel) Disconnect(owner bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects = append(c.disconnects, owner)
	return nil
}

func (c *stubChannel) Remove(names ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, names...)
	return nil
}
