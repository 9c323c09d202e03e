/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	queuepkg "github.com/Workiva/go-datastructures/queue"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"

	"github.com/srediag/shm-exchange/internal/logging"
)

// default hint for the queue's initial capacity; one message per turn
// means it never grows in practice.
const loopbackQueueCap = 4

// queues shared by every Loopback in the process, keyed by queue name.
var loopbackQueues = cmap.New[*queue]()

type queue struct {
	name string
	q    *queuepkg.Queue
}

func lookupQueue(name string) *queue {
	return loopbackQueues.Upsert(name, nil, func(exist bool, inMap *queue, _ *queue) *queue {
		if exist && !inMap.q.Disposed() {
			return inMap
		}
		return &queue{name: name, q: queuepkg.New(loopbackQueueCap)}
	})
}

func removeQueue(name string) {
	if q, ok := loopbackQueues.Pop(name); ok {
		q.q.Dispose()
	}
}

func (q *queue) put(msg string) error {
	if err := q.q.Put(msg); err != nil {
		if errors.Is(err, queuepkg.ErrDisposed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (q *queue) pop(ctx context.Context) (string, error) {
	var (
		items []interface{}
		err   error
	)
	if deadline, ok := ctx.Deadline(); ok {
		wait := time.Until(deadline)
		if wait <= 0 {
			// Poll treats a non-positive timeout as "wait forever"
			wait = time.Nanosecond
		}
		items, err = q.q.Poll(1, wait)
	} else {
		items, err = q.q.Get(1)
	}
	switch {
	case errors.Is(err, queuepkg.ErrTimeout):
		return "", ErrTimeout
	case errors.Is(err, queuepkg.ErrDisposed):
		return "", ErrClosed
	case err != nil:
		return "", err
	case len(items) == 0:
		return "", ErrClosed
	}
	msg, ok := items[0].(string)
	if !ok {
		return "", fmt.Errorf("invalid queue element type %T", items[0])
	}
	return msg, nil
}

// Loopback is an in-process Channel. Two Loopbacks connected with swapped
// queue names talk to each other; it stands in for message queues when both
// roles run in one process.
type Loopback struct {
	in  *queue
	out *queue
	log *zap.Logger
}

// NewLoopback returns a disconnected in-process channel.
func NewLoopback(logger *zap.Logger) *Loopback {
	return &Loopback{log: logging.OrNop(logger).Named("loopback")}
}

func (l *Loopback) Connect(ctx context.Context, inbound, outbound string) error {
	if l.in != nil {
		return ErrConnected
	}
	if inbound == "" || outbound == "" {
		return fmt.Errorf("connect loopback: empty queue name")
	}
	l.in = lookupQueue(inbound)
	l.out = lookupQueue(outbound)
	return nil
}

func (l *Loopback) SendWait(ctx context.Context, text string) error {
	if l.out == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.out.put(text); err != nil {
		l.log.Error("Error sending message", zap.String("queue", l.out.name), zap.Error(err))
		return fmt.Errorf("send on %s: %w", l.out.name, err)
	}
	return nil
}

func (l *Loopback) ReceiveWait(ctx context.Context) (string, error) {
	if l.in == nil {
		return "", ErrNotConnected
	}
	msg, err := l.in.pop(ctx)
	if err != nil {
		l.log.Error("Error receiving message", zap.String("queue", l.in.name), zap.Error(err))
		return "", fmt.Errorf("receive on %s: %w", l.in.name, err)
	}
	return msg, nil
}

func (l *Loopback) Disconnect(owner bool) error {
	if owner {
		var names []string
		for _, q := range []*queue{l.in, l.out} {
			if q != nil {
				names = append(names, q.name)
			}
		}
		_ = l.Remove(names...)
	}
	l.in, l.out = nil, nil
	return nil
}

// Remove drops the named queues from the process registry and wakes any
// waiter with ErrClosed.
func (l *Loopback) Remove(names ...string) error {
	for _, name := range names {
		removeQueue(name)
	}
	return nil
}
