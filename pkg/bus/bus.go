// Package bus decouples the channel adapter from the agent loop with
// buffered inbound/reply queues.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed MessageBus.
var ErrBusClosed = errors.New("message bus closed")

type MessageBus struct {
	inbound chan InboundContext
	replies chan Reply
	done    chan struct{}
	closed  atomic.Bool
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound: make(chan InboundContext, 100),
		replies: make(chan Reply, 100),
		done:    make(chan struct{}),
	}
}

func (mb *MessageBus) PublishInbound(ctx context.Context, msg InboundContext) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case mb.inbound <- msg:
		return nil
	case <-mb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundContext, bool) {
	select {
	case msg, ok := <-mb.inbound:
		return msg, ok
	case <-mb.done:
		return InboundContext{}, false
	case <-ctx.Done():
		return InboundContext{}, false
	}
}

func (mb *MessageBus) PublishReply(ctx context.Context, msg Reply) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case mb.replies <- msg:
		return nil
	case <-mb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *MessageBus) ConsumeReply(ctx context.Context) (Reply, bool) {
	select {
	case msg, ok := <-mb.replies:
		return msg, ok
	case <-mb.done:
		return Reply{}, false
	case <-ctx.Done():
		return Reply{}, false
	}
}

func (mb *MessageBus) Close() {
	if mb.closed.CompareAndSwap(false, true) {
		close(mb.done)
	}
}
