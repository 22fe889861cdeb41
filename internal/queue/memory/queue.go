// Package memory provides a channel-backed feed queue for memory mode
// and tests, standing in for Kafka.
package memory

import (
	"context"
	"sync"

	"labwatch/internal/queue"
)

// Queue implements both Producer and Consumer over one buffered channel,
// giving in-process pub/sub with the same interface the Kafka transport
// satisfies. Safe for concurrent use.
type Queue struct {
	messages chan *queue.Message
	closed   bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewQueue creates a queue with the given buffer size. Publish blocks
// once the buffer fills until a consumer drains it or the context is
// canceled.
func NewQueue(bufferSize int) *Queue {
	return &Queue{
		messages: make(chan *queue.Message, bufferSize),
	}
}

// Publish enqueues one message.
func (q *Queue) Publish(ctx context.Context, msg *queue.Message) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	select {
	case q.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start delivers messages to the handler until the context is canceled
// or the queue is closed. A handler error drops the message; unlike the
// Kafka transport there is no redelivery.
func (q *Queue) Start(ctx context.Context, handler queue.MessageHandler) error {
	q.wg.Add(1)
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-q.messages:
			if !ok {
				return nil
			}
			_ = handler(ctx, msg)
		}
	}
}

// Close stops the queue. A running consumer drains what is already
// buffered and then returns.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.messages)
	q.wg.Wait()
	return nil
}

// Len reports how many messages are buffered. Used by tests.
func (q *Queue) Len() int {
	return len(q.messages)
}
