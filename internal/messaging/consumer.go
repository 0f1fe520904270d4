package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Handler processes a single event. A returned error nacks the message so the
// broker redelivers it.
type Handler[T any] func(ctx context.Context, event *T) error

// Stats counts message outcomes of one consumer.
type Stats struct {
	Handled int64 // acked after the handler succeeded
	Failed  int64 // nacked for redelivery
	Dropped int64 // acked without handling: malformed or misrouted
}

// Consumer subscribes to one topic and decodes its messages into T.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}

	handled atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewConsumer creates a consumer of topic that passes decoded events to handler.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
) *Consumer[T] {
	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger.With(zap.String("topic", topic)),
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Stats returns the outcome counters so far.
func (c *Consumer[T]) Stats() Stats {
	return Stats{
		Handled: c.handled.Load(),
		Failed:  c.failed.Load(),
		Dropped: c.dropped.Load(),
	}
}

// Start subscribes and processes messages in the background until ctx ends,
// the subscription closes, or Shutdown is called.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		close(c.done)

		return fmt.Errorf("subscribe %s: %w", c.topic, err)
	}

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer[T]) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer[T]) handleMessage(ctx context.Context, msg *message.Message) {
	logger := c.logger.With(zap.String("message_uuid", msg.UUID))

	// Streams may be shared; a message stamped for another topic is not ours.
	if topic := msg.Metadata.Get(MetadataTopic); topic != "" && topic != c.topic {
		logger.Warn("dropping misrouted event", zap.String("published_topic", topic))
		c.dropped.Add(1)
		msg.Ack()

		return
	}

	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// Redelivery cannot fix a malformed payload.
		logger.Error("dropping malformed event", zap.Error(err))
		c.dropped.Add(1)
		msg.Ack()

		return
	}

	if err := c.handler(ctx, &event); err != nil {
		logger.Error("failed to handle event", zap.Error(err))
		c.failed.Add(1)
		msg.Nack()

		return
	}

	c.handled.Add(1)
	msg.Ack()

	logger.Debug("processed event")
}

// Shutdown stops the consumer and waits for the in-flight message. It is a
// no-op for a consumer that was never started.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	<-c.done

	return nil
}
