package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Runnable represents a component that can be started and shutdown.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

// TopicConsumer is a Runnable bound to one topic that counts its outcomes.
type TopicConsumer interface {
	Runnable
	Topic() string
	Stats() Stats
}

// ConsumerGroup runs the audit consumers over one shared subscriber.
type ConsumerGroup struct {
	consumers  []Runnable
	subscriber message.Subscriber
	logger     *zap.Logger
}

// NewConsumerGroup creates a new consumer group.
func NewConsumerGroup(subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Add registers a consumer to the group.
func (g *ConsumerGroup) Add(consumer Runnable) {
	g.consumers = append(g.consumers, consumer)
}

// Start starts every consumer. If one fails, those already started are
// stopped in reverse order.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	for i, consumer := range g.consumers {
		if err := consumer.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = g.consumers[j].Shutdown()
			}

			return fmt.Errorf("start consumer %d: %w", i, err)
		}
	}

	g.logger.Info("consumer group started",
		zap.Int("count", len(g.consumers)),
		zap.Strings("topics", g.Topics()),
	)

	return nil
}

// Topics lists the topics of the topic-bound consumers.
func (g *ConsumerGroup) Topics() []string {
	topics := make([]string, 0, len(g.consumers))

	for _, consumer := range g.consumers {
		if tc, ok := consumer.(TopicConsumer); ok {
			topics = append(topics, tc.Topic())
		}
	}

	return topics
}

// Shutdown stops every consumer, then closes the subscriber. All failures
// are returned joined.
func (g *ConsumerGroup) Shutdown() error {
	var errs []error

	for _, consumer := range g.consumers {
		if err := consumer.Shutdown(); err != nil {
			errs = append(errs, err)
		}

		if tc, ok := consumer.(TopicConsumer); ok {
			s := tc.Stats()
			g.logger.Info("consumer stopped",
				zap.String("topic", tc.Topic()),
				zap.Int64("handled", s.Handled),
				zap.Int64("failed", s.Failed),
				zap.Int64("dropped", s.Dropped),
			)
		}
	}

	if err := g.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close subscriber: %w", err))
	}

	g.logger.Info("consumer group stopped")

	return errors.Join(errs...)
}
