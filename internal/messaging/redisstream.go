package messaging

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisStreamPublisher creates a publisher writing to Redis streams.
func NewRedisStreamPublisher(client redis.UniversalClient, logger *zap.Logger) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, NewZapLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create redis stream publisher: %w", err)
	}

	return pub, nil
}

// NewRedisStreamSubscriber creates a subscriber reading Redis streams as consumerGroup.
func NewRedisStreamSubscriber(
	client redis.UniversalClient, consumerGroup string, logger *zap.Logger,
) (message.Subscriber, error) {
	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: consumerGroup,
	}, NewZapLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create redis stream subscriber: %w", err)
	}

	return sub, nil
}
