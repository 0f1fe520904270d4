package container

import (
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/doclinks/internal/audit"
	auditstore "github.com/serroba/doclinks/internal/audit/store"
	"github.com/serroba/doclinks/internal/messaging"
	"go.uber.org/zap"
)

const auditConsumerGroup = "doclinks-audit"

// ConsumerGroupPackage provides the consumers that persist audit events.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i).Named("audit")

		sub, err := messaging.NewRedisStreamSubscriber(client, auditConsumerGroup, logger)
		if err != nil {
			return nil, err
		}

		events := auditstore.NewNoop(logger)

		group := messaging.NewConsumerGroup(sub, logger)
		group.Add(messaging.NewConsumer[audit.LinkIssuedEvent](sub, audit.TopicLinkIssued, events.SaveLinkIssued, logger))
		group.Add(messaging.NewConsumer[audit.LinksReclaimedEvent](sub, audit.TopicLinksReclaimed, events.SaveLinksReclaimed, logger))

		return group, nil
	})
}
