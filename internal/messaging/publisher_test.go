package messaging_test

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/doclinks/internal/audit"
	"github.com/serroba/doclinks/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	messages   []*message.Message
	topic      string
	publishErr error
	closeErr   error
}

func (m *mockPublisher) Publish(topic string, msgs ...*message.Message) error {
	if m.publishErr != nil {
		return m.publishErr
	}

	m.topic = topic
	m.messages = append(m.messages, msgs...)

	return nil
}

func (m *mockPublisher) Close() error {
	return m.closeErr
}


func TestNewPublishFunc(t *testing.T) {
	t.Run("publishes event to its topic", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := messaging.NewPublishFunc[audit.LinkIssuedEvent](mock, audit.TopicLinkIssued)

		err := publish(&audit.LinkIssuedEvent{LinkID: "abc", DocumentID: "doc-1"})

		require.NoError(t, err)
		assert.Equal(t, audit.TopicLinkIssued, mock.topic)
		require.Len(t, mock.messages, 1)
		assert.Contains(t, string(mock.messages[0].Payload), `"linkId":"abc"`)
		assert.NotEmpty(t, mock.messages[0].UUID)
		assert.Equal(t, audit.TopicLinkIssued, mock.messages[0].Metadata.Get(messaging.MetadataTopic))
	})

	t.Run("each event gets its own message id", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := messaging.NewPublishFunc[audit.LinksReclaimedEvent](mock, audit.TopicLinksReclaimed)

		require.NoError(t, publish(&audit.LinksReclaimedEvent{RunID: "r1"}))
		require.NoError(t, publish(&audit.LinksReclaimedEvent{RunID: "r2"}))

		require.Len(t, mock.messages, 2)
		assert.NotEqual(t, mock.messages[0].UUID, mock.messages[1].UUID)
	})

	t.Run("discard drops events", func(t *testing.T) {
		publish := messaging.Discard[audit.LinkIssuedEvent]()

		assert.NoError(t, publish(&audit.LinkIssuedEvent{LinkID: "abc"}))
	})

	t.Run("returns error when publish fails", func(t *testing.T) {
		mock := &mockPublisher{publishErr: errors.New("publish error")}
		publish := messaging.NewPublishFunc[audit.LinkIssuedEvent](mock, audit.TopicLinkIssued)

		assert.Error(t, publish(&audit.LinkIssuedEvent{LinkID: "abc"}))
	})
}

func TestPublisherGroup(t *testing.T) {
	t.Run("returns underlying publisher", func(t *testing.T) {
		mock := &mockPublisher{}
		group := messaging.NewPublisherGroup(mock)

		assert.Equal(t, mock, group.Publisher())
	})

	t.Run("shuts down successfully", func(t *testing.T) {
		mock := &mockPublisher{}
		group := messaging.NewPublisherGroup(mock)

		err := group.Shutdown()

		require.NoError(t, err)
	})

	t.Run("returns error when close fails", func(t *testing.T) {
		mock := &mockPublisher{closeErr: errors.New("close error")}
		group := messaging.NewPublisherGroup(mock)

		err := group.Shutdown()

		assert.Error(t, err)
	})
}
