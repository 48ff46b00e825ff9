package kafka

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		envelope, err := DecodeEnvelope(val)
		if err != nil {
			return err
		}
		if envelope.AggregateID != "order-123" {
			t.Errorf("unexpected aggregate id %q", envelope.AggregateID)
		}
		return nil
	})

	producer := NewProducerFromSync(mockProducer, nil)
	err := producer.PublishEvent(context.Background(), TopicOrderEvents, "order-123", Envelope{
		ID:          "evt-1",
		AggregateID: "order-123",
		EventType:   "order.created",
		Payload:     []byte(`{}`),
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewProducerFromSync(mockProducer, nil)
	err := producer.PublishEvent(context.Background(), TopicOrderEvents, "order-123", map[string]string{"a": "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, mockProducer.Close())
}

func TestProducer_SendCanceledContext(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := producer.Send(ctx, TopicOrderEvents, "k", []byte(`{}`), nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, mockProducer.Close())
}

func TestNewSaramaConfig(t *testing.T) {
	cfg := NewSaramaConfig("")
	assert.Equal(t, defaultClientID, cfg.ClientID)
	assert.True(t, cfg.Producer.Idempotent)
	assert.Equal(t, 1, cfg.Net.MaxOpenRequests)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
}

func TestDecodeEnvelope(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`not-json`))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"id":"1"}`))
	assert.Error(t, err, "event_type is required")

	envelope, err := DecodeEnvelope([]byte(`{"id":"1","event_type":"order.created","payload":{"x":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "1", envelope.Key())
}
