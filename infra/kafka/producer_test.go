package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerConfiguresWriter(t *testing.T) {
	p := NewProducer(Config{
		Brokers: []string{"localhost:9092", "localhost:9093"},
		Topic:   "limitbook.marketdata",
		Async:   true,
	})

	w := p.writer
	assert.Equal(t, "limitbook.marketdata", w.Topic)
	assert.True(t, w.Async)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)

	require.NoError(t, p.Close())
}
