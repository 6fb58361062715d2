package messaging

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMessageLeavesTopicToWriter(t *testing.T) {
	msg := eventMessage([]byte("order-7"), []byte(`{"event_type":"order.shipped"}`))

	// The Writer already carries the topic; kafka-go rejects a message that
	// names it a second time before any broker I/O.
	assert.Empty(t, msg.Topic)
	assert.Equal(t, []byte("order-7"), msg.Key)
	assert.Equal(t, []byte(`{"event_type":"order.shipped"}`), msg.Value)

	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "content-type", msg.Headers[0].Key)
	assert.Equal(t, "application/json", string(msg.Headers[0].Value))
}

func TestWrapCopiesMessage(t *testing.T) {
	at := time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)
	raw := kafka.Message{
		Topic:  "hatchflow.orders",
		Key:    []byte("order-7"),
		Value:  []byte(`{}`),
		Offset: 42,
		Time:   at,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	msg := wrap(raw)
	assert.Equal(t, "hatchflow.orders", msg.Topic)
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, at, msg.Time)
	assert.Equal(t, map[string]string{"content-type": "application/json"}, msg.Headers)

	// The wrapped message must not alias the fetch buffers.
	raw.Key[0] = 'X'
	raw.Value[0] = 'X'
	assert.Equal(t, []byte("order-7"), msg.Key)
	assert.Equal(t, []byte(`{}`), msg.Value)
}
