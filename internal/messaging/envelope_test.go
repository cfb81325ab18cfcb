package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureClient struct {
	noopClient
	keys   []string
	values [][]byte
}

func (c *captureClient) Publish(_ context.Context, key, value []byte) error {
	c.keys = append(c.keys, string(key))
	c.values = append(c.values, value)
	return nil
}

func TestPublishThenDecode(t *testing.T) {
	client := &captureClient{}
	payload := map[string]any{"order_id": 12, "to": "finance_approved"}

	require.NoError(t, Publish(context.Background(), client, "order-12", "order.transitioned", payload))
	require.Len(t, client.values, 1)
	assert.Equal(t, "order-12", client.keys[0])

	env, err := Decode(Message{Value: client.values[0]})
	require.NoError(t, err)
	assert.Equal(t, "order.transitioned", env.Type)
	assert.NotEmpty(t, env.ID)
	assert.WithinDuration(t, time.Now(), env.OccurredAt, time.Minute)

	var got struct {
		OrderID int64  `json:"order_id"`
		To      string `json:"to"`
	}
	require.NoError(t, env.Bind(&got))
	assert.Equal(t, int64(12), got.OrderID)
}

func TestDecodeRejectsUntypedMessages(t *testing.T) {
	_, err := Decode(Message{Value: []byte(`{"id":"x"}`)})
	assert.Error(t, err)

	_, err = Decode(Message{Value: []byte(`not json`)})
	assert.Error(t, err)
}
