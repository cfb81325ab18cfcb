package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/fulfillment/internal/config"
)

func TestDeliverRedeliversUntilSuccess(t *testing.T) {
	calls := 0
	handler := func(context.Context, Message) error {
		calls++
		if calls < 3 {
			return errors.New("sms gateway timeout")
		}
		return nil
	}

	err := deliver(context.Background(), handler, Message{Offset: 9}, 5, time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDeliverGivesUpAfterMaxDeliveries(t *testing.T) {
	calls := 0
	failure := errors.New("order not found")
	handler := func(context.Context, Message) error {
		calls++
		return failure
	}

	err := deliver(context.Background(), handler, Message{}, 2, time.Millisecond, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 2, calls)

	calls = 0
	err = deliver(context.Background(), handler, Message{}, 0, time.Millisecond, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 1, calls)
}

func TestDeliverStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := func(context.Context, Message) error {
		cancel()
		return errors.New("broker unavailable")
	}

	err := deliver(ctx, handler, Message{}, 5, time.Minute, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeaderMap(t *testing.T) {
	assert.Nil(t, headerMap(nil))
	assert.Equal(t, map[string]string{"event-type": "order.transitioned"},
		headerMap([]kafka.Header{{Key: "event-type", Value: []byte("order.transitioned")}}))
}

func TestNewClientFallsBackToNoop(t *testing.T) {
	client, err := NewClient(fxtest.NewLifecycle(t), config.Config{Messaging: config.Messaging{
		Enabled: false,
		Driver:  "kafka",
		Kafka:   config.Kafka{Topic: "fulfillment.events"},
	}}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "fulfillment.events", client.Topic())
	assert.NoError(t, client.Publish(context.Background(), []byte("order-1"), []byte("{}")))

	_, err = NewClient(fxtest.NewLifecycle(t), config.Config{Messaging: config.Messaging{Enabled: true, Driver: "rabbitmq"}}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
