package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/fulfillment/internal/messaging"
	inventorysvc "github.com/Additional-Code/fulfillment/internal/service/inventory"
	ordersvc "github.com/Additional-Code/fulfillment/internal/service/order"
	verificationsvc "github.com/Additional-Code/fulfillment/internal/service/verification"
	"github.com/Additional-Code/fulfillment/pkg/errorbank"
)

type stubRetrier struct {
	calls []int64
	err   error
}

func (s *stubRetrier) RetryDispatch(_ context.Context, codeID int64) error {
	s.calls = append(s.calls, codeID)
	return s.err
}

func envelope(t *testing.T, eventType string, payload any) messaging.Envelope {
	t.Helper()
	env, err := messaging.NewEnvelope(eventType, payload, time.Now())
	require.NoError(t, err)
	return env
}

func TestSMSRetryHandler(t *testing.T) {
	ev := verificationsvc.SMSRetryEvent{CodeID: 7, OrderID: 3, Attempt: 2}

	cases := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "resent"},
		{name: "gateway still failing", err: errorbank.ExternalService("sms gateway down")},
		{name: "storage failure", err: errors.New("connection reset"), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retrier := &stubRetrier{err: tc.err}
			reg := smsRetry(zaptest.NewLogger(t), retrier)
			assert.Equal(t, verificationsvc.EventSMSRetry, reg.EventType)

			err := reg.Handler(context.Background(), envelope(t, verificationsvc.EventSMSRetry, ev))
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, []int64{7}, retrier.calls)
		})
	}
}

func TestSMSRetryHandlerDropsBadPayload(t *testing.T) {
	retrier := &stubRetrier{}
	reg := smsRetry(zaptest.NewLogger(t), retrier)

	env := messaging.Envelope{Type: verificationsvc.EventSMSRetry, Payload: []byte(`"nope"`)}
	require.NoError(t, reg.Handler(context.Background(), env))
	assert.Empty(t, retrier.calls)
}

func TestLoggingHandlers(t *testing.T) {
	logger := zaptest.NewLogger(t)

	alerts := NewThresholdAlertHandler(logger)
	assert.Equal(t, inventorysvc.EventThresholdCrossed, alerts.EventType)
	require.NoError(t, alerts.Handler(context.Background(), envelope(t, alerts.EventType, inventorysvc.ThresholdAlert{
		ProductID: 1, Level: inventorysvc.LevelCritical, FinalInventory: 2, MinStockLevel: 5,
	})))

	transitions := NewTransitionHandler(logger)
	assert.Equal(t, ordersvc.EventTransitioned, transitions.EventType)
	require.NoError(t, transitions.Handler(context.Background(), envelope(t, transitions.EventType, ordersvc.TransitionedEvent{
		OrderID: 1, From: "dispatched", To: "delivered",
	})))
}
