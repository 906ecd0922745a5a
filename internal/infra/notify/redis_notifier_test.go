package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/logger"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type publisherMock struct{ mock.Mock }

func (m *publisherMock) Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd {
	args := m.Called(ctx, channel, message)
	cmd := goredis.NewIntCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func sampleOrder() model.Order {
	return model.Order{
		ID:                "order-1",
		OrderNumber:       "ORD-20260101-ABCDEF0123",
		CheckoutSessionID: "chk-1",
		Email:             "a@example.com",
		Currency:          "JPY",
		GrandTotal:        2500,
		Items:             []model.OrderItem{{ID: "i1"}, {ID: "i2"}},
		CreatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRedisNotifier_PublishesOrderEvent(t *testing.T) {
	pub := new(publisherMock)
	n := newRedisNotifier(pub, "orders.created", logger.NewNop())

	var sent []byte
	pub.On("Publish", mock.Anything, "orders.created", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).([]byte) }).
		Return(nil).Once()

	require.NoError(t, n.NotifyOrderCreated(context.Background(), sampleOrder()))

	var ev OrderCreatedEvent
	require.NoError(t, json.Unmarshal(sent, &ev))
	assert.Equal(t, "order.created", ev.Type)
	assert.Equal(t, "order-1", ev.OrderID)
	assert.Equal(t, "ORD-20260101-ABCDEF0123", ev.OrderNumber)
	assert.Equal(t, int64(2500), ev.GrandTotal)
	assert.Equal(t, 2, ev.ItemCount)
	pub.AssertExpectations(t)
}

func TestRedisNotifier_WrapsPublishError(t *testing.T) {
	pub := new(publisherMock)
	n := newRedisNotifier(pub, "orders.created", logger.NewNop())

	boom := errors.New("connection refused")
	pub.On("Publish", mock.Anything, "orders.created", mock.Anything).Return(boom).Once()

	err := n.NotifyOrderCreated(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestLogNotifier_NeverFails(t *testing.T) {
	n := NewLogNotifier(logger.NewNop())
	assert.NoError(t, n.NotifyOrderCreated(context.Background(), sampleOrder()))
}
