package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// PAYMENT_SET まで進める
func (e *testEnv) paidCheckout(t *testing.T, id model.Identity, cartID string) CheckoutView {
	t.Helper()
	co := e.checkoutToShipping(t, id, cartID, ShippingMethodStandard)
	e.expectPayment(model.PaymentStatusSucceeded, "pi_"+co.ID).Once()
	view, err := e.checkout.ProcessPayment(context.Background(), id, co.ID, PaymentInput{Method: "card"})
	require.NoError(t, err)
	require.Equal(t, model.CheckoutStatusPaymentSet, view.Status)
	return view
}

func TestOrderMaterializer_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := model.Anonymous("sess-1")
	a := env.defineVariant(t, "SKU-A", 1200, 10)
	b := env.defineVariant(t, "SKU-B", 800, 5)
	cart := env.readyCart(t, guest, line{a.ID, 2}, line{b.ID, 1})

	co := env.paidCheckout(t, guest, cart.ID)
	assert.Equal(t, int64(2), env.availability(t, a.ID).Reserved)

	env.notifier.On("NotifyOrderCreated", mock.Anything, mock.AnythingOfType("model.Order")).Return(nil).Once()

	order, err := env.orders.CompleteCheckout(ctx, guest, co.ID)
	require.NoError(t, err)

	assert.Len(t, order.Items, 2)
	assert.Equal(t, co.ID, order.CheckoutSessionID)
	assert.Equal(t, cart.ID, order.CartID)
	assert.Equal(t, model.OwnerKindAnonymous, order.OwnerKind)
	assert.Equal(t, "sess-1", order.OwnerRef)
	assert.Equal(t, "buyer@example.com", order.Email)
	assert.Equal(t, int64(3200), order.Subtotal)
	assert.Equal(t, int64(500), order.ShippingTotal)
	assert.Equal(t, int64(3700), order.GrandTotal)
	assert.Equal(t, "Taro Yamada", order.ShippingAddress.Name)
	assert.Equal(t, ShippingMethodStandard, order.ShippingMethodID)
	assert.Equal(t, "pi_"+co.ID, order.PaymentIntentID)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-20260102-"), order.OrderNumber)

	skus := []string{}
	for _, it := range order.Items {
		skus = append(skus, it.SKU)
		assert.Equal(t, it.Quantity*it.UnitPrice, it.LineTotal)
		assert.Equal(t, "M", it.Attributes.Data()["size"])
	}
	assert.ElementsMatch(t, []string{"SKU-A", "SKU-B"}, skus)

	assert.Equal(t, model.CartStatusCompleted, env.cartStatus(t, cart.ID))
	stored := env.storedCheckout(t, co.ID)
	assert.Equal(t, model.CheckoutStatusCompleted, stored.Status)
	assert.Equal(t, order.ID, stored.OrderID)

	availA := env.availability(t, a.ID)
	assert.Equal(t, int64(8), availA.OnHand)
	assert.Equal(t, int64(0), availA.Reserved)
	availB := env.availability(t, b.ID)
	assert.Equal(t, int64(4), availB.OnHand)
	assert.Equal(t, int64(0), availB.Reserved)
	assert.Empty(t, env.heldReservations(t, co.ID))

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.CheckoutsCompleted))
	env.notifier.AssertExpectations(t)

	logs, err := env.audits.List(ctx, AuditLogQuery{Action: string(model.AuditActionOrderCreated), ResourceID: order.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].AfterJSON, order.OrderNumber)
}

func TestOrderMaterializer_CompleteIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := model.Anonymous("sess-1")
	a := env.defineVariant(t, "SKU-A", 1000, 10)
	cart := env.readyCart(t, guest, line{a.ID, 3})
	co := env.paidCheckout(t, guest, cart.ID)

	env.notifier.On("NotifyOrderCreated", mock.Anything, mock.Anything).Return(nil)

	first, err := env.orders.CompleteCheckout(ctx, guest, co.ID)
	require.NoError(t, err)
	second, err := env.orders.CompleteCheckout(ctx, guest, co.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Len(t, second.Items, 1)

	avail := env.availability(t, a.ID)
	assert.Equal(t, int64(7), avail.OnHand)
	assert.Equal(t, int64(0), avail.Reserved)
	env.notifier.AssertNumberOfCalls(t, "NotifyOrderCreated", 1)
}

func TestOrderMaterializer_ConcurrentCompleteCreatesOneOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := model.Anonymous("sess-1")
	a := env.defineVariant(t, "SKU-A", 1000, 10)
	cart := env.readyCart(t, guest, line{a.ID, 4})
	co := env.paidCheckout(t, guest, cart.ID)

	env.notifier.On("NotifyOrderCreated", mock.Anything, mock.Anything).Return(nil)

	orders := make([]model.Order, 3)
	var g errgroup.Group
	for i := range orders {
		g.Go(func() error {
			o, err := env.orders.CompleteCheckout(ctx, guest, co.ID)
			orders[i] = o
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, o := range orders[1:] {
		assert.Equal(t, orders[0].ID, o.ID)
	}

	var count int64
	require.NoError(t, env.db.Model(&model.Order{}).Where("checkout_session_id = ?", co.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(6), env.availability(t, a.ID).OnHand)
	env.notifier.AssertNumberOfCalls(t, "NotifyOrderCreated", 1)
}

func TestOrderMaterializer_NotificationFailureKeepsOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := model.Anonymous("sess-1")
	a := env.defineVariant(t, "SKU-A", 1000, 10)
	cart := env.readyCart(t, guest, line{a.ID, 1})
	co := env.paidCheckout(t, guest, cart.ID)

	env.notifier.On("NotifyOrderCreated", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

	order, err := env.orders.CompleteCheckout(ctx, guest, co.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, model.CheckoutStatusCompleted, env.storedCheckout(t, co.ID).Status)
}

func TestOrderMaterializer_PendingPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := model.Anonymous("sess-1")
	a := env.defineVariant(t, "SKU-A", 1000, 10)
	cart := env.readyCart(t, guest, line{a.ID, 1})
	co := env.checkoutToShipping(t, guest, cart.ID, ShippingMethodStandard)

	env.expectPayment(model.PaymentStatusPending, "pi_pending").Once()
	view, err := env.checkout.ProcessPayment(ctx, guest, co.ID, PaymentInput{Method: "konbini"})
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusPaymentSet, view.Status)
	assert.Equal(t, model.PaymentStatusPending, view.PaymentStatus)

	t.Run("still pending", func(t *testing.T) {
		env.payments.On("GetIntent", mock.Anything, "pi_pending").
			Return(PaymentResult{IntentID: "pi_pending", Status: model.PaymentStatusPending}, nil).Once()

		_, err := env.orders.CompleteCheckout(ctx, guest, co.ID)
		assertCode(t, err, CodePaymentNotCompleted)
		assert.Equal(t, int64(1), env.availability(t, a.ID).Reserved)
	})

	t.Run("gateway unreachable", func(t *testing.T) {
		env.payments.On("GetIntent", mock.Anything, "pi_pending").
			Return(PaymentResult{}, errors.New("timeout")).Once()

		_, err := env.orders.CompleteCheckout(ctx, guest, co.ID)
		assertCode(t, err, CodePaymentNotCompleted)
	})

	t.Run("settled", func(t *testing.T) {
		env.payments.On("GetIntent", mock.Anything, "pi_pending").
			Return(PaymentResult{IntentID: "pi_pending", Status: model.PaymentStatusSucceeded}, nil).Once()
		env.notifier.On("NotifyOrderCreated", mock.Anything, mock.Anything).Return(nil).Once()

		order, err := env.orders.CompleteCheckout(ctx, guest, co.ID)
		require.NoError(t, err)
		assert.Equal(t, "pi_pending", order.PaymentIntentID)

		stored := env.storedCheckout(t, co.ID)
		assert.Equal(t, model.CheckoutStatusCompleted, stored.Status)
		assert.Equal(t, model.PaymentStatusSucceeded, stored.PaymentStatus)
		assert.Equal(t, int64(9), env.availability(t, a.ID).OnHand)
	})
}

func TestOrderMaterializer_OrderIsFrozenCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := model.Identified("cust-1")
	a := env.defineVariant(t, "SKU-A", 1000, 10)
	cart := env.readyCart(t, customer, line{a.ID, 2})
	co := env.paidCheckout(t, customer, cart.ID)

	env.notifier.On("NotifyOrderCreated", mock.Anything, mock.Anything).Return(nil)
	order, err := env.orders.CompleteCheckout(ctx, customer, co.ID)
	require.NoError(t, err)

	_, err = env.admin.ChangePrice(ctx, "system", a.ID, 9999)
	require.NoError(t, err)

	got, err := env.orders.GetOrder(ctx, customer, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(1000), got.Items[0].UnitPrice)
	assert.Equal(t, int64(2000), got.Subtotal)
	assert.Equal(t, "SKU-A", got.Items[0].SKU)

	_, err = env.orders.GetOrder(ctx, model.Identified("cust-2"), order.ID)
	assertKind(t, err, KindNotFound)
	_, err = env.orders.GetOrder(ctx, model.Anonymous("cust-1"), order.ID)
	assertKind(t, err, KindNotFound)
	_, err = env.orders.GetOrder(ctx, customer, "missing")
	assertKind(t, err, KindNotFound)
}

func TestOrderMaterializer_ExpiredAfterPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := model.Anonymous("sess-1")
	a := env.defineVariant(t, "SKU-A", 1000, 10)
	cart := env.readyCart(t, guest, line{a.ID, 2})
	co := env.paidCheckout(t, guest, cart.ID)

	env.clock.Advance(env.cfg.CheckoutTTL + time.Second)

	_, err := env.orders.CompleteCheckout(ctx, guest, co.ID)
	assertKind(t, err, KindNotFound)
	assertCode(t, err, CodeCheckoutExpired)

	// 引当はスイーパーが戻すまで残る
	assert.Equal(t, int64(2), env.availability(t, a.ID).Reserved)
	assert.Equal(t, int64(10), env.availability(t, a.ID).OnHand)
	env.notifier.AssertNotCalled(t, "NotifyOrderCreated", mock.Anything, mock.Anything)
}
