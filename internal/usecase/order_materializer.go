package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// OrderMaterializer は決済済みのチェックアウトを注文に変える。
type OrderMaterializer struct {
	tx         repo.TransactionManager
	carts      repo.CartRepository
	items      repo.CartItemRepository
	checkouts  repo.CheckoutRepository
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	catalog    Catalog
	ledger     *InventoryLedger
	payments   PaymentGateway
	notifier   OrderNotifier
	ids        IDGenerator
	clock      Clock
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func NewOrderMaterializer(
	tx repo.TransactionManager,
	carts repo.CartRepository,
	items repo.CartItemRepository,
	checkouts repo.CheckoutRepository,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	catalog Catalog,
	ledger *InventoryLedger,
	payments PaymentGateway,
	notifier OrderNotifier,
	ids IDGenerator,
	clock Clock,
	m *metrics.Metrics,
	log *logger.Logger,
) *OrderMaterializer {
	return &OrderMaterializer{
		tx:         tx,
		carts:      carts,
		items:      items,
		checkouts:  checkouts,
		orders:     orders,
		orderItems: orderItems,
		catalog:    catalog,
		ledger:     ledger,
		payments:   payments,
		notifier:   notifier,
		ids:        ids,
		clock:      clock,
		metrics:    m,
		log:        log.With("component", "OrderMaterializer"),
	}
}

// 同じセッションの注文が先に作られていた
var errOrderRace = errors.New("order created concurrently")

// チェックアウト完了。完了済みなら既存の注文を返す。
func (m *OrderMaterializer) CompleteCheckout(ctx context.Context, id model.Identity, checkoutID string) (model.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderMaterializer.CompleteCheckout")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.id", checkoutID))

	s, cart, err := loadOwnedCheckout(ctx, m.checkouts, m.carts, id, checkoutID)
	if err != nil {
		return model.Order{}, err
	}
	if s.Status == model.CheckoutStatusCompleted {
		return m.orderForSession(ctx, s.ID)
	}

	now := m.clock.Now()
	if err := checkTransition(s, evCompleteCheckout, now); err != nil {
		return model.Order{}, err
	}

	paid := s.PaymentStatus
	if paid == model.PaymentStatusPending && s.PaymentIntentID != "" {
		// 保留中の決済は1回だけ問い合わせる
		res, err := m.payments.GetIntent(ctx, s.PaymentIntentID)
		if err != nil {
			m.log.Warn("payment intent lookup failed", "checkout_id", s.ID, "intent_id", s.PaymentIntentID, "error", err)
		} else {
			paid = res.Status
		}
	}
	if paid != model.PaymentStatusSucceeded {
		return model.Order{}, NewBusiness(CodePaymentNotCompleted, "payment not completed")
	}

	order, err := m.buildOrder(ctx, s, cart, now)
	if err != nil {
		return model.Order{}, err
	}

	won := false
	err = m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		succeeded := model.PaymentStatusSucceeded
		ok, err := r.Checkouts().Transition(ctx, s.ID, evCompleteCheckout.from, now, repo.CheckoutChanges{
			Status:        model.CheckoutStatusCompleted,
			PaymentStatus: &succeeded,
			OrderID:       &order.ID,
		})
		if err != nil {
			return NewInternal("db error", err)
		}
		if !ok {
			cur, err := r.Checkouts().FindByID(ctx, s.ID)
			if err != nil {
				return NewInternal("db error", err)
			}
			if cur.Status == model.CheckoutStatusCompleted {
				return nil
			}
			if terr := checkTransition(cur, evCompleteCheckout, now); terr != nil {
				return terr
			}
			return NewConflict("checkout changed concurrently", nil)
		}
		won = true

		if err := r.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return errOrderRace
			}
			return NewInternal("db error", err)
		}
		if err := r.OrderItems().CreateBulk(ctx, order.ID, order.Items); err != nil {
			return NewInternal("db error", err)
		}
		if _, err := m.ledger.commitHolds(ctx, r, s.ID); err != nil {
			return err
		}
		if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCompleted, now); err != nil {
			return NewInternal("db error", err)
		}

		actor := id.String()
		if err := writeTransitionAudit(ctx, r, actor, s.ID, model.CheckoutStatusPaymentSet, model.CheckoutStatusCompleted, now); err != nil {
			return err
		}
		return writeAudit(ctx, r, actor, model.AuditActionOrderCreated, model.AuditResourceOrder, order.ID,
			nil, map[string]any{"order_number": order.OrderNumber, "grand_total": order.GrandTotal, "checkout_id": s.ID}, now)
	})
	if errors.Is(err, errOrderRace) {
		won = false
		err = nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete failed")
		return model.Order{}, err
	}
	if !won {
		return m.orderForSession(ctx, s.ID)
	}

	m.metrics.ObserveCheckoutCompleted()
	m.log.Info("order created", "order_id", order.ID, "order_number", order.OrderNumber, "checkout_id", s.ID, "grand_total", order.GrandTotal)

	// 通知は失敗しても注文は成立している
	if err := m.notifier.NotifyOrderCreated(ctx, order); err != nil {
		m.log.Warn("order notification failed", "order_id", order.ID, "error", err)
	}
	return order, nil
}

// 注文詳細（本人のみ）
func (m *OrderMaterializer) GetOrder(ctx context.Context, id model.Identity, orderID string) (model.Order, error) {
	kind, ref, err := model.OwnerColumns(id)
	if err != nil {
		return model.Order{}, NewValidation(CodeValidation, err.Error())
	}
	o, err := m.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewNotFound("order not found")
	}
	if err != nil {
		return model.Order{}, NewInternal("db error", err)
	}
	//他人の注文は「存在しない扱い」にする
	if o.OwnerKind != kind || o.OwnerRef != ref {
		return model.Order{}, NewNotFound("order not found")
	}
	items, err := m.orderItems.ListByOrderID(ctx, o.ID)
	if err != nil {
		return model.Order{}, NewInternal("db error", err)
	}
	o.Items = items
	return o, nil
}

func (m *OrderMaterializer) orderForSession(ctx context.Context, checkoutID string) (model.Order, error) {
	o, found, err := m.orders.FindByCheckoutSessionID(ctx, checkoutID)
	if err != nil {
		return model.Order{}, NewInternal("db error", err)
	}
	if !found {
		return model.Order{}, NewConflict("order for completed checkout not found", nil)
	}
	items, err := m.orderItems.ListByOrderID(ctx, o.ID)
	if err != nil {
		return model.Order{}, NewInternal("db error", err)
	}
	o.Items = items
	return o, nil
}

// カートとカタログの値をコピーして注文を組み立てる
func (m *OrderMaterializer) buildOrder(ctx context.Context, s model.CheckoutSession, cart model.Cart, now time.Time) (model.Order, error) {
	cartItems, err := m.items.ListByCartID(ctx, cart.ID)
	if err != nil {
		return model.Order{}, NewInternal("db error", err)
	}
	if len(cartItems) == 0 {
		return model.Order{}, NewBusiness(CodeCartInvalid, "cart is empty")
	}

	orderID := m.ids.NewID()
	items := make([]model.OrderItem, 0, len(cartItems))
	var subtotal int64
	for _, ci := range cartItems {
		v, err := m.catalog.GetVariant(ctx, ci.VariantID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return model.Order{}, NewInternal("catalog error", err)
		}
		line := ci.Quantity * ci.UnitPriceSnapshot
		items = append(items, model.OrderItem{
			ID:          m.ids.NewID(),
			OrderID:     orderID,
			VariantID:   ci.VariantID,
			ProductName: v.ProductName,
			VariantName: v.VariantName,
			SKU:         v.SKU,
			Quantity:    ci.Quantity,
			UnitPrice:   ci.UnitPriceSnapshot,
			LineTotal:   line,
			Attributes:  model.NewAttributesJSON(v.Attributes.Data()),
			CreatedAt:   now,
		})
		subtotal += line
	}

	return model.Order{
		ID:                orderID,
		OrderNumber:       orderNumber(now, orderID),
		CartID:            cart.ID,
		CheckoutSessionID: s.ID,
		OwnerKind:         cart.OwnerKind,
		OwnerRef:          cart.OwnerRef,
		Email:             cart.Email,
		Currency:          cart.Currency,
		Subtotal:          subtotal,
		ShippingTotal:     s.ShippingCost,
		GrandTotal:        subtotal + s.ShippingCost,
		ShippingAddress:   s.ShippingAddress,
		BillingAddress:    s.BillingAddress,
		ShippingMethodID:  s.ShippingMethodID,
		PaymentIntentID:   s.PaymentIntentID,
		Items:             items,
		CreatedAt:         now,
	}, nil
}

// ORD-20260102-1A2B3C4D5E
func orderNumber(now time.Time, orderID string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(orderID, "-", ""))
	if len(suffix) > 10 {
		suffix = suffix[:10]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
