package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// 遷移時に書き換える項目。nil は変更しない。
type CheckoutChanges struct {
	Status           model.CheckoutStatus
	ShippingAddress  *model.Address
	BillingAddress   *model.Address
	ShippingMethodID *string
	ShippingCost     *int64
	PaymentIntentID  *string
	PaymentStatus    *model.PaymentStatus
	OrderID          *string
}

type CheckoutRepository interface {
	Create(ctx context.Context, s model.CheckoutSession) error
	FindByID(ctx context.Context, checkoutID string) (model.CheckoutSession, error)
	// カートの最新セッション
	FindLatestByCartID(ctx context.Context, cartID string) (model.CheckoutSession, error)

	// status が from のいずれかで、期限内（expires_at >= now）のときだけ changes を適用する。
	Transition(ctx context.Context, checkoutID string, from []model.CheckoutStatus, now time.Time, changes CheckoutChanges) (bool, error)

	// SHIPPING_SET かつ決済未処理（または前回失敗）のときだけ payment_status を pending にする
	ClaimPayment(ctx context.Context, checkoutID string, now time.Time) (bool, error)

	// 期限切れの未終端セッションを EXPIRED にする
	ExpireIfOverdue(ctx context.Context, checkoutID string, now time.Time) (bool, error)

	// HELD の引当を持つ、cutoff より前に期限切れになったセッション（COMPLETED 以外）
	ListOverdueWithHolds(ctx context.Context, cutoff time.Time, limit int) ([]model.CheckoutSession, error)

	// HELD の引当を持たない期限切れセッションをまとめて EXPIRED にする
	ExpireOverdueWithoutHolds(ctx context.Context, now time.Time) (int64, error)
}
