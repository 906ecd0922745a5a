package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type CheckoutGormRepository struct {
	db *gorm.DB
}

func NewCheckoutGormRepository(db *gorm.DB) *CheckoutGormRepository {
	return &CheckoutGormRepository{db: db}
}

func (r *CheckoutGormRepository) Create(ctx context.Context, s model.CheckoutSession) error {
	return mapWriteError(r.db.WithContext(ctx).Create(&s).Error)
}

func (r *CheckoutGormRepository) FindByID(ctx context.Context, checkoutID string) (model.CheckoutSession, error) {
	var s model.CheckoutSession
	err := r.db.WithContext(ctx).Where("id = ?", checkoutID).First(&s).Error
	if isNotFound(err) {
		return model.CheckoutSession{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CheckoutSession{}, err
	}
	return s, nil
}

func (r *CheckoutGormRepository) FindLatestByCartID(ctx context.Context, cartID string) (model.CheckoutSession, error) {
	var s model.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at desc").
		First(&s).Error
	if isNotFound(err) {
		return model.CheckoutSession{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CheckoutSession{}, err
	}
	return s, nil
}

// status が from のいずれかで期限内のときだけ更新する
func (r *CheckoutGormRepository) Transition(ctx context.Context, checkoutID string, from []model.CheckoutStatus, now time.Time, changes repo.CheckoutChanges) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CheckoutSession{}).
		Where("id = ? AND status IN ? AND expires_at >= ?", checkoutID, from, now).
		Updates(changeColumns(changes, now))

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CheckoutGormRepository) ClaimPayment(ctx context.Context, checkoutID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CheckoutSession{}).
		Where("id = ? AND status = ? AND expires_at >= ?", checkoutID, model.CheckoutStatusShippingSet, now).
		Where("payment_status IS NULL OR payment_status IN ?", []model.PaymentStatus{"", model.PaymentStatusFailed}).
		Updates(map[string]any{
			"payment_status":   model.PaymentStatusPending,
			"payment_attempts": gorm.Expr("payment_attempts + 1"),
			"updated_at":       now,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CheckoutGormRepository) ExpireIfOverdue(ctx context.Context, checkoutID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CheckoutSession{}).
		Where("id = ? AND status IN ? AND expires_at < ?", checkoutID, model.OpenCheckoutStatuses, now).
		Updates(map[string]any{
			"status":     model.CheckoutStatusExpired,
			"updated_at": now,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

const heldReservationExists = "EXISTS (SELECT 1 FROM stock_reservations sr WHERE sr.checkout_session_id = checkout_sessions.id AND sr.status = ?)"

func (r *CheckoutGormRepository) ListOverdueWithHolds(ctx context.Context, cutoff time.Time, limit int) ([]model.CheckoutSession, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []model.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("expires_at < ? AND status <> ?", cutoff, model.CheckoutStatusCompleted).
		Where(heldReservationExists, model.ReservationStatusHeld).
		Order("expires_at asc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CheckoutGormRepository) ExpireOverdueWithoutHolds(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.CheckoutSession{}).
		Where("status IN ? AND expires_at < ?", model.OpenCheckoutStatuses, now).
		Where("NOT "+heldReservationExists, model.ReservationStatusHeld).
		Updates(map[string]any{
			"status":     model.CheckoutStatusExpired,
			"updated_at": now,
		})

	return res.RowsAffected, res.Error
}

func changeColumns(c repo.CheckoutChanges, now time.Time) map[string]any {
	cols := map[string]any{
		"status":     c.Status,
		"updated_at": now,
	}
	if c.ShippingAddress != nil {
		addressColumns(cols, "shipping_", *c.ShippingAddress)
	}
	if c.BillingAddress != nil {
		addressColumns(cols, "billing_", *c.BillingAddress)
	}
	if c.ShippingMethodID != nil {
		cols["shipping_method_id"] = *c.ShippingMethodID
	}
	if c.ShippingCost != nil {
		cols["shipping_cost"] = *c.ShippingCost
	}
	if c.PaymentIntentID != nil {
		cols["payment_intent_id"] = *c.PaymentIntentID
	}
	if c.PaymentStatus != nil {
		cols["payment_status"] = *c.PaymentStatus
	}
	if c.OrderID != nil {
		cols["order_id"] = *c.OrderID
	}
	return cols
}

// embeddedPrefix のカラム名
func addressColumns(cols map[string]any, prefix string, a model.Address) {
	cols[prefix+"name"] = a.Name
	cols[prefix+"postal_code"] = a.PostalCode
	cols[prefix+"country"] = a.Country
	cols[prefix+"region"] = a.Region
	cols[prefix+"city"] = a.City
	cols[prefix+"line1"] = a.Line1
	cols[prefix+"line2"] = a.Line2
	cols[prefix+"phone"] = a.Phone
}
