package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

type ReservationGormRepository struct {
	db *gorm.DB
}

func NewReservationGormRepository(db *gorm.DB) *ReservationGormRepository {
	return &ReservationGormRepository{db: db}
}

func (r *ReservationGormRepository) Create(ctx context.Context, res model.StockReservation) error {
	return mapWriteError(r.db.WithContext(ctx).Create(&res).Error)
}

func (r *ReservationGormRepository) ListBySession(ctx context.Context, checkoutID string, status model.ReservationStatus) ([]model.StockReservation, error) {
	var out []model.StockReservation
	err := r.db.WithContext(ctx).
		Where("checkout_session_id = ? AND status = ?", checkoutID, status).
		Order("created_at asc").
		Order("id asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// 切り替えられたのが自分なら true
func (r *ReservationGormRepository) MarkIf(ctx context.Context, reservationID string, from model.ReservationStatus, to model.ReservationStatus, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.StockReservation{}).
		Where("id = ? AND status = ?", reservationID, from).
		Updates(map[string]any{"status": to, "updated_at": now})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
