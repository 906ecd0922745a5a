package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type ReservationRepository interface {
	Create(ctx context.Context, r model.StockReservation) error
	ListBySession(ctx context.Context, checkoutID string, status model.ReservationStatus) ([]model.StockReservation, error)
	// status が from のときだけ to にする
	MarkIf(ctx context.Context, reservationID string, from model.ReservationStatus, to model.ReservationStatus, now time.Time) (bool, error)
}
