package model

import "time"

type ReservationStatus string

const (
	ReservationStatusHeld      ReservationStatus = "HELD"
	ReservationStatusCommitted ReservationStatus = "COMMITTED"
	ReservationStatusReleased  ReservationStatus = "RELEASED"
)

// 支払い時に取った在庫引当（カート1行につき1件）。
// HELD から COMMITTED / RELEASED へ一度だけ動く。
type StockReservation struct {
	ID                string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	CheckoutSessionID string            `gorm:"type:varchar(36);not null;index" json:"checkout_session_id"`
	VariantID         string            `gorm:"type:varchar(36);not null;index" json:"variant_id"`
	Quantity          int64             `gorm:"not null" json:"quantity"`
	Status            ReservationStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}
