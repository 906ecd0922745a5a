package model

import "time"

type CheckoutStatus string

const (
	CheckoutStatusStarted     CheckoutStatus = "STARTED"
	CheckoutStatusAddressSet  CheckoutStatus = "ADDRESS_SET"
	CheckoutStatusShippingSet CheckoutStatus = "SHIPPING_SET"
	CheckoutStatusPaymentSet  CheckoutStatus = "PAYMENT_SET"
	CheckoutStatusCompleted   CheckoutStatus = "COMPLETED"
	CheckoutStatusExpired     CheckoutStatus = "EXPIRED"
	CheckoutStatusCancelled   CheckoutStatus = "CANCELLED"
)

// 終端（これ以上遷移しない）か
func (s CheckoutStatus) IsTerminal() bool {
	switch s {
	case CheckoutStatusCompleted, CheckoutStatusExpired, CheckoutStatusCancelled:
		return true
	}
	return false
}

// 未終端のステータス一覧
var OpenCheckoutStatuses = []CheckoutStatus{
	CheckoutStatusStarted,
	CheckoutStatusAddressSet,
	CheckoutStatusShippingSet,
	CheckoutStatusPaymentSet,
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// チェックアウトセッション。カートは参照のみ（所有しない）。
type CheckoutSession struct {
	ID               string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	CartID           string         `gorm:"type:varchar(36);not null;index" json:"cart_id"`
	Status           CheckoutStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ShippingAddress  Address        `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress   Address        `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`
	ShippingMethodID string         `gorm:"type:varchar(50)" json:"shipping_method_id"`
	ShippingCost     int64          `gorm:"not null;default:0" json:"shipping_cost"`
	PaymentIntentID  string         `gorm:"type:varchar(255)" json:"payment_intent_id"`
	PaymentStatus    PaymentStatus  `gorm:"type:varchar(20)" json:"payment_status"`
	PaymentAttempts  int            `gorm:"not null;default:0" json:"payment_attempts"`
	OrderID          string         `gorm:"type:varchar(36)" json:"order_id"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	ExpiresAt        time.Time      `gorm:"not null;index" json:"expires_at"`
}

// 読み取り時点のステータス。期限切れは保存値に関係なく EXPIRED として扱う（更新はしない）。
func (s CheckoutSession) EffectiveStatus(now time.Time) CheckoutStatus {
	if !s.Status.IsTerminal() && now.After(s.ExpiresAt) {
		return CheckoutStatusExpired
	}
	return s.Status
}

func (s CheckoutSession) IsOpen(now time.Time) bool {
	return !s.EffectiveStatus(now).IsTerminal()
}
