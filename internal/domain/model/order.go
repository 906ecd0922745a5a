package model

import "time"

// 注文。作成後は変更しない。カート・カタログの値はコピーで持つ。
type Order struct {
	ID                string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderNumber       string      `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`
	CartID            string      `gorm:"type:varchar(36);not null;index" json:"cart_id"`
	CheckoutSessionID string      `gorm:"type:varchar(36);not null;uniqueIndex" json:"checkout_session_id"`
	OwnerKind         OwnerKind   `gorm:"type:varchar(20);not null" json:"owner_kind"`
	OwnerRef          string      `gorm:"type:varchar(255);not null;index" json:"owner_ref"`
	Email             string      `gorm:"type:varchar(255);not null" json:"email"`
	Currency          string      `gorm:"type:varchar(3);not null" json:"currency"`
	Subtotal          int64       `gorm:"not null" json:"subtotal"`
	ShippingTotal     int64       `gorm:"not null" json:"shipping_total"`
	GrandTotal        int64       `gorm:"not null" json:"grand_total"`
	ShippingAddress   Address     `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress    Address     `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`
	ShippingMethodID  string      `gorm:"type:varchar(50);not null" json:"shipping_method_id"`
	PaymentIntentID   string      `gorm:"type:varchar(255);not null" json:"payment_intent_id"`
	Items             []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt         time.Time   `gorm:"not null" json:"created_at"`
}
