package model

import "time"

type OrderItem struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID     string         `gorm:"type:varchar(36);not null;index" json:"order_id"`
	VariantID   string         `gorm:"type:varchar(36);not null;index" json:"variant_id"`
	ProductName string         `gorm:"type:varchar(255);not null" json:"product_name"`
	VariantName string         `gorm:"type:varchar(255);not null" json:"variant_name"`
	SKU         string         `gorm:"type:varchar(100);not null" json:"sku"`
	Quantity    int64          `gorm:"not null" json:"quantity"`
	UnitPrice   int64          `gorm:"not null" json:"unit_price"`
	LineTotal   int64          `gorm:"not null" json:"line_total"`
	Attributes  AttributesJSON `gorm:"not null" json:"attributes"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}
