package model

import "time"

// カートの明細
// 追加時点の価格を必ず保存。(cart_id, variant_id) で一意。
type CartItem struct {
	ID                string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CartID            string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_items_cart_variant" json:"cart_id"`
	VariantID         string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_items_cart_variant" json:"variant_id"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot int64     `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	AddedAt           time.Time `gorm:"not null" json:"added_at"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}
