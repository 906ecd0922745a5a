package model

import "time"

// 商品バリアント（カタログ）。このサブシステムからは読み取りのみ。
// bool に default タグを付けると false が既定値で上書きされるので付けない。
type ProductVariant struct {
	ID             string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProductName    string         `gorm:"type:varchar(255);not null" json:"product_name"`
	VariantName    string         `gorm:"type:varchar(255);not null" json:"variant_name"`
	SKU            string         `gorm:"type:varchar(100);not null;uniqueIndex" json:"sku"`
	UnitPrice      int64          `gorm:"not null" json:"unit_price"`
	TrackInventory bool           `gorm:"not null" json:"track_inventory"`
	AllowBackorder bool           `gorm:"not null" json:"allow_backorder"`
	IsActive       bool           `gorm:"not null" json:"is_active"`
	Attributes     AttributesJSON `gorm:"not null" json:"attributes"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
