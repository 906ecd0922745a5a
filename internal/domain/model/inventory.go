package model

import "time"

// バリアントごとの在庫台帳。
// reserved <= on_hand（allow_backorder のときを除く）
type InventoryRecord struct {
	VariantID      string    `gorm:"type:varchar(36);primaryKey" json:"variant_id"`
	OnHand         int64     `gorm:"not null;default:0" json:"on_hand"`
	Reserved       int64     `gorm:"not null;default:0" json:"reserved"`
	AllowBackorder bool      `gorm:"not null;default:false" json:"allow_backorder"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

// 引当可能数（backorder は考慮しない）
func (r InventoryRecord) Available() int64 {
	if r.OnHand <= r.Reserved {
		return 0
	}
	return r.OnHand - r.Reserved
}
