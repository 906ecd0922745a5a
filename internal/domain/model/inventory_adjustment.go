package model

import "time"

// 在庫調整（入荷・棚卸し）の履歴
type InventoryAdjustment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	VariantID string    `gorm:"type:varchar(36);not null;index" json:"variant_id"`
	Delta     int64     `gorm:"not null" json:"delta"`
	OnHand    int64     `gorm:"not null" json:"on_hand"`
	Reason    string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
