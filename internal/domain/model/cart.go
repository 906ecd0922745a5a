package model

import "time"

type CartStatus string

const (
	CartStatusActive    CartStatus = "ACTIVE"
	CartStatusMerged    CartStatus = "MERGED"
	CartStatusCompleted CartStatus = "COMPLETED"
	CartStatusAbandoned CartStatus = "ABANDONED"
)

// 1 Identity につき ACTIVE は1つ
type Cart struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerKind OwnerKind      `gorm:"type:varchar(20);not null;index:idx_carts_owner" json:"owner_kind"`
	OwnerRef  string         `gorm:"type:varchar(255);not null;index:idx_carts_owner" json:"owner_ref"`
	Status    CartStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	Currency  string         `gorm:"type:varchar(3);not null" json:"currency"`
	Email     string         `gorm:"type:varchar(255)" json:"email"`
	Metadata  AttributesJSON `gorm:"not null" json:"metadata"`
	Items     []CartItem     `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	ExpiresAt time.Time      `gorm:"not null;index" json:"expires_at"`
}

// 持ち主
func (c Cart) Owner() Identity {
	id, err := IdentityFromColumns(c.OwnerKind, c.OwnerRef)
	if err != nil {
		return nil
	}
	return id
}

func (c Cart) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
