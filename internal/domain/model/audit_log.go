package model

import "time"

// 何をしたか
type AuditAction string

const (
	//チェックアウトのステータス遷移。
	AuditActionCheckoutTransition AuditAction = "CHECKOUT_TRANSITION"
	//注文の作成。
	AuditActionOrderCreated AuditAction = "ORDER_CREATED"
	//ゲストカートの統合。
	AuditActionCartMerged AuditAction = "CART_MERGED"
	//在庫調整。
	AuditActionRestock AuditAction = "RESTOCK"
	//価格変更。
	AuditActionPriceChanged AuditAction = "PRICE_CHANGED"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceCheckout  AuditResourceType = "checkout"
	AuditResourceOrder     AuditResourceType = "order"
	AuditResourceCart      AuditResourceType = "cart"
	AuditResourceInventory AuditResourceType = "inventory"
	AuditResourceVariant   AuditResourceType = "variant"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した Identity（"customer:..." / "anonymous:..." / "system"）。
	Actor string `gorm:"type:varchar(300);not null;index" json:"actor"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	ResourceID string `gorm:"type:varchar(36);not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`

	//JSON文字列で保存する。
	AfterJSON string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// システム処理（スイーパーなど）の操作者名
const AuditActorSystem = "system"
