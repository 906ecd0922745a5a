package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID string) ([]model.CartItem, error)
	FindByID(ctx context.Context, cartItemID string) (model.CartItem, error)
	FindByCartAndVariant(ctx context.Context, cartID string, variantID string) (model.CartItem, error)
	// 同一バリアントは数量を加算（単価スナップショットはそのまま）。無ければ line を作成。
	UpsertByCartAndVariant(ctx context.Context, line model.CartItem) (model.CartItem, error)
	Create(ctx context.Context, item model.CartItem) error
	UpdateQuantity(ctx context.Context, cartItemID string, qty int64, unitPriceSnapshot int64, now time.Time) error
	DeleteByID(ctx context.Context, cartItemID string) error
}
