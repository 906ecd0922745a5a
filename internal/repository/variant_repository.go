package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 商品バリアント（カタログ）の読み取り
type VariantRepository interface {
	FindByID(ctx context.Context, variantID string) (model.ProductVariant, error)
	Create(ctx context.Context, v model.ProductVariant) error
	UpdatePrice(ctx context.Context, variantID string, unitPrice int64) error
}
