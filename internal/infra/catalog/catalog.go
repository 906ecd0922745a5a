package catalog

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// product_variants テーブルを読むカタログ
type VariantCatalog struct {
	variants repo.VariantRepository
}

func NewVariantCatalog(variants repo.VariantRepository) *VariantCatalog {
	return &VariantCatalog{variants: variants}
}

func (c *VariantCatalog) GetVariant(ctx context.Context, variantID string) (model.ProductVariant, error) {
	v, err := c.variants.FindByID(ctx, variantID)
	if err != nil {
		return model.ProductVariant{}, err
	}
	// 属性はスカラーだけ返す
	v.Attributes = model.NewAttributesJSON(v.Attributes.Data())
	return v, nil
}
