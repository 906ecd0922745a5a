package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartItemGormRepository struct {
	db *gorm.DB
}

func NewCartItemGormRepository(db *gorm.DB) *CartItemGormRepository {
	return &CartItemGormRepository{db: db}
}

// カート明細を一覧取得
func (r *CartItemGormRepository) ListByCartID(ctx context.Context, cartID string) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("added_at asc").
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	return items, nil
}

// 明細を取得
func (r *CartItemGormRepository) FindByID(ctx context.Context, cartItemID string) (model.CartItem, error) {
	var item model.CartItem

	err := r.db.WithContext(ctx).
		Where("id = ?", cartItemID).
		First(&item).Error

	if isNotFound(err) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

func (r *CartItemGormRepository) FindByCartAndVariant(ctx context.Context, cartID string, variantID string) (model.CartItem, error) {
	var item model.CartItem

	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND variant_id = ?", cartID, variantID).
		First(&item).Error

	if isNotFound(err) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

// 同一バリアントは数量加算
func (r *CartItemGormRepository) UpsertByCartAndVariant(ctx context.Context, line model.CartItem) (model.CartItem, error) {
	if line.Quantity <= 0 {
		return model.CartItem{}, errors.New("invalid quantity")
	}

	var out model.CartItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.CartItem

		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ? AND variant_id = ?", line.CartID, line.VariantID).
			First(&item).Error

		if err == nil {
			// 既存ありだったら数量を増やす（単価スナップショットはそのまま）
			res := tx.Model(&model.CartItem{}).
				Where("id = ?", item.ID).
				Updates(map[string]any{
					"quantity":   gorm.Expr("quantity + ?", line.Quantity),
					"updated_at": line.UpdatedAt,
				})

			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repo.ErrNotFound
			}
			item.Quantity += line.Quantity
			item.UpdatedAt = line.UpdatedAt
			out = item
			return nil
		}

		if !isNotFound(err) {
			return err
		}

		//無い場合は新規作成
		if err := tx.Create(&line).Error; err != nil {
			return mapWriteError(err)
		}
		out = line
		return nil
	})
	if err != nil {
		return model.CartItem{}, err
	}
	return out, nil
}

func (r *CartItemGormRepository) Create(ctx context.Context, item model.CartItem) error {
	return mapWriteError(r.db.WithContext(ctx).Create(&item).Error)
}

// 明細の数量と単価スナップショットを更新
func (r *CartItemGormRepository) UpdateQuantity(ctx context.Context, cartItemID string, qty int64, unitPriceSnapshot int64, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", cartItemID).
		Updates(map[string]any{
			"quantity":            qty,
			"unit_price_snapshot": unitPriceSnapshot,
			"updated_at":          now,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *CartItemGormRepository) DeleteByID(ctx context.Context, cartItemID string) error {
	res := r.db.WithContext(ctx).Where("id = ?", cartItemID).Delete(&model.CartItem{})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
