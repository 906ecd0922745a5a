package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) Create(ctx context.Context, rec model.InventoryRecord) error {
	return mapWriteError(r.db.WithContext(ctx).Create(&rec).Error)
}

func (r *InventoryGormRepository) FindByVariantID(ctx context.Context, variantID string) (model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := r.db.WithContext(ctx).Where("variant_id = ?", variantID).First(&rec).Error
	if isNotFound(err) {
		return model.InventoryRecord{}, repo.ErrNotFound
	}
	if err != nil {
		return model.InventoryRecord{}, err
	}
	return rec, nil
}

// 在庫が足りるときだけ引き当てる
func (r *InventoryGormRepository) ReserveIfAvailable(ctx context.Context, variantID string, qty int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.InventoryRecord{}).
		Where("variant_id = ? AND (reserved + ? <= on_hand OR allow_backorder = ?)", variantID, qty, true).
		Updates(map[string]any{
			"reserved":   gorm.Expr("reserved + ?", qty),
			"updated_at": now,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// 引当戻し（0で止める）
func (r *InventoryGormRepository) Release(ctx context.Context, variantID string, qty int64, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.InventoryRecord{}).
		Where("variant_id = ?", variantID).
		Updates(map[string]any{
			"reserved":   gorm.Expr("CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END", qty, qty),
			"updated_at": now,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 引当済みぶんを出庫確定（backorder で on_hand が足りなければ0で止める）
func (r *InventoryGormRepository) CommitReserved(ctx context.Context, variantID string, qty int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.InventoryRecord{}).
		Where("variant_id = ? AND reserved >= ?", variantID, qty).
		Updates(map[string]any{
			"on_hand":    gorm.Expr("CASE WHEN on_hand >= ? THEN on_hand - ? ELSE 0 END", qty, qty),
			"reserved":   gorm.Expr("reserved - ?", qty),
			"updated_at": now,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// 在庫調整。結果が reserved 未満になるなら backorder 可のときだけ
func (r *InventoryGormRepository) AdjustOnHand(ctx context.Context, variantID string, delta int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.InventoryRecord{}).
		Where("variant_id = ? AND on_hand + ? >= 0 AND (on_hand + ? >= reserved OR allow_backorder = ?)", variantID, delta, delta, true).
		Updates(map[string]any{
			"on_hand":    gorm.Expr("on_hand + ?", delta),
			"updated_at": now,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// 調整履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	if err := r.db.WithContext(ctx).Create(&adj).Error; err != nil {
		return err
	}
	return nil
}
