package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// owner の ACTIVE カートを取得し、無ければ fresh を作成
func (r *CartGormRepository) GetOrCreateActiveByOwner(ctx context.Context, fresh model.Cart) (model.Cart, bool, error) {
	cart, err := r.FindActiveByOwner(ctx, fresh.OwnerKind, fresh.OwnerRef)
	if err == nil {
		return cart, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, false, err
	}

	// 無ければ作る
	if err := r.db.WithContext(ctx).Omit("Items").Create(&fresh).Error; err != nil {
		if mapWriteError(err) != repo.ErrConflict {
			return model.Cart{}, false, err
		}
		//同時に作られた（ACTIVE は owner ごとに1つ）ので取り直す
		cart, retryErr := r.FindActiveByOwner(ctx, fresh.OwnerKind, fresh.OwnerRef)
		if retryErr != nil {
			return model.Cart{}, false, retryErr
		}
		return cart, false, nil
	}
	return fresh, true, nil
}

func (r *CartGormRepository) FindByID(ctx context.Context, cartID string) (model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).Where("id = ?", cartID).First(&cart).Error
	if isNotFound(err) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// owner の ACTIVE カートを取得
func (r *CartGormRepository) FindActiveByOwner(ctx context.Context, kind model.OwnerKind, ref string) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_ref = ? AND status = ?", kind, ref, model.CartStatusActive).
		Order("created_at desc").
		First(&cart).Error

	if isNotFound(err) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// carts.statusを更新
func (r *CartGormRepository) UpdateStatus(ctx context.Context, cartID string, status model.CartStatus, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{"status": status, "updated_at": now})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartGormRepository) UpdateStatusIf(ctx context.Context, cartID string, from model.CartStatus, to model.CartStatus, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ? AND status = ?", cartID, from).
		Updates(map[string]any{"status": to, "updated_at": now})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CartGormRepository) TouchActive(ctx context.Context, cartID string, now time.Time, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ? AND status = ?", cartID, model.CartStatusActive).
		Updates(map[string]any{"updated_at": now, "expires_at": expiresAt})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CartGormRepository) SetEmail(ctx context.Context, cartID string, email string, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{"email": email, "updated_at": now})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 期限切れの ACTIVE を ABANDONED に
func (r *CartGormRepository) AbandonExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("status = ? AND expires_at < ?", model.CartStatusActive, now).
		Updates(map[string]any{"status": model.CartStatusAbandoned, "updated_at": now})

	return res.RowsAffected, res.Error
}
