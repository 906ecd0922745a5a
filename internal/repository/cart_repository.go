package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type CartRepository interface {
	// owner の ACTIVE カートを返す。無ければ fresh を保存して返す（created=true）。
	GetOrCreateActiveByOwner(ctx context.Context, fresh model.Cart) (cart model.Cart, created bool, err error)
	FindByID(ctx context.Context, cartID string) (model.Cart, error)
	FindActiveByOwner(ctx context.Context, kind model.OwnerKind, ref string) (model.Cart, error)
	UpdateStatus(ctx context.Context, cartID string, status model.CartStatus, now time.Time) error
	// from のときだけ to にする
	UpdateStatusIf(ctx context.Context, cartID string, from model.CartStatus, to model.CartStatus, now time.Time) (bool, error)
	// ACTIVE のときだけ updated_at / expires_at を進める（行ロックも兼ねる）
	TouchActive(ctx context.Context, cartID string, now time.Time, expiresAt time.Time) (bool, error)
	SetEmail(ctx context.Context, cartID string, email string, now time.Time) error
	// 期限切れの ACTIVE カートを ABANDONED にする
	AbandonExpired(ctx context.Context, now time.Time) (int64, error)
}
