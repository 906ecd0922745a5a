package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// 在庫台帳の永続化。カウンタの更新はすべて1文の条件付きUPDATEで行う。
type InventoryRepository interface {
	Create(ctx context.Context, rec model.InventoryRecord) error
	FindByVariantID(ctx context.Context, variantID string) (model.InventoryRecord, error)

	// reserved + qty <= on_hand（または backorder 可）のときだけ reserved を増やす
	ReserveIfAvailable(ctx context.Context, variantID string, qty int64, now time.Time) (bool, error)

	// reserved を減らす（0で止める）
	Release(ctx context.Context, variantID string, qty int64, now time.Time) error

	// reserved >= qty のときだけ on_hand と reserved を減らす
	CommitReserved(ctx context.Context, variantID string, qty int64, now time.Time) (bool, error)

	// on_hand を delta だけ動かす（結果が reserved 未満になるなら backorder 可のときだけ）
	AdjustOnHand(ctx context.Context, variantID string, delta int64, now time.Time) (bool, error)

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
