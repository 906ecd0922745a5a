package usecase

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	"storefront/internal/logger"
	repo "storefront/internal/repository"
)

// CatalogAdmin はバリアントの価格を変える（管理者用）。
// カートの単価スナップショットは変えないので、次の Validate で PRICE_CHANGED になる。
type CatalogAdmin struct {
	tx    repo.TransactionManager
	clock Clock
	log   *logger.Logger
}

func NewCatalogAdmin(tx repo.TransactionManager, clock Clock, log *logger.Logger) *CatalogAdmin {
	return &CatalogAdmin{tx: tx, clock: clock, log: log.With("component", "CatalogAdmin")}
}

type priceSnapshot struct {
	UnitPrice int64 `json:"unit_price"`
}

func (a *CatalogAdmin) ChangePrice(ctx context.Context, actor string, variantID string, unitPrice int64) (model.ProductVariant, error) {
	if unitPrice < 0 {
		return model.ProductVariant{}, NewValidation(CodeValidation, "unit_price must be >= 0")
	}

	var out model.ProductVariant
	err := a.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Variants().FindByID(ctx, variantID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("variant not found")
		}
		if err != nil {
			return NewInternal("db error", err)
		}
		if err := r.Variants().UpdatePrice(ctx, variantID, unitPrice); err != nil {
			return NewInternal("db error", err)
		}

		out = before
		out.UnitPrice = unitPrice
		return writeAudit(ctx, r, actor, model.AuditActionPriceChanged, model.AuditResourceVariant, variantID,
			priceSnapshot{UnitPrice: before.UnitPrice}, priceSnapshot{UnitPrice: unitPrice}, a.clock.Now())
	})
	if err != nil {
		return model.ProductVariant{}, err
	}

	a.log.Info("price changed", "variant_id", variantID, "unit_price", unitPrice)
	return out, nil
}
