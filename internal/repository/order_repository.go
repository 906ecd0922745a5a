package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	Create(ctx context.Context, order model.Order) error

	//検索（同じセッションなら同じ注文を返す）
	FindByCheckoutSessionID(ctx context.Context, checkoutID string) (model.Order, bool, error)
}
