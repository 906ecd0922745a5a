package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/model"

	"github.com/google/uuid"
)

// テストで差し替える
type IDGenerator interface {
	NewID() string
}

type Clock interface {
	Now() time.Time
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// カタログ（商品バリアント）の参照。見つからなければ repository.ErrNotFound。
type Catalog interface {
	GetVariant(ctx context.Context, variantID string) (model.ProductVariant, error)
}

type PaymentRequest struct {
	Amount         int64
	Currency       string
	Method         string
	IdempotencyKey string
}

type PaymentResult struct {
	IntentID string
	Status   model.PaymentStatus
}

// 決済ゲートウェイ
type PaymentGateway interface {
	Authorize(ctx context.Context, req PaymentRequest) (PaymentResult, error)
	GetIntent(ctx context.Context, intentID string) (PaymentResult, error)
}

// 注文作成の通知（失敗してもチェックアウトは成功のまま）
type OrderNotifier interface {
	NotifyOrderCreated(ctx context.Context, order model.Order) error
}

// usecaseがValidatorInterfaceに依存する約束
type CheckoutValidator interface {
	ValidateAddress(a model.Address) error
	ValidateEmail(email string) error
}
