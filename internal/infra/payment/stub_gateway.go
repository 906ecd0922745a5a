package payment

import (
	"context"
	"strings"
	"sync"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/google/uuid"
)

// PAYMENT_GATEWAY_URL 未設定時に使う。
// method が "decline" で始まれば失敗、"pending" で始まれば保留、それ以外は成功。
type StubGateway struct {
	mu      sync.Mutex
	intents map[string]usecase.PaymentResult
	byKey   map[string]string
}

func NewStubGateway() *StubGateway {
	return &StubGateway{
		intents: map[string]usecase.PaymentResult{},
		byKey:   map[string]string{},
	}
}

func (g *StubGateway) Authorize(ctx context.Context, req usecase.PaymentRequest) (usecase.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return usecase.PaymentResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	// 同じキーの再送には前回の結果を返す
	if id, ok := g.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return g.intents[id], nil
	}

	status := model.PaymentStatusSucceeded
	method := strings.ToLower(req.Method)
	switch {
	case strings.HasPrefix(method, "decline"):
		status = model.PaymentStatusFailed
	case strings.HasPrefix(method, "pending"):
		status = model.PaymentStatusPending
	}

	res := usecase.PaymentResult{IntentID: "pi_" + uuid.NewString(), Status: status}
	g.intents[res.IntentID] = res
	if req.IdempotencyKey != "" {
		g.byKey[req.IdempotencyKey] = res.IntentID
	}
	return res, nil
}

func (g *StubGateway) GetIntent(ctx context.Context, intentID string) (usecase.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return usecase.PaymentResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	res, ok := g.intents[intentID]
	if !ok {
		return usecase.PaymentResult{IntentID: intentID, Status: model.PaymentStatusFailed}, nil
	}
	// 保留は問い合わせ時に確定させる
	if res.Status == model.PaymentStatusPending {
		res.Status = model.PaymentStatusSucceeded
		g.intents[intentID] = res
	}
	return res, nil
}
