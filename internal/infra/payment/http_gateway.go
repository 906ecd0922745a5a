package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/logger"
	"storefront/internal/usecase"

	"github.com/go-resty/resty/v2"
)

// 外部決済APIのクライアント
type HTTPGateway struct {
	client *resty.Client
	log    *logger.Logger
}

type intentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
}

type intentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPGateway(baseURL, apiKey string, log *logger.Logger) *HTTPGateway {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json").
		// 5xx と通信エラーは再送
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &HTTPGateway{client: c, log: log.With("component", "HTTPPaymentGateway")}
}

func (g *HTTPGateway) Authorize(ctx context.Context, req usecase.PaymentRequest) (usecase.PaymentResult, error) {
	var out intentResponse
	var apiErr errorResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.IdempotencyKey).
		SetBody(intentRequest{Amount: req.Amount, Currency: req.Currency, Method: req.Method}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/payment_intents")
	if err != nil {
		return usecase.PaymentResult{}, fmt.Errorf("authorize: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusPaymentRequired:
		// カード拒否など。決済としては失敗で確定
		g.log.Info("payment declined", "idempotency_key", req.IdempotencyKey, "reason", apiErr.Error)
		return usecase.PaymentResult{IntentID: out.ID, Status: model.PaymentStatusFailed}, nil
	case resp.IsError():
		return usecase.PaymentResult{}, fmt.Errorf("authorize: status %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return usecase.PaymentResult{IntentID: out.ID, Status: toPaymentStatus(out.Status)}, nil
}

func (g *HTTPGateway) GetIntent(ctx context.Context, intentID string) (usecase.PaymentResult, error) {
	var out intentResponse
	var apiErr errorResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("id", intentID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/payment_intents/{id}")
	if err != nil {
		return usecase.PaymentResult{}, fmt.Errorf("get intent: %w", err)
	}
	if resp.IsError() {
		return usecase.PaymentResult{}, fmt.Errorf("get intent: status %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return usecase.PaymentResult{IntentID: out.ID, Status: toPaymentStatus(out.Status)}, nil
}

func toPaymentStatus(s string) model.PaymentStatus {
	switch strings.ToLower(s) {
	case "succeeded", "captured", "authorized":
		return model.PaymentStatusSucceeded
	case "failed", "declined", "canceled", "cancelled":
		return model.PaymentStatusFailed
	default:
		return model.PaymentStatusPending
	}
}
