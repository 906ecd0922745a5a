package notify

import (
	"context"

	"storefront/internal/domain/model"
	"storefront/internal/logger"
)

// REDIS_ADDR 未設定時はログに出すだけ
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "LogNotifier")}
}

func (n *LogNotifier) NotifyOrderCreated(ctx context.Context, order model.Order) error {
	n.log.Info("order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"grand_total", order.GrandTotal,
		"currency", order.Currency,
	)
	return nil
}
