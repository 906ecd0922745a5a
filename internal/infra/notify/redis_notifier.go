package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/logger"

	goredis "github.com/redis/go-redis/v9"
)

// 注文作成イベント
type OrderCreatedEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CheckoutID  string    `json:"checkout_session_id"`
	Email       string    `json:"email"`
	Currency    string    `json:"currency"`
	GrandTotal  int64     `json:"grand_total"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func newOrderCreatedEvent(o model.Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		Type:        "order.created",
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CheckoutID:  o.CheckoutSessionID,
		Email:       o.Email,
		Currency:    o.Currency,
		GrandTotal:  o.GrandTotal,
		ItemCount:   len(o.Items),
		CreatedAt:   o.CreatedAt,
	}
}

// テストで差し替える
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// Redis pub/sub に流す
type RedisNotifier struct {
	pub     publisher
	channel string
	log     *logger.Logger
}

func NewRedisNotifier(ctx context.Context, addr, channel string, log *logger.Logger) (*RedisNotifier, *goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisNotifier(rdb, channel, log), rdb, nil
}

func newRedisNotifier(pub publisher, channel string, log *logger.Logger) *RedisNotifier {
	return &RedisNotifier{
		pub:     pub,
		channel: channel,
		log:     log.With("component", "RedisNotifier"),
	}
}

func (n *RedisNotifier) NotifyOrderCreated(ctx context.Context, order model.Order) error {
	raw, err := json.Marshal(newOrderCreatedEvent(order))
	if err != nil {
		return err
	}
	if err := n.pub.Publish(ctx, n.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", n.channel, err)
	}
	n.log.Debug("order event published", "order_id", order.ID, "channel", n.channel)
	return nil
}
