package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
)

type LedgerConfig struct {
	ReserveMaxAttempts int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		ReserveMaxAttempts: 3,
		InitialBackoff:     20 * time.Millisecond,
		MaxBackoff:         200 * time.Millisecond,
	}
}

// 引当可能数の参照結果（引当はしない）
type Availability struct {
	VariantID      string `json:"variant_id"`
	OnHand         int64  `json:"on_hand"`
	Reserved       int64  `json:"reserved"`
	Available      int64  `json:"available"`
	AllowBackorder bool   `json:"allow_backorder"`
}

// InventoryLedger はバリアントごとの on_hand / reserved を管理する。
// カウンタは条件付きUPDATE1文でしか動かさない。
type InventoryLedger struct {
	tx        repo.TransactionManager
	inventory repo.InventoryRepository
	ids       IDGenerator
	clock     Clock
	cfg       LedgerConfig
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewInventoryLedger(
	tx repo.TransactionManager,
	inventory repo.InventoryRepository,
	ids IDGenerator,
	clock Clock,
	cfg LedgerConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *InventoryLedger {
	if cfg.ReserveMaxAttempts < 1 {
		cfg.ReserveMaxAttempts = 1
	}
	return &InventoryLedger{
		tx:        tx,
		inventory: inventory,
		ids:       ids,
		clock:     clock,
		cfg:       cfg,
		metrics:   m,
		log:       log.With("component", "InventoryLedger"),
	}
}

// 在庫を引き当てる。足りなければ OUT_OF_STOCK。
func (l *InventoryLedger) Reserve(ctx context.Context, variantID string, qty int64) error {
	return l.reserveOn(ctx, l.inventory, variantID, qty)
}

// 引当を戻す。reserved は0未満にならない。
func (l *InventoryLedger) Release(ctx context.Context, variantID string, qty int64) error {
	if qty < 1 {
		return NewValidation(CodeInvalidQuantity, "quantity must be >= 1")
	}
	if err := l.inventory.Release(ctx, variantID, qty, l.clock.Now()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("variant not found")
		}
		return NewInternal("release failed", err)
	}
	return nil
}

// 引当済みの数量を出庫として確定する
func (l *InventoryLedger) Commit(ctx context.Context, variantID string, qty int64) error {
	return commitOn(ctx, l.inventory, variantID, qty, l.clock.Now())
}

func (l *InventoryLedger) Available(ctx context.Context, variantID string) (Availability, error) {
	rec, err := l.inventory.FindByVariantID(ctx, variantID)
	if errors.Is(err, repo.ErrNotFound) {
		return Availability{}, NewNotFound("variant not found")
	}
	if err != nil {
		return Availability{}, NewInternal("db error", err)
	}
	return toAvailability(rec), nil
}

// バリアントと在庫レコードを作る（シード・テスト用）
func (l *InventoryLedger) DefineVariant(ctx context.Context, v model.ProductVariant, onHand int64) (model.ProductVariant, error) {
	if onHand < 0 {
		return model.ProductVariant{}, NewValidation(CodeInvalidQuantity, "on_hand must be >= 0")
	}
	if v.ID == "" {
		v.ID = l.ids.NewID()
	}
	if v.UnitPrice < 0 {
		return model.ProductVariant{}, NewValidation(CodeValidation, "unit_price must be >= 0")
	}
	now := l.clock.Now()
	v.CreatedAt = now
	v.UpdatedAt = now

	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Variants().Create(ctx, v); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return NewConflict("sku already exists", err)
			}
			return NewInternal("db error", err)
		}
		if err := r.Inventory().Create(ctx, model.InventoryRecord{
			VariantID:      v.ID,
			OnHand:         onHand,
			Reserved:       0,
			AllowBackorder: v.AllowBackorder,
			UpdatedAt:      now,
		}); err != nil {
			return NewInternal("db error", err)
		}
		return nil
	})
	if err != nil {
		return model.ProductVariant{}, err
	}
	return v, nil
}

// 入荷・棚卸しで on_hand を動かし、履歴を残す
func (l *InventoryLedger) Restock(ctx context.Context, actor string, variantID string, delta int64, reason string) (Availability, error) {
	if delta == 0 {
		return Availability{}, NewValidation(CodeInvalidQuantity, "delta must not be 0")
	}
	if reason == "" {
		return Availability{}, NewValidation(CodeValidation, "reason is required")
	}

	var out Availability
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := l.clock.Now()
		before, err := r.Inventory().FindByVariantID(ctx, variantID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("variant not found")
		}
		if err != nil {
			return NewInternal("db error", err)
		}

		ok, err := r.Inventory().AdjustOnHand(ctx, variantID, delta, now)
		if err != nil {
			return NewInternal("db error", err)
		}
		if !ok {
			return NewBusiness(CodeOutOfStock, "on_hand would drop below reserved")
		}

		after, err := r.Inventory().FindByVariantID(ctx, variantID)
		if err != nil {
			return NewInternal("db error", err)
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			VariantID: variantID,
			Delta:     delta,
			OnHand:    after.OnHand,
			Reason:    reason,
			CreatedAt: now,
		}); err != nil {
			return NewInternal("db error", err)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        actor,
			Action:       model.AuditActionRestock,
			ResourceType: model.AuditResourceInventory,
			ResourceID:   variantID,
			BeforeJSON:   fmt.Sprintf(`{"on_hand":%d,"reserved":%d}`, before.OnHand, before.Reserved),
			AfterJSON:    fmt.Sprintf(`{"on_hand":%d,"reserved":%d}`, after.OnHand, after.Reserved),
			CreatedAt:    now,
		}); err != nil {
			return NewInternal("db error", err)
		}

		out = toAvailability(after)
		return nil
	})
	if err != nil {
		return Availability{}, err
	}

	l.log.Info("restocked", "variant_id", variantID, "delta", delta, "on_hand", out.OnHand)
	return out, nil
}

// 引き当てたい1行
type holdLine struct {
	VariantID string
	Quantity  int64
}

// Tx内で各行を引き当てて HELD の引当行を作る。失敗したら呼び出し側の Tx ごと戻す。
func (l *InventoryLedger) holdAll(ctx context.Context, r repo.TxRepos, checkoutID string, lines []holdLine) error {
	ctx, span := tracer.Start(ctx, "InventoryLedger.holdAll")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.id", checkoutID), attribute.Int("lines", len(lines)))

	now := l.clock.Now()
	for _, ln := range lines {
		if err := l.reserveOn(ctx, r.Inventory(), ln.VariantID, ln.Quantity); err != nil {
			return err
		}
		if err := r.Reservations().Create(ctx, model.StockReservation{
			ID:                l.ids.NewID(),
			CheckoutSessionID: checkoutID,
			VariantID:         ln.VariantID,
			Quantity:          ln.Quantity,
			Status:            model.ReservationStatusHeld,
			CreatedAt:         now,
			UpdatedAt:         now,
		}); err != nil {
			return NewInternal("db error", err)
		}
	}
	return nil
}

// HELD の引当を RELEASED にして在庫を戻す。自分が切り替えた行だけ戻すので二重に戻らない。
func (l *InventoryLedger) releaseHolds(ctx context.Context, r repo.TxRepos, checkoutID string) (int, error) {
	holds, err := r.Reservations().ListBySession(ctx, checkoutID, model.ReservationStatusHeld)
	if err != nil {
		return 0, NewInternal("db error", err)
	}

	now := l.clock.Now()
	released := 0
	for _, h := range holds {
		flipped, err := r.Reservations().MarkIf(ctx, h.ID, model.ReservationStatusHeld, model.ReservationStatusReleased, now)
		if err != nil {
			return released, NewInternal("db error", err)
		}
		if !flipped {
			continue
		}
		if err := r.Inventory().Release(ctx, h.VariantID, h.Quantity, now); err != nil {
			return released, NewInternal("release failed", err)
		}
		released++
	}
	return released, nil
}

// HELD の引当を COMMITTED にして出庫を確定する
func (l *InventoryLedger) commitHolds(ctx context.Context, r repo.TxRepos, checkoutID string) (int, error) {
	holds, err := r.Reservations().ListBySession(ctx, checkoutID, model.ReservationStatusHeld)
	if err != nil {
		return 0, NewInternal("db error", err)
	}

	now := l.clock.Now()
	committed := 0
	for _, h := range holds {
		flipped, err := r.Reservations().MarkIf(ctx, h.ID, model.ReservationStatusHeld, model.ReservationStatusCommitted, now)
		if err != nil {
			return committed, NewInternal("db error", err)
		}
		if !flipped {
			continue
		}
		if err := commitOn(ctx, r.Inventory(), h.VariantID, h.Quantity, now); err != nil {
			return committed, err
		}
		committed++
	}
	return committed, nil
}

func (l *InventoryLedger) reserveOn(ctx context.Context, inv repo.InventoryRepository, variantID string, qty int64) error {
	if qty < 1 {
		return NewValidation(CodeInvalidQuantity, "quantity must be >= 1")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.InitialBackoff
	b.MaxInterval = l.cfg.MaxBackoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			l.metrics.ObserveReserveRetry()
		}

		ok, err := inv.ReserveIfAvailable(ctx, variantID, qty, l.clock.Now())
		if err != nil {
			return struct{}{}, backoff.Permanent(NewInternal("reserve failed", err))
		}
		if ok {
			return struct{}{}, nil
		}

		rec, err := inv.FindByVariantID(ctx, variantID)
		if errors.Is(err, repo.ErrNotFound) {
			return struct{}{}, backoff.Permanent(NewNotFound("variant not found"))
		}
		if err != nil {
			return struct{}{}, backoff.Permanent(NewInternal("db error", err))
		}
		if rec.Available() < qty {
			return struct{}{}, backoff.Permanent(newOutOfStock(variantID))
		}
		// 読んだ時点では足りている。別の引当と競合したので再試行する
		return struct{}{}, newOutOfStock(variantID)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(l.cfg.ReserveMaxAttempts)))

	switch {
	case err == nil:
		l.metrics.ObserveReservation("ok")
	case HasCode(err, CodeOutOfStock):
		l.metrics.ObserveReservation("out_of_stock")
	default:
		l.metrics.ObserveReservation("error")
	}
	return err
}

func commitOn(ctx context.Context, inv repo.InventoryRepository, variantID string, qty int64, now time.Time) error {
	ok, err := inv.CommitReserved(ctx, variantID, qty, now)
	if err != nil {
		return NewInternal("commit failed", err)
	}
	if !ok {
		return NewInternal("commit failed: "+variantID, ErrCommitWithoutReservation)
	}
	return nil
}

func toAvailability(rec model.InventoryRecord) Availability {
	return Availability{
		VariantID:      rec.VariantID,
		OnHand:         rec.OnHand,
		Reserved:       rec.Reserved,
		Available:      rec.Available(),
		AllowBackorder: rec.AllowBackorder,
	}
}
