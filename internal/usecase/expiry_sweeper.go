package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"
)

type SweepResult struct {
	SessionsReleased     int
	ReservationsReleased int
	SessionsExpired      int64
	CartsAbandoned       int64
}

// ExpirySweeper は期限切れセッションの引当を戻し、保存上のステータスを EXPIRED にする。
// 複数プロセスで同時に動かしても、引当の戻しは HELD→RELEASED を切り替えた側だけが行う。
type ExpirySweeper struct {
	tx        repo.TransactionManager
	checkouts repo.CheckoutRepository
	carts     repo.CartRepository
	ledger    *InventoryLedger
	clock     Clock
	grace     time.Duration
	interval  time.Duration
	batchSize int
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewExpirySweeper(
	tx repo.TransactionManager,
	checkouts repo.CheckoutRepository,
	carts repo.CartRepository,
	ledger *InventoryLedger,
	clock Clock,
	grace time.Duration,
	interval time.Duration,
	m *metrics.Metrics,
	log *logger.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		tx:        tx,
		checkouts: checkouts,
		carts:     carts,
		ledger:    ledger,
		clock:     clock,
		grace:     grace,
		interval:  interval,
		batchSize: 100,
		metrics:   m,
		log:       log.With("component", "ExpirySweeper"),
	}
}

// ctx が終わるまで interval ごとに SweepOnce を呼ぶ
func (s *ExpirySweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.log.Info("sweeper started", "interval", s.interval.String(), "grace", s.grace.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return nil
		case <-t.C:
			res, err := s.SweepOnce(ctx)
			if err != nil {
				s.log.Error("sweep failed", "error", err)
				continue
			}
			if res.ReservationsReleased > 0 || res.SessionsExpired > 0 || res.CartsAbandoned > 0 {
				s.log.Info("sweep done",
					"sessions_released", res.SessionsReleased,
					"reservations_released", res.ReservationsReleased,
					"sessions_expired", res.SessionsExpired,
					"carts_abandoned", res.CartsAbandoned,
				)
			}
		}
	}
}

func (s *ExpirySweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "ExpirySweeper.SweepOnce")
	defer span.End()

	now := s.clock.Now()
	var res SweepResult

	sessions, err := s.checkouts.ListOverdueWithHolds(ctx, now.Add(-s.grace), s.batchSize)
	if err != nil {
		return res, NewInternal("db error", err)
	}

	for _, sess := range sessions {
		released := 0
		expired := false
		err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			n, err := s.ledger.releaseHolds(ctx, r, sess.ID)
			if err != nil {
				return err
			}
			released = n

			ok, err := r.Checkouts().ExpireIfOverdue(ctx, sess.ID, now)
			if err != nil {
				return NewInternal("db error", err)
			}
			expired = ok
			if !ok {
				return nil
			}
			return writeTransitionAudit(ctx, r, model.AuditActorSystem, sess.ID, sess.Status, model.CheckoutStatusExpired, now)
		})
		if err != nil {
			s.log.Error("release expired checkout", "checkout_id", sess.ID, "error", err)
			continue
		}
		if released > 0 {
			res.SessionsReleased++
			res.ReservationsReleased += released
		}
		if expired {
			res.SessionsExpired++
		}
	}

	n, err := s.checkouts.ExpireOverdueWithoutHolds(ctx, now)
	if err != nil {
		return res, NewInternal("db error", err)
	}
	res.SessionsExpired += n

	abandoned, err := s.carts.AbandonExpired(ctx, now)
	if err != nil {
		return res, NewInternal("db error", err)
	}
	res.CartsAbandoned = abandoned

	s.metrics.ObserveSweep(res.ReservationsReleased, res.SessionsExpired)
	return res, nil
}
