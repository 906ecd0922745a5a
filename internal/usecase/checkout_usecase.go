package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("storefront/usecase")

// 遷移イベントと、それを受け付ける遷移元
type checkoutEvent struct {
	name string
	from []model.CheckoutStatus
}

var (
	evSetAddresses      = checkoutEvent{"SetAddresses", []model.CheckoutStatus{model.CheckoutStatusStarted, model.CheckoutStatusAddressSet}}
	evSetShippingMethod = checkoutEvent{"SetShippingMethod", []model.CheckoutStatus{model.CheckoutStatusAddressSet, model.CheckoutStatusShippingSet}}
	evProcessPayment    = checkoutEvent{"ProcessPayment", []model.CheckoutStatus{model.CheckoutStatusShippingSet}}
	evCompleteCheckout  = checkoutEvent{"CompleteCheckout", []model.CheckoutStatus{model.CheckoutStatusPaymentSet}}
	evCancelCheckout    = checkoutEvent{"CancelCheckout", model.OpenCheckoutStatuses}
)

// s に ev を適用できるか。できなければ順序違反の業務エラーを返す。
func checkTransition(s model.CheckoutSession, ev checkoutEvent, now time.Time) error {
	st := s.EffectiveStatus(now)
	switch st {
	case model.CheckoutStatusExpired:
		return newCheckoutExpired()
	case model.CheckoutStatusCompleted:
		return NewBusiness(CodeCheckoutCompleted, "checkout already completed")
	case model.CheckoutStatusCancelled:
		return NewBusiness(CodeCheckoutCancelled, "checkout cancelled")
	}

	// 決済処理中は取消以外受け付けない
	if st == model.CheckoutStatusShippingSet && s.PaymentStatus == model.PaymentStatusPending && ev.name != evCancelCheckout.name {
		return NewBusiness(CodePaymentAlreadyProcessed, "payment is in progress")
	}

	if slices.Contains(ev.from, st) {
		return nil
	}

	switch st {
	case model.CheckoutStatusStarted:
		return NewBusiness(CodeAddressRequired, "addresses must be set first")
	case model.CheckoutStatusAddressSet:
		return NewBusiness(CodeShippingMethodRequired, "shipping method must be set first")
	case model.CheckoutStatusShippingSet:
		if ev.name == evCompleteCheckout.name {
			return NewBusiness(CodePaymentRequired, "payment must be processed first")
		}
		return NewBusiness(CodeInvalidTransition, "shipping method already chosen")
	case model.CheckoutStatusPaymentSet:
		return NewBusiness(CodePaymentAlreadyProcessed, "payment already processed")
	}
	return NewBusiness(CodeInvalidTransition, "invalid transition "+ev.name)
}

type CheckoutView struct {
	ID               string               `json:"id"`
	CartID           string               `json:"cart_id"`
	Status           model.CheckoutStatus `json:"status"`
	ShippingAddress  *model.Address       `json:"shipping_address,omitempty"`
	BillingAddress   *model.Address       `json:"billing_address,omitempty"`
	ShippingMethodID string               `json:"shipping_method_id,omitempty"`
	ShippingCost     int64                `json:"shipping_cost"`
	PaymentIntentID  string               `json:"payment_intent_id,omitempty"`
	PaymentStatus    model.PaymentStatus  `json:"payment_status,omitempty"`
	OrderID          string               `json:"order_id,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	ExpiresAt        time.Time            `json:"expires_at"`
}

func toCheckoutView(s model.CheckoutSession, now time.Time) CheckoutView {
	v := CheckoutView{
		ID:               s.ID,
		CartID:           s.CartID,
		Status:           s.EffectiveStatus(now),
		ShippingMethodID: s.ShippingMethodID,
		ShippingCost:     s.ShippingCost,
		PaymentIntentID:  s.PaymentIntentID,
		PaymentStatus:    s.PaymentStatus,
		OrderID:          s.OrderID,
		CreatedAt:        s.CreatedAt,
		ExpiresAt:        s.ExpiresAt,
	}
	if !s.ShippingAddress.IsZero() {
		a := s.ShippingAddress
		v.ShippingAddress = &a
	}
	if !s.BillingAddress.IsZero() {
		b := s.BillingAddress
		v.BillingAddress = &b
	}
	return v
}

type AddressesInput struct {
	Shipping model.Address
	// nil なら配送先と同じ
	Billing *model.Address
}

type PaymentInput struct {
	Method string
}

// CheckoutUsecase はチェックアウトの状態遷移を扱う。
type CheckoutUsecase struct {
	tx        repo.TransactionManager
	carts     repo.CartRepository
	items     repo.CartItemRepository
	checkouts repo.CheckoutRepository
	cartUC    *CartUsecase
	ledger    *InventoryLedger
	payments  PaymentGateway
	validator CheckoutValidator
	ids       IDGenerator
	clock     Clock
	cfg       config.CheckoutConfig
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	carts repo.CartRepository,
	items repo.CartItemRepository,
	checkouts repo.CheckoutRepository,
	cartUC *CartUsecase,
	ledger *InventoryLedger,
	payments PaymentGateway,
	validator CheckoutValidator,
	ids IDGenerator,
	clock Clock,
	cfg config.CheckoutConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:        tx,
		carts:     carts,
		items:     items,
		checkouts: checkouts,
		cartUC:    cartUC,
		ledger:    ledger,
		payments:  payments,
		validator: validator,
		ids:       ids,
		clock:     clock,
		cfg:       cfg,
		metrics:   m,
		log:       log.With("component", "CheckoutUsecase"),
	}
}

// 同じ Tx で作成が衝突した（別の呼び出しが先に作った）
var errCheckoutRace = errors.New("checkout created concurrently")

// チェックアウト開始。未終端のセッションがあればそれを返す。
func (u *CheckoutUsecase) StartCheckout(ctx context.Context, id model.Identity, cartID string) (CheckoutView, error) {
	ctx, span := tracer.Start(ctx, "CheckoutUsecase.StartCheckout")
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", cartID))

	cart, err := loadOwnedCart(ctx, u.carts, id, cartID)
	if err != nil {
		return CheckoutView{}, err
	}
	now := u.clock.Now()
	if err := requireActiveCart(cart, now); err != nil {
		return CheckoutView{}, err
	}

	latest, err := u.checkouts.FindLatestByCartID(ctx, cart.ID)
	switch {
	case err == nil:
		if latest.IsOpen(now) {
			return toCheckoutView(latest, now), nil
		}
		if !latest.Status.IsTerminal() {
			// 読み取り上は期限切れ。新しいセッションを作る前に保存値も EXPIRED にする
			if _, err := u.checkouts.ExpireIfOverdue(ctx, latest.ID, now); err != nil {
				return CheckoutView{}, NewInternal("db error", err)
			}
		}
	case errors.Is(err, repo.ErrNotFound):
	default:
		return CheckoutView{}, NewInternal("db error", err)
	}

	lines, err := u.cartUC.inspect(ctx, cart.ID)
	if err != nil {
		return CheckoutView{}, err
	}
	if res := validateLines(cart, lines); !res.Valid {
		codes := make([]string, 0, len(res.Issues))
		for _, is := range res.Issues {
			codes = append(codes, is.Code)
		}
		return CheckoutView{}, NewBusiness(CodeCartInvalid, "cart is not ready for checkout: "+strings.Join(codes, ","))
	}

	s := model.CheckoutSession{
		ID:        u.ids.NewID(),
		CartID:    cart.ID,
		Status:    model.CheckoutStatusStarted,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(u.cfg.CheckoutTTL),
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Carts().TouchActive(ctx, cart.ID, now, now.Add(u.cfg.CartTTL))
		if err != nil {
			return NewInternal("db error", err)
		}
		if !ok {
			return NewBusiness(CodeCartNotActive, "cart is not active")
		}

		cur, err := r.Checkouts().FindLatestByCartID(ctx, cart.ID)
		if err == nil && cur.IsOpen(now) {
			s = cur
			return nil
		}
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return NewInternal("db error", err)
		}

		if err := r.Checkouts().Create(ctx, s); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return errCheckoutRace
			}
			return NewInternal("db error", err)
		}
		return writeTransitionAudit(ctx, r, id.String(), s.ID, "", model.CheckoutStatusStarted, now)
	})
	if errors.Is(err, errCheckoutRace) {
		cur, ferr := u.checkouts.FindLatestByCartID(ctx, cart.ID)
		if ferr != nil || !cur.IsOpen(now) {
			return CheckoutView{}, NewConflict("checkout created concurrently", err)
		}
		return toCheckoutView(cur, now), nil
	}
	if err != nil {
		return CheckoutView{}, err
	}

	u.log.Info("checkout started", "checkout_id", s.ID, "cart_id", cart.ID)
	return toCheckoutView(s, now), nil
}

func (u *CheckoutUsecase) GetCheckout(ctx context.Context, id model.Identity, checkoutID string) (CheckoutView, error) {
	s, _, err := u.loadOwned(ctx, id, checkoutID)
	if err != nil {
		return CheckoutView{}, err
	}
	now := u.clock.Now()
	if s.EffectiveStatus(now) == model.CheckoutStatusExpired {
		return CheckoutView{}, newCheckoutExpired()
	}
	return toCheckoutView(s, now), nil
}

// 配送先・請求先を設定
func (u *CheckoutUsecase) SetAddresses(ctx context.Context, id model.Identity, checkoutID string, in AddressesInput) (CheckoutView, error) {
	shipping := in.Shipping
	billing := shipping
	if in.Billing != nil {
		billing = *in.Billing
	}
	if err := u.validator.ValidateAddress(shipping); err != nil {
		return CheckoutView{}, NewValidation(CodeInvalidAddress, "invalid shipping address: "+err.Error())
	}
	if err := u.validator.ValidateAddress(billing); err != nil {
		return CheckoutView{}, NewValidation(CodeInvalidAddress, "invalid billing address: "+err.Error())
	}

	s, _, err := u.loadOwned(ctx, id, checkoutID)
	if err != nil {
		return CheckoutView{}, err
	}
	return u.transition(ctx, id, s, evSetAddresses, repo.CheckoutChanges{
		Status:          model.CheckoutStatusAddressSet,
		ShippingAddress: &shipping,
		BillingAddress:  &billing,
	})
}

// 選べる配送方法と送料
func (u *CheckoutUsecase) GetShippingMethods(ctx context.Context, id model.Identity, checkoutID string) ([]ShippingMethod, error) {
	s, cart, err := u.loadOwned(ctx, id, checkoutID)
	if err != nil {
		return nil, err
	}
	if !s.IsOpen(u.clock.Now()) {
		return nil, checkTransition(s, evCancelCheckout, u.clock.Now())
	}
	subtotal, err := u.subtotal(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return quoteShippingMethods(subtotal, u.cfg.FreeShippingThreshold), nil
}

func (u *CheckoutUsecase) SetShippingMethod(ctx context.Context, id model.Identity, checkoutID string, methodID string) (CheckoutView, error) {
	s, cart, err := u.loadOwned(ctx, id, checkoutID)
	if err != nil {
		return CheckoutView{}, err
	}
	if err := checkTransition(s, evSetShippingMethod, u.clock.Now()); err != nil {
		return CheckoutView{}, err
	}

	subtotal, err := u.subtotal(ctx, cart.ID)
	if err != nil {
		return CheckoutView{}, err
	}
	m, ok := findShippingMethod(quoteShippingMethods(subtotal, u.cfg.FreeShippingThreshold), strings.TrimSpace(methodID))
	if !ok {
		return CheckoutView{}, NewValidation(CodeUnknownShippingMethod, "unknown shipping method")
	}

	return u.transition(ctx, id, s, evSetShippingMethod, repo.CheckoutChanges{
		Status:           model.CheckoutStatusShippingSet,
		ShippingMethodID: &m.ID,
		ShippingCost:     &m.Cost,
	})
}

// 在庫を引き当ててから決済する。決済が失敗したら引当を戻して SHIPPING_SET のまま。
func (u *CheckoutUsecase) ProcessPayment(ctx context.Context, id model.Identity, checkoutID string, in PaymentInput) (CheckoutView, error) {
	ctx, span := tracer.Start(ctx, "CheckoutUsecase.ProcessPayment")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.id", checkoutID))

	s, cart, err := u.loadOwned(ctx, id, checkoutID)
	if err != nil {
		return CheckoutView{}, err
	}
	now := u.clock.Now()
	if err := checkTransition(s, evProcessPayment, now); err != nil {
		return CheckoutView{}, err
	}
	if cart.Status != model.CartStatusActive {
		return CheckoutView{}, NewBusiness(CodeCartNotActive, "cart is not active")
	}

	lines, err := u.cartUC.inspect(ctx, cart.ID)
	if err != nil {
		return CheckoutView{}, err
	}
	if len(lines) == 0 {
		return CheckoutView{}, NewBusiness(CodeCartInvalid, "cart is empty")
	}

	var subtotal int64
	holds := make([]holdLine, 0, len(lines))
	for _, li := range lines {
		if !li.available {
			return CheckoutView{}, NewBusiness(CodeVariantUnavailable, "variant is unavailable: "+li.item.VariantID)
		}
		subtotal += li.item.Quantity * li.item.UnitPriceSnapshot
		if li.stock.tracked {
			holds = append(holds, holdLine{VariantID: li.item.VariantID, Quantity: li.item.Quantity})
		}
	}

	// 決済の権利を取って全行を引き当てる。1行でも失敗したら Tx ごと戻る
	var attempt int
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Checkouts().ClaimPayment(ctx, s.ID, now)
		if err != nil {
			return NewInternal("db error", err)
		}
		cur, err := r.Checkouts().FindByID(ctx, s.ID)
		if err != nil {
			return NewInternal("db error", err)
		}
		if !ok {
			if terr := checkTransition(cur, evProcessPayment, now); terr != nil {
				return terr
			}
			return NewBusiness(CodePaymentAlreadyProcessed, "payment is in progress")
		}
		attempt = cur.PaymentAttempts
		return u.ledger.holdAll(ctx, r, s.ID, holds)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reserve failed")
		return CheckoutView{}, err
	}

	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = "card"
	}
	res, payErr := u.payments.Authorize(ctx, PaymentRequest{
		Amount:         subtotal + s.ShippingCost,
		Currency:       cart.Currency,
		Method:         method,
		IdempotencyKey: paymentIdempotencyKey(s.ID, attempt),
	})
	if payErr != nil || res.Status == model.PaymentStatusFailed {
		u.metrics.ObservePayment(string(model.PaymentStatusFailed))
		if rerr := u.abandonPayment(ctx, s.ID, res.IntentID); rerr != nil {
			u.log.Error("release after failed payment", "checkout_id", s.ID, "error", rerr)
			return CheckoutView{}, rerr
		}
		if payErr != nil {
			span.RecordError(payErr)
			return CheckoutView{}, NewInternal("payment gateway error", payErr)
		}
		u.log.Info("payment failed", "checkout_id", s.ID, "intent_id", res.IntentID)
		return CheckoutView{}, NewBusiness(CodePaymentFailed, "payment was declined")
	}
	u.metrics.ObservePayment(string(res.Status))

	var lost error
	now = u.clock.Now()
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		intent, status := res.IntentID, res.Status
		ok, err := r.Checkouts().Transition(ctx, s.ID, evProcessPayment.from, now, repo.CheckoutChanges{
			Status:          model.CheckoutStatusPaymentSet,
			PaymentIntentID: &intent,
			PaymentStatus:   &status,
		})
		if err != nil {
			return NewInternal("db error", err)
		}
		if !ok {
			// 決済中に期限切れ・取消になった。引当はここで戻す
			if _, err := u.ledger.releaseHolds(ctx, r, s.ID); err != nil {
				return err
			}
			cur, err := r.Checkouts().FindByID(ctx, s.ID)
			if err != nil {
				return NewInternal("db error", err)
			}
			lost = checkTransition(cur, evProcessPayment, now)
			if lost == nil {
				lost = newCheckoutExpired()
			}
			return nil
		}
		return writeTransitionAudit(ctx, r, id.String(), s.ID, model.CheckoutStatusShippingSet, model.CheckoutStatusPaymentSet, now)
	})
	if err != nil {
		return CheckoutView{}, err
	}
	if lost != nil {
		u.log.Warn("payment authorized after checkout closed", "checkout_id", s.ID, "intent_id", res.IntentID)
		return CheckoutView{}, lost
	}

	u.log.Info("payment processed", "checkout_id", s.ID, "intent_id", res.IntentID, "status", res.Status)
	return u.reload(ctx, s.ID)
}

// 取消。持っている引当は戻す。
func (u *CheckoutUsecase) CancelCheckout(ctx context.Context, id model.Identity, checkoutID string) (CheckoutView, error) {
	s, _, err := u.loadOwned(ctx, id, checkoutID)
	if err != nil {
		return CheckoutView{}, err
	}
	now := u.clock.Now()
	if err := checkTransition(s, evCancelCheckout, now); err != nil {
		return CheckoutView{}, err
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Checkouts().Transition(ctx, s.ID, evCancelCheckout.from, now, repo.CheckoutChanges{Status: model.CheckoutStatusCancelled})
		if err != nil {
			return NewInternal("db error", err)
		}
		if !ok {
			return u.explainLostTransition(ctx, r, s.ID, evCancelCheckout, now)
		}
		if _, err := u.ledger.releaseHolds(ctx, r, s.ID); err != nil {
			return err
		}
		return writeTransitionAudit(ctx, r, id.String(), s.ID, s.Status, model.CheckoutStatusCancelled, now)
	})
	if err != nil {
		return CheckoutView{}, err
	}

	u.log.Info("checkout cancelled", "checkout_id", s.ID)
	return u.reload(ctx, s.ID)
}

// 決済失敗：引当を戻し、SHIPPING_SET のまま payment_status を failed にする
func (u *CheckoutUsecase) abandonPayment(ctx context.Context, checkoutID string, intentID string) error {
	now := u.clock.Now()
	failed := model.PaymentStatusFailed
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := u.ledger.releaseHolds(ctx, r, checkoutID); err != nil {
			return err
		}
		changes := repo.CheckoutChanges{
			Status:        model.CheckoutStatusShippingSet,
			PaymentStatus: &failed,
		}
		if intentID != "" {
			changes.PaymentIntentID = &intentID
		}
		if _, err := r.Checkouts().Transition(ctx, checkoutID, evProcessPayment.from, now, changes); err != nil {
			return NewInternal("db error", err)
		}
		return nil
	})
}

// 共通の遷移処理（条件付きUPDATE＋監査ログ）
func (u *CheckoutUsecase) transition(ctx context.Context, id model.Identity, s model.CheckoutSession, ev checkoutEvent, changes repo.CheckoutChanges) (CheckoutView, error) {
	now := u.clock.Now()
	if err := checkTransition(s, ev, now); err != nil {
		return CheckoutView{}, err
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Checkouts().Transition(ctx, s.ID, ev.from, now, changes)
		if err != nil {
			return NewInternal("db error", err)
		}
		if !ok {
			return u.explainLostTransition(ctx, r, s.ID, ev, now)
		}
		if s.Status == changes.Status {
			return nil
		}
		return writeTransitionAudit(ctx, r, id.String(), s.ID, s.Status, changes.Status, now)
	})
	if err != nil {
		return CheckoutView{}, err
	}
	return u.reload(ctx, s.ID)
}

// 条件付きUPDATEが0件だった理由を返す
func (u *CheckoutUsecase) explainLostTransition(ctx context.Context, r repo.TxRepos, checkoutID string, ev checkoutEvent, now time.Time) error {
	cur, err := r.Checkouts().FindByID(ctx, checkoutID)
	if err != nil {
		return NewInternal("db error", err)
	}
	if terr := checkTransition(cur, ev, now); terr != nil {
		return terr
	}
	return NewConflict("checkout changed concurrently", nil)
}

func (u *CheckoutUsecase) reload(ctx context.Context, checkoutID string) (CheckoutView, error) {
	s, err := u.checkouts.FindByID(ctx, checkoutID)
	if err != nil {
		return CheckoutView{}, NewInternal("db error", err)
	}
	return toCheckoutView(s, u.clock.Now()), nil
}

// セッションとカートを取得。カートの持ち主でなければ「存在しない扱い」。
func (u *CheckoutUsecase) loadOwned(ctx context.Context, id model.Identity, checkoutID string) (model.CheckoutSession, model.Cart, error) {
	return loadOwnedCheckout(ctx, u.checkouts, u.carts, id, checkoutID)
}

func loadOwnedCheckout(ctx context.Context, checkouts repo.CheckoutRepository, carts repo.CartRepository, id model.Identity, checkoutID string) (model.CheckoutSession, model.Cart, error) {
	s, err := checkouts.FindByID(ctx, checkoutID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CheckoutSession{}, model.Cart{}, NewNotFound("checkout not found")
	}
	if err != nil {
		return model.CheckoutSession{}, model.Cart{}, NewInternal("db error", err)
	}
	cart, err := carts.FindByID(ctx, s.CartID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CheckoutSession{}, model.Cart{}, NewNotFound("checkout not found")
	}
	if err != nil {
		return model.CheckoutSession{}, model.Cart{}, NewInternal("db error", err)
	}
	if !model.SameIdentity(cart.Owner(), id) {
		return model.CheckoutSession{}, model.Cart{}, NewNotFound("checkout not found")
	}
	return s, cart, nil
}

func (u *CheckoutUsecase) subtotal(ctx context.Context, cartID string) (int64, error) {
	items, err := u.items.ListByCartID(ctx, cartID)
	if err != nil {
		return 0, NewInternal("db error", err)
	}
	var sum int64
	for _, it := range items {
		sum += it.Quantity * it.UnitPriceSnapshot
	}
	return sum, nil
}

// 試行ごとに別のキー。同じキーの再送は決済側で前回の結果が返る
func paymentIdempotencyKey(checkoutID string, attempt int) string {
	return fmt.Sprintf("%s:%d", checkoutID, attempt)
}
