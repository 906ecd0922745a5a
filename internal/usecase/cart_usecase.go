package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/logger"
	repo "storefront/internal/repository"
)

// カートの警告（表示用。カート操作は止めない）
const (
	WarningPriceChanged = "price_changed"
	WarningOutOfStock   = "out_of_stock"
	WarningLowStock     = "low_stock"
	WarningUnavailable  = "unavailable"
)

// Validate の問題コード（1つでもあればチェックアウト開始不可）
const (
	IssueEmptyCart          = "EMPTY_CART"
	IssueEmailRequired      = "EMAIL_REQUIRED"
	IssueOutOfStock         = "OUT_OF_STOCK"
	IssuePriceChanged       = "PRICE_CHANGED"
	IssueVariantUnavailable = "VARIANT_UNAVAILABLE"
)

// CartUsecase は /carts の業務ロジックです。
type CartUsecase struct {
	tx        repo.TransactionManager
	carts     repo.CartRepository
	items     repo.CartItemRepository
	checkouts repo.CheckoutRepository
	catalog   Catalog
	ledger    *InventoryLedger
	validator CheckoutValidator
	ids       IDGenerator
	clock     Clock
	cfg       config.CheckoutConfig
	log       *logger.Logger
}

func NewCartUsecase(
	tx repo.TransactionManager,
	carts repo.CartRepository,
	items repo.CartItemRepository,
	checkouts repo.CheckoutRepository,
	catalog Catalog,
	ledger *InventoryLedger,
	validator CheckoutValidator,
	ids IDGenerator,
	clock Clock,
	cfg config.CheckoutConfig,
	log *logger.Logger,
) *CartUsecase {
	return &CartUsecase{
		tx:        tx,
		carts:     carts,
		items:     items,
		checkouts: checkouts,
		catalog:   catalog,
		ledger:    ledger,
		validator: validator,
		ids:       ids,
		clock:     clock,
		cfg:       cfg,
		log:       log.With("component", "CartUsecase"),
	}
}

type CartLine struct {
	ID                string           `json:"id"`
	VariantID         string           `json:"variant_id"`
	ProductName       string           `json:"product_name"`
	VariantName       string           `json:"variant_name"`
	SKU               string           `json:"sku"`
	Quantity          int64            `json:"quantity"`
	UnitPriceSnapshot int64            `json:"unit_price_snapshot"`
	CurrentUnitPrice  int64            `json:"current_unit_price"`
	LineTotal         int64            `json:"line_total"`
	Attributes        model.Attributes `json:"attributes"`
	AddedAt           time.Time        `json:"added_at"`
}

type CartWarning struct {
	Code      string `json:"code"`
	ItemID    string `json:"item_id"`
	VariantID string `json:"variant_id"`
	Message   string `json:"message"`
}

type CartDetails struct {
	ID        string           `json:"id"`
	Status    model.CartStatus `json:"status"`
	Currency  string           `json:"currency"`
	Email     string           `json:"email"`
	Items     []CartLine       `json:"items"`
	ItemCount int64            `json:"item_count"`
	Subtotal  int64            `json:"subtotal"`
	Warnings  []CartWarning    `json:"warnings"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type ValidationIssue struct {
	Code      string `json:"code"`
	ItemID    string `json:"item_id,omitempty"`
	VariantID string `json:"variant_id,omitempty"`
	Message   string `json:"message"`
}

type CartValidation struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues"`
}

type AddItemInput struct {
	VariantID string
	Quantity  int64
}

// Identity の ACTIVE カートを返す（無ければ作る）。期限切れなら ABANDONED にして作り直す。
func (u *CartUsecase) CreateCart(ctx context.Context, id model.Identity) (CartDetails, error) {
	kind, ref, err := model.OwnerColumns(id)
	if err != nil {
		return CartDetails{}, NewValidation(CodeValidation, err.Error())
	}

	now := u.clock.Now()
	cart, created, err := u.carts.GetOrCreateActiveByOwner(ctx, u.newCart(kind, ref, now))
	if err != nil {
		return CartDetails{}, NewInternal("db error", err)
	}

	if !created && cart.IsExpired(now) {
		if _, err := u.carts.UpdateStatusIf(ctx, cart.ID, model.CartStatusActive, model.CartStatusAbandoned, now); err != nil {
			return CartDetails{}, NewInternal("db error", err)
		}
		u.log.Info("expired cart abandoned", "cart_id", cart.ID)

		cart, _, err = u.carts.GetOrCreateActiveByOwner(ctx, u.newCart(kind, ref, now))
		if err != nil {
			return CartDetails{}, NewInternal("db error", err)
		}
	}

	return u.buildDetails(ctx, cart)
}

// カートに追加（同一バリアントは数量加算、単価スナップショットは最初の値のまま）。
func (u *CartUsecase) AddItem(ctx context.Context, id model.Identity, cartID string, in AddItemInput) (CartDetails, error) {
	if strings.TrimSpace(in.VariantID) == "" {
		return CartDetails{}, NewValidation(CodeValidation, "variant_id is required")
	}
	if err := u.checkQuantity(in.Quantity); err != nil {
		return CartDetails{}, err
	}

	v, stock, err := u.lookupVariant(ctx, in.VariantID)
	if err != nil {
		return CartDetails{}, err
	}

	return u.mutate(ctx, id, cartID, func(r repo.TxRepos, cart model.Cart, now time.Time) error {
		var current int64
		existing, err := r.CartItems().FindByCartAndVariant(ctx, cart.ID, v.ID)
		switch {
		case err == nil:
			current = existing.Quantity
		case errors.Is(err, repo.ErrNotFound):
		default:
			return NewInternal("db error", err)
		}

		newQty := current + in.Quantity
		if err := u.checkQuantity(newQty); err != nil {
			return err
		}
		if stock.short(newQty) {
			return newOutOfStock(v.ID)
		}

		if _, err := r.CartItems().UpsertByCartAndVariant(ctx, model.CartItem{
			ID:                u.ids.NewID(),
			CartID:            cart.ID,
			VariantID:         v.ID,
			Quantity:          in.Quantity,
			UnitPriceSnapshot: v.UnitPrice,
			AddedAt:           now,
			UpdatedAt:         now,
		}); err != nil {
			return NewInternal("db error", err)
		}
		return nil
	})
}

// 数量変更。0 なら削除。単価スナップショットは現在の価格に更新する。
func (u *CartUsecase) UpdateItem(ctx context.Context, id model.Identity, cartID string, itemID string, qty int64) (CartDetails, error) {
	if qty == 0 {
		return u.RemoveItem(ctx, id, cartID, itemID)
	}
	if err := u.checkQuantity(qty); err != nil {
		return CartDetails{}, err
	}

	if _, err := u.loadOwned(ctx, id, cartID); err != nil {
		return CartDetails{}, err
	}
	item, err := u.items.FindByID(ctx, itemID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && item.CartID != cartID) {
		return CartDetails{}, NewNotFound("cart item not found")
	}
	if err != nil {
		return CartDetails{}, NewInternal("db error", err)
	}

	v, stock, err := u.lookupVariant(ctx, item.VariantID)
	if err != nil {
		return CartDetails{}, err
	}
	if stock.short(qty) {
		return CartDetails{}, newOutOfStock(v.ID)
	}

	return u.mutate(ctx, id, cartID, func(r repo.TxRepos, cart model.Cart, now time.Time) error {
		if err := r.CartItems().UpdateQuantity(ctx, item.ID, qty, v.UnitPrice, now); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewNotFound("cart item not found")
			}
			return NewInternal("db error", err)
		}
		return nil
	})
}

// 明細削除
func (u *CartUsecase) RemoveItem(ctx context.Context, id model.Identity, cartID string, itemID string) (CartDetails, error) {
	return u.mutate(ctx, id, cartID, func(r repo.TxRepos, cart model.Cart, now time.Time) error {
		item, err := r.CartItems().FindByID(ctx, itemID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && item.CartID != cart.ID) {
			return NewNotFound("cart item not found")
		}
		if err != nil {
			return NewInternal("db error", err)
		}
		if err := r.CartItems().DeleteByID(ctx, item.ID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewNotFound("cart item not found")
			}
			return NewInternal("db error", err)
		}
		return nil
	})
}

func (u *CartUsecase) GetDetails(ctx context.Context, id model.Identity, cartID string) (CartDetails, error) {
	cart, err := u.loadOwned(ctx, id, cartID)
	if err != nil {
		return CartDetails{}, err
	}
	return u.buildDetails(ctx, cart)
}

// 連絡先メールを設定
func (u *CartUsecase) SetEmail(ctx context.Context, id model.Identity, cartID string, email string) (CartDetails, error) {
	email = strings.TrimSpace(email)
	if err := u.validator.ValidateEmail(email); err != nil {
		return CartDetails{}, NewValidation(CodeInvalidEmail, "invalid email")
	}
	return u.mutate(ctx, id, cartID, func(r repo.TxRepos, cart model.Cart, now time.Time) error {
		if err := r.Carts().SetEmail(ctx, cart.ID, email, now); err != nil {
			return NewInternal("db error", err)
		}
		return nil
	})
}

// チェックアウトを始められるか
func (u *CartUsecase) Validate(ctx context.Context, id model.Identity, cartID string) (CartValidation, error) {
	cart, err := u.loadOwned(ctx, id, cartID)
	if err != nil {
		return CartValidation{}, err
	}
	lines, err := u.inspect(ctx, cart.ID)
	if err != nil {
		return CartValidation{}, err
	}
	return validateLines(cart, lines), nil
}

// 在庫の参照結果（引当なし）
type stockView struct {
	tracked   bool
	backorder bool
	avail     Availability
}

// qty を載せると在庫が足りないか
func (s stockView) short(qty int64) bool {
	return s.tracked && !s.backorder && qty > s.avail.Available
}

// カート明細1行ぶんのカタログ・在庫の突き合わせ
type lineInspection struct {
	item      model.CartItem
	variant   model.ProductVariant
	available bool
	stock     stockView
}

func (u *CartUsecase) inspect(ctx context.Context, cartID string) ([]lineInspection, error) {
	items, err := u.items.ListByCartID(ctx, cartID)
	if err != nil {
		return nil, NewInternal("db error", err)
	}

	out := make([]lineInspection, 0, len(items))
	for _, it := range items {
		li := lineInspection{item: it}

		v, err := u.catalog.GetVariant(ctx, it.VariantID)
		switch {
		case err == nil:
			li.variant = v
			li.available = v.IsActive
		case errors.Is(err, repo.ErrNotFound):
			li.available = false
		default:
			return nil, NewInternal("catalog error", err)
		}

		if li.available {
			st, err := u.stockFor(ctx, v)
			if err != nil {
				return nil, err
			}
			li.stock = st
		}
		out = append(out, li)
	}
	return out, nil
}

func validateLines(cart model.Cart, lines []lineInspection) CartValidation {
	issues := []ValidationIssue{}
	if len(lines) == 0 {
		issues = append(issues, ValidationIssue{Code: IssueEmptyCart, Message: "cart is empty"})
	}
	if strings.TrimSpace(cart.Email) == "" {
		issues = append(issues, ValidationIssue{Code: IssueEmailRequired, Message: "contact email is required"})
	}
	for _, li := range lines {
		if !li.available {
			issues = append(issues, ValidationIssue{Code: IssueVariantUnavailable, ItemID: li.item.ID, VariantID: li.item.VariantID, Message: "variant is unavailable"})
			continue
		}
		if li.stock.short(li.item.Quantity) {
			issues = append(issues, ValidationIssue{Code: IssueOutOfStock, ItemID: li.item.ID, VariantID: li.item.VariantID, Message: "not enough stock"})
		}
		if li.variant.UnitPrice != li.item.UnitPriceSnapshot {
			issues = append(issues, ValidationIssue{Code: IssuePriceChanged, ItemID: li.item.ID, VariantID: li.item.VariantID, Message: "price has changed"})
		}
	}
	return CartValidation{Valid: len(issues) == 0, Issues: issues}
}

func (u *CartUsecase) buildDetails(ctx context.Context, cart model.Cart) (CartDetails, error) {
	lines, err := u.inspect(ctx, cart.ID)
	if err != nil {
		return CartDetails{}, err
	}

	out := CartDetails{
		ID:        cart.ID,
		Status:    cart.Status,
		Currency:  cart.Currency,
		Email:     cart.Email,
		Items:     make([]CartLine, 0, len(lines)),
		Warnings:  []CartWarning{},
		ExpiresAt: cart.ExpiresAt,
	}

	for _, li := range lines {
		it := li.item
		line := CartLine{
			ID:                it.ID,
			VariantID:         it.VariantID,
			ProductName:       li.variant.ProductName,
			VariantName:       li.variant.VariantName,
			SKU:               li.variant.SKU,
			Quantity:          it.Quantity,
			UnitPriceSnapshot: it.UnitPriceSnapshot,
			CurrentUnitPrice:  li.variant.UnitPrice,
			LineTotal:         it.Quantity * it.UnitPriceSnapshot,
			Attributes:        li.variant.Attributes.Data(),
			AddedAt:           it.AddedAt,
		}
		out.Items = append(out.Items, line)
		out.ItemCount += it.Quantity
		out.Subtotal += line.LineTotal

		if !li.available {
			out.Warnings = append(out.Warnings, CartWarning{Code: WarningUnavailable, ItemID: it.ID, VariantID: it.VariantID, Message: "variant is no longer available"})
			continue
		}
		if li.variant.UnitPrice != it.UnitPriceSnapshot {
			out.Warnings = append(out.Warnings, CartWarning{Code: WarningPriceChanged, ItemID: it.ID, VariantID: it.VariantID, Message: "price has changed since the item was added"})
		}
		switch {
		case li.stock.short(it.Quantity):
			out.Warnings = append(out.Warnings, CartWarning{Code: WarningOutOfStock, ItemID: it.ID, VariantID: it.VariantID, Message: "not enough stock"})
		case li.stock.tracked && !li.stock.backorder && li.stock.avail.Available <= u.cfg.LowStockThreshold:
			out.Warnings = append(out.Warnings, CartWarning{Code: WarningLowStock, ItemID: it.ID, VariantID: it.VariantID, Message: "only a few left"})
		}
	}
	return out, nil
}

// 所有チェック付きでカートを取得。他人のカートは「存在しない扱い」。
func (u *CartUsecase) loadOwned(ctx context.Context, id model.Identity, cartID string) (model.Cart, error) {
	return loadOwnedCart(ctx, u.carts, id, cartID)
}

func loadOwnedCart(ctx context.Context, carts repo.CartRepository, id model.Identity, cartID string) (model.Cart, error) {
	if strings.TrimSpace(cartID) == "" {
		return model.Cart{}, NewNotFound("cart not found")
	}
	cart, err := carts.FindByID(ctx, cartID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, NewNotFound("cart not found")
	}
	if err != nil {
		return model.Cart{}, NewInternal("db error", err)
	}
	if !model.SameIdentity(cart.Owner(), id) {
		return model.Cart{}, NewNotFound("cart not found")
	}
	return cart, nil
}

// 変更系の共通処理。所有・状態・ロックを確認してから Tx 内で fn を実行する。
func (u *CartUsecase) mutate(ctx context.Context, id model.Identity, cartID string, fn func(r repo.TxRepos, cart model.Cart, now time.Time) error) (CartDetails, error) {
	cart, err := u.loadOwned(ctx, id, cartID)
	if err != nil {
		return CartDetails{}, err
	}
	now := u.clock.Now()
	if err := requireActiveCart(cart, now); err != nil {
		return CartDetails{}, err
	}

	expiresAt := now.Add(u.cfg.CartTTL)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Carts().TouchActive(ctx, cart.ID, now, expiresAt)
		if err != nil {
			return NewInternal("db error", err)
		}
		if !ok {
			return NewBusiness(CodeCartNotActive, "cart is not active")
		}
		if err := ensureCartUnlocked(ctx, r.Checkouts(), cart.ID, now); err != nil {
			return err
		}
		return fn(r, cart, now)
	})
	if err != nil {
		return CartDetails{}, err
	}

	fresh, err := u.carts.FindByID(ctx, cart.ID)
	if err != nil {
		return CartDetails{}, NewInternal("db error", err)
	}
	return u.buildDetails(ctx, fresh)
}

func requireActiveCart(cart model.Cart, now time.Time) error {
	if cart.Status != model.CartStatusActive {
		return NewBusiness(CodeCartNotActive, "cart is not active")
	}
	if cart.IsExpired(now) {
		return NewNotFound("cart expired")
	}
	return nil
}

// 決済中（引当を持っている）チェックアウトがあればカートは変更できない
func ensureCartUnlocked(ctx context.Context, checkouts repo.CheckoutRepository, cartID string, now time.Time) error {
	s, err := checkouts.FindLatestByCartID(ctx, cartID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return NewInternal("db error", err)
	}
	if !s.IsOpen(now) {
		return nil
	}
	if s.Status == model.CheckoutStatusPaymentSet || s.PaymentStatus == model.PaymentStatusPending {
		return NewBusiness(CodeCheckoutInProgress, "checkout is in progress")
	}
	return nil
}

func (u *CartUsecase) checkQuantity(qty int64) error {
	if qty < 1 {
		return NewValidation(CodeInvalidQuantity, "quantity must be >= 1")
	}
	if qty > u.cfg.MaxItemQuantity {
		return NewValidation(CodeInvalidQuantity, "quantity exceeds the per-item maximum")
	}
	return nil
}

// カタログと在庫を読む。非公開のバリアントは VARIANT_UNAVAILABLE。
func (u *CartUsecase) lookupVariant(ctx context.Context, variantID string) (model.ProductVariant, stockView, error) {
	v, err := u.catalog.GetVariant(ctx, variantID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.ProductVariant{}, stockView{}, NewNotFound("variant not found")
	}
	if err != nil {
		return model.ProductVariant{}, stockView{}, NewInternal("catalog error", err)
	}
	if !v.IsActive {
		return model.ProductVariant{}, stockView{}, NewBusiness(CodeVariantUnavailable, "variant is unavailable")
	}
	st, err := u.stockFor(ctx, v)
	if err != nil {
		return model.ProductVariant{}, stockView{}, err
	}
	return v, st, nil
}

func (u *CartUsecase) stockFor(ctx context.Context, v model.ProductVariant) (stockView, error) {
	if !v.TrackInventory {
		return stockView{}, nil
	}
	st := stockView{tracked: true, backorder: v.AllowBackorder}
	a, err := u.ledger.Available(ctx, v.ID)
	if err != nil {
		// 在庫レコードが無いバリアントは在庫0として扱う
		if IsKind(err, KindNotFound) {
			return st, nil
		}
		return stockView{}, err
	}
	st.avail = a
	st.backorder = st.backorder || a.AllowBackorder
	return st, nil
}

func (u *CartUsecase) newCart(kind model.OwnerKind, ref string, now time.Time) model.Cart {
	return model.Cart{
		ID:        u.ids.NewID(),
		OwnerKind: kind,
		OwnerRef:  ref,
		Status:    model.CartStatusActive,
		Currency:  u.cfg.DefaultCurrency,
		Metadata:  model.NewAttributesJSON(nil),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(u.cfg.CartTTL),
	}
}
