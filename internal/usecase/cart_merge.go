package usecase

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	"storefront/internal/logger"
	repo "storefront/internal/repository"
)

// ログイン時にゲストカートを顧客カートへ統合する
type CartMergeResolver struct {
	tx     repo.TransactionManager
	carts  repo.CartRepository
	cartUC *CartUsecase
	ids    IDGenerator
	clock  Clock
	log    *logger.Logger
}

func NewCartMergeResolver(tx repo.TransactionManager, carts repo.CartRepository, cartUC *CartUsecase, ids IDGenerator, clock Clock, log *logger.Logger) *CartMergeResolver {
	return &CartMergeResolver{
		tx:     tx,
		carts:  carts,
		cartUC: cartUC,
		ids:    ids,
		clock:  clock,
		log:    log.With("component", "CartMergeResolver"),
	}
}

type mergeSnapshot struct {
	GuestCartID    string `json:"guest_cart_id"`
	CustomerCartID string `json:"customer_cart_id,omitempty"`
	Lines          int    `json:"lines,omitempty"`
}

// 同じバリアントは数量を合算、それ以外は追加。統合済みのゲストカートなら何もしない。
// guestOwner はゲストカートのセッション。持ち主でなければ見つからない扱い。
// 在庫・数量上限はここでは見ない（チェックアウト時の Validate で弾く）。
func (m *CartMergeResolver) MergeCart(ctx context.Context, id model.Identity, guestOwner model.Identity, guestCartID string, customerCartID string) (CartDetails, error) {
	if _, ok := id.(model.CustomerIdentity); !ok {
		return CartDetails{}, NewBusiness(CodeMergeNotAllowed, "merge requires a signed-in customer")
	}
	if anon, ok := guestOwner.(model.AnonymousIdentity); !ok || anon.SessionID == "" {
		return CartDetails{}, NewValidation(CodeValidation, "guest session is required")
	}
	if guestCartID == "" || guestCartID == customerCartID {
		return CartDetails{}, NewValidation(CodeValidation, "guest_cart_id must differ from the customer cart")
	}

	customer, err := loadOwnedCart(ctx, m.carts, id, customerCartID)
	if err != nil {
		return CartDetails{}, err
	}
	now := m.clock.Now()
	if err := requireActiveCart(customer, now); err != nil {
		return CartDetails{}, err
	}

	guest, err := m.carts.FindByID(ctx, guestCartID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartDetails{}, NewNotFound("guest cart not found")
	}
	if err != nil {
		return CartDetails{}, NewInternal("db error", err)
	}
	if guest.OwnerKind != model.OwnerKindAnonymous {
		return CartDetails{}, NewBusiness(CodeMergeNotAllowed, "only guest carts can be merged")
	}
	if !model.SameIdentity(guest.Owner(), guestOwner) {
		return CartDetails{}, NewNotFound("guest cart not found")
	}
	if guest.Status == model.CartStatusMerged {
		return m.cartUC.buildDetails(ctx, customer)
	}
	if guest.Status != model.CartStatusActive {
		return CartDetails{}, NewBusiness(CodeCartNotActive, "guest cart is not active")
	}

	merged := 0
	err = m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Carts().TouchActive(ctx, customer.ID, now, now.Add(m.cartUC.cfg.CartTTL))
		if err != nil {
			return NewInternal("db error", err)
		}
		if !ok {
			return NewBusiness(CodeCartNotActive, "cart is not active")
		}
		if err := ensureCartUnlocked(ctx, r.Checkouts(), customer.ID, now); err != nil {
			return err
		}
		if err := ensureCartUnlocked(ctx, r.Checkouts(), guest.ID, now); err != nil {
			return err
		}

		claimed, err := r.Carts().UpdateStatusIf(ctx, guest.ID, model.CartStatusActive, model.CartStatusMerged, now)
		if err != nil {
			return NewInternal("db error", err)
		}
		if !claimed {
			cur, err := r.Carts().FindByID(ctx, guest.ID)
			if err != nil {
				return NewInternal("db error", err)
			}
			if cur.Status == model.CartStatusMerged {
				return nil
			}
			return NewBusiness(CodeCartNotActive, "guest cart is not active")
		}

		lines, err := r.CartItems().ListByCartID(ctx, guest.ID)
		if err != nil {
			return NewInternal("db error", err)
		}
		for _, gl := range lines {
			existing, err := r.CartItems().FindByCartAndVariant(ctx, customer.ID, gl.VariantID)
			switch {
			case err == nil:
				if err := r.CartItems().UpdateQuantity(ctx, existing.ID, existing.Quantity+gl.Quantity, existing.UnitPriceSnapshot, now); err != nil {
					return NewInternal("db error", err)
				}
			case errors.Is(err, repo.ErrNotFound):
				if err := r.CartItems().Create(ctx, model.CartItem{
					ID:                m.ids.NewID(),
					CartID:            customer.ID,
					VariantID:         gl.VariantID,
					Quantity:          gl.Quantity,
					UnitPriceSnapshot: gl.UnitPriceSnapshot,
					AddedAt:           now,
					UpdatedAt:         now,
				}); err != nil {
					return NewInternal("db error", err)
				}
			default:
				return NewInternal("db error", err)
			}
			merged++
		}

		if customer.Email == "" && guest.Email != "" {
			if err := r.Carts().SetEmail(ctx, customer.ID, guest.Email, now); err != nil {
				return NewInternal("db error", err)
			}
		}

		return writeAudit(ctx, r, id.String(), model.AuditActionCartMerged, model.AuditResourceCart, guest.ID,
			mergeSnapshot{GuestCartID: guest.ID},
			mergeSnapshot{GuestCartID: guest.ID, CustomerCartID: customer.ID, Lines: len(lines)}, now)
	})
	if err != nil {
		return CartDetails{}, err
	}

	if merged > 0 {
		m.log.Info("guest cart merged", "guest_cart_id", guest.ID, "cart_id", customer.ID, "lines", merged)
	}
	fresh, err := m.carts.FindByID(ctx, customer.ID)
	if err != nil {
		return CartDetails{}, NewInternal("db error", err)
	}
	return m.cartUC.buildDetails(ctx, fresh)
}
