package repository

import (
	"context"

	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	carts        repo.CartRepository
	cartItems    repo.CartItemRepository
	inventory    repo.InventoryRepository
	variants     repo.VariantRepository
	checkouts    repo.CheckoutRepository
	reservations repo.ReservationRepository
	orders       repo.OrderRepository
	orderItems   repo.OrderItemRepository
	auditLogs    repo.AuditLogRepository
}

func (r *txReposGorm) Carts() repo.CartRepository               { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository       { return r.cartItems }
func (r *txReposGorm) Inventory() repo.InventoryRepository      { return r.inventory }
func (r *txReposGorm) Variants() repo.VariantRepository         { return r.variants }
func (r *txReposGorm) Checkouts() repo.CheckoutRepository       { return r.checkouts }
func (r *txReposGorm) Reservations() repo.ReservationRepository { return r.reservations }
func (r *txReposGorm) Orders() repo.OrderRepository             { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository     { return r.orderItems }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository       { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			carts:        NewCartGormRepository(tx),
			cartItems:    NewCartItemGormRepository(tx),
			inventory:    NewInventoryGormRepository(tx),
			variants:     NewVariantGormRepository(tx),
			checkouts:    NewCheckoutGormRepository(tx),
			reservations: NewReservationGormRepository(tx),
			orders:       NewOrderGormRepository(tx),
			orderItems:   NewOrderItemGormRepository(tx),
			auditLogs:    NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}
