package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/infra/catalog"
	"storefront/internal/infra/db"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// =====================
// collaborators
// =====================

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type PaymentGatewayMock struct{ mock.Mock }

func (m *PaymentGatewayMock) Authorize(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(PaymentResult)
	return res, args.Error(1)
}

func (m *PaymentGatewayMock) GetIntent(ctx context.Context, intentID string) (PaymentResult, error) {
	args := m.Called(ctx, intentID)
	res, _ := args.Get(0).(PaymentResult)
	return res, args.Error(1)
}

type OrderNotifierMock struct{ mock.Mock }

func (m *OrderNotifierMock) NotifyOrderCreated(ctx context.Context, order model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// validator パッケージは usecase を import するのでここでは最小の判定だけ持つ
type stubValidator struct{}

func (stubValidator) ValidateAddress(a model.Address) error {
	if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Line1) == "" || len(a.Country) != 2 {
		return errors.New("invalid address")
	}
	return nil
}

func (stubValidator) ValidateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return errors.New("invalid email")
	}
	return nil
}

// =====================
// test env
// =====================

type testEnv struct {
	db    *gorm.DB
	clock *fakeClock
	cfg   config.CheckoutConfig

	cartsRepo    *infraRepo.CartGormRepository
	checkoutRepo *infraRepo.CheckoutGormRepository
	reservations *infraRepo.ReservationGormRepository
	variants     *infraRepo.VariantGormRepository
	auditRepo    repo.AuditLogRepository

	payments *PaymentGatewayMock
	notifier *OrderNotifierMock
	metrics  *metrics.Metrics

	ledger   *InventoryLedger
	carts    *CartUsecase
	checkout *CheckoutUsecase
	orders   *OrderMaterializer
	merge    *CartMergeResolver
	sweeper  *ExpirySweeper
	admin    *CatalogAdmin
	audits   *AuditQuery
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := db.Connect(fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		db:    gdb,
		clock: &fakeClock{now: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)},
		cfg:   config.DefaultCheckoutConfig(),

		cartsRepo:    infraRepo.NewCartGormRepository(gdb),
		checkoutRepo: infraRepo.NewCheckoutGormRepository(gdb),
		reservations: infraRepo.NewReservationGormRepository(gdb),
		variants:     infraRepo.NewVariantGormRepository(gdb),
		auditRepo:    infraRepo.NewAuditLogGormRepository(gdb),

		payments: &PaymentGatewayMock{},
		notifier: &OrderNotifierMock{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}

	items := infraRepo.NewCartItemGormRepository(gdb)
	inventory := infraRepo.NewInventoryGormRepository(gdb)
	orders := infraRepo.NewOrderGormRepository(gdb)
	orderItems := infraRepo.NewOrderItemGormRepository(gdb)
	txm := infraRepo.NewTxManagerGorm(gdb)
	cat := catalog.NewVariantCatalog(env.variants)
	ids := UUIDGenerator{}
	log := logger.NewNop()

	ledgerCfg := DefaultLedgerConfig()
	ledgerCfg.InitialBackoff = time.Millisecond
	ledgerCfg.MaxBackoff = 5 * time.Millisecond

	env.ledger = NewInventoryLedger(txm, inventory, ids, env.clock, ledgerCfg, env.metrics, log)
	env.carts = NewCartUsecase(txm, env.cartsRepo, items, env.checkoutRepo, cat, env.ledger, stubValidator{}, ids, env.clock, env.cfg, log)
	env.checkout = NewCheckoutUsecase(txm, env.cartsRepo, items, env.checkoutRepo, env.carts, env.ledger, env.payments, stubValidator{}, ids, env.clock, env.cfg, env.metrics, log)
	env.orders = NewOrderMaterializer(txm, env.cartsRepo, items, env.checkoutRepo, orders, orderItems, cat, env.ledger, env.payments, env.notifier, ids, env.clock, env.metrics, log)
	env.merge = NewCartMergeResolver(txm, env.cartsRepo, env.carts, ids, env.clock, log)
	env.sweeper = NewExpirySweeper(txm, env.checkoutRepo, env.cartsRepo, env.ledger, env.clock, env.cfg.ReservationGrace, env.cfg.SweepInterval, env.metrics, log)
	env.admin = NewCatalogAdmin(txm, env.clock, log)
	env.audits = NewAuditQuery(env.auditRepo)
	return env
}

// =====================
// helpers
// =====================

func (e *testEnv) defineVariant(t *testing.T, sku string, price int64, onHand int64, opts ...func(*model.ProductVariant)) model.ProductVariant {
	t.Helper()
	v := model.ProductVariant{
		ProductName:    "T-Shirt",
		VariantName:    sku,
		SKU:            sku,
		UnitPrice:      price,
		TrackInventory: true,
		IsActive:       true,
		Attributes:     model.NewAttributesJSON(model.Attributes{"size": "M"}),
	}
	for _, o := range opts {
		o(&v)
	}
	out, err := e.ledger.DefineVariant(context.Background(), v, onHand)
	require.NoError(t, err)
	return out
}

func withBackorder(v *model.ProductVariant) { v.AllowBackorder = true }

func untracked(v *model.ProductVariant) { v.TrackInventory = false }

func inactive(v *model.ProductVariant) { v.IsActive = false }

func (e *testEnv) availability(t *testing.T, variantID string) Availability {
	t.Helper()
	a, err := e.ledger.Available(context.Background(), variantID)
	require.NoError(t, err)
	return a
}

func (e *testEnv) cartStatus(t *testing.T, cartID string) model.CartStatus {
	t.Helper()
	c, err := e.cartsRepo.FindByID(context.Background(), cartID)
	require.NoError(t, err)
	return c.Status
}

func (e *testEnv) storedCheckout(t *testing.T, checkoutID string) model.CheckoutSession {
	t.Helper()
	s, err := e.checkoutRepo.FindByID(context.Background(), checkoutID)
	require.NoError(t, err)
	return s
}

func (e *testEnv) heldReservations(t *testing.T, checkoutID string) []model.StockReservation {
	t.Helper()
	rs, err := e.reservations.ListBySession(context.Background(), checkoutID, model.ReservationStatusHeld)
	require.NoError(t, err)
	return rs
}

type line struct {
	variantID string
	qty       int64
}

// email 設定済みのカートを作る
func (e *testEnv) readyCart(t *testing.T, id model.Identity, lines ...line) CartDetails {
	t.Helper()
	ctx := context.Background()

	cart, err := e.carts.CreateCart(ctx, id)
	require.NoError(t, err)
	for _, ln := range lines {
		_, err := e.carts.AddItem(ctx, id, cart.ID, AddItemInput{VariantID: ln.variantID, Quantity: ln.qty})
		require.NoError(t, err)
	}
	details, err := e.carts.SetEmail(ctx, id, cart.ID, "buyer@example.com")
	require.NoError(t, err)
	return details
}

func testAddress() model.Address {
	return model.Address{
		Name:       "Taro Yamada",
		PostalCode: "100-0001",
		Country:    "JP",
		Region:     "Tokyo",
		City:       "Chiyoda",
		Line1:      "1-1",
	}
}

// SHIPPING_SET まで進める
func (e *testEnv) checkoutToShipping(t *testing.T, id model.Identity, cartID string, method string) CheckoutView {
	t.Helper()
	ctx := context.Background()

	co, err := e.checkout.StartCheckout(ctx, id, cartID)
	require.NoError(t, err)
	_, err = e.checkout.SetAddresses(ctx, id, co.ID, AddressesInput{Shipping: testAddress()})
	require.NoError(t, err)
	co, err = e.checkout.SetShippingMethod(ctx, id, co.ID, method)
	require.NoError(t, err)
	require.Equal(t, model.CheckoutStatusShippingSet, co.Status)
	return co
}

func (e *testEnv) expectPayment(status model.PaymentStatus, intentID string) *mock.Call {
	return e.payments.On("Authorize", mock.Anything, mock.AnythingOfType("usecase.PaymentRequest")).
		Return(PaymentResult{IntentID: intentID, Status: status}, nil)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if assert.Error(t, err) {
		ae, ok := AsAppError(err)
		if assert.True(t, ok, "not an AppError: %v", err) {
			assert.Equal(t, code, ae.Code, "err=%v", err)
		}
	}
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, IsKind(err, kind), "want kind %s, got %v", kind, err)
	}
}
