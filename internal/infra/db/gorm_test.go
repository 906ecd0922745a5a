package db

import (
	"fmt"
	"testing"
	"time"

	"storefront/internal/domain/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := Connect(fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func newCart(kind model.OwnerKind, ref string, status model.CartStatus) model.Cart {
	now := time.Now().UTC()
	return model.Cart{
		ID:        uuid.NewString(),
		OwnerKind: kind,
		OwnerRef:  ref,
		Status:    status,
		Currency:  "JPY",
		Metadata:  model.NewAttributesJSON(nil),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	gdb := openTestDB(t)
	assert.NoError(t, Migrate(gdb))
}

func TestMigrate_OneActiveCartPerOwner(t *testing.T) {
	gdb := openTestDB(t)

	first := newCart(model.OwnerKindAnonymous, "sess-1", model.CartStatusActive)
	require.NoError(t, gdb.Omit("Items").Create(&first).Error)

	dup := newCart(model.OwnerKindAnonymous, "sess-1", model.CartStatusActive)
	err := gdb.Omit("Items").Create(&dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// ACTIVE 以外なら何個でも
	merged := newCart(model.OwnerKindAnonymous, "sess-1", model.CartStatusMerged)
	assert.NoError(t, gdb.Omit("Items").Create(&merged).Error)

	other := newCart(model.OwnerKindCustomer, "sess-1", model.CartStatusActive)
	assert.NoError(t, gdb.Omit("Items").Create(&other).Error)
}

func TestMigrate_OneOpenCheckoutPerCart(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now().UTC()

	session := func(status model.CheckoutStatus) *model.CheckoutSession {
		return &model.CheckoutSession{
			ID:        uuid.NewString(),
			CartID:    "cart-1",
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: now.Add(time.Minute),
		}
	}

	require.NoError(t, gdb.Create(session(model.CheckoutStatusExpired)).Error)
	require.NoError(t, gdb.Create(session(model.CheckoutStatusStarted)).Error)

	err := gdb.Create(session(model.CheckoutStatusAddressSet)).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	assert.NoError(t, gdb.Create(session(model.CheckoutStatusCancelled)).Error)
}

type captureWriter struct {
	lines []string
}

func (w *captureWriter) Printf(format string, args ...any) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestGormLogger_SkipsRecordNotFound(t *testing.T) {
	w := &captureWriter{}
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(w),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	w.lines = nil

	var cart model.Cart
	err = gdb.Where("id = ?", "missing").First(&cart).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, w.lines)

	// 本物のエラーは出す
	err = gdb.Exec("SELECT * FROM no_such_table").Error
	require.Error(t, err)
	assert.NotEmpty(t, w.lines)
}
