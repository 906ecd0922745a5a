package usecase

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogAdmin_ChangePrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	v := env.defineVariant(t, "SKU-A", 1000, 5)

	got, err := env.admin.ChangePrice(ctx, "customer:admin-1", v.ID, 1500)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.UnitPrice)
	assert.Equal(t, "SKU-A", got.SKU)

	stored, err := env.variants.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), stored.UnitPrice)

	logs, err := env.audits.List(ctx, AuditLogQuery{ResourceType: string(model.AuditResourceVariant), ResourceID: v.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionPriceChanged, logs[0].Action)
	assert.JSONEq(t, `{"unit_price":1000}`, logs[0].BeforeJSON)
	assert.JSONEq(t, `{"unit_price":1500}`, logs[0].AfterJSON)
}

func TestCatalogAdmin_ChangePrice_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	v := env.defineVariant(t, "SKU-A", 1000, 5)

	_, err := env.admin.ChangePrice(ctx, "customer:admin-1", v.ID, -1)
	assertKind(t, err, KindValidation)

	_, err = env.admin.ChangePrice(ctx, "customer:admin-1", "missing", 100)
	assertKind(t, err, KindNotFound)

	logs, err := env.audits.List(ctx, AuditLogQuery{Action: string(model.AuditActionPriceChanged)})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestCatalogAdmin_FreeVariant(t *testing.T) {
	env := newTestEnv(t)
	v := env.defineVariant(t, "SKU-A", 1000, 5)

	got, err := env.admin.ChangePrice(context.Background(), "customer:admin-1", v.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.UnitPrice)
}

func TestAuditQuery_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.defineVariant(t, "SKU-A", 1000, 5)
	b := env.defineVariant(t, "SKU-B", 1000, 5)

	_, err := env.ledger.Restock(ctx, "customer:admin-1", a.ID, 1, "arrival")
	require.NoError(t, err)
	_, err = env.ledger.Restock(ctx, "customer:admin-2", b.ID, 2, "arrival")
	require.NoError(t, err)
	start := env.clock.Now()
	env.clock.Advance(time.Hour)
	_, err = env.admin.ChangePrice(ctx, "customer:admin-1", a.ID, 900)
	require.NoError(t, err)

	t.Run("newest first", func(t *testing.T) {
		logs, err := env.audits.List(ctx, AuditLogQuery{})
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, model.AuditActionPriceChanged, logs[0].Action)
		assert.Equal(t, b.ID, logs[1].ResourceID)
	})

	t.Run("filters", func(t *testing.T) {
		logs, err := env.audits.List(ctx, AuditLogQuery{Actor: "customer:admin-1"})
		require.NoError(t, err)
		assert.Len(t, logs, 2)

		logs, err = env.audits.List(ctx, AuditLogQuery{Action: string(model.AuditActionRestock), ResourceID: a.ID})
		require.NoError(t, err)
		assert.Len(t, logs, 1)

		logs, err = env.audits.List(ctx, AuditLogQuery{Actor: "nobody"})
		require.NoError(t, err)
		assert.NotNil(t, logs)
		assert.Empty(t, logs)
	})

	t.Run("time range", func(t *testing.T) {
		from := start.Add(30 * time.Minute)
		logs, err := env.audits.List(ctx, AuditLogQuery{From: &from})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, model.AuditActionPriceChanged, logs[0].Action)

		logs, err = env.audits.List(ctx, AuditLogQuery{To: &from})
		require.NoError(t, err)
		assert.Len(t, logs, 2)

		_, err = env.audits.List(ctx, AuditLogQuery{From: &from, To: &start})
		assertKind(t, err, KindValidation)
	})

	t.Run("paging", func(t *testing.T) {
		logs, err := env.audits.List(ctx, AuditLogQuery{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, b.ID, logs[0].ResourceID)
	})

	t.Run("rejects negative paging", func(t *testing.T) {
		_, err := env.audits.List(ctx, AuditLogQuery{Limit: -1})
		assertKind(t, err, KindValidation)
		_, err = env.audits.List(ctx, AuditLogQuery{Offset: -1})
		assertKind(t, err, KindValidation)
	})
}
