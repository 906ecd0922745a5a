package usecase

import (
	"context"
	"testing"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var sess1 = model.Anonymous("sess-1")

func lineFor(d CartDetails, variantID string) (CartLine, bool) {
	for _, l := range d.Items {
		if l.VariantID == variantID {
			return l, true
		}
	}
	return CartLine{}, false
}

func TestCartMerge_SumsAndCopiesLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := model.Anonymous("sess-1")
	customer := model.Identified("cust-1")
	a := env.defineVariant(t, "SKU-A", 1000, 20)
	b := env.defineVariant(t, "SKU-B", 500, 20)

	gc := env.readyCart(t, guest, line{a.ID, 2}, line{b.ID, 1})

	cc, err := env.carts.CreateCart(ctx, customer)
	require.NoError(t, err)
	_, err = env.carts.AddItem(ctx, customer, cc.ID, AddItemInput{VariantID: a.ID, Quantity: 3})
	require.NoError(t, err)

	merged, err := env.merge.MergeCart(ctx, customer, sess1, gc.ID, cc.ID)
	require.NoError(t, err)

	assert.Equal(t, cc.ID, merged.ID)
	require.Len(t, merged.Items, 2)
	la, ok := lineFor(merged, a.ID)
	require.True(t, ok)
	assert.Equal(t, int64(5), la.Quantity)
	lb, ok := lineFor(merged, b.ID)
	require.True(t, ok)
	assert.Equal(t, int64(1), lb.Quantity)
	assert.Equal(t, int64(500), lb.UnitPriceSnapshot)
	assert.Equal(t, int64(5500), merged.Subtotal)
	assert.Equal(t, "buyer@example.com", merged.Email)

	assert.Equal(t, model.CartStatusMerged, env.cartStatus(t, gc.ID))

	t.Run("second merge is a no-op", func(t *testing.T) {
		again, err := env.merge.MergeCart(ctx, customer, sess1, gc.ID, cc.ID)
		require.NoError(t, err)
		la, _ := lineFor(again, a.ID)
		assert.Equal(t, int64(5), la.Quantity)
		assert.Len(t, again.Items, 2)
	})

	t.Run("writes audit entry", func(t *testing.T) {
		logs, err := env.audits.List(ctx, AuditLogQuery{Action: string(model.AuditActionCartMerged)})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "customer:cust-1", logs[0].Actor)
		assert.Equal(t, gc.ID, logs[0].ResourceID)
		assert.JSONEq(t, `{"guest_cart_id":"`+gc.ID+`","customer_cart_id":"`+cc.ID+`","lines":2}`, logs[0].AfterJSON)
	})
}

func TestCartMerge_KeepsCustomerEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := model.Identified("cust-1")
	a := env.defineVariant(t, "SKU-A", 1000, 20)

	gc := env.readyCart(t, model.Anonymous("sess-1"), line{a.ID, 1})
	cc, err := env.carts.CreateCart(ctx, customer)
	require.NoError(t, err)
	_, err = env.carts.SetEmail(ctx, customer, cc.ID, "member@example.com")
	require.NoError(t, err)

	merged, err := env.merge.MergeCart(ctx, customer, sess1, gc.ID, cc.ID)
	require.NoError(t, err)
	assert.Equal(t, "member@example.com", merged.Email)
}

func TestCartMerge_Rejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := model.Identified("cust-1")
	a := env.defineVariant(t, "SKU-A", 1000, 20)

	gc := env.readyCart(t, model.Anonymous("sess-1"), line{a.ID, 1})
	cc, err := env.carts.CreateCart(ctx, customer)
	require.NoError(t, err)
	other, err := env.carts.CreateCart(ctx, model.Identified("cust-2"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		id       model.Identity
		guest    model.Identity
		guestID  string
		wantKind ErrorKind
		wantCode string
	}{
		{name: "guest identity", id: model.Anonymous("sess-1"), guest: sess1, guestID: gc.ID, wantKind: KindBusiness, wantCode: CodeMergeNotAllowed},
		{name: "same cart", id: customer, guest: sess1, guestID: cc.ID, wantKind: KindValidation, wantCode: CodeValidation},
		{name: "empty guest id", id: customer, guest: sess1, guestID: "", wantKind: KindValidation, wantCode: CodeValidation},
		{name: "customer owned cart", id: customer, guest: sess1, guestID: other.ID, wantKind: KindBusiness, wantCode: CodeMergeNotAllowed},
		{name: "unknown guest cart", id: customer, guest: sess1, guestID: "missing", wantKind: KindNotFound, wantCode: CodeNotFound},
		{name: "missing guest session", id: customer, guest: nil, guestID: gc.ID, wantKind: KindValidation, wantCode: CodeValidation},
		{name: "customer as guest session", id: customer, guest: customer, guestID: gc.ID, wantKind: KindValidation, wantCode: CodeValidation},
		{name: "another session's guest cart", id: customer, guest: model.Anonymous("sess-2"), guestID: gc.ID, wantKind: KindNotFound, wantCode: CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.merge.MergeCart(ctx, tt.id, tt.guest, tt.guestID, cc.ID)
			assertKind(t, err, tt.wantKind)
			assertCode(t, err, tt.wantCode)
		})
	}

	t.Run("someone else's customer cart", func(t *testing.T) {
		_, err := env.merge.MergeCart(ctx, model.Identified("cust-2"), sess1, gc.ID, cc.ID)
		assertKind(t, err, KindNotFound)
	})

	assert.Equal(t, model.CartStatusActive, env.cartStatus(t, gc.ID))
}

func TestCartMerge_DoesNotCapStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := model.Identified("cust-1")
	a := env.defineVariant(t, "SKU-A", 1000, 5)

	gc := env.readyCart(t, model.Anonymous("sess-1"), line{a.ID, 4})
	cc := env.readyCart(t, customer, line{a.ID, 3})

	merged, err := env.merge.MergeCart(ctx, customer, sess1, gc.ID, cc.ID)
	require.NoError(t, err)
	la, _ := lineFor(merged, a.ID)
	assert.Equal(t, int64(7), la.Quantity)

	v, err := env.carts.Validate(ctx, customer, cc.ID)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	require.Len(t, v.Issues, 1)
	assert.Equal(t, IssueOutOfStock, v.Issues[0].Code)

	_, err = env.checkout.StartCheckout(ctx, customer, cc.ID)
	assertCode(t, err, CodeCartInvalid)
}

func TestCartMerge_LockedGuestCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := model.Anonymous("sess-1")
	customer := model.Identified("cust-1")
	a := env.defineVariant(t, "SKU-A", 1000, 20)

	gc := env.readyCart(t, guest, line{a.ID, 2})
	env.paidCheckout(t, guest, gc.ID)

	cc, err := env.carts.CreateCart(ctx, customer)
	require.NoError(t, err)

	_, err = env.merge.MergeCart(ctx, customer, sess1, gc.ID, cc.ID)
	assertCode(t, err, CodeCheckoutInProgress)
	assert.Equal(t, model.CartStatusActive, env.cartStatus(t, gc.ID))

	details, err := env.carts.GetDetails(ctx, customer, cc.ID)
	require.NoError(t, err)
	assert.Empty(t, details.Items)
}

func TestCartMerge_InactiveGuestCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	guest := model.Anonymous("sess-1")
	customer := model.Identified("cust-1")
	a := env.defineVariant(t, "SKU-A", 1000, 20)

	gc := env.readyCart(t, guest, line{a.ID, 2})
	co := env.paidCheckout(t, guest, gc.ID)
	env.notifier.On("NotifyOrderCreated", mock.Anything, mock.Anything).Return(nil)
	_, err := env.orders.CompleteCheckout(ctx, guest, co.ID)
	require.NoError(t, err)

	cc, err := env.carts.CreateCart(ctx, customer)
	require.NoError(t, err)

	_, err = env.merge.MergeCart(ctx, customer, sess1, gc.ID, cc.ID)
	assertCode(t, err, CodeCartNotActive)
}
