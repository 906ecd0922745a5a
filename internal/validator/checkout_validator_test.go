package validator

import (
	"strings"
	"testing"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func validAddress() model.Address {
	return model.Address{
		Name:       "Taro Yamada",
		PostalCode: "100-0001",
		Country:    "JP",
		Region:     "Tokyo",
		City:       "Chiyoda",
		Line1:      "1-1",
	}
}

func TestValidateAddress(t *testing.T) {
	v := NewCheckoutValidator()

	tests := []struct {
		name    string
		mutate  func(a *model.Address)
		wantErr string
	}{
		{name: "ok", mutate: func(a *model.Address) {}},
		{name: "missing name", mutate: func(a *model.Address) { a.Name = "  " }, wantErr: "name is required"},
		{name: "missing line1", mutate: func(a *model.Address) { a.Line1 = "" }, wantErr: "line1 is required"},
		{name: "country length", mutate: func(a *model.Address) { a.Country = "JPN" }, wantErr: "country must be 2 characters"},
		{name: "country case", mutate: func(a *model.Address) { a.Country = "jp" }, wantErr: "upper case"},
		{name: "phone too long", mutate: func(a *model.Address) { a.Phone = strings.Repeat("0", 31) }, wantErr: "phone is too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAddress()
			tt.mutate(&a)
			err := v.ValidateAddress(a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	v := NewCheckoutValidator()

	assert.NoError(t, v.ValidateEmail("buyer@example.com"))
	assert.NoError(t, v.ValidateEmail("  buyer@example.com "))
	assert.ErrorIs(t, v.ValidateEmail(""), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateEmail("not-an-email"), ErrInvalidInput)
	assert.ErrorIs(t, v.ValidateEmail("a@"), ErrInvalidInput)
}
