package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{name: "not found", err: usecase.NewNotFound("cart not found"), wantStatus: http.StatusNotFound, wantCode: usecase.CodeNotFound, wantMsg: "cart not found"},
		{name: "validation", err: usecase.NewValidation(usecase.CodeInvalidQuantity, "bad qty"), wantStatus: http.StatusBadRequest, wantCode: usecase.CodeInvalidQuantity, wantMsg: "bad qty"},
		{name: "business", err: usecase.NewBusiness(usecase.CodeOutOfStock, "no stock"), wantStatus: http.StatusConflict, wantCode: usecase.CodeOutOfStock, wantMsg: "no stock"},
		{name: "conflict", err: usecase.NewConflict("sku already exists", errors.New("dup")), wantStatus: http.StatusConflict, wantCode: usecase.CodeConflict, wantMsg: "sku already exists"},
		{name: "internal hides detail", err: usecase.NewInternal("db error", errors.New("connection refused")), wantStatus: http.StatusInternalServerError, wantCode: usecase.CodeInternal, wantMsg: "internal error"},
		{name: "plain error", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: usecase.CodeInternal, wantMsg: "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, writeError(c, tt.err))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Error)
		})
	}
}
