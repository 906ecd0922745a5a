package handler

import (
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// AppError の種類をステータスコードに変換する
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if ae, ok := usecase.AsAppError(err); ok {
		status := statusFor(ae.Kind)
		if status == http.StatusInternalServerError {
			c.Logger().Error(err)
			return c.JSON(status, ErrorResponse{Error: "internal error", Code: usecase.CodeInternal})
		}
		return c.JSON(status, ErrorResponse{Error: ae.Message, Code: ae.Code})
	}

	//500
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: usecase.CodeInternal})
}

func statusFor(kind usecase.ErrorKind) int {
	switch kind {
	case usecase.KindNotFound:
		return http.StatusNotFound
	case usecase.KindValidation:
		return http.StatusBadRequest
	case usecase.KindBusiness, usecase.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: usecase.CodeValidation})
}

// ResolveIdentity を通っていれば必ず入っている
func getIdentity(c echo.Context) (model.Identity, bool) {
	return middleware.IdentityFrom(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
}
