package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// チェックアウトのHTTP
type CheckoutHandler struct {
	uc     *usecase.CheckoutUsecase
	orders *usecase.OrderMaterializer
}

// DI
func NewCheckoutHandler(uc *usecase.CheckoutUsecase, orders *usecase.OrderMaterializer) *CheckoutHandler {
	return &CheckoutHandler{uc: uc, orders: orders}
}

type SetAddressesRequest struct {
	ShippingAddress model.Address  `json:"shipping_address"`
	BillingAddress  *model.Address `json:"billing_address"`
	//true なら請求先は配送先と同じ
	BillingSameAsShipping bool `json:"billing_same_as_shipping"`
}

type SetShippingMethodRequest struct {
	MethodID string `json:"method_id"`
}

type ProcessPaymentRequest struct {
	Method string `json:"method"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.POST("/carts/:id/checkout", h.start, middleware.ResolveIdentity(cfg))

	g := e.Group("/checkouts")
	g.Use(middleware.ResolveIdentity(cfg))

	g.GET("/:id", h.get)
	g.PUT("/:id/addresses", h.setAddresses)
	g.GET("/:id/shipping-methods", h.shippingMethods)
	g.PUT("/:id/shipping-method", h.setShippingMethod)
	g.POST("/:id/payment", h.processPayment)
	g.POST("/:id/complete", h.complete)
	g.POST("/:id/cancel", h.cancel)
}

func (h *CheckoutHandler) start(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.StartCheckout(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) get(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.GetCheckout(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) setAddresses(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req SetAddressesRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	in := usecase.AddressesInput{Shipping: req.ShippingAddress}
	if !req.BillingSameAsShipping {
		in.Billing = req.BillingAddress
	}

	out, err := h.uc.SetAddresses(c.Request().Context(), id, c.Param("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) shippingMethods(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.GetShippingMethods(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) setShippingMethod(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req SetShippingMethodRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.SetShippingMethod(c.Request().Context(), id, c.Param("id"), req.MethodID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) processPayment(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req ProcessPaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.ProcessPayment(c.Request().Context(), id, c.Param("id"), usecase.PaymentInput{Method: req.Method})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) complete(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.orders.CompleteCheckout(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) cancel(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.CancelCheckout(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
