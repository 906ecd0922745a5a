package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	uc *usecase.OrderMaterializer
}

func NewOrderHandler(uc *usecase.OrderMaterializer) *OrderHandler {
	return &OrderHandler{uc: uc}
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/orders")
	g.Use(middleware.ResolveIdentity(cfg))

	g.GET("/:id", h.detail)
}

func (h *OrderHandler) detail(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.GetOrder(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
