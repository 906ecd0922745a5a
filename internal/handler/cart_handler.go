package handler

import (
	"net/http"
	"strings"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /carts のHTTP
type CartHandler struct {
	uc    *usecase.CartUsecase
	merge *usecase.CartMergeResolver
}

// DI
func NewCartHandler(uc *usecase.CartUsecase, merge *usecase.CartMergeResolver) *CartHandler {
	return &CartHandler{uc: uc, merge: merge}
}

type AddCartItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int64  `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity *int64 `json:"quantity"`
}

type SetEmailRequest struct {
	Email string `json:"email"`
}

type MergeCartRequest struct {
	GuestCartID string `json:"guest_cart_id"`
}

// /carts 配下を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/carts")
	g.Use(middleware.ResolveIdentity(cfg))

	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.POST("/:id/items", h.addItem)
	g.PATCH("/:id/items/:item_id", h.updateItem)
	g.DELETE("/:id/items/:item_id", h.removeItem)
	g.PUT("/:id/email", h.setEmail)
	g.GET("/:id/validation", h.validate)
	//ログイン後にゲストカートを取り込む
	g.POST("/:id/merge", h.mergeGuest)
}

func (h *CartHandler) create(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.CreateCart(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *CartHandler) get(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.GetDetails(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addItem(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req AddCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.AddItem(c.Request().Context(), id, c.Param("id"), usecase.AddItemInput{
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) updateItem(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req UpdateCartItemRequest
	if err := c.Bind(&req); err != nil || req.Quantity == nil {
		return badRequest(c, "quantity is required")
	}

	out, err := h.uc.UpdateItem(c.Request().Context(), id, c.Param("id"), c.Param("item_id"), *req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) removeItem(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.RemoveItem(c.Request().Context(), id, c.Param("id"), c.Param("item_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) setEmail(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req SetEmailRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.SetEmail(c.Request().Context(), id, c.Param("id"), req.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) validate(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.Validate(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) mergeGuest(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req MergeCartRequest
	if err := c.Bind(&req); err != nil || req.GuestCartID == "" {
		return badRequest(c, "guest_cart_id is required")
	}

	//ゲストカートの持ち主は X-Session-ID で示す
	session := strings.TrimSpace(c.Request().Header.Get(middleware.HeaderSessionID))
	if session == "" {
		return badRequest(c, "X-Session-ID is required")
	}

	out, err := h.merge.MergeCart(c.Request().Context(), id, model.Anonymous(session), req.GuestCartID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
