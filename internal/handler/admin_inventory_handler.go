package handler

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// バリアント定義の入力
type VariantCreateRequest struct {
	ID             string           `json:"id"`
	ProductName    string           `json:"product_name"`
	VariantName    string           `json:"variant_name"`
	SKU            string           `json:"sku"`
	UnitPrice      int64            `json:"unit_price"`
	TrackInventory *bool            `json:"track_inventory"`
	AllowBackorder bool             `json:"allow_backorder"`
	IsActive       *bool            `json:"is_active"`
	Attributes     model.Attributes `json:"attributes"`
	OnHand         int64            `json:"on_hand"`
}

// 価格変更の入力
type PriceChangeRequest struct {
	UnitPrice *int64 `json:"unit_price"`
}

// 在庫調整の入力
type InventoryAdjustRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// /admin 配下（バリアント定義・在庫・監査ログ）
type AdminInventoryHandler struct {
	ledger  *usecase.InventoryLedger
	catalog *usecase.CatalogAdmin
	audits  *usecase.AuditQuery
}

// DI
func NewAdminInventoryHandler(ledger *usecase.InventoryLedger, catalog *usecase.CatalogAdmin, audits *usecase.AuditQuery) *AdminInventoryHandler {
	return &AdminInventoryHandler{ledger: ledger, catalog: catalog, audits: audits}
}

// adminを登録
func (h *AdminInventoryHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	admin := e.Group("/admin")

	admin.Use(middleware.ResolveIdentity(cfg))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/variants", h.defineVariant)
	admin.PATCH("/variants/:variant_id/price", h.changePrice)
	admin.GET("/inventory/:variant_id", h.availability)
	admin.POST("/inventory/:variant_id/adjustments", h.adjust)
	admin.GET("/audit-logs", h.auditLogs)
}

func (h *AdminInventoryHandler) defineVariant(c echo.Context) error {
	var req VariantCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.SKU == "" || req.ProductName == "" {
		return badRequest(c, "sku and product_name are required")
	}

	v := model.ProductVariant{
		ID:             req.ID,
		ProductName:    req.ProductName,
		VariantName:    req.VariantName,
		SKU:            req.SKU,
		UnitPrice:      req.UnitPrice,
		TrackInventory: req.TrackInventory == nil || *req.TrackInventory,
		AllowBackorder: req.AllowBackorder,
		IsActive:       req.IsActive == nil || *req.IsActive,
		Attributes:     model.NewAttributesJSON(req.Attributes),
	}

	out, err := h.ledger.DefineVariant(c.Request().Context(), v, req.OnHand)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *AdminInventoryHandler) changePrice(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req PriceChangeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.UnitPrice == nil {
		return badRequest(c, "unit_price is required")
	}

	out, err := h.catalog.ChangePrice(c.Request().Context(), id.String(), c.Param("variant_id"), *req.UnitPrice)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminInventoryHandler) availability(c echo.Context) error {
	out, err := h.ledger.Available(c.Request().Context(), c.Param("variant_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminInventoryHandler) adjust(c echo.Context) error {
	id, ok := getIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req InventoryAdjustRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.ledger.Restock(c.Request().Context(), id.String(), c.Param("variant_id"), req.Delta, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminInventoryHandler) auditLogs(c echo.Context) error {
	limit, err := optQueryInt(c, "limit")
	if err != nil {
		return badRequest(c, "invalid limit")
	}
	offset, err := optQueryInt(c, "offset")
	if err != nil {
		return badRequest(c, "invalid offset")
	}
	from, err := optQueryTime(c, "from")
	if err != nil {
		return badRequest(c, "from must be RFC3339")
	}
	to, err := optQueryTime(c, "to")
	if err != nil {
		return badRequest(c, "to must be RFC3339")
	}

	out, err := h.audits.List(c.Request().Context(), usecase.AuditLogQuery{
		Actor:        c.QueryParam("actor"),
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		ResourceID:   c.QueryParam("resource_id"),
		From:         from,
		To:           to,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func optQueryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func optQueryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
