package server

import (
	"storefront/internal/config"
	"storefront/internal/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers, gatherer prometheus.Gatherer) {
	e.GET("/healthz", healthz)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))
	}

	h.Cart.RegisterRoutes(e, cfg)
	h.Checkout.RegisterRoutes(e, cfg)
	h.Order.RegisterRoutes(e, cfg)
	h.Admin.RegisterRoutes(e, cfg)
}
