package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fundwatch/internal/models"
	"fundwatch/internal/refresh"
	"fundwatch/internal/valuation"
)

type DashboardHandler struct {
	Scheduler *refresh.Scheduler
	Quotes    valuation.QuoteProvider
	Logger    *zap.Logger
}

func (h *DashboardHandler) Register(r *gin.Engine) {
	d := r.Group("/api/v1/dashboard")
	d.GET("", h.get)
	d.POST("/refresh", h.forceRefresh)
	r.GET("/api/v1/quotes/:code", h.quote)
}

// @Summary Last computed dashboard snapshot
// @Tags dashboard
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/dashboard [get]
func (h *DashboardHandler) get(c *gin.Context) {
	Ok(c, h.Scheduler.Snapshot(), nil)
}

// @Summary Force the next tick to refetch quotes
// @Tags dashboard
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/dashboard/refresh [post]
func (h *DashboardHandler) forceRefresh(c *gin.Context) {
	h.Scheduler.ForceRefresh()
	Ok(c, nil, nil)
}

// @Summary One-off quote through the adapter chain
// @Tags dashboard
// @Param code path string true "6-digit instrument code"
// @Param channel query string false "off_exchange | on_exchange | on_exchange_borrowed"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/quotes/{code} [get]
func (h *DashboardHandler) quote(c *gin.Context) {
	code := models.NormalizeCode(c.Param("code"))
	channel := strings.TrimSpace(c.DefaultQuery("channel", models.ChannelOffExchange))
	q, err := h.Quotes.Fetch(c.Request.Context(), code, channel)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, q, nil)
}
