package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundwatch/internal/models"
	"fundwatch/internal/repository"
)

// NameSource resolves a fund's display name for the add-fund flow.
type NameSource interface {
	Name(ctx context.Context, code string) string
}

type PortfolioHandler struct {
	Repo   repository.Repository
	Names  NameSource
	Logger *zap.Logger
}

func (h *PortfolioHandler) Register(r *gin.Engine) {
	p := r.Group("/api/v1/holdings")
	p.GET("", h.list)
	p.POST("", h.create)
	p.PUT("/:code", h.update)
	p.DELETE("/:code", h.remove)
}

// @Summary List holdings
// @Tags portfolio
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/holdings [get]
func (h *PortfolioHandler) list(c *gin.Context) {
	holdings, err := h.Repo.ListHoldings(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, holdings, map[string]any{"count": len(holdings)})
}

type createHoldingRequest struct {
	Code        string          `json:"code"`
	Cost        decimal.Decimal `json:"cost"`
	Shares      decimal.Decimal `json:"shares"`
	Channel     string          `json:"channel"`
	ConfirmDays *int            `json:"confirm_days"`
}

// @Summary Add a fund to the portfolio
// @Tags portfolio
// @Accept json
// @Success 200 {object} handler.apiResponse
// @Failure 400 {object} handler.apiResponse
// @Failure 409 {object} handler.apiResponse
// @Router /api/v1/holdings [post]
func (h *PortfolioHandler) create(c *gin.Context) {
	var req createHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	code := strings.TrimSpace(req.Code)
	if !validCode(code) {
		Error(c, http.StatusBadRequest, "code must be 6 digits", nil)
		return
	}
	if !req.Cost.IsPositive() || !req.Shares.IsPositive() {
		Error(c, http.StatusBadRequest, "cost and shares must be positive", nil)
		return
	}
	name := h.Names.Name(c.Request.Context(), code)
	if name == "" {
		Error(c, http.StatusBadRequest, "fund name lookup failed", nil)
		return
	}

	holdings, err := h.Repo.ListHoldings(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	for _, existing := range holdings {
		if existing.Code == code {
			Error(c, http.StatusConflict, "holding already exists", nil)
			return
		}
	}

	channel := strings.TrimSpace(req.Channel)
	if channel == "" {
		channel = models.ChannelOffExchange
	}
	confirmDays := guessConfirmDays(name)
	if req.ConfirmDays != nil && *req.ConfirmDays >= 0 {
		confirmDays = *req.ConfirmDays
	}
	holding := models.Holding{
		Code:        code,
		Name:        name,
		Channel:     channel,
		Cost:        req.Cost,
		Shares:      req.Shares,
		ConfirmDays: confirmDays,
	}
	holdings = append(holdings, holding)
	if err := h.Repo.SaveHoldings(c.Request.Context(), holdings); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("holding added", zap.String("code", code), zap.String("name", name))
	}
	Ok(c, holding, nil)
}

type updateHoldingRequest struct {
	Name        *string          `json:"name"`
	Channel     *string          `json:"channel"`
	Cost        *decimal.Decimal `json:"cost"`
	Shares      *decimal.Decimal `json:"shares"`
	ConfirmDays *int             `json:"confirm_days"`
}

// @Summary Edit a holding
// @Tags portfolio
// @Accept json
// @Success 200 {object} handler.apiResponse
// @Failure 404 {object} handler.apiResponse
// @Router /api/v1/holdings/{code} [put]
func (h *PortfolioHandler) update(c *gin.Context) {
	code := models.NormalizeCode(c.Param("code"))
	var req updateHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	if req.Cost != nil && req.Cost.IsNegative() {
		Error(c, http.StatusBadRequest, "cost must not be negative", nil)
		return
	}
	if req.Shares != nil && req.Shares.IsNegative() {
		Error(c, http.StatusBadRequest, "shares must not be negative", nil)
		return
	}

	holdings, err := h.Repo.ListHoldings(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	idx := -1
	for i := range holdings {
		if holdings[i].Code == code {
			idx = i
			break
		}
	}
	if idx < 0 {
		Error(c, http.StatusNotFound, "holding not found", nil)
		return
	}

	if req.Name != nil {
		holdings[idx].Name = *req.Name
	}
	if req.Channel != nil {
		holdings[idx].Channel = *req.Channel
	}
	if req.Cost != nil {
		holdings[idx].Cost = *req.Cost
	}
	if req.Shares != nil {
		holdings[idx].Shares = *req.Shares
	}
	if req.ConfirmDays != nil && *req.ConfirmDays >= 0 {
		holdings[idx].ConfirmDays = *req.ConfirmDays
	}
	if err := h.Repo.SaveHoldings(c.Request.Context(), holdings); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, holdings[idx], nil)
}

// @Summary Remove a holding
// @Tags portfolio
// @Success 200 {object} handler.apiResponse
// @Failure 404 {object} handler.apiResponse
// @Router /api/v1/holdings/{code} [delete]
func (h *PortfolioHandler) remove(c *gin.Context) {
	code := models.NormalizeCode(c.Param("code"))
	holdings, err := h.Repo.ListHoldings(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	kept := holdings[:0]
	found := false
	for _, holding := range holdings {
		if holding.Code == code {
			found = true
			continue
		}
		kept = append(kept, holding)
	}
	if !found {
		Error(c, http.StatusNotFound, "holding not found", nil)
		return
	}
	if err := h.Repo.SaveHoldings(c.Request.Context(), kept); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, nil, nil)
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Overseas funds settle a day later; the fund name is the only hint the
// estimate feed gives us.
var overseasKeywords = []string{
	"QDII", "全球", "美国", "纳斯达克", "标普", "恒生", "海外", "油气",
	"商品", "德国", "日经", "越南", "印度", "法国",
}

func guessConfirmDays(name string) int {
	if name == "" {
		return 1
	}
	upper := strings.ToUpper(name)
	for _, kw := range overseasKeywords {
		if strings.Contains(upper, kw) {
			return 2
		}
	}
	return 1
}
