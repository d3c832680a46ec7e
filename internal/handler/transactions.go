package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundwatch/internal/models"
	"fundwatch/internal/repository"
	"fundwatch/internal/settle"
)

type TransactionHandler struct {
	Repo   repository.Repository
	Engine *settle.Engine
	Logger *zap.Logger
	Now    func() time.Time
}

func (h *TransactionHandler) Register(r *gin.Engine) {
	t := r.Group("/api/v1/transactions")
	t.GET("", h.list)
	t.POST("", h.submit)
	t.POST("/:id/settle", h.settle)
	t.DELETE("/:id", h.cancel)
}

type transactionView struct {
	models.Transaction
	Eligible bool `json:"eligible"`
}

// @Summary List pending transactions
// @Tags transactions
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) list(c *gin.Context) {
	txs, err := h.Repo.ListTransactions(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	today := h.today()
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, transactionView{Transaction: tx, Eligible: settle.Eligible(tx, today)})
	}
	Ok(c, views, map[string]any{"count": len(views)})
}

type submitRequest struct {
	Code       string          `json:"code"`
	Type       string          `json:"type"`
	Mode       string          `json:"mode"`
	Value      decimal.Decimal `json:"value"`
	AfterClose *bool           `json:"after_close"`
}

// @Summary Submit a buy/sell order
// @Tags transactions
// @Accept json
// @Success 200 {object} handler.apiResponse
// @Failure 400 {object} handler.apiResponse
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	tx, err := h.Engine.Submit(c.Request.Context(), settle.SubmitRequest{
		Code:       req.Code,
		Type:       req.Type,
		Mode:       req.Mode,
		Value:      req.Value,
		AfterClose: req.AfterClose,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, settle.ErrUnknownHolding) {
			status = http.StatusNotFound
		}
		Error(c, status, err.Error(), nil)
		return
	}
	Ok(c, tx, nil)
}

type settleRequest struct {
	Price *decimal.Decimal `json:"price"`
}

// @Summary Settle an eligible transaction
// @Tags transactions
// @Accept json
// @Success 200 {object} handler.apiResponse
// @Failure 404 {object} handler.apiResponse
// @Failure 409 {object} handler.apiResponse
// @Router /api/v1/transactions/{id}/settle [post]
func (h *TransactionHandler) settle(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req settleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
			return
		}
	}
	holding, err := h.Engine.Settle(c.Request.Context(), id, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			Error(c, http.StatusNotFound, "transaction not found", nil)
		case errors.Is(err, settle.ErrNotEligible):
			Error(c, http.StatusConflict, err.Error(), nil)
		case errors.Is(err, settle.ErrNoPrice):
			Error(c, http.StatusBadRequest, err.Error(), nil)
		default:
			Error(c, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}
	Ok(c, holding, nil)
}

// @Summary Cancel a pending transaction
// @Tags transactions
// @Success 200 {object} handler.apiResponse
// @Failure 404 {object} handler.apiResponse
// @Router /api/v1/transactions/{id} [delete]
func (h *TransactionHandler) cancel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.Engine.Cancel(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Error(c, http.StatusNotFound, "transaction not found", nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, nil, nil)
}

func (h *TransactionHandler) today() string {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	return now.Format("2006-01-02")
}
