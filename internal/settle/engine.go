package settle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundwatch/internal/models"
	"fundwatch/internal/repository"
)

var (
	// ErrNotEligible gates settlement before the confirm date. The check
	// lives here, not in the UI, so a forced settle request still fails.
	ErrNotEligible = errors.New("transaction not settleable before confirm date")

	ErrUnknownHolding = errors.New("no holding for code")
	ErrNoPrice        = errors.New("no settlement price available")
)

// QuotePricer supplies the default settlement price when the caller does not
// provide one.
type QuotePricer interface {
	Fetch(ctx context.Context, code, channel string) (models.Quote, error)
}

// Engine applies the buy/sell settlement workflow: order submission with the
// T+N confirm date, weighted-average cost on buy, share reduction on sell,
// and removal of the settled transaction from the pending log.
type Engine struct {
	Repo   repository.Repository
	Quotes QuotePricer
	Logger *zap.Logger

	// OrderCutoff is the local HH:MM after which new orders trade next day.
	OrderCutoff string
	Now         func() time.Time
}

type SubmitRequest struct {
	Code  string
	Type  string
	Mode  string
	Value decimal.Decimal

	// AfterClose overrides the cutoff-derived trade day when set.
	AfterClose *bool
}

// Submit validates an order against an existing holding and appends it to
// the pending log.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (models.Transaction, error) {
	if req.Type != models.TxTypeBuy && req.Type != models.TxTypeSell {
		return models.Transaction{}, fmt.Errorf("invalid type %q", req.Type)
	}
	if req.Mode != models.TxModeAmount && req.Mode != models.TxModeShare {
		return models.Transaction{}, fmt.Errorf("invalid mode %q", req.Mode)
	}
	if !req.Value.IsPositive() {
		return models.Transaction{}, fmt.Errorf("value must be positive")
	}

	code := models.NormalizeCode(req.Code)
	holdings, err := e.Repo.ListHoldings(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	var holding *models.Holding
	for i := range holdings {
		if holdings[i].Code == code {
			holding = &holdings[i]
			break
		}
	}
	if holding == nil {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrUnknownHolding, code)
	}

	now := e.now()
	tradeDate := now
	if e.afterCutoff(now, req.AfterClose) {
		tradeDate = tradeDate.AddDate(0, 0, 1)
	}
	confirmDate := tradeDate.AddDate(0, 0, holding.ConfirmDays)

	tx := models.Transaction{
		SubmitDate:  now.Format("2006-01-02"),
		TradeDate:   tradeDate.Format("2006-01-02"),
		ConfirmDate: confirmDate.Format("2006-01-02"),
		Code:        code,
		Name:        holding.Name,
		Channel:     holding.Channel,
		Type:        req.Type,
		Mode:        req.Mode,
		Value:       req.Value,
		Status:      models.TxStatusPending,
	}
	if err := e.Repo.AppendTransaction(ctx, &tx); err != nil {
		return models.Transaction{}, err
	}
	if e.Logger != nil {
		e.Logger.Info("order submitted",
			zap.String("code", code),
			zap.String("type", req.Type),
			zap.String("confirm_date", tx.ConfirmDate),
		)
	}
	return tx, nil
}

// Settle confirms a pending transaction at the given price (or a freshly
// fetched one when price is nil), folds the fill into the holding, persists
// the portfolio, and removes the transaction from the pending log.
func (e *Engine) Settle(ctx context.Context, id uint64, price *decimal.Decimal) (models.Holding, error) {
	txs, err := e.Repo.ListTransactions(ctx)
	if err != nil {
		return models.Holding{}, err
	}
	var tx *models.Transaction
	for i := range txs {
		if txs[i].ID == id {
			tx = &txs[i]
			break
		}
	}
	if tx == nil {
		return models.Holding{}, repository.ErrNotFound
	}
	if !Eligible(*tx, e.today()) {
		return models.Holding{}, ErrNotEligible
	}

	rp, err := e.settlementPrice(ctx, tx, price)
	if err != nil {
		return models.Holding{}, err
	}

	holdings, err := e.Repo.ListHoldings(ctx)
	if err != nil {
		return models.Holding{}, err
	}
	idx := -1
	for i := range holdings {
		if holdings[i].Code == tx.Code {
			idx = i
			break
		}
	}
	if idx < 0 {
		holdings = append(holdings, models.Holding{
			Code:        tx.Code,
			Name:        tx.Name,
			Channel:     tx.Channel,
			Cost:        decimal.Zero,
			Shares:      decimal.Zero,
			ConfirmDays: 1,
		})
		idx = len(holdings) - 1
	}

	fillShares, fillAmount := fill(tx.Mode, tx.Value, rp)
	if tx.Type == models.TxTypeBuy {
		applyBuy(&holdings[idx], fillShares, fillAmount)
	} else {
		applySell(&holdings[idx], fillShares)
	}

	if err := e.Repo.SaveHoldings(ctx, holdings); err != nil {
		return models.Holding{}, fmt.Errorf("persist holdings: %w", err)
	}
	if err := e.Repo.RemoveTransaction(ctx, id); err != nil {
		return models.Holding{}, fmt.Errorf("remove transaction: %w", err)
	}
	if e.Logger != nil {
		e.Logger.Info("transaction settled",
			zap.Uint64("id", id),
			zap.String("code", tx.Code),
			zap.String("price", rp.String()),
		)
	}
	return holdings[idx], nil
}

// Cancel removes a pending transaction without touching holdings.
func (e *Engine) Cancel(ctx context.Context, id uint64) error {
	return e.Repo.RemoveTransaction(ctx, id)
}

// Eligible reports whether a transaction may settle on the given day. ISO
// date strings compare correctly as plain strings.
func Eligible(tx models.Transaction, today string) bool {
	return today >= tx.ConfirmDate
}

func (e *Engine) settlementPrice(ctx context.Context, tx *models.Transaction, price *decimal.Decimal) (decimal.Decimal, error) {
	if price != nil {
		if !price.IsPositive() {
			return decimal.Zero, ErrNoPrice
		}
		return *price, nil
	}
	if e.Quotes == nil {
		return decimal.Zero, ErrNoPrice
	}
	q, err := e.Quotes.Fetch(ctx, tx.Code, tx.Channel)
	if err != nil || !q.LivePrice.IsPositive() {
		return decimal.Zero, ErrNoPrice
	}
	return q.LivePrice, nil
}

// fill converts an order's value into filled shares and amount at price rp.
func fill(mode string, value, rp decimal.Decimal) (shares, amount decimal.Decimal) {
	if mode == models.TxModeAmount {
		return value.Div(rp), value
	}
	return value, value.Mul(rp)
}

func applyBuy(h *models.Holding, fillShares, fillAmount decimal.Decimal) {
	newShares := h.Shares.Add(fillShares)
	if newShares.IsPositive() {
		h.Cost = h.Shares.Mul(h.Cost).Add(fillAmount).Div(newShares)
	} else {
		h.Cost = decimal.Zero
	}
	h.Shares = newShares
}

func applySell(h *models.Holding, fillShares decimal.Decimal) {
	newShares := h.Shares.Sub(fillShares)
	if newShares.IsNegative() {
		newShares = decimal.Zero
	}
	h.Shares = newShares
}

func (e *Engine) afterCutoff(now time.Time, override *bool) bool {
	if override != nil {
		return *override
	}
	cutoff := strings.TrimSpace(e.OrderCutoff)
	if cutoff == "" {
		cutoff = "15:00"
	}
	return now.Format("15:04") >= cutoff
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) today() string {
	return e.now().Format("2006-01-02")
}
