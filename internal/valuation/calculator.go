package valuation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundwatch/internal/models"
)

// QuoteProvider routes one quote request by channel. Implementations return
// sentinel quotes for feed failures; a non-nil error marks a hard failure
// whose row is skipped for the cycle.
type QuoteProvider interface {
	Fetch(ctx context.Context, code, channel string) (models.Quote, error)
}

// Row is one computed dashboard line.
type Row struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Channel   string          `json:"channel"`
	Cost      decimal.Decimal `json:"cost"`
	Shares    decimal.Decimal `json:"shares"`
	LivePrice decimal.Decimal `json:"live_price"`
	Value     decimal.Decimal `json:"value"`
	DayGain   decimal.Decimal `json:"day_gain"`
	CumGain   decimal.Decimal `json:"cumulative_gain"`
	RateText  string          `json:"rate"`
	Source    string          `json:"source"`
	Updated   bool            `json:"updated"`
}

// Result is the output of one valuation batch.
type Result struct {
	Rows         []Row
	TotalDayGain decimal.Decimal
	TotalCumGain decimal.Decimal
	TotalValue   decimal.Decimal
	CacheUpdates Snapshot
}

// Calculator values a holdings snapshot against a cache snapshot, fetching
// missing quotes in parallel with bounded concurrency. It mutates neither
// input; cache changes come back as a delta in Result.CacheUpdates.
type Calculator struct {
	Quotes      QuoteProvider
	Concurrency int
	Logger      *zap.Logger
	Now         func() time.Time
}

type rowResult struct {
	row    Row
	update *cacheUpdate
	err    error
}

type cacheUpdate struct {
	key   string
	quote models.Quote
}

func (c *Calculator) Compute(ctx context.Context, holdings []models.Holding, snap Snapshot) Result {
	today := c.today()
	conc := c.Concurrency
	if conc <= 0 {
		conc = 5
	}

	sem := make(chan struct{}, conc)
	results := make(chan rowResult, len(holdings))
	var wg sync.WaitGroup
	for _, h := range holdings {
		wg.Add(1)
		go func(h models.Holding) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- c.computeRow(ctx, h, snap, today)
		}(h)
	}
	wg.Wait()
	close(results)

	out := Result{CacheUpdates: Snapshot{}}
	for r := range results {
		if r.err != nil {
			// Partial-failure tolerance: the row sits out this cycle and the
			// next tick retries it.
			if c.Logger != nil {
				c.Logger.Warn("holding valuation failed", zap.String("code", r.row.Code), zap.Error(r.err))
			}
			continue
		}
		out.Rows = append(out.Rows, r.row)
		out.TotalDayGain = out.TotalDayGain.Add(r.row.DayGain)
		out.TotalCumGain = out.TotalCumGain.Add(r.row.CumGain)
		out.TotalValue = out.TotalValue.Add(r.row.Value)
		if r.update != nil {
			out.CacheUpdates[r.update.key] = r.update.quote
		}
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		return out.Rows[i].Value.GreaterThan(out.Rows[j].Value)
	})
	return out
}

func (c *Calculator) computeRow(ctx context.Context, h models.Holding, snap Snapshot, today string) rowResult {
	var (
		q       models.Quote
		updated bool
		cached  bool
	)
	if hit, ok := snap.Lookup(h.Code, today); ok {
		q = hit
		cached = true
	} else {
		fresh, err := c.Quotes.Fetch(ctx, h.Code, h.Channel)
		if err != nil {
			return rowResult{row: Row{Code: h.Code}, err: err}
		}
		q = fresh
		updated = h.Channel == models.ChannelOffExchange && q.FinalizedFor(today)
	}

	row := Row{
		Code:      h.Code,
		Name:      h.Name,
		Channel:   h.Channel,
		Cost:      h.Cost,
		Shares:    h.Shares,
		LivePrice: q.LivePrice,
		Value:     q.LivePrice.Mul(h.Shares),
		DayGain:   q.LivePrice.Sub(q.BaseNav).Mul(h.Shares),
		CumGain:   q.LivePrice.Sub(h.Cost).Mul(h.Shares),
		RateText:  formatRate(q.EstRate, updated),
		Source:    q.Source,
		Updated:   updated,
	}

	res := rowResult{row: row}
	if updated && !cached {
		res.update = &cacheUpdate{key: Key(h.Code, today), quote: q}
	}
	return res
}

func formatRate(rate decimal.Decimal, updated bool) string {
	text := fmt.Sprintf("%+.2f%%", rate.Mul(decimal.NewFromInt(100)).InexactFloat64())
	if updated {
		text += " (updated)"
	}
	return text
}

func (c *Calculator) today() string {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	return now.Format("2006-01-02")
}
