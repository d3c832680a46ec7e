package valuation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fundwatch/internal/models"
)

type stubQuotes struct {
	mu     sync.Mutex
	quotes map[string]models.Quote
	errs   map[string]error
	calls  map[string]int
}

func (s *stubQuotes) Fetch(ctx context.Context, code, channel string) (models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[code]++
	if err := s.errs[code]; err != nil {
		return models.Quote{}, err
	}
	return s.quotes[code], nil
}

func (s *stubQuotes) callCount(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[code]
}

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	now, err := time.Parse("2006-01-02 15:04", "2026-09-01 14:30")
	if err != nil {
		t.Fatalf("parse clock: %v", err)
	}
	return func() time.Time { return now }
}

func TestComputeSingleHolding(t *testing.T) {
	quotes := &stubQuotes{quotes: map[string]models.Quote{
		"161039": {
			LivePrice: decimal.RequireFromString("2.01"),
			BaseNav:   decimal.RequireFromString("2.00"),
			EstRate:   decimal.RequireFromString("0.005"),
			NavDate:   "2026-09-01",
			Source:    "fundgz",
		},
	}}
	calc := &Calculator{Quotes: quotes, Now: fixedClock(t)}

	holdings := []models.Holding{{
		Code:    "161039",
		Name:    "Index Enhanced",
		Channel: models.ChannelOffExchange,
		Cost:    decimal.RequireFromString("1.80"),
		Shares:  decimal.RequireFromString("500"),
	}}
	res := calc.Compute(context.Background(), holdings, Snapshot{})

	if len(res.Rows) != 1 {
		t.Fatalf("rows=%d want=1", len(res.Rows))
	}
	row := res.Rows[0]
	if row.Value.Cmp(decimal.RequireFromString("1005")) != 0 {
		t.Fatalf("value=%s want=1005", row.Value)
	}
	if row.DayGain.Cmp(decimal.RequireFromString("5")) != 0 {
		t.Fatalf("day_gain=%s want=5", row.DayGain)
	}
	if row.CumGain.Cmp(decimal.RequireFromString("105")) != 0 {
		t.Fatalf("cumulative_gain=%s want=105", row.CumGain)
	}
	if row.RateText != "+0.50% (updated)" {
		t.Fatalf("rate=%q want=+0.50%% (updated)", row.RateText)
	}
	if !row.Updated {
		t.Fatalf("finalized estimate must mark the row updated")
	}
	if res.TotalValue.Cmp(decimal.RequireFromString("1005")) != 0 {
		t.Fatalf("total_value=%s want=1005", res.TotalValue)
	}
	if len(res.CacheUpdates) != 1 {
		t.Fatalf("cache updates=%d want=1", len(res.CacheUpdates))
	}
	if _, ok := res.CacheUpdates.Lookup("161039", "2026-09-01"); !ok {
		t.Fatalf("finalized quote not staged for the cache")
	}
}

func TestComputeCacheHitSkipsFetch(t *testing.T) {
	quotes := &stubQuotes{}
	calc := &Calculator{Quotes: quotes, Now: fixedClock(t)}

	snap := Snapshot{Key("161039", "2026-09-01"): {
		LivePrice: decimal.RequireFromString("2.01"),
		BaseNav:   decimal.RequireFromString("2.00"),
		EstRate:   decimal.RequireFromString("0.005"),
		NavDate:   "2026-09-01",
		Source:    "fundgz",
	}}
	holdings := []models.Holding{{
		Code:    "161039",
		Channel: models.ChannelOffExchange,
		Cost:    decimal.RequireFromString("1.80"),
		Shares:  decimal.RequireFromString("500"),
	}}
	res := calc.Compute(context.Background(), holdings, snap)

	if quotes.callCount("161039") != 0 {
		t.Fatalf("fetch called %d times for a cached code", quotes.callCount("161039"))
	}
	row := res.Rows[0]
	if row.Updated {
		t.Fatalf("cache hit must not be marked updated")
	}
	if row.RateText != "+0.50%" {
		t.Fatalf("rate=%q want=+0.50%%", row.RateText)
	}
	if len(res.CacheUpdates) != 0 {
		t.Fatalf("cache hit staged an update")
	}
}

func TestComputeSkipsFailedRows(t *testing.T) {
	quotes := &stubQuotes{
		quotes: map[string]models.Quote{
			"161039": {
				LivePrice: decimal.RequireFromString("2.00"),
				BaseNav:   decimal.RequireFromString("2.00"),
				NavDate:   models.NavDateUnknown,
				Source:    "fundgz",
			},
		},
		errs: map[string]error{"019005": errors.New("bad state")},
	}
	calc := &Calculator{Quotes: quotes, Now: fixedClock(t)}

	holdings := []models.Holding{
		{Code: "161039", Channel: models.ChannelOffExchange, Shares: decimal.RequireFromString("100")},
		{Code: "019005", Channel: models.ChannelBorrowed, Shares: decimal.RequireFromString("100")},
	}
	res := calc.Compute(context.Background(), holdings, Snapshot{})

	if len(res.Rows) != 1 {
		t.Fatalf("rows=%d want=1", len(res.Rows))
	}
	if res.Rows[0].Code != "161039" {
		t.Fatalf("surviving row=%s want=161039", res.Rows[0].Code)
	}
	if res.TotalValue.Cmp(decimal.RequireFromString("200")) != 0 {
		t.Fatalf("total_value=%s want=200", res.TotalValue)
	}
}

func TestComputeSortsByValueDesc(t *testing.T) {
	quotes := &stubQuotes{quotes: map[string]models.Quote{
		"161039": {LivePrice: decimal.RequireFromString("1.00"), NavDate: models.NavDateUnknown},
		"513100": {LivePrice: decimal.RequireFromString("2.00"), NavDate: models.NavDateUnknown},
		"019005": {LivePrice: decimal.RequireFromString("3.00"), NavDate: models.NavDateUnknown},
	}}
	calc := &Calculator{Quotes: quotes, Now: fixedClock(t), Concurrency: 2}

	shares := decimal.RequireFromString("100")
	holdings := []models.Holding{
		{Code: "161039", Channel: models.ChannelOffExchange, Shares: shares},
		{Code: "513100", Channel: models.ChannelOnExchange, Shares: shares},
		{Code: "019005", Channel: models.ChannelBorrowed, Shares: shares},
	}
	res := calc.Compute(context.Background(), holdings, Snapshot{})

	want := []string{"019005", "513100", "161039"}
	for i, code := range want {
		if res.Rows[i].Code != code {
			t.Fatalf("rows[%d]=%s want=%s", i, res.Rows[i].Code, code)
		}
	}
}

func TestComputeUnfinalizedEstimateNotStaged(t *testing.T) {
	quotes := &stubQuotes{quotes: map[string]models.Quote{
		"161039": {
			LivePrice: decimal.RequireFromString("2.01"),
			BaseNav:   decimal.RequireFromString("2.00"),
			EstRate:   decimal.RequireFromString("0.005"),
			NavDate:   "2026-08-31",
			Source:    "fundgz",
		},
	}}
	calc := &Calculator{Quotes: quotes, Now: fixedClock(t)}

	holdings := []models.Holding{{
		Code:    "161039",
		Channel: models.ChannelOffExchange,
		Shares:  decimal.RequireFromString("100"),
	}}
	res := calc.Compute(context.Background(), holdings, Snapshot{})

	if res.Rows[0].Updated {
		t.Fatalf("yesterday's estimate marked updated")
	}
	if len(res.CacheUpdates) != 0 {
		t.Fatalf("unfinalized quote staged for the cache")
	}
}
