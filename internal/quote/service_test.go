package quote

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"fundwatch/internal/models"
)

type stubEstimate struct {
	quote models.Quote
	calls int
}

func (s *stubEstimate) Fetch(ctx context.Context, code string) models.Quote {
	s.calls++
	return s.quote
}

type stubNav struct {
	nav   decimal.Decimal
	err   error
	codes []string
}

func (s *stubNav) PreviousNav(ctx context.Context, code, excludeDate string) (decimal.Decimal, error) {
	s.codes = append(s.codes, code)
	return s.nav, s.err
}

func TestServiceOffExchangeUsesEstimateFeed(t *testing.T) {
	est := &stubEstimate{quote: models.Quote{Source: SourceEstimate, NavDate: "2026-09-01"}}
	svc := &Service{Estimate: est, Tickers: &stubRateSource{}, History: &stubNav{}}

	q, err := svc.Fetch(context.Background(), "161039", models.ChannelOffExchange)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if q.Source != SourceEstimate {
		t.Fatalf("source=%s want=%s", q.Source, SourceEstimate)
	}
	if est.calls != 1 {
		t.Fatalf("estimate calls=%d want=1", est.calls)
	}
}

func TestServiceOnExchangeFullPricePassesThrough(t *testing.T) {
	ticker := &stubRateSource{quote: models.Quote{
		LivePrice: decimal.RequireFromString("1.515"),
		BaseNav:   decimal.RequireFromString("1.500"),
		EstRate:   decimal.RequireFromString("0.01"),
		NavDate:   models.NavDateUnknown,
		Source:    SourceTencent,
	}}
	nav := &stubNav{}
	svc := &Service{Estimate: &stubEstimate{}, Tickers: ticker, History: nav}

	q, err := svc.Fetch(context.Background(), "513100", models.ChannelOnExchange)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if q.LivePrice.Cmp(decimal.RequireFromString("1.515")) != 0 {
		t.Fatalf("live=%s want=1.515", q.LivePrice)
	}
	if len(nav.codes) != 0 {
		t.Fatalf("history consulted for full-price quote: %v", nav.codes)
	}
}

func TestServiceRateOnlyAnchorsToOwnNav(t *testing.T) {
	ticker := &stubRateSource{quote: models.Quote{
		EstRate: decimal.RequireFromString("0.01"),
		NavDate: models.NavDateUnknown,
		Source:  SourceEastmoney,
	}}
	nav := &stubNav{nav: decimal.RequireFromString("1.500")}
	svc := &Service{Estimate: &stubEstimate{}, Tickers: ticker, History: nav}

	q, err := svc.Fetch(context.Background(), "513100", models.ChannelOnExchange)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if q.BaseNav.Cmp(decimal.RequireFromString("1.500")) != 0 {
		t.Fatalf("base=%s want=1.500", q.BaseNav)
	}
	if q.LivePrice.Cmp(decimal.RequireFromString("1.515")) != 0 {
		t.Fatalf("live=%s want=1.515", q.LivePrice)
	}
	if q.Source != SourceEastmoney {
		t.Fatalf("source=%s want=%s", q.Source, SourceEastmoney)
	}
}

func TestServiceBorrowedRateKeepsOwnNavBase(t *testing.T) {
	ticker := &stubRateSource{quote: models.Quote{
		LivePrice: decimal.RequireFromString("1.515"),
		BaseNav:   decimal.RequireFromString("1.500"),
		EstRate:   decimal.RequireFromString("0.01"),
		NavDate:   models.NavDateUnknown,
		Source:    SourceTencent,
	}}
	nav := &stubNav{nav: decimal.RequireFromString("1.872")}
	svc := &Service{
		Estimate: &stubEstimate{},
		Tickers:  ticker,
		History:  nav,
		Proxy:    NewResolver(map[string]string{"019005": "161226"}),
	}

	q, err := svc.Fetch(context.Background(), "019005", models.ChannelBorrowed)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	// The proxy's rate applied to the holding's own previous NAV, not the
	// proxy's price.
	if q.BaseNav.Cmp(decimal.RequireFromString("1.872")) != 0 {
		t.Fatalf("base=%s want=1.872", q.BaseNav)
	}
	if q.LivePrice.Cmp(decimal.RequireFromString("1.89072")) != 0 {
		t.Fatalf("live=%s want=1.89072", q.LivePrice)
	}
	if len(nav.codes) != 1 || nav.codes[0] != "019005" {
		t.Fatalf("history codes=%v want=[019005]", nav.codes)
	}
}

func TestServiceSentinelPassesThrough(t *testing.T) {
	ticker := &stubRateSource{quote: models.Quote{NavDate: models.NavDateUnknown, Source: SourceNone}}
	nav := &stubNav{nav: decimal.RequireFromString("1.500")}
	svc := &Service{Estimate: &stubEstimate{}, Tickers: ticker, History: nav}

	q, err := svc.Fetch(context.Background(), "513100", models.ChannelOnExchange)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if q.Source != SourceNone {
		t.Fatalf("source=%s want=%s", q.Source, SourceNone)
	}
	if len(nav.codes) != 0 {
		t.Fatalf("history consulted for sentinel: %v", nav.codes)
	}
}

func TestServiceRateOnlyWithNavFailure(t *testing.T) {
	ticker := &stubRateSource{quote: models.Quote{
		EstRate: decimal.RequireFromString("0.01"),
		NavDate: models.NavDateUnknown,
		Source:  SourceEastmoney,
	}}
	nav := &stubNav{err: errors.New("history down")}
	svc := &Service{Estimate: &stubEstimate{}, Tickers: ticker, History: nav}

	q, err := svc.Fetch(context.Background(), "513100", models.ChannelOnExchange)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !q.LivePrice.IsZero() || !q.BaseNav.IsZero() {
		t.Fatalf("prices must stay zero without a nav anchor, got live=%s base=%s", q.LivePrice, q.BaseNav)
	}
	if q.EstRate.Cmp(decimal.RequireFromString("0.01")) != 0 {
		t.Fatalf("rate=%s want=0.01", q.EstRate)
	}
}

func TestResolver(t *testing.T) {
	r := NewResolver(map[string]string{"19005": "161226"})

	target, ok := r.Resolve("019005")
	if !ok || target != "161226" {
		t.Fatalf("resolve=%s,%v want=161226,true", target, ok)
	}
	target, ok = r.Resolve("161039")
	if ok || target != "161039" {
		t.Fatalf("resolve=%s,%v want=161039,false", target, ok)
	}
}
