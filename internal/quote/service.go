package quote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundwatch/internal/models"
)

// EstimateSource answers off-exchange estimate lookups.
type EstimateSource interface {
	Fetch(ctx context.Context, code string) models.Quote
}

// NavSource answers previous-NAV lookups.
type NavSource interface {
	PreviousNav(ctx context.Context, code, excludeDate string) (decimal.Decimal, error)
}

// Service routes a quote request to the feed family that can answer it:
// estimate feed for off-exchange funds, the ticker chain for on-exchange
// instruments, and rate borrowing through the proxy resolver for instruments
// without a feed of their own. Borrowed and rate-only results keep the
// instrument's own previous NAV as the price base; only the rate is
// borrowed.
type Service struct {
	Estimate EstimateSource
	Tickers  RateSource
	History  NavSource
	Proxy    *Resolver
	Logger   *zap.Logger
	Now      func() time.Time
}

func (s *Service) Fetch(ctx context.Context, code, channel string) (models.Quote, error) {
	switch channel {
	case models.ChannelOnExchange:
		return s.fetchTicker(ctx, code, code), nil
	case models.ChannelBorrowed:
		target, _ := s.Proxy.Resolve(code)
		return s.fetchTicker(ctx, code, target), nil
	default:
		return s.Estimate.Fetch(ctx, code), nil
	}
}

func (s *Service) fetchTicker(ctx context.Context, code, tickerCode string) models.Quote {
	q, err := s.Tickers.FetchRate(ctx, tickerCode)
	if err != nil {
		// The chain converts feed failures into the sentinel itself; an
		// error here means something unexpected upstream.
		if s.Logger != nil {
			s.Logger.Warn("ticker chain failed", zap.String("code", tickerCode), zap.Error(err))
		}
		return models.Quote{NavDate: models.NavDateUnknown, Source: SourceNone}
	}
	if q.LivePrice.IsPositive() && code == tickerCode {
		return q
	}
	if q.Source == SourceNone {
		return q
	}
	// Rate-only feed, or a rate borrowed from a proxy instrument: anchor the
	// price fields to the instrument's own last confirmed NAV.
	base, err := s.History.PreviousNav(ctx, code, s.today())
	if err != nil || !base.IsPositive() {
		return models.Quote{EstRate: q.EstRate, NavDate: models.NavDateUnknown, Source: q.Source}
	}
	live := base.Mul(decimal.NewFromInt(1).Add(q.EstRate))
	return models.Quote{
		LivePrice: live,
		BaseNav:   base,
		EstRate:   q.EstRate,
		NavDate:   models.NavDateUnknown,
		Source:    q.Source,
	}
}

func (s *Service) today() string {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return now.Format("2006-01-02")
}
