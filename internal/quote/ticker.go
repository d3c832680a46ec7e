package quote

import (
	"context"

	"go.uber.org/zap"

	"fundwatch/internal/models"
)

// SourceNone labels the sentinel returned when every ticker feed failed.
const SourceNone = "-"

// RateSource fetches an intraday rate estimate for an on-exchange code.
// Implementations return an error on timeout or an unparseable body; the
// chain treats any error as "try the next feed".
type RateSource interface {
	Name() string
	FetchRate(ctx context.Context, code string) (models.Quote, error)
}

// Chain tries ticker feeds in fixed priority order, first success wins. When
// every feed fails it returns the zero-rate sentinel rather than an error;
// the caller renders zero-delta fields and the next cycle retries.
type Chain struct {
	Sources []RateSource
	Logger  *zap.Logger
}

var _ RateSource = (*Chain)(nil)

// Name identifies the chain when it stands in as a RateSource; callers only
// invoke FetchRate, so the value is informational.
func (c *Chain) Name() string { return "chain" }

func (c *Chain) FetchRate(ctx context.Context, code string) (models.Quote, error) {
	for _, src := range c.Sources {
		q, err := src.FetchRate(ctx, code)
		if err != nil {
			if c.Logger != nil {
				c.Logger.Debug("ticker feed failed",
					zap.String("feed", src.Name()),
					zap.String("code", code),
					zap.Error(err),
				)
			}
			continue
		}
		return q, nil
	}
	return models.Quote{NavDate: models.NavDateUnknown, Source: SourceNone}, nil
}

// shanghaiListed reports whether a code trades on the Shanghai exchange
// (codes starting with 5 or 6); everything else is treated as Shenzhen.
func shanghaiListed(code string) bool {
	return len(code) > 0 && (code[0] == '5' || code[0] == '6')
}
