package models

import "github.com/shopspring/decimal"

// NavDateUnknown marks a quote whose estimate timestamp could not be read.
const NavDateUnknown = "-"

// SourceError is the source label of the failure sentinel quote.
const SourceError = "Error"

// Quote is a normalized best-effort price estimate from one of the upstream
// feeds. EstRate is a fraction (0.005 == +0.5%). Quotes are ephemeral; only
// finalized off-exchange estimates are retained in the valuation cache.
type Quote struct {
	LivePrice decimal.Decimal `json:"live_price"`
	BaseNav   decimal.Decimal `json:"base_nav"`
	EstRate   decimal.Decimal `json:"est_rate"`
	NavDate   string          `json:"nav_date"`
	Source    string          `json:"source"`
}

// ErrorQuote is the sentinel returned when a feed fails: all-zero prices,
// unknown date. Feed failures are never raised to callers.
func ErrorQuote() Quote {
	return Quote{NavDate: NavDateUnknown, Source: SourceError}
}

// FinalizedFor reports whether the estimate has been confirmed for the given
// date and is therefore stable enough to cache.
func (q Quote) FinalizedFor(date string) bool {
	return q.NavDate == date && q.NavDate != NavDateUnknown
}
