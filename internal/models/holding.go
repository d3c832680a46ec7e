package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Channel describes where a fund position is held and therefore which quote
// path values it:
//   - off_exchange: valued via the daily NAV estimate feed.
//   - on_exchange: exchange traded, valued via intraday ticker feeds.
//   - on_exchange_borrowed: no independent feed; borrows a proxy ticker's rate.
const (
	ChannelOffExchange = "off_exchange"
	ChannelOnExchange  = "on_exchange"
	ChannelBorrowed    = "on_exchange_borrowed"
)

// Holding is one portfolio position. Code is unique within the portfolio and
// always normalized to 6 zero-padded digits.
type Holding struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	Code        string          `gorm:"type:varchar(6);not null;uniqueIndex" json:"code"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	Channel     string          `gorm:"type:varchar(30);not null;default:'off_exchange'" json:"channel"`
	Cost        decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"cost"`
	Shares      decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"shares"`
	ConfirmDays int             `gorm:"not null;default:1" json:"confirm_days"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

func (Holding) TableName() string {
	return "holdings"
}

// NormalizeCode trims and zero-pads an instrument code to 6 characters.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	for len(code) < 6 {
		code = "0" + code
	}
	return code
}

// Normalize repairs a holding loaded from a store with missing or malformed
// columns: pads the code, defaults the channel and settlement lag, and clamps
// negative quantities to zero.
func (h *Holding) Normalize() {
	h.Code = NormalizeCode(h.Code)
	if strings.TrimSpace(h.Channel) == "" {
		h.Channel = ChannelOffExchange
	}
	if h.Cost.IsNegative() {
		h.Cost = decimal.Zero
	}
	if h.Shares.IsNegative() {
		h.Shares = decimal.Zero
	}
	if h.ConfirmDays < 0 {
		h.ConfirmDays = 1
	}
}
