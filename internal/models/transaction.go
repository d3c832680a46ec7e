package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TxTypeBuy  = "buy"
	TxTypeSell = "sell"

	TxModeAmount = "amount"
	TxModeShare  = "share"

	TxStatusPending = "pending"
)

// Transaction is a pending buy/sell order awaiting settlement. Dates are
// "YYYY-MM-DD" strings; ConfirmDate = TradeDate + the holding's settlement
// lag. Settlement folds the fill into the holding and deletes the record, so
// no settled state ever persists.
type Transaction struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SubmitDate  string          `gorm:"type:varchar(10);not null" json:"submit_date"`
	TradeDate   string          `gorm:"type:varchar(10);not null" json:"trade_date"`
	ConfirmDate string          `gorm:"type:varchar(10);not null;index" json:"confirm_date"`
	Code        string          `gorm:"type:varchar(6);not null;index" json:"code"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	Channel     string          `gorm:"type:varchar(30);not null" json:"channel"`
	Type        string          `gorm:"type:varchar(10);not null" json:"type"`
	Mode        string          `gorm:"type:varchar(10);not null" json:"mode"`
	Value       decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"value"`
	Status      string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}
