package models

import (
	"time"

	"gorm.io/datatypes"
)

// CachedValuation is a finalized quote persisted by the database-backed
// store so a same-day restart can rewarm the in-memory valuation cache
// without refetching. Rows for past dates are pruned daily.
type CachedValuation struct {
	ID      uint64         `gorm:"primaryKey;autoIncrement"`
	Code    string         `gorm:"type:varchar(6);not null;uniqueIndex:idx_valuations_code_date"`
	NavDate string         `gorm:"type:varchar(10);not null;uniqueIndex:idx_valuations_code_date;index"`
	Payload datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (CachedValuation) TableName() string {
	return "valuations"
}
