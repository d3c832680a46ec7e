package repository

import (
	"context"
	"errors"

	"fundwatch/internal/models"
)

// ErrNotFound is returned when a holding or transaction does not exist.
var ErrNotFound = errors.New("record not found")

// Repository is the durable store behind the valuation engine: a small
// record set of holdings, an append/remove log of pending orders, and an
// optional table of finalized valuations for same-day warm restarts.
//
// Holdings follow load-mutate-save semantics: SaveHoldings replaces the full
// record set. There is no cross-process locking; concurrent writers can race
// (accepted limitation for a single-user tool).
type Repository interface {
	ListHoldings(ctx context.Context) ([]models.Holding, error)
	SaveHoldings(ctx context.Context, holdings []models.Holding) error

	ListTransactions(ctx context.Context) ([]models.Transaction, error)
	AppendTransaction(ctx context.Context, tx *models.Transaction) error
	RemoveTransaction(ctx context.Context, id uint64) error

	SaveValuation(ctx context.Context, item *models.CachedValuation) error
	ListValuationsByDate(ctx context.Context, date string) ([]models.CachedValuation, error)
	DeleteValuationsBefore(ctx context.Context, date string) (int64, error)
}
