package filerepository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"fundwatch/internal/models"
	"fundwatch/internal/repository"
)

// Store keeps the portfolio and transaction log as flat JSON files with
// load-mutate-save semantics. A process-wide mutex serializes each
// read-modify-write; there is no cross-process locking.
type Store struct {
	portfolioPath   string
	transactionPath string
	logger          *zap.Logger

	mu sync.Mutex
}

func New(portfolioPath, transactionPath string, logger *zap.Logger) *Store {
	return &Store{
		portfolioPath:   portfolioPath,
		transactionPath: transactionPath,
		logger:          logger,
	}
}

// holdingRecord tolerates hand-edited files: numeric codes, missing or
// malformed columns.
type holdingRecord struct {
	Code        any `json:"code"`
	Name        any `json:"name"`
	Channel     any `json:"channel"`
	Cost        any `json:"cost"`
	Shares      any `json:"shares"`
	ConfirmDays any `json:"confirm_days"`
}

func (s *Store) ListHoldings(ctx context.Context) ([]models.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadHoldings()
}

func (s *Store) loadHoldings() ([]models.Holding, error) {
	var raw []holdingRecord
	if err := readJSON(s.portfolioPath, &raw); err != nil {
		return nil, err
	}
	holdings := make([]models.Holding, 0, len(raw))
	for i, r := range raw {
		h := models.Holding{
			ID:          uint64(i + 1),
			Code:        cast.ToString(r.Code),
			Name:        cast.ToString(r.Name),
			Channel:     cast.ToString(r.Channel),
			Cost:        toDecimal(r.Cost),
			Shares:      toDecimal(r.Shares),
			ConfirmDays: 1,
		}
		if r.ConfirmDays != nil {
			h.ConfirmDays = cast.ToInt(r.ConfirmDays)
		}
		h.Normalize()
		holdings = append(holdings, h)
	}
	return holdings, nil
}

func (s *Store) SaveHoldings(ctx context.Context, holdings []models.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, map[string]any{
			"code":         models.NormalizeCode(h.Code),
			"name":         h.Name,
			"channel":      h.Channel,
			"cost":         h.Cost,
			"shares":       h.Shares,
			"confirm_days": h.ConfirmDays,
		})
	}
	return writeJSON(s.portfolioPath, out)
}

func (s *Store) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTransactions()
}

func (s *Store) loadTransactions() ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := readJSON(s.transactionPath, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txs, err := s.loadTransactions()
	if err != nil {
		return err
	}
	if tx.ID == 0 {
		var maxID uint64
		for _, t := range txs {
			if t.ID > maxID {
				maxID = t.ID
			}
		}
		tx.ID = maxID + 1
	}
	txs = append(txs, *tx)
	return writeJSON(s.transactionPath, txs)
}

func (s *Store) RemoveTransaction(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txs, err := s.loadTransactions()
	if err != nil {
		return err
	}
	kept := txs[:0]
	found := false
	for _, t := range txs {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return repository.ErrNotFound
	}
	return writeJSON(s.transactionPath, kept)
}

// The file backend keeps the valuation cache process-lifetime only; there is
// nothing durable to warm-restore from.

func (s *Store) SaveValuation(ctx context.Context, item *models.CachedValuation) error {
	return nil
}

func (s *Store) ListValuationsByDate(ctx context.Context, date string) ([]models.CachedValuation, error) {
	return nil, nil
}

func (s *Store) DeleteValuationsBefore(ctx context.Context, date string) (int64, error) {
	return 0, nil
}

func toDecimal(v any) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cast.ToString(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// writeJSON rewrites the whole file through a temp file and rename so a
// crashed write never leaves a truncated store behind.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
