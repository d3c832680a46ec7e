package gormrepository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fundwatch/internal/models"
	"fundwatch/internal/repository"
)

// Store is the postgres-backed repository. Holdings keep the same
// serialize-all semantics as the file backend: SaveHoldings replaces the
// whole record set in one transaction.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListHoldings(ctx context.Context) ([]models.Holding, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Holding
	if err := s.db.WithContext(ctx).Order("code").Find(&items).Error; err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Normalize()
	}
	return items, nil
}

func (s *Store) SaveHoldings(ctx context.Context, holdings []models.Holding) error {
	if s == nil || s.db == nil {
		return nil
	}
	for i := range holdings {
		holdings[i].Normalize()
		holdings[i].ID = 0
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Holding{}).Error; err != nil {
			return err
		}
		if len(holdings) == 0 {
			return nil
		}
		return tx.Create(&holdings).Error
	})
}

func (s *Store) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Transaction
	if err := s.db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	if s == nil || s.db == nil || tx == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(tx).Error
}

func (s *Store) RemoveTransaction(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return nil
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Transaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) SaveValuation(ctx context.Context, item *models.CachedValuation) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}, {Name: "nav_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload"}),
	}).Create(item).Error
}

func (s *Store) ListValuationsByDate(ctx context.Context, date string) ([]models.CachedValuation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.CachedValuation
	if err := s.db.WithContext(ctx).Where("nav_date = ?", date).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteValuationsBefore(ctx context.Context, date string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("nav_date < ?", date).Delete(&models.CachedValuation{})
	return res.RowsAffected, res.Error
}
