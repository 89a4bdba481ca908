// Package wager is the mutable store of in-flight wagers, one per external
// provider round. Concurrency correctness comes from the storage layer:
// unique-index insert with fetch-on-conflict, conditional updates guarded by
// "closed_out IS NULL" and atomic numeric increments.
package wager

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"wagerd/models"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// GetOrCreate is idempotent: concurrent callers racing to create the same
// external round converge on one row.
func (s *Store) GetOrCreate(w *models.ActiveWager) (*models.ActiveWager, bool, error) {
	err := s.DB.Create(w).Error
	if err == nil {
		return w, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}
	var existing models.ActiveWager
	if err := s.DB.Where("external_round_id = ?", w.ExternalRoundID).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

// FindByRound returns the wager for a round, nil if none exists.
func (s *Store) FindByRound(roundID string) (*models.ActiveWager, error) {
	var w models.ActiveWager
	if err := s.DB.Where("external_round_id = ?", roundID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// AddAmount accumulates additional wagered amount with an atomic increment,
// never read-modify-write, so concurrent provider retries can't lose money.
// Returns false if the wager is already closed.
func (s *Store) AddAmount(id uint, delta decimal.Decimal) (bool, error) {
	res := s.DB.Model(&models.ActiveWager{}).
		Where("id = ? AND closed_out IS NULL", id).
		UpdateColumn("amount", gorm.Expr("amount + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CloseIfOpen stamps the closure timestamp and terminal status, but only if
// the wager is still open. Exactly one concurrent caller observes true; the
// rest must skip their side effects instead of double-paying.
func (s *Store) CloseIfOpen(id uint, status string, now time.Time) (bool, error) {
	res := s.DB.Model(&models.ActiveWager{}).
		Where("id = ? AND closed_out IS NULL", id).
		Updates(map[string]any{
			"closed_out": now,
			"status":     status,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateIfOpen applies a patch guarded by the closure sentinel; nil result
// means another process already closed the wager.
func (s *Store) UpdateIfOpen(id uint, patch map[string]any) (*models.ActiveWager, error) {
	res := s.DB.Model(&models.ActiveWager{}).
		Where("id = ? AND closed_out IS NULL", id).
		Updates(patch)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	var w models.ActiveWager
	if err := s.DB.First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Delete removes the wager row once history has been recorded.
func (s *Store) Delete(id uint) error {
	return s.DB.Unscoped().Delete(&models.ActiveWager{}, id).Error
}
