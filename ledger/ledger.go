// Package ledger is the durable idempotency record for inbound provider
// events. Every callback is written here first; a duplicate delivery
// resolves to the already-stored row and must not re-apply side effects.
package ledger

import (
	"errors"

	"gorm.io/gorm"

	"wagerd/models"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Touch inserts the action record, or, when a record with the same external
// transaction id already exists, fetches it and bumps its attempt counter.
// existed = true means the caller must replay the stored outcome instead of
// reprocessing.
func (s *Store) Touch(rec *models.ActionRecord) (*models.ActionRecord, bool, error) {
	err := s.DB.Create(rec).Error
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}

	var existing models.ActionRecord
	if err := s.DB.Where("external_tx_id = ?", rec.ExternalTxID).First(&existing).Error; err != nil {
		return nil, false, err
	}
	if err := s.DB.Model(&existing).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
		return nil, false, err
	}
	existing.Attempts++
	return &existing, true, nil
}

// AttachInternalTx records the balance transaction produced by processing
// this action, completing the audit chain from provider event to mutation.
func (s *Store) AttachInternalTx(id uint, trxID string) error {
	return s.DB.Model(&models.ActionRecord{}).
		Where("id = ?", id).
		Update("internal_tx_id", trxID).Error
}

// Delete rolls back a freshly created record whose processing failed before
// any side effect committed, so the provider's retry starts clean. Never
// call it for a record Touch reported as existed.
func (s *Store) Delete(id uint) error {
	return s.DB.Unscoped().Delete(&models.ActionRecord{}, id).Error
}

// FindByExternalTx looks up a prior action, e.g. the bet a refund or
// rollback references.
func (s *Store) FindByExternalTx(externalTxID string) (*models.ActionRecord, error) {
	var rec models.ActionRecord
	if err := s.DB.Where("external_tx_id = ?", externalTxID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// FindBetForRound returns the first bet action recorded for a round, or nil.
func (s *Store) FindBetForRound(roundID string) (*models.ActionRecord, error) {
	var rec models.ActionRecord
	err := s.DB.Where("round_id = ? AND kind = ?", roundID, models.ActionBet).
		Order("id asc").First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// FindRefundOfBet returns an existing refund action referencing the given
// bet transaction id, or nil. A second refund for the same bet is rejected
// because the first one already restored the balance. excludeID skips the
// refund currently being processed, which Touch has already inserted.
func (s *Store) FindRefundOfBet(betTxID string, excludeID uint) (*models.ActionRecord, error) {
	var rec models.ActionRecord
	err := s.DB.Where("bet_tx_id = ? AND kind = ? AND id <> ?", betTxID, models.ActionRefund, excludeID).
		Order("id asc").First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
