package balance

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wagerd/models"
)

var (
	ErrUserNotFound      = errors.New("balance: user not found")
	ErrUserInactive      = errors.New("balance: user inactive")
	ErrInsufficientFunds = errors.New("balance: insufficient funds")
)

// Meta is the audit metadata every balance mutation must carry so the
// resulting transaction row can be traced back to its provider event.
type Meta struct {
	Provider string
	RoundID  string
	BetTxID  string
	Note     string
	// AllowNegative lets a forced correction (rollback compensation) push
	// the balance below zero.
	AllowNegative bool
}

// Ledger exposes the credit/debit primitives the settlement core consumes.
// Each call either commits and returns a durable transaction id, or errors
// with no partial effect.
type Ledger interface {
	Debit(userCode string, amount decimal.Decimal, balanceType string, meta Meta) (string, error)
	Credit(userCode string, amount decimal.Decimal, balanceType string, meta Meta) (string, error)
	Balance(userCode string) (decimal.Decimal, error)
}

// GormLedger implements Ledger on the users table: one DB transaction per
// mutation, FOR UPDATE lock on the user row, audit row per change.
type GormLedger struct {
	DB *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{DB: db}
}

func (l *GormLedger) Debit(userCode string, amount decimal.Decimal, balanceType string, meta Meta) (string, error) {
	return l.apply(userCode, amount.Neg(), "debit", balanceType, meta)
}

func (l *GormLedger) Credit(userCode string, amount decimal.Decimal, balanceType string, meta Meta) (string, error) {
	return l.apply(userCode, amount, "credit", balanceType, meta)
}

func (l *GormLedger) Balance(userCode string) (decimal.Decimal, error) {
	var user models.User
	if err := l.DB.Where("user_code = ?", userCode).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, err
	}
	return user.Balance, nil
}

func (l *GormLedger) apply(userCode string, delta decimal.Decimal, direction, balanceType string, meta Meta) (string, error) {
	trxID := uuid.NewString()

	err := l.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_code = ?", userCode).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if !user.IsActive {
			return ErrUserInactive
		}

		after := user.Balance.Add(delta)
		if after.IsNegative() && !meta.AllowNegative {
			return ErrInsufficientFunds
		}

		if err := tx.Model(&user).Update("balance", after).Error; err != nil {
			return err
		}

		audit := models.UserTransaction{
			TrxID:         trxID,
			UserID:        user.ID,
			UserCode:      user.UserCode,
			Direction:     direction,
			Amount:        delta.Abs(),
			BalanceType:   balanceType,
			Currency:      user.Currency,
			BalanceBefore: user.Balance,
			BalanceAfter:  after,
			Provider:      meta.Provider,
			RoundID:       meta.RoundID,
			BetTxID:       meta.BetTxID,
			Note:          meta.Note,
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		return "", err
	}
	return trxID, nil
}
