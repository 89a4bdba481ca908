package hooks

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"wagerd/models"
)

// StatsHook rolls settled bets into the per-user aggregates.
type StatsHook struct {
	DB *gorm.DB
}

func (s *StatsHook) Name() string { return "stats" }

func (s *StatsHook) Run(h *models.BetHistory) error {
	res := s.DB.Model(&models.UserStats{}).
		Where("user_code = ?", h.UserCode).
		Updates(map[string]any{
			"bets_settled":  gorm.Expr("bets_settled + 1"),
			"total_wagered": gorm.Expr("total_wagered + ?", h.BetAmount),
			"total_payout":  gorm.Expr("total_payout + ?", h.Payout),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	err := s.DB.Create(&models.UserStats{
		UserCode:     h.UserCode,
		BetsSettled:  1,
		TotalWagered: h.BetAmount,
		TotalPayout:  h.Payout,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the creation race; fold into the winner's row.
		return s.Run(h)
	}
	return err
}

// RewardsHook accrues wager-based reward points.
type RewardsHook struct {
	DB *gorm.DB
	// PointsPerUnit is the points earned per unit wagered.
	PointsPerUnit decimal.Decimal
}

func (r *RewardsHook) Name() string { return "rewards" }

func (r *RewardsHook) Run(h *models.BetHistory) error {
	points := h.BetAmount.Mul(r.PointsPerUnit).Round(2)
	if !points.IsPositive() {
		return nil
	}
	return r.DB.Model(&models.UserStats{}).
		Where("user_code = ?", h.UserCode).
		UpdateColumn("reward_points", gorm.Expr("reward_points + ?", points)).Error
}

// AffiliateHook accrues commission on the wagered amount for the bettor's
// referring affiliate, if any. The unique round index makes a replayed
// closeout pass a no-op.
type AffiliateHook struct {
	DB *gorm.DB
	// CommissionRate is the share of the wagered amount the affiliate earns.
	CommissionRate decimal.Decimal
}

func (a *AffiliateHook) Name() string { return "affiliate" }

func (a *AffiliateHook) Run(h *models.BetHistory) error {
	var user models.User
	if err := a.DB.Where("user_code = ?", h.UserCode).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if user.AffiliateCode == "" {
		return nil
	}

	commission := h.BetAmount.Mul(a.CommissionRate).Round(2)
	err := a.DB.Create(&models.AffiliateEarning{
		AffiliateCode: user.AffiliateCode,
		UserCode:      h.UserCode,
		RoundID:       h.ExternalRoundID,
		Commission:    commission,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}
