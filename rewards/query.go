package rewards

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gasly-backend/logger"
	"gasly-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Standing is everything derived from a record, an order count and a policy.
// The customer view and the admin member list both build rows from it so the
// two never disagree.
type Standing struct {
	TierResult
	CompletedOrders    int64
	AvailablePoints    int64
	RedeemableDiscount decimal.Decimal
}

func deriveStanding(record *models.CustomerRewards, completedOrders int64, policy *models.RewardsPolicy) Standing {
	available, err := AvailablePoints(record)
	if err != nil {
		var integrity *DataIntegrityError
		if errors.As(err, &integrity) {
			integrityFailures.Inc()
			logger.L.Error("rewards data integrity failure",
				zap.String("customer_id", integrity.CustomerID.String()),
				zap.Int64("total_points", integrity.TotalPoints),
				zap.Int64("redeemed_points", integrity.RedeemedPoints))
		}
	}

	return Standing{
		TierResult:         Classify(completedOrders, policy),
		CompletedOrders:    completedOrders,
		AvailablePoints:    available,
		RedeemableDiscount: RedeemableDiscount(available, policy),
	}
}

// RewardsView is the customer-facing rewards summary.
type RewardsView struct {
	CustomerID uuid.UUID
	Standing
	TotalPoints     int64
	RedeemedPoints  int64
	DiscountPerUnit decimal.Decimal
	RedemptionRate  int64
	PointsEnabled   bool
	History         []models.RewardTransaction
}

// Redemption is the outcome of spending points.
type Redemption struct {
	Units           int64
	PointsSpent     int64
	Discount        decimal.Decimal
	AvailablePoints int64
}

type QueryService struct {
	Policies PolicyStore
	Ledger   Ledger
}

func NewQueryService(policies PolicyStore, ledger Ledger) *QueryService {
	return &QueryService{Policies: policies, Ledger: ledger}
}

// GetRewardsView assembles the customer's rewards summary. The tier is
// recomputed from the current policy on every call and written back to the
// record only when it changed, so repeated calls converge without extra
// writes.
func (s *QueryService) GetRewardsView(ctx context.Context, customerID uuid.UUID, completedOrders int64) (*RewardsView, error) {
	record, err := s.Ledger.GetOrCreate(ctx, customerID)
	if err != nil {
		logger.L.Error("rewards view: load record failed",
			zap.String("customer_id", customerID.String()), zap.Error(err))
		return nil, err
	}

	policy, err := s.Policies.GetPolicy(ctx)
	if err != nil {
		logger.L.Error("rewards view: load policy failed",
			zap.String("customer_id", customerID.String()), zap.Error(err))
		return nil, err
	}

	standing := deriveStanding(record, completedOrders, policy)

	if standing.Tier != record.Tier {
		changed, err := s.Ledger.UpdateTier(ctx, customerID, standing.Tier)
		if err != nil {
			logger.L.Error("rewards view: tier write-through failed",
				zap.String("customer_id", customerID.String()),
				zap.String("tier", string(standing.Tier)), zap.Error(err))
			return nil, err
		}
		if changed {
			tierCorrections.WithLabelValues(string(standing.Tier)).Inc()
			logger.L.Info("customer tier changed",
				zap.String("customer_id", customerID.String()),
				zap.String("from", string(record.Tier)),
				zap.String("to", string(standing.Tier)))
		}
		record.Tier = standing.Tier
	}

	history, err := s.Ledger.RecentTransactions(ctx, customerID, DefaultHistoryLimit)
	if err != nil {
		logger.L.Error("rewards view: load history failed",
			zap.String("customer_id", customerID.String()), zap.Error(err))
		return nil, err
	}

	return &RewardsView{
		CustomerID:      customerID,
		Standing:        standing,
		TotalPoints:     record.TotalPoints,
		RedeemedPoints:  record.RedeemedPoints,
		DiscountPerUnit: decimal.NewFromInt(policy.RedemptionValue),
		RedemptionRate:  policy.RedemptionRate,
		PointsEnabled:   policy.PointsEnabled,
		History:         history,
	}, nil
}

// Redeem spends units × redemption_rate points for units × redemption_value
// of discount.
func (s *QueryService) Redeem(ctx context.Context, customerID uuid.UUID, units int64) (*Redemption, error) {
	if units < 1 {
		return nil, &ValidationError{Fields: []FieldError{{Field: "units", Message: "must be at least 1"}}}
	}

	policy, err := s.Policies.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}
	if !policy.PointsEnabled {
		return nil, ErrPointsDisabled
	}

	// units × redemption_rate must fit in an int64 or the debit wraps.
	if units > math.MaxInt64/policy.RedemptionRate {
		return nil, &ValidationError{Fields: []FieldError{{Field: "units", Message: "exceeds the redeemable maximum"}}}
	}

	cost := units * policy.RedemptionRate
	discount := decimal.NewFromInt(units).Mul(decimal.NewFromInt(policy.RedemptionValue))
	description := fmt.Sprintf("Redeemed %d points for %s discount", cost, discount.StringFixed(2))

	record, err := s.Ledger.RedeemPoints(ctx, customerID, cost, description)
	if err != nil {
		if !errors.Is(err, ErrInsufficientPoints) {
			logger.L.Error("redeem points failed",
				zap.String("customer_id", customerID.String()),
				zap.Int64("points", cost), zap.Error(err))
		}
		return nil, err
	}
	pointsRedeemed.Add(float64(cost))

	available, _ := AvailablePoints(record)
	return &Redemption{
		Units:           units,
		PointsSpent:     cost,
		Discount:        discount,
		AvailablePoints: available,
	}, nil
}
