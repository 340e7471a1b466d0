package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gasly-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultHistoryLimit is the number of transactions shown with a rewards view.
const DefaultHistoryLimit = 10

// Ledger reads and writes per-customer points records. The running totals
// on the record are authoritative; transactions are an audit trail written
// alongside every change to them.
type Ledger interface {
	GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.CustomerRewards, error)
	UpdateTier(ctx context.Context, customerID uuid.UUID, tier models.Tier) (bool, error)
	RecentTransactions(ctx context.Context, customerID uuid.UUID, limit int) ([]models.RewardTransaction, error)
	AwardPoints(ctx context.Context, customerID uuid.UUID, points int64, orderID *uuid.UUID, description string) error
	RedeemPoints(ctx context.Context, customerID uuid.UUID, points int64, description string) (*models.CustomerRewards, error)
}

type GormLedger struct {
	DB *gorm.DB
}

func NewLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{DB: db}
}

var _ Ledger = (*GormLedger)(nil)

// GetOrCreate returns the customer's record, creating a zero-balance Bronze
// record when none exists. Concurrent first calls converge on one row
// because the insert ignores primary-key conflicts.
func (l *GormLedger) GetOrCreate(ctx context.Context, customerID uuid.UUID) (*models.CustomerRewards, error) {
	record, err := l.find(ctx, customerID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load rewards record for %s: %w", customerID, err)
	}

	fresh := models.CustomerRewards{
		CustomerID: customerID,
		Tier:       models.TierBronze,
	}
	if err := l.DB.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("create rewards record for %s: %w", customerID, err)
	}

	record, err = l.find(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("reload rewards record for %s: %w", customerID, err)
	}
	return record, nil
}

func (l *GormLedger) find(ctx context.Context, customerID uuid.UUID) (*models.CustomerRewards, error) {
	var record models.CustomerRewards
	if err := l.DB.WithContext(ctx).Where("customer_id = ?", customerID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateTier stores tier when it differs from the cached value and reports
// whether a row changed.
func (l *GormLedger) UpdateTier(ctx context.Context, customerID uuid.UUID, tier models.Tier) (bool, error) {
	res := l.DB.WithContext(ctx).
		Model(&models.CustomerRewards{}).
		Where("customer_id = ? AND tier <> ?", customerID, tier).
		Updates(map[string]interface{}{
			"tier":       tier,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("update tier for %s: %w", customerID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecentTransactions returns up to limit transactions, newest first.
func (l *GormLedger) RecentTransactions(ctx context.Context, customerID uuid.UUID, limit int) ([]models.RewardTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	history := make([]models.RewardTransaction, 0, limit)
	if err := l.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", customerID, err)
	}
	return history, nil
}

// AwardPoints credits points and appends an earned transaction in one
// database transaction.
func (l *GormLedger) AwardPoints(ctx context.Context, customerID uuid.UUID, points int64, orderID *uuid.UUID, description string) error {
	if points <= 0 {
		return fmt.Errorf("award points: amount must be positive, got %d", points)
	}

	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txLedger := NewLedger(tx)
		if _, err := txLedger.GetOrCreate(ctx, customerID); err != nil {
			return err
		}

		if err := tx.Model(&models.CustomerRewards{}).
			Where("customer_id = ?", customerID).
			Updates(map[string]interface{}{
				"total_points": gorm.Expr("total_points + ?", points),
				"updated_at":   time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("credit %d points to %s: %w", points, customerID, err)
		}

		entry := models.RewardTransaction{
			CustomerID:  customerID,
			Points:      points,
			Type:        models.TransactionEarned,
			Description: description,
			OrderID:     orderID,
		}
		if err := tx.Omit(clause.Associations).Create(&entry).Error; err != nil {
			return fmt.Errorf("record earned transaction for %s: %w", customerID, err)
		}
		return nil
	})
}

// RedeemPoints spends points if the available balance covers them. The
// balance check and the debit are one conditional UPDATE, so concurrent
// redemptions can never push redeemed points above total points.
func (l *GormLedger) RedeemPoints(ctx context.Context, customerID uuid.UUID, points int64, description string) (*models.CustomerRewards, error) {
	if points <= 0 {
		return nil, fmt.Errorf("redeem points: amount must be positive, got %d", points)
	}

	var record *models.CustomerRewards
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txLedger := NewLedger(tx)
		if _, err := txLedger.GetOrCreate(ctx, customerID); err != nil {
			return err
		}

		res := tx.Model(&models.CustomerRewards{}).
			Where("customer_id = ? AND total_points - redeemed_points >= ?", customerID, points).
			Updates(map[string]interface{}{
				"redeemed_points": gorm.Expr("redeemed_points + ?", points),
				"updated_at":      time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("debit %d points from %s: %w", points, customerID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientPoints
		}

		entry := models.RewardTransaction{
			CustomerID:  customerID,
			Points:      -points,
			Type:        models.TransactionRedeemed,
			Description: description,
		}
		if err := tx.Omit(clause.Associations).Create(&entry).Error; err != nil {
			return fmt.Errorf("record redeemed transaction for %s: %w", customerID, err)
		}

		updated, err := txLedger.find(ctx, customerID)
		if err != nil {
			return fmt.Errorf("reload rewards record for %s: %w", customerID, err)
		}
		record = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// AvailablePoints is total minus redeemed. A negative result means the
// bookkeeping is broken: it is clamped to zero and reported as a
// *DataIntegrityError for the caller to log.
func AvailablePoints(record *models.CustomerRewards) (int64, error) {
	available := record.TotalPoints - record.RedeemedPoints
	if available < 0 {
		return 0, &DataIntegrityError{
			CustomerID:     record.CustomerID,
			TotalPoints:    record.TotalPoints,
			RedeemedPoints: record.RedeemedPoints,
		}
	}
	return available, nil
}

// RedeemableDiscount is floor(available / redemption_rate) * redemption_value.
func RedeemableDiscount(available int64, policy *models.RewardsPolicy) decimal.Decimal {
	if available <= 0 || policy.RedemptionRate <= 0 {
		return decimal.Zero
	}
	units := available / policy.RedemptionRate
	return decimal.NewFromInt(units).Mul(decimal.NewFromInt(policy.RedemptionValue))
}

// TotalDiscountValue converts redeemed points to currency, rounded half away
// from zero to two decimal places.
func TotalDiscountValue(redeemedPoints int64, policy *models.RewardsPolicy) decimal.Decimal {
	if redeemedPoints <= 0 || policy.RedemptionRate <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(redeemedPoints).
		Mul(decimal.NewFromInt(policy.RedemptionValue)).
		Div(decimal.NewFromInt(policy.RedemptionRate)).
		Round(2)
}
