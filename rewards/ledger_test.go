package rewards

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gasly-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_CreatesBronzeRecord(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	customerID := uuid.New()

	record, err := ledger.GetOrCreate(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, customerID, record.CustomerID)
	assert.Equal(t, int64(0), record.TotalPoints)
	assert.Equal(t, int64(0), record.RedeemedPoints)
	assert.Equal(t, models.TierBronze, record.Tier)
}

func TestGetOrCreate_ReturnsExisting(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	customerID := uuid.New()
	seedRecord(t, db, customerID, 800, 300, models.TierSilver)

	record, err := ledger.GetOrCreate(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), record.TotalPoints)
	assert.Equal(t, int64(300), record.RedeemedPoints)
	assert.Equal(t, models.TierSilver, record.Tier)
}

func TestGetOrCreate_ConcurrentCallsCreateOneRecord(t *testing.T) {
	db := newPooledTestDB(t, 4)
	ledger := NewLedger(db)
	customerID := uuid.New()

	// Released together so the first lookups overlap across connections.
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := ledger.GetOrCreate(context.Background(), customerID); err != nil {
				errs <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("GetOrCreate: %v", err)
	}

	var count int64
	require.NoError(t, db.Model(&models.CustomerRewards{}).Where("customer_id = ?", customerID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateTier(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	customerID := uuid.New()
	seedRecord(t, db, customerID, 0, 0, models.TierBronze)

	changed, err := ledger.UpdateTier(context.Background(), customerID, models.TierGold)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = ledger.UpdateTier(context.Background(), customerID, models.TierGold)
	require.NoError(t, err)
	assert.False(t, changed, "same tier must not write")

	var record models.CustomerRewards
	require.NoError(t, db.Where("customer_id = ?", customerID).First(&record).Error)
	assert.Equal(t, models.TierGold, record.Tier)
}

func TestRecentTransactions_NewestFirstAndBounded(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	customerID := uuid.New()
	other := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		seedTransaction(t, db, customerID, int64(i+1), base.Add(time.Duration(i)*time.Minute))
	}
	seedTransaction(t, db, other, 999, time.Now())

	history, err := ledger.RecentTransactions(context.Background(), customerID, DefaultHistoryLimit)
	require.NoError(t, err)
	require.Len(t, history, DefaultHistoryLimit)
	assert.Equal(t, int64(12), history[0].Points)
	assert.Equal(t, int64(3), history[len(history)-1].Points)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.After(history[i-1].CreatedAt))
	}

	short, err := ledger.RecentTransactions(context.Background(), customerID, 3)
	require.NoError(t, err)
	assert.Len(t, short, 3)

	none, err := ledger.RecentTransactions(context.Background(), uuid.New(), DefaultHistoryLimit)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAwardAndRedeem_KeepBalanceConsistent(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()
	customerID := uuid.New()

	require.NoError(t, ledger.AwardPoints(ctx, customerID, 1200, nil, "earned"))

	record, err := ledger.RedeemPoints(ctx, customerID, 500, "redeemed")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), record.TotalPoints)
	assert.Equal(t, int64(500), record.RedeemedPoints)

	_, err = ledger.RedeemPoints(ctx, customerID, 1000, "too much")
	assert.True(t, errors.Is(err, ErrInsufficientPoints))

	var sum int64
	require.NoError(t, db.Model(&models.RewardTransaction{}).
		Where("customer_id = ?", customerID).
		Select("COALESCE(SUM(points), 0)").Scan(&sum).Error)
	assert.Equal(t, int64(700), sum)

	available, err := AvailablePoints(record)
	require.NoError(t, err)
	assert.Equal(t, int64(700), available)
}

func TestAwardPoints_RejectsNonPositive(t *testing.T) {
	ledger := NewLedger(newTestDB(t))
	assert.Error(t, ledger.AwardPoints(context.Background(), uuid.New(), 0, nil, "nothing"))
}

func TestAvailablePoints_ClampsNegative(t *testing.T) {
	record := &models.CustomerRewards{CustomerID: uuid.New(), TotalPoints: 100, RedeemedPoints: 250}

	available, err := AvailablePoints(record)
	assert.Equal(t, int64(0), available)

	var integrity *DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, int64(250), integrity.RedeemedPoints)
}

func TestRedeemableDiscount(t *testing.T) {
	policy := defaultPolicy()

	assert.True(t, decimal.NewFromInt(100).Equal(RedeemableDiscount(1499, policy)))
	assert.True(t, decimal.NewFromInt(150).Equal(RedeemableDiscount(1500, policy)))
	assert.True(t, decimal.Zero.Equal(RedeemableDiscount(499, policy)))
	assert.True(t, decimal.Zero.Equal(RedeemableDiscount(0, policy)))
}

func TestTotalDiscountValue_RoundsToCents(t *testing.T) {
	policy := defaultPolicy()
	policy.RedemptionRate = 3
	policy.RedemptionValue = 1

	// 10 * 1 / 3 = 3.333...
	assert.Equal(t, "3.33", TotalDiscountValue(10, policy).StringFixed(2))
	// 5 * 1 / 3 = 1.666...
	assert.Equal(t, "1.67", TotalDiscountValue(5, policy).StringFixed(2))
	assert.Equal(t, "0.00", TotalDiscountValue(0, policy).StringFixed(2))
}
