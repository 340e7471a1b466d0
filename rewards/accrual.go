package rewards

import (
	"context"
	"fmt"

	"gasly-backend/logger"
	"gasly-backend/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AwardForDelivery credits rate × quantity points for a delivered order,
// where rate belongs to the tier the customer reaches with this delivery.
// tx must be the transaction that marked the order delivered so the status
// change and the credit commit together; the policy is read through it too.
// Returns the points awarded, zero when the program is disabled.
func AwardForDelivery(ctx context.Context, tx *gorm.DB, order *models.Order) (int64, error) {
	policy, err := NewPolicyStore(tx).GetPolicy(ctx)
	if err != nil {
		return 0, err
	}
	if !policy.PointsEnabled {
		return 0, nil
	}

	completed, err := NewOrderCounter(tx).CompletedOrders(ctx, order.CustomerID)
	if err != nil {
		return 0, err
	}

	result := Classify(completed, policy)
	points := result.Rate * int64(order.Quantity)
	if points <= 0 {
		return 0, nil
	}

	description := fmt.Sprintf("Earned %d points on order %s (%s, %d × %d)",
		points, order.OrderNumber, result.Tier, order.Quantity, result.Rate)
	if err := NewLedger(tx).AwardPoints(ctx, order.CustomerID, points, &order.ID, description); err != nil {
		logger.L.Error("award delivery points failed",
			zap.String("customer_id", order.CustomerID.String()),
			zap.String("order_id", order.ID.String()),
			zap.Int64("points", points), zap.Error(err))
		return 0, err
	}

	pointsAwarded.Add(float64(points))
	return points, nil
}
