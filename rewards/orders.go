package rewards

import (
	"context"
	"fmt"

	"gasly-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderCounter supplies the number of delivered orders for a customer.
type OrderCounter interface {
	CompletedOrders(ctx context.Context, customerID uuid.UUID) (int64, error)
}

type GormOrderCounter struct {
	DB *gorm.DB
}

func NewOrderCounter(db *gorm.DB) *GormOrderCounter {
	return &GormOrderCounter{DB: db}
}

func (c *GormOrderCounter) CompletedOrders(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	if err := c.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_id = ? AND status = ?", customerID, models.OrderStatusDelivered).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count delivered orders for %s: %w", customerID, err)
	}
	return count, nil
}
