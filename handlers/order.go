package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gasly-backend/logger"
	"gasly-backend/middleware"
	"gasly-backend/models"
	"gasly-backend/rewards"
	"gasly-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errStatusChanged     = errors.New("order status changed concurrently")
	errInsufficientStock = errors.New("insufficient stock")
	errProductInactive   = errors.New("product is not available")
)

type OrderHandler struct {
	DB *gorm.DB
}

type orderResponse struct {
	ID              uuid.UUID          `json:"id"`
	OrderNumber     string             `json:"order_number"`
	CustomerID      uuid.UUID          `json:"customer_id"`
	CustomerName    string             `json:"customer_name,omitempty"`
	RiderID         *uuid.UUID         `json:"rider_id,omitempty"`
	RiderName       string             `json:"rider_name,omitempty"`
	ProductID       uuid.UUID          `json:"product_id"`
	ProductName     string             `json:"product_name,omitempty"`
	ProductSize     string             `json:"product_size,omitempty"`
	Quantity        int                `json:"quantity"`
	UnitPrice       float64            `json:"unit_price"`
	Total           float64            `json:"total"`
	Status          models.OrderStatus `json:"status"`
	DeliveryAddress string             `json:"delivery_address"`
	PaymentMethod   string             `json:"payment_method"`
	PointsEarned    int64              `json:"points_earned"`
	DeliveredAt     *time.Time         `json:"delivered_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

func toOrderResponse(o models.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		CustomerName:    o.Customer.Name,
		RiderID:         o.RiderID,
		ProductID:       o.ProductID,
		ProductName:     o.Product.Name,
		ProductSize:     o.Product.Size,
		Quantity:        o.Quantity,
		UnitPrice:       o.UnitPrice.InexactFloat64(),
		Total:           o.Total.InexactFloat64(),
		Status:          o.Status,
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   o.PaymentMethod,
		PointsEarned:    o.PointsEarned,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
	}
	if o.Rider != nil {
		resp.RiderName = o.Rider.Name
	}
	return resp
}

func toOrderResponses(orders []models.Order) []orderResponse {
	result := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		result = append(result, toOrderResponse(o))
	}
	return result
}

func (h *OrderHandler) withRelations() *gorm.DB {
	return h.DB.Preload("Customer").Preload("Rider").Preload("Product")
}

// CreateOrder places a single-product order for the caller and reserves
// stock in the same transaction.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		ProductID       uuid.UUID `json:"product_id" binding:"required"`
		Quantity        int       `json:"quantity" binding:"required,gte=1"`
		DeliveryAddress string    `json:"delivery_address" binding:"required"`
		PaymentMethod   string    `json:"payment_method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if !utils.PaymentMethods[method] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported payment method"})
		return
	}
	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delivery_address is required"})
		return
	}

	var customer models.User
	if err := h.DB.Where("id = ?", userID).First(&customer).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	order := models.Order{
		CustomerID:      userID,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Status:          models.OrderStatusPending,
		DeliveryAddress: address,
		PaymentMethod:   method,
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", req.ProductID).
			First(&product).Error; err != nil {
			return err
		}
		if !product.IsActive {
			return errProductInactive
		}
		if product.StockQuantity < req.Quantity {
			return errInsufficientStock
		}
		if err := tx.Model(&product).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", req.Quantity)).Error; err != nil {
			return err
		}

		order.UnitPrice = product.Price
		order.Total = product.Price.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
		order.Product = product
		return tx.Omit("Customer", "Rider", "Product").Create(&order).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	case errors.Is(err, errProductInactive):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product is not available"})
		return
	case errors.Is(err, errInsufficientStock):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient stock"})
		return
	case err != nil:
		logger.L.Error("create order failed", zap.String("customer_id", userID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	order.Customer = customer
	utils.SendOrderConfirmation(customer.Email, customer.Name, order.OrderNumber, order.Total.StringFixed(2))

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

// GetOrders lists orders visible to the caller: staff see every order
// (optionally filtered by status), riders their assignments, customers
// their own.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	userID, _ := currentUserID(c)
	query := h.withRelations()

	switch role := middleware.CurrentRole(c); {
	case role.IsStaff():
	case role == models.RoleRider:
		query = query.Where("rider_id = ?", userID)
	default:
		query = query.Where("customer_id = ?", userID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		logger.L.Error("list orders failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, toOrderResponses(orders))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, _ := currentUserID(c)
	query := h.withRelations().Where("id = ?", c.Param("id"))

	switch role := middleware.CurrentRole(c); {
	case role.IsStaff():
	case role == models.RoleRider:
		query = query.Where("rider_id = ?", userID)
	default:
		query = query.Where("customer_id = ?", userID)
	}

	var order models.Order
	if err := query.First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// CancelOrder lets a customer cancel their own order while it is pending.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, _ := currentUserID(c)

	var order models.Order
	if err := h.DB.Where("id = ? AND customer_id = ?", c.Param("id"), userID).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status != models.OrderStatusPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only pending orders can be cancelled"})
		return
	}

	h.applyTransition(c, &order, models.OrderStatusCancelled)
}

// UpdateOrderStatus moves an order along the status machine. Marking it
// delivered credits rewards points in the same transaction.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var order models.Order
	if err := h.DB.Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	if !models.IsValidTransition(order.Status, req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid status transition from '%s' to '%s'", order.Status, req.Status),
		})
		return
	}

	h.applyTransition(c, &order, req.Status)
}

func (h *OrderHandler) GetOrderTransitions(c *gin.Context) {
	c.JSON(http.StatusOK, models.AllowedTransitions)
}

// AssignRider hands an open order to a rider.
func (h *OrderHandler) AssignRider(c *gin.Context) {
	var req struct {
		RiderID uuid.UUID `json:"rider_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	var order models.Order
	if err := h.DB.Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status == models.OrderStatusDelivered || order.Status == models.OrderStatusCancelled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order is already closed"})
		return
	}

	var rider models.User
	if err := h.DB.Where("id = ? AND role = ?", req.RiderID, models.RoleRider).First(&rider).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rider not found"})
		return
	}
	if rider.IsBlocked {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rider is blocked"})
		return
	}

	if err := h.DB.Model(&order).Update("rider_id", rider.ID).Error; err != nil {
		logger.L.Error("assign rider failed",
			zap.String("order_id", order.ID.String()), zap.String("rider_id", rider.ID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign rider"})
		return
	}

	h.withRelations().Where("id = ?", order.ID).First(&order)
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// RiderOrders lists the caller's open assignments, or all of them with
// ?all=true.
func (h *OrderHandler) RiderOrders(c *gin.Context) {
	riderID, _ := currentUserID(c)
	query := h.withRelations().Where("rider_id = ?", riderID)
	if c.Query("all") != "true" {
		query = query.Where("status NOT IN ?", []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled})
	}

	var orders []models.Order
	if err := query.Order("created_at ASC").Find(&orders).Error; err != nil {
		logger.L.Error("list rider orders failed", zap.String("rider_id", riderID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, toOrderResponses(orders))
}

// RiderMarkDelivered completes an order assigned to the calling rider.
func (h *OrderHandler) RiderMarkDelivered(c *gin.Context) {
	riderID, _ := currentUserID(c)

	var order models.Order
	if err := h.DB.Where("id = ? AND rider_id = ?", c.Param("id"), riderID).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status != models.OrderStatusOutForDelivery {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order is not out for delivery"})
		return
	}

	h.applyTransition(c, &order, models.OrderStatusDelivered)
}

// applyTransition persists the status change and its side effects, then
// notifies the customer and writes the response.
func (h *OrderHandler) applyTransition(c *gin.Context, order *models.Order, to models.OrderStatus) {
	if err := h.transition(c.Request.Context(), order, to); err != nil {
		if errors.Is(err, errStatusChanged) {
			c.JSON(http.StatusConflict, gin.H{"error": "Order status was changed by someone else, reload and retry"})
			return
		}
		logger.L.Error("order transition failed",
			zap.String("order_id", order.ID.String()),
			zap.String("from", string(order.Status)),
			zap.String("to", string(to)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order status"})
		return
	}

	h.withRelations().Where("id = ?", order.ID).First(order)
	if order.Customer.Email != "" {
		utils.SendOrderStatusUpdate(order.Customer.Email, order.Customer.Name, order.OrderNumber, string(to), order.PointsEarned)
	}

	c.JSON(http.StatusOK, toOrderResponse(*order))
}

// transition applies from → to only if the stored status is still the one
// the caller read. Delivery credits points and cancellation returns stock,
// both inside the same transaction as the status write.
func (h *OrderHandler) transition(ctx context.Context, order *models.Order, to models.OrderStatus) error {
	from := order.Status
	now := time.Now()

	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": to}
		if to == models.OrderStatusDelivered {
			updates["delivered_at"] = now
		}
		res := tx.Model(&models.Order{}).Where("id = ? AND status = ?", order.ID, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStatusChanged
		}
		order.Status = to

		switch to {
		case models.OrderStatusDelivered:
			order.DeliveredAt = &now
			points, err := rewards.AwardForDelivery(ctx, tx, order)
			if err != nil {
				return err
			}
			if points > 0 {
				if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
					Update("points_earned", points).Error; err != nil {
					return err
				}
			}
			order.PointsEarned = points
		case models.OrderStatusCancelled:
			return tx.Model(&models.Product{}).Where("id = ?", order.ProductID).
				UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", order.Quantity)).Error
		}
		return nil
	})
	if err != nil {
		order.Status = from
		order.DeliveredAt = nil
		order.PointsEarned = 0
		return err
	}

	logger.L.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int64("points_earned", order.PointsEarned))
	return nil
}
