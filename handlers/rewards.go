package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"gasly-backend/logger"
	"gasly-backend/middleware"
	"gasly-backend/models"
	"gasly-backend/rewards"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RewardsHandler struct {
	Query  *rewards.QueryService
	Admin  *rewards.AdminService
	Orders rewards.OrderCounter
}

type rewardsHistoryEntry struct {
	TxID        uuid.UUID              `json:"tx_id"`
	Points      int64                  `json:"points"`
	Type        models.TransactionType `json:"type"`
	Description string                 `json:"description"`
	CreatedAt   time.Time              `json:"created_at"`
}

type rewardsViewResponse struct {
	TotalPoints        int64                 `json:"total_points"`
	RedeemedPoints     int64                 `json:"redeemed_points"`
	AvailablePoints    int64                 `json:"available_points"`
	Tier               models.Tier           `json:"tier"`
	PointsRate         int64                 `json:"points_rate"`
	CompletedOrders    int64                 `json:"completed_orders"`
	ProgressPct        int                   `json:"progress_pct"`
	OrdersToNext       int64                 `json:"orders_to_next"`
	NextTier           *models.Tier          `json:"next_tier"`
	DiscountPerUnit    float64               `json:"discount_per_unit"`
	RedeemableDiscount float64               `json:"redeemable_discount"`
	RedemptionRate     int64                 `json:"redemption_rate"`
	PointsEnabled      bool                  `json:"points_enabled"`
	History            []rewardsHistoryEntry `json:"history"`
}

func toRewardsViewResponse(v *rewards.RewardsView) rewardsViewResponse {
	history := make([]rewardsHistoryEntry, 0, len(v.History))
	for _, t := range v.History {
		history = append(history, rewardsHistoryEntry{
			TxID:        t.ID,
			Points:      t.Points,
			Type:        t.Type,
			Description: t.Description,
			CreatedAt:   t.CreatedAt,
		})
	}
	return rewardsViewResponse{
		TotalPoints:        v.TotalPoints,
		RedeemedPoints:     v.RedeemedPoints,
		AvailablePoints:    v.AvailablePoints,
		Tier:               v.Tier,
		PointsRate:         v.Rate,
		CompletedOrders:    v.CompletedOrders,
		ProgressPct:        v.ProgressPct,
		OrdersToNext:       v.OrdersToNext,
		NextTier:           v.NextTier,
		DiscountPerUnit:    v.DiscountPerUnit.InexactFloat64(),
		RedeemableDiscount: v.RedeemableDiscount.InexactFloat64(),
		RedemptionRate:     v.RedemptionRate,
		PointsEnabled:      v.PointsEnabled,
		History:            history,
	}
}

// respondRewardsError maps service errors onto HTTP statuses. Anything
// unexpected is logged and hidden behind a generic message.
func respondRewardsError(c *gin.Context, err error, action string) {
	var authErr *rewards.AuthorizationError
	var validationErr *rewards.ValidationError
	switch {
	case errors.As(err, &authErr):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to " + authErr.Action})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": validationErr.Fields})
	case errors.Is(err, rewards.ErrInsufficientPoints):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not enough points"})
	case errors.Is(err, rewards.ErrPointsDisabled):
		c.JSON(http.StatusBadRequest, gin.H{"error": "The rewards program is currently disabled"})
	default:
		logger.L.Error("rewards request failed", zap.String("action", action), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

func (h *RewardsHandler) GetRewards(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	ctx := c.Request.Context()

	completed, err := h.Orders.CompletedOrders(ctx, userID)
	if err != nil {
		respondRewardsError(c, err, "load rewards")
		return
	}

	view, err := h.Query.GetRewardsView(ctx, userID, completed)
	if err != nil {
		respondRewardsError(c, err, "load rewards")
		return
	}

	c.JSON(http.StatusOK, toRewardsViewResponse(view))
}

func (h *RewardsHandler) Redeem(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Units int64 `json:"units"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	redemption, err := h.Query.Redeem(c.Request.Context(), userID, req.Units)
	if err != nil {
		respondRewardsError(c, err, "redeem points")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"units":            redemption.Units,
		"points_spent":     redemption.PointsSpent,
		"discount":         redemption.Discount.InexactFloat64(),
		"available_points": redemption.AvailablePoints,
	})
}

// GetAdminOverview returns aggregate program stats together with the
// current policy.
func (h *RewardsHandler) GetAdminOverview(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.Admin.GetAggregateStats(ctx)
	if err != nil {
		respondRewardsError(c, err, "load rewards stats")
		return
	}
	policy, err := h.Admin.GetPolicy(ctx)
	if err != nil {
		respondRewardsError(c, err, "load rewards policy")
		return
	}

	tierCounts := make(map[models.Tier]int64, len(models.Tiers))
	for _, tier := range models.Tiers {
		tierCounts[tier] = stats.TierCounts[tier]
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"total_members":         stats.TotalMembers,
			"total_points_issued":   stats.TotalPointsIssued,
			"total_points_redeemed": stats.TotalPointsRedeemed,
			"total_discount_value":  stats.TotalDiscountValue.InexactFloat64(),
			"tier_counts":           tierCounts,
		},
		"policy": policy,
	})
}

type memberResponse struct {
	CustomerID         uuid.UUID    `json:"customer_id"`
	Name               string       `json:"name"`
	Email              string       `json:"email"`
	Phone              string       `json:"phone"`
	Tier               models.Tier  `json:"tier"`
	PointsRate         int64        `json:"points_rate"`
	CompletedOrders    int64        `json:"completed_orders"`
	ProgressPct        int          `json:"progress_pct"`
	OrdersToNext       int64        `json:"orders_to_next"`
	NextTier           *models.Tier `json:"next_tier"`
	TotalPoints        int64        `json:"total_points"`
	RedeemedPoints     int64        `json:"redeemed_points"`
	AvailablePoints    int64        `json:"available_points"`
	RedeemableDiscount float64      `json:"redeemable_discount"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (h *RewardsHandler) ListMembers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(rewards.DefaultMemberPageSize)))

	result, err := h.Admin.ListMembers(c.Request.Context(), rewards.MemberQuery{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondRewardsError(c, err, "list rewards members")
		return
	}

	members := make([]memberResponse, 0, len(result.Members))
	for _, m := range result.Members {
		members = append(members, memberResponse{
			CustomerID:         m.CustomerID,
			Name:               m.Name,
			Email:              m.Email,
			Phone:              m.Phone,
			Tier:               m.Tier,
			PointsRate:         m.Rate,
			CompletedOrders:    m.CompletedOrders,
			ProgressPct:        m.ProgressPct,
			OrdersToNext:       m.OrdersToNext,
			NextTier:           m.NextTier,
			TotalPoints:        m.TotalPoints,
			RedeemedPoints:     m.RedeemedPoints,
			AvailablePoints:    m.AvailablePoints,
			RedeemableDiscount: m.RedeemableDiscount.InexactFloat64(),
			UpdatedAt:          m.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"members":     members,
		"total":       result.Total,
		"page":        result.Page,
		"page_size":   result.PageSize,
		"total_pages": result.TotalPages,
	})
}

// UpdatePolicy applies a partial policy change. The route is open to staff;
// the service decides whether the caller's role may change the policy.
func (h *RewardsHandler) UpdatePolicy(c *gin.Context) {
	var changes rewards.PolicyChanges
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if userID, ok := currentUserID(c); ok {
		changes.UpdatedBy = &userID
	}

	policy, err := h.Admin.UpdatePolicy(c.Request.Context(), changes, middleware.CurrentRole(c))
	if err != nil {
		respondRewardsError(c, err, "update rewards policy")
		return
	}

	c.JSON(http.StatusOK, policy)
}
