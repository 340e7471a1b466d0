package rewards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gasly-backend/logger"
	"gasly-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultMemberPageSize = 20
	MaxMemberPageSize     = 100
)

type Stats struct {
	TotalMembers        int64
	TotalPointsIssued   int64
	TotalPointsRedeemed int64
	TotalDiscountValue  decimal.Decimal
	// TierCounts counts members by their cached tier.
	TierCounts map[models.Tier]int64
}

type MemberQuery struct {
	Search   string
	Page     int
	PageSize int
}

type MemberRow struct {
	CustomerID uuid.UUID
	Name       string
	Email      string
	Phone      string
	Standing
	TotalPoints    int64
	RedeemedPoints int64
	UpdatedAt      time.Time
}

type MemberPage struct {
	Members    []MemberRow
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// AdminService backs the rewards page of the admin panel.
type AdminService struct {
	DB       *gorm.DB
	Policies PolicyStore
}

func NewAdminService(db *gorm.DB, policies PolicyStore) *AdminService {
	return &AdminService{DB: db, Policies: policies}
}

func (s *AdminService) GetPolicy(ctx context.Context) (*models.RewardsPolicy, error) {
	return s.Policies.GetPolicy(ctx)
}

// UpdatePolicy checks the role here as well as in the store.
func (s *AdminService) UpdatePolicy(ctx context.Context, changes PolicyChanges, role models.Role) (*models.RewardsPolicy, error) {
	if !role.CanModifyPolicy() {
		return nil, &AuthorizationError{Role: role, Action: "modify the rewards policy"}
	}

	policy, err := s.Policies.UpdatePolicy(ctx, changes, role)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Int64("silver_threshold", policy.SilverThreshold),
		zap.Int64("gold_threshold", policy.GoldThreshold),
		zap.Int64("platinum_threshold", policy.PlatinumThreshold),
		zap.Bool("points_enabled", policy.PointsEnabled),
	}
	if changes.UpdatedBy != nil {
		fields = append(fields, zap.String("updated_by", changes.UpdatedBy.String()))
	}
	logger.L.Info("rewards policy updated", fields...)
	return policy, nil
}

func (s *AdminService) GetAggregateStats(ctx context.Context) (*Stats, error) {
	policy, err := s.Policies.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}

	var totals struct {
		Members  int64
		Issued   int64
		Redeemed int64
	}
	if err := s.DB.WithContext(ctx).
		Model(&models.CustomerRewards{}).
		Select("COUNT(*) AS members, COALESCE(SUM(total_points), 0) AS issued, COALESCE(SUM(redeemed_points), 0) AS redeemed").
		Scan(&totals).Error; err != nil {
		logger.L.Error("rewards stats: totals query failed", zap.Error(err))
		return nil, fmt.Errorf("aggregate rewards totals: %w", err)
	}

	var byTier []struct {
		Tier  models.Tier
		Count int64
	}
	if err := s.DB.WithContext(ctx).
		Model(&models.CustomerRewards{}).
		Select("tier, COUNT(*) AS count").
		Group("tier").
		Scan(&byTier).Error; err != nil {
		logger.L.Error("rewards stats: tier query failed", zap.Error(err))
		return nil, fmt.Errorf("count members by tier: %w", err)
	}

	tierCounts := make(map[models.Tier]int64, len(models.Tiers))
	for _, t := range models.Tiers {
		tierCounts[t] = 0
	}
	for _, row := range byTier {
		tierCounts[row.Tier] = row.Count
	}

	return &Stats{
		TotalMembers:        totals.Members,
		TotalPointsIssued:   totals.Issued,
		TotalPointsRedeemed: totals.Redeemed,
		TotalDiscountValue:  TotalDiscountValue(totals.Redeemed, policy),
		TierCounts:          tierCounts,
	}, nil
}

// likeEscaper makes a search term match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListMembers pages through rewards members, highest balance first,
// optionally filtered by a case-insensitive match on name, email or phone.
func (s *AdminService) ListMembers(ctx context.Context, q MemberQuery) (*MemberPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = DefaultMemberPageSize
	}
	if pageSize > MaxMemberPageSize {
		pageSize = MaxMemberPageSize
	}

	policy, err := s.Policies.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}

	base := s.DB.WithContext(ctx).
		Table("customer_rewards AS r").
		Joins("JOIN users u ON u.id = r.customer_id").
		Where("u.deleted_at IS NULL")
	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		base = base.Where(`(LOWER(u.name) LIKE ? ESCAPE '\' OR LOWER(u.email) LIKE ? ESCAPE '\' OR LOWER(u.phone) LIKE ? ESCAPE '\')`,
			like, like, like)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		logger.L.Error("rewards members: count failed", zap.Error(err))
		return nil, fmt.Errorf("count rewards members: %w", err)
	}

	var rows []struct {
		CustomerID      uuid.UUID
		Name            string
		Email           string
		Phone           string
		TotalPoints     int64
		RedeemedPoints  int64
		Tier            models.Tier
		UpdatedAt       time.Time
		CompletedOrders int64
	}
	if err := base.
		Select(`r.customer_id, u.name, u.email, u.phone, r.total_points, r.redeemed_points, r.tier, r.updated_at,
			(SELECT COUNT(*) FROM orders o
			  WHERE o.customer_id = r.customer_id AND o.status = ? AND o.deleted_at IS NULL) AS completed_orders`,
			models.OrderStatusDelivered).
		Order("r.total_points DESC, u.email ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&rows).Error; err != nil {
		logger.L.Error("rewards members: list failed", zap.Error(err))
		return nil, fmt.Errorf("list rewards members: %w", err)
	}

	members := make([]MemberRow, 0, len(rows))
	for _, row := range rows {
		record := models.CustomerRewards{
			CustomerID:     row.CustomerID,
			TotalPoints:    row.TotalPoints,
			RedeemedPoints: row.RedeemedPoints,
			Tier:           row.Tier,
		}
		members = append(members, MemberRow{
			CustomerID:     row.CustomerID,
			Name:           row.Name,
			Email:          row.Email,
			Phone:          row.Phone,
			Standing:       deriveStanding(&record, row.CompletedOrders, policy),
			TotalPoints:    row.TotalPoints,
			RedeemedPoints: row.RedeemedPoints,
			UpdatedAt:      row.UpdatedAt,
		})
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	return &MemberPage{
		Members:    members,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
