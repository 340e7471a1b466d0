package rewards

import (
	"context"
	"errors"
	"fmt"

	"gasly-backend/models"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PolicyStore is the single authoritative source for rewards configuration.
type PolicyStore interface {
	GetPolicy(ctx context.Context) (*models.RewardsPolicy, error)
	UpdatePolicy(ctx context.Context, changes PolicyChanges, role models.Role) (*models.RewardsPolicy, error)
}

// DefaultPolicy returns the policy seeded on first access.
func DefaultPolicy() models.RewardsPolicy {
	return models.RewardsPolicy{
		ID:                models.PolicyID,
		BronzeRate:        100,
		SilverRate:        120,
		GoldRate:          150,
		PlatinumRate:      200,
		SilverThreshold:   5,
		GoldThreshold:     15,
		PlatinumThreshold: 30,
		RedemptionRate:    500,
		RedemptionValue:   50,
		PointsEnabled:     true,
	}
}

// PolicyChanges is a partial policy update. Nil fields are left untouched.
type PolicyChanges struct {
	BronzeRate        *int64     `json:"bronze_rate"`
	SilverRate        *int64     `json:"silver_rate"`
	GoldRate          *int64     `json:"gold_rate"`
	PlatinumRate      *int64     `json:"platinum_rate"`
	SilverThreshold   *int64     `json:"silver_threshold"`
	GoldThreshold     *int64     `json:"gold_threshold"`
	PlatinumThreshold *int64     `json:"platinum_threshold"`
	RedemptionRate    *int64     `json:"redemption_rate"`
	RedemptionValue   *int64     `json:"redemption_value"`
	PointsEnabled     *bool      `json:"points_enabled"`
	UpdatedBy         *uuid.UUID `json:"-"`
}

// Apply returns a copy of p with the changes applied.
func (c PolicyChanges) Apply(p models.RewardsPolicy) models.RewardsPolicy {
	setInt := func(dst *int64, src *int64) {
		if src != nil {
			*dst = *src
		}
	}
	setInt(&p.BronzeRate, c.BronzeRate)
	setInt(&p.SilverRate, c.SilverRate)
	setInt(&p.GoldRate, c.GoldRate)
	setInt(&p.PlatinumRate, c.PlatinumRate)
	setInt(&p.SilverThreshold, c.SilverThreshold)
	setInt(&p.GoldThreshold, c.GoldThreshold)
	setInt(&p.PlatinumThreshold, c.PlatinumThreshold)
	setInt(&p.RedemptionRate, c.RedemptionRate)
	setInt(&p.RedemptionValue, c.RedemptionValue)
	if c.PointsEnabled != nil {
		p.PointsEnabled = *c.PointsEnabled
	}
	if c.UpdatedBy != nil {
		p.UpdatedBy = c.UpdatedBy
	}
	return p
}

// ValidatePolicy returns every rule p violates.
func ValidatePolicy(p *models.RewardsPolicy) []FieldError {
	var errs []FieldError

	rates := []struct {
		field string
		value int64
	}{
		{"bronze_rate", p.BronzeRate},
		{"silver_rate", p.SilverRate},
		{"gold_rate", p.GoldRate},
		{"platinum_rate", p.PlatinumRate},
	}
	for _, r := range rates {
		if r.value < 0 {
			errs = append(errs, FieldError{Field: r.field, Message: "must not be negative"})
		}
	}

	thresholdsOK := true
	thresholds := []struct {
		field string
		value int64
	}{
		{"silver_threshold", p.SilverThreshold},
		{"gold_threshold", p.GoldThreshold},
		{"platinum_threshold", p.PlatinumThreshold},
	}
	for _, th := range thresholds {
		if th.value < 1 {
			errs = append(errs, FieldError{Field: th.field, Message: "must be at least 1"})
			thresholdsOK = false
		}
	}
	// Ordering is only meaningful once each threshold is individually valid.
	if thresholdsOK {
		if p.GoldThreshold <= p.SilverThreshold {
			errs = append(errs, FieldError{Field: "gold_threshold", Message: "must be greater than silver_threshold"})
		}
		if p.PlatinumThreshold <= p.GoldThreshold {
			errs = append(errs, FieldError{Field: "platinum_threshold", Message: "must be greater than gold_threshold"})
		}
	}

	if p.RedemptionRate < 1 {
		errs = append(errs, FieldError{Field: "redemption_rate", Message: "must be positive"})
	}
	if p.RedemptionValue < 1 {
		errs = append(errs, FieldError{Field: "redemption_value", Message: "must be positive"})
	}

	return errs
}

// GormPolicyStore keeps the policy as a single row in rewards_policies.
type GormPolicyStore struct {
	DB   *gorm.DB
	seed singleflight.Group
}

func NewPolicyStore(db *gorm.DB) *GormPolicyStore {
	return &GormPolicyStore{DB: db}
}

var _ PolicyStore = (*GormPolicyStore)(nil)

// GetPolicy returns the current policy, seeding the defaults if the row is absent.
func (s *GormPolicyStore) GetPolicy(ctx context.Context) (*models.RewardsPolicy, error) {
	var policy models.RewardsPolicy
	err := s.DB.WithContext(ctx).First(&policy, models.PolicyID).Error
	if err == nil {
		return &policy, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load rewards policy: %w", err)
	}

	v, err, _ := s.seed.Do("policy", func() (interface{}, error) {
		return s.seedDefaults(ctx)
	})
	if err != nil {
		return nil, err
	}
	seeded := *v.(*models.RewardsPolicy)
	return &seeded, nil
}

// seedDefaults inserts the default row unless another writer got there
// first, then reads back whichever row won.
func (s *GormPolicyStore) seedDefaults(ctx context.Context) (*models.RewardsPolicy, error) {
	defaults := DefaultPolicy()
	if err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&defaults).Error; err != nil {
		return nil, fmt.Errorf("seed rewards policy: %w", err)
	}

	var policy models.RewardsPolicy
	if err := s.DB.WithContext(ctx).First(&policy, models.PolicyID).Error; err != nil {
		return nil, fmt.Errorf("load seeded rewards policy: %w", err)
	}
	return &policy, nil
}

// UpdatePolicy applies changes atomically: either every field is written or
// none is.
func (s *GormPolicyStore) UpdatePolicy(ctx context.Context, changes PolicyChanges, role models.Role) (*models.RewardsPolicy, error) {
	if !role.CanModifyPolicy() {
		return nil, &AuthorizationError{Role: role, Action: "modify the rewards policy"}
	}

	// Make sure the row exists before locking it.
	if _, err := s.GetPolicy(ctx); err != nil {
		return nil, err
	}

	var updated models.RewardsPolicy
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.RewardsPolicy
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, models.PolicyID).Error; err != nil {
			return fmt.Errorf("lock rewards policy: %w", err)
		}

		merged := changes.Apply(current)
		if errs := ValidatePolicy(&merged); len(errs) > 0 {
			return &ValidationError{Fields: errs}
		}

		if err := tx.Save(&merged).Error; err != nil {
			return fmt.Errorf("save rewards policy: %w", err)
		}
		updated = merged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
