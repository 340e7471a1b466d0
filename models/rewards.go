package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Tier string

const (
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

// Tiers lists every tier from lowest to highest.
var Tiers = []Tier{TierBronze, TierSilver, TierGold, TierPlatinum}

// PolicyID is the primary key of the single rewards policy row.
const PolicyID uint = 1

// RewardsPolicy holds the tunable parameters of the rewards program.
// Exactly one row (ID = PolicyID) exists.
type RewardsPolicy struct {
	ID                uint       `gorm:"primaryKey;autoIncrement:false" json:"-"`
	BronzeRate        int64      `gorm:"not null" json:"bronze_rate"`
	SilverRate        int64      `gorm:"not null" json:"silver_rate"`
	GoldRate          int64      `gorm:"not null" json:"gold_rate"`
	PlatinumRate      int64      `gorm:"not null" json:"platinum_rate"`
	SilverThreshold   int64      `gorm:"not null" json:"silver_threshold"`
	GoldThreshold     int64      `gorm:"not null" json:"gold_threshold"`
	PlatinumThreshold int64      `gorm:"not null" json:"platinum_threshold"`
	RedemptionRate    int64      `gorm:"not null" json:"redemption_rate"`
	RedemptionValue   int64      `gorm:"not null" json:"redemption_value"`
	PointsEnabled     bool       `gorm:"not null" json:"points_enabled"`
	UpdatedBy         *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CustomerRewards is the per-customer points record. Tier is a cache of the
// last classification and is never authoritative.
type CustomerRewards struct {
	CustomerID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"customer_id"`
	Customer       User      `gorm:"foreignKey:CustomerID" json:"-"`
	TotalPoints    int64     `gorm:"not null;default:0" json:"total_points"`
	RedeemedPoints int64     `gorm:"not null;default:0" json:"redeemed_points"`
	Tier           Tier      `gorm:"not null;default:Bronze;index" json:"tier"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (CustomerRewards) TableName() string {
	return "customer_rewards"
}

type TransactionType string

const (
	TransactionEarned   TransactionType = "earned"
	TransactionRedeemed TransactionType = "redeemed"
)

// RewardTransaction is an append-only audit entry. Points is positive for
// earned and negative for redeemed.
type RewardTransaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"tx_id"`
	CustomerID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_reward_tx_customer_created" json:"-"`
	Customer    User            `gorm:"foreignKey:CustomerID" json:"-"`
	Points      int64           `gorm:"not null" json:"points"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Description string          `json:"description"`
	OrderID     *uuid.UUID      `gorm:"type:uuid;index" json:"order_id,omitempty"`
	CreatedAt   time.Time       `gorm:"index:idx_reward_tx_customer_created" json:"created_at"`
}

func (t *RewardTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
