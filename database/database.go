package database

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"gasly-backend/logger"
	"gasly-backend/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect() (*gorm.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=gasly port=5432 sslmode=disable"
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	// gen_random_uuid() needs pgcrypto on older PostgreSQL versions.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("failed to enable pgcrypto extension: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Product{},
		&models.Order{},
		&models.RewardsPolicy{},
		&models.CustomerRewards{},
		&models.RewardTransaction{},
	); err != nil {
		return err
	}

	// Balances are kept as running totals; the database refuses any write
	// that would let redeemed points exceed earned points.
	if err := db.Exec(`
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM pg_constraint WHERE conname = 'chk_customer_rewards_redeemed'
  ) THEN
    ALTER TABLE customer_rewards
      ADD CONSTRAINT chk_customer_rewards_redeemed
      CHECK (redeemed_points >= 0 AND redeemed_points <= total_points);
  END IF;
END $$;
	`).Error; err != nil {
		return fmt.Errorf("failed to add customer_rewards balance constraint: %w", err)
	}

	return nil
}

// CreateDefaultAdmin seeds the master admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD. A random password is generated and logged when none is set.
func CreateDefaultAdmin(db *gorm.DB) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" {
		adminEmail = "admin@gasly.ph"
	}

	var existingUser models.User
	result := db.Where("email = ?", adminEmail).First(&existingUser)
	if result.Error == nil {
		return nil
	}

	generated := false
	if adminPassword == "" {
		buf := make([]byte, 12)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		adminPassword = hex.EncodeToString(buf)
		generated = true
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:    adminEmail,
		Password: string(hashedPassword),
		Role:     models.RoleMasterAdmin,
		Name:     "Master Admin",
	}

	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	if generated {
		logger.L.Warn("master admin created with generated password",
			zap.String("email", adminEmail), zap.String("password", adminPassword))
	} else {
		logger.L.Info("master admin created", zap.String("email", adminEmail))
	}
	return nil
}
