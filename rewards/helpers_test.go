package rewards

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gasly-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory SQLite database. The PostgreSQL model
// tags (gen_random_uuid defaults) are not portable, so tables are created
// from SQLite DDL instead of AutoMigrate.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	// One connection keeps every goroutine on the same in-memory database.
	return openTestDB(t, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), 1)
}

// newPooledTestDB opens a file-backed WAL database with several connections,
// so concurrent callers really race on separate connections.
func newPooledTestDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rewards.db")
	return openTestDB(t, fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), conns)
}

func openTestDB(t *testing.T, dsn string, conns int) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { sqlDB.Close() })

	tables := []string{
		`CREATE TABLE IF NOT EXISTS "users" (
			"id" TEXT PRIMARY KEY, "email" TEXT NOT NULL UNIQUE, "password" TEXT NOT NULL,
			"name" TEXT, "phone" TEXT, "role" TEXT DEFAULT 'customer', "is_blocked" INTEGER DEFAULT 0,
			"created_at" DATETIME, "updated_at" DATETIME, "deleted_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "products" (
			"id" TEXT PRIMARY KEY, "name" TEXT NOT NULL, "size" TEXT, "price" NUMERIC NOT NULL,
			"stock_quantity" INTEGER DEFAULT 0, "is_active" INTEGER DEFAULT 1,
			"created_at" DATETIME, "updated_at" DATETIME, "deleted_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "orders" (
			"id" TEXT PRIMARY KEY, "order_number" TEXT NOT NULL UNIQUE, "customer_id" TEXT NOT NULL,
			"rider_id" TEXT, "product_id" TEXT NOT NULL, "quantity" INTEGER NOT NULL,
			"unit_price" NUMERIC NOT NULL, "total" NUMERIC NOT NULL, "status" TEXT DEFAULT 'pending',
			"delivery_address" TEXT, "payment_method" TEXT, "points_earned" INTEGER DEFAULT 0,
			"delivered_at" DATETIME, "created_at" DATETIME, "updated_at" DATETIME, "deleted_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "rewards_policies" (
			"id" INTEGER PRIMARY KEY, "bronze_rate" INTEGER NOT NULL, "silver_rate" INTEGER NOT NULL,
			"gold_rate" INTEGER NOT NULL, "platinum_rate" INTEGER NOT NULL,
			"silver_threshold" INTEGER NOT NULL, "gold_threshold" INTEGER NOT NULL,
			"platinum_threshold" INTEGER NOT NULL, "redemption_rate" INTEGER NOT NULL,
			"redemption_value" INTEGER NOT NULL, "points_enabled" INTEGER NOT NULL,
			"updated_by" TEXT, "created_at" DATETIME, "updated_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "customer_rewards" (
			"customer_id" TEXT PRIMARY KEY, "total_points" INTEGER NOT NULL DEFAULT 0,
			"redeemed_points" INTEGER NOT NULL DEFAULT 0, "tier" TEXT NOT NULL DEFAULT 'Bronze',
			"created_at" DATETIME, "updated_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "reward_transactions" (
			"id" TEXT PRIMARY KEY, "customer_id" TEXT NOT NULL, "points" INTEGER NOT NULL,
			"type" TEXT NOT NULL, "description" TEXT, "order_id" TEXT, "created_at" DATETIME
		)`,
	}
	for _, ddl := range tables {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func int64Ptr(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }

func defaultPolicy() *models.RewardsPolicy {
	p := DefaultPolicy()
	return &p
}

func seedCustomer(t *testing.T, db *gorm.DB, name, email, phone string) models.User {
	t.Helper()
	user := models.User{
		ID:       uuid.New(),
		Email:    email,
		Password: "x",
		Name:     name,
		Phone:    phone,
		Role:     models.RoleCustomer,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedRecord(t *testing.T, db *gorm.DB, customerID uuid.UUID, total, redeemed int64, tier models.Tier) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO customer_rewards (customer_id, total_points, redeemed_points, tier, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		customerID, total, redeemed, tier, time.Now(), time.Now()).Error)
}

func seedDeliveredOrders(t *testing.T, db *gorm.DB, customerID uuid.UUID, n int) {
	t.Helper()
	productID := uuid.New()
	for i := 0; i < n; i++ {
		order := models.Order{
			ID:         uuid.New(),
			CustomerID: customerID,
			ProductID:  productID,
			Quantity:   1,
			UnitPrice:  decimal.NewFromInt(950),
			Total:      decimal.NewFromInt(950),
			Status:     models.OrderStatusDelivered,
		}
		require.NoError(t, db.Omit("Customer", "Rider", "Product").Create(&order).Error)
	}
}

func seedTransaction(t *testing.T, db *gorm.DB, customerID uuid.UUID, points int64, at time.Time) {
	t.Helper()
	txType := models.TransactionEarned
	if points < 0 {
		txType = models.TransactionRedeemed
	}
	entry := models.RewardTransaction{
		CustomerID:  customerID,
		Points:      points,
		Type:        txType,
		Description: fmt.Sprintf("%d points", points),
		CreatedAt:   at,
	}
	require.NoError(t, db.Omit("Customer").Create(&entry).Error)
}
