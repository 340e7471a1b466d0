package models

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS "users" (
			"id" TEXT PRIMARY KEY, "email" TEXT NOT NULL UNIQUE, "password" TEXT NOT NULL,
			"name" TEXT, "phone" TEXT, "role" TEXT DEFAULT 'customer', "is_blocked" INTEGER DEFAULT 0,
			"created_at" DATETIME, "updated_at" DATETIME, "deleted_at" DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS "refresh_tokens" (
			"id" TEXT PRIMARY KEY, "user_id" TEXT NOT NULL, "token" TEXT NOT NULL UNIQUE,
			"expires_at" DATETIME NOT NULL, "revoked_at" DATETIME, "created_at" DATETIME
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
		`CREATE TABLE IF NOT EXISTS "reward_transactions" (
			"id" TEXT PRIMARY KEY, "customer_id" TEXT NOT NULL, "points" INTEGER NOT NULL,
			"type" TEXT NOT NULL, "description" TEXT, "order_id" TEXT, "created_at" DATETIME
		)`,
	}
	for _, sql := range tables {
		if err := db.Exec(sql).Error; err != nil {
			t.Fatal(err)
		}
	}
	return db
}

func TestUserBeforeCreateGeneratesUUID(t *testing.T) {
	db := setupTestDB(t)
	user := User{Email: "test@test.com", Password: "hash", Name: "Test"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	if user.ID == uuid.Nil {
		t.Error("UUID should have been generated")
	}
}

func TestUserBeforeCreatePreservesUUID(t *testing.T) {
	db := setupTestDB(t)
	existingID := uuid.New()
	user := User{ID: existingID, Email: "preserve@test.com", Password: "hash", Name: "Test"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	if user.ID != existingID {
		t.Error("UUID should have been preserved")
	}
}

func TestRefreshTokenBeforeCreate(t *testing.T) {
	db := setupTestDB(t)
	rt := RefreshToken{UserID: uuid.New(), Token: "tok"}
	if err := db.Omit("User").Create(&rt).Error; err != nil {
		t.Fatal(err)
	}
	if rt.ID == uuid.Nil {
		t.Error("UUID should have been generated")
	}
}

func TestProductBeforeCreate(t *testing.T) {
	db := setupTestDB(t)
	p := Product{Name: "Gasul", Price: decimal.NewFromInt(950)}
	if err := db.Create(&p).Error; err != nil {
		t.Fatal(err)
	}
	if p.ID == uuid.Nil {
		t.Error("UUID should have been generated")
	}
}

func TestOrderBeforeCreate(t *testing.T) {
	db := setupTestDB(t)
	order := Order{
		CustomerID: uuid.New(),
		ProductID:  uuid.New(),
		Quantity:   1,
		UnitPrice:  decimal.NewFromInt(950),
		Total:      decimal.NewFromInt(950),
	}
	if err := db.Omit("Customer", "Rider", "Product").Create(&order).Error; err != nil {
		t.Fatal(err)
	}
	if order.ID == uuid.Nil {
		t.Error("UUID should have been generated")
	}
	if !strings.HasPrefix(order.OrderNumber, "PG") || !strings.HasSuffix(order.OrderNumber, order.ID.String()[:8]) {
		t.Errorf("unexpected order number %q", order.OrderNumber)
	}
}

func TestRewardTransactionBeforeCreate(t *testing.T) {
	db := setupTestDB(t)
	tx := RewardTransaction{CustomerID: uuid.New(), Points: 100, Type: TransactionEarned}
	if err := db.Omit("Customer").Create(&tx).Error; err != nil {
		t.Fatal(err)
	}
	if tx.ID == uuid.Nil {
		t.Error("UUID should have been generated")
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusConfirmed, OrderStatusOutForDelivery, true},
		{OrderStatusOutForDelivery, OrderStatusDelivered, true},
		{OrderStatusOutForDelivery, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatus("lost"), OrderStatusPending, false},
	}
	for _, tt := range tests {
		if got := IsValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRoles(t *testing.T) {
	tests := []struct {
		role         Role
		staff        bool
		modifyPolicy bool
	}{
		{RoleMasterAdmin, true, true},
		{RoleAdmin, true, false},
		{RoleRider, false, false},
		{RoleCustomer, false, false},
	}
	for _, tt := range tests {
		if !tt.role.IsValid() {
			t.Errorf("%s should be valid", tt.role)
		}
		if tt.role.IsStaff() != tt.staff {
			t.Errorf("%s IsStaff = %v, want %v", tt.role, tt.role.IsStaff(), tt.staff)
		}
		if tt.role.CanModifyPolicy() != tt.modifyPolicy {
			t.Errorf("%s CanModifyPolicy = %v, want %v", tt.role, tt.role.CanModifyPolicy(), tt.modifyPolicy)
		}
	}
	if Role("owner").IsValid() {
		t.Error("unknown role should be invalid")
	}
}
