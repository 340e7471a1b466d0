package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gasly-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func seedRewards(db *gorm.DB, customerID uuid.UUID, total, redeemed int64) {
	db.Omit("Customer").Create(&models.CustomerRewards{
		CustomerID:     customerID,
		TotalPoints:    total,
		RedeemedPoints: redeemed,
		Tier:           models.TierBronze,
	})
}

func TestGetRewardsNewCustomer(t *testing.T) {
	db := freshDB()
	router := setupRewardsRouter(db)
	_, token := seedTestUser(db, "new@test.com", models.RoleCustomer)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/rewards", nil, token))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(w)
	expect := map[string]interface{}{
		"total_points":        float64(0),
		"available_points":    float64(0),
		"tier":                "Bronze",
		"points_rate":         float64(100),
		"completed_orders":    float64(0),
		"progress_pct":        float64(0),
		"orders_to_next":      float64(5),
		"next_tier":           "Silver",
		"discount_per_unit":   float64(50),
		"redeemable_discount": float64(0),
		"redemption_rate":     float64(500),
		"points_enabled":      true,
	}
	for key, want := range expect {
		if resp[key] != want {
			t.Errorf("%s: expected %v, got %v", key, want, resp[key])
		}
	}
	if history, ok := resp["history"].([]interface{}); !ok || len(history) != 0 {
		t.Errorf("expected empty history array, got %v", resp["history"])
	}
}

func TestGetRewardsSilverMember(t *testing.T) {
	db := freshDB()
	router := setupRewardsRouter(db)
	customer, token := seedTestUser(db, "silver@test.com", models.RoleCustomer)
	prod := seedProduct(db, "Petron Gasul", "950.00", 10)
	for i := 0; i < 6; i++ {
		seedOrder(db, customer.ID, prod, 1, models.OrderStatusDelivered)
	}
	seedRewards(db, customer.ID, 1200, 0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/rewards", nil, token))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(w)
	if resp["tier"] != "Silver" {
		t.Errorf("expected Silver, got %v", resp["tier"])
	}
	if resp["points_rate"] != float64(120) {
		t.Errorf("expected rate 120, got %v", resp["points_rate"])
	}
	if resp["orders_to_next"] != float64(9) {
		t.Errorf("expected 9 orders to Gold, got %v", resp["orders_to_next"])
	}
	if resp["redeemable_discount"] != float64(100) {
		t.Errorf("expected redeemable discount 100, got %v", resp["redeemable_discount"])
	}

	// The recomputed tier is written back to the record.
	if got := rewardsRecord(db, customer.ID).Tier; got != models.TierSilver {
		t.Errorf("expected cached tier Silver, got %s", got)
	}
}

func TestRedeemPoints(t *testing.T) {
	db := freshDB()
	router := setupRewardsRouter(db)
	customer, token := seedTestUser(db, "redeem@test.com", models.RoleCustomer)
	seedRewards(db, customer.ID, 1200, 0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("POST", "/api/rewards/redeem", map[string]interface{}{"units": 2}, token))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(w)
	if resp["points_spent"] != float64(1000) {
		t.Errorf("expected 1000 points spent, got %v", resp["points_spent"])
	}
	if resp["discount"] != float64(100) {
		t.Errorf("expected discount 100, got %v", resp["discount"])
	}
	if resp["available_points"] != float64(200) {
		t.Errorf("expected 200 points left, got %v", resp["available_points"])
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("POST", "/api/rewards/redeem", map[string]interface{}{"units": 1}, token))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for insufficient points, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/rewards", nil, token))
	history := parseResponse(w)["history"].([]interface{})
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	entry := history[0].(map[string]interface{})
	if entry["type"] != "redeemed" || entry["points"] != float64(-1000) {
		t.Errorf("unexpected history entry: %v", entry)
	}
}

func TestRedeemRejectsBadUnits(t *testing.T) {
	db := freshDB()
	router := setupRewardsRouter(db)
	customer, token := seedTestUser(db, "units@test.com", models.RoleCustomer)
	seedRewards(db, customer.ID, 1200, 0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("POST", "/api/rewards/redeem", map[string]interface{}{"units": 0}, token))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	fields, ok := parseResponse(w)["fields"].([]interface{})
	if !ok || len(fields) != 1 || fields[0].(map[string]interface{})["field"] != "units" {
		t.Errorf("expected a units field error, got %s", w.Body.String())
	}

	if got := rewardsRecord(db, customer.ID).RedeemedPoints; got != 0 {
		t.Errorf("expected nothing redeemed, got %d", got)
	}
}

func TestRedeemRejectsOverflowingUnits(t *testing.T) {
	db := freshDB()
	router := setupRewardsRouter(db)
	customer, token := seedTestUser(db, "overflow@test.com", models.RoleCustomer)
	seedRewards(db, customer.ID, 500, 0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("POST", "/api/rewards/redeem", map[string]interface{}{"units": int64(1<<62 + 1)}, token))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	if got := rewardsRecord(db, customer.ID).RedeemedPoints; got != 0 {
		t.Errorf("expected nothing redeemed, got %d", got)
	}
}

func TestAdminRewardsOverview(t *testing.T) {
	db := freshDB()
	router := setupRewardsRouter(db)
	_, adminToken := seedTestUser(db, "admin@test.com", models.RoleAdmin)
	_, customerToken := seedTestUser(db, "viewer@test.com", models.RoleCustomer)
	a, _ := seedTestUser(db, "a@test.com", models.RoleCustomer)
	b, _ := seedTestUser(db, "b@test.com", models.RoleCustomer)
	seedRewards(db, a.ID, 1000, 500)
	seedRewards(db, b.ID, 300, 0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/admin/rewards", nil, customerToken))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for customer, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/admin/rewards", nil, adminToken))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(w)
	stats := resp["stats"].(map[string]interface{})
	if stats["total_members"] != float64(2) {
		t.Errorf("expected 2 members, got %v", stats["total_members"])
	}
	if stats["total_points_issued"] != float64(1300) {
		t.Errorf("expected 1300 points issued, got %v", stats["total_points_issued"])
	}
	if stats["total_points_redeemed"] != float64(500) {
		t.Errorf("expected 500 points redeemed, got %v", stats["total_points_redeemed"])
	}
	if stats["total_discount_value"] != float64(50) {
		t.Errorf("expected discount value 50, got %v", stats["total_discount_value"])
	}
	tiers := stats["tier_counts"].(map[string]interface{})
	if tiers["Bronze"] != float64(2) || tiers["Platinum"] != float64(0) {
		t.Errorf("unexpected tier counts: %v", tiers)
	}

	policy := resp["policy"].(map[string]interface{})
	if policy["bronze_rate"] != float64(100) {
		t.Errorf("expected default policy, got %v", policy)
	}
}

func TestAdminListMembers(t *testing.T) {
	db := freshDB()
	router := setupRewardsRouter(db)
	_, adminToken := seedTestUser(db, "admin@test.com", models.RoleAdmin)
	ana, _ := seedTestUser(db, "ana@test.com", models.RoleCustomer)
	ben, _ := seedTestUser(db, "ben@test.com", models.RoleCustomer)
	seedRewards(db, ana.ID, 300, 0)
	seedRewards(db, ben.ID, 900, 0)
	prod := seedProduct(db, "Petron Gasul", "950.00", 10)
	for i := 0; i < 6; i++ {
		seedOrder(db, ben.ID, prod, 1, models.OrderStatusDelivered)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/admin/rewards/members", nil, adminToken))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := parseResponse(w)
	members := resp["members"].([]interface{})
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	// Rows carry the same derived progress as the customer view.
	expect := []map[string]interface{}{
		{
			"email": "ben@test.com", "tier": "Silver", "points_rate": float64(120),
			"completed_orders": float64(6), "progress_pct": float64(10),
			"orders_to_next": float64(9), "next_tier": "Gold",
			"available_points": float64(900), "redeemable_discount": float64(50),
		},
		{
			"email": "ana@test.com", "tier": "Bronze", "points_rate": float64(100),
			"completed_orders": float64(0), "progress_pct": float64(0),
			"orders_to_next": float64(5), "next_tier": "Silver",
			"available_points": float64(300), "redeemable_discount": float64(0),
		},
	}
	for i, want := range expect {
		row := members[i].(map[string]interface{})
		for key, value := range want {
			if row[key] != value {
				t.Errorf("member %d %s: expected %v, got %v", i, key, value, row[key])
			}
		}
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/admin/rewards/members?search=ANA&page_size=5", nil, adminToken))
	resp = parseResponse(w)
	if resp["total"] != float64(1) || resp["page_size"] != float64(5) {
		t.Errorf("unexpected search page: %s", w.Body.String())
	}
}

func TestUpdateRewardsPolicy(t *testing.T) {
	db := freshDB()
	router := setupRewardsRouter(db)
	_, adminToken := seedTestUser(db, "admin@test.com", models.RoleAdmin)
	master, masterToken := seedTestUser(db, "master@test.com", models.RoleMasterAdmin)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("PUT", "/api/admin/rewards/policy", map[string]interface{}{"bronze_rate": 110}, adminToken))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for admin, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("PUT", "/api/admin/rewards/policy", map[string]interface{}{
		"bronze_rate": 0, "platinum_threshold": 10,
	}, masterToken))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for invalid policy, got %d: %s", w.Code, w.Body.String())
	}
	if fields, _ := parseResponse(w)["fields"].([]interface{}); len(fields) < 2 {
		t.Errorf("expected every violation reported, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("PUT", "/api/admin/rewards/policy", map[string]interface{}{"bronze_rate": 110}, masterToken))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := parseResponse(w)
	if resp["bronze_rate"] != float64(110) || resp["silver_rate"] != float64(120) {
		t.Errorf("expected partial update, got %s", w.Body.String())
	}
	if resp["updated_by"] != master.ID.String() {
		t.Errorf("expected updated_by %s, got %v", master.ID, resp["updated_by"])
	}
}
