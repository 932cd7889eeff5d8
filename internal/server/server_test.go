package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/pgbilling/internal/authorization"
	"github.com/smallbiznis/pgbilling/internal/cache"
	"github.com/smallbiznis/pgbilling/internal/config"
	"github.com/smallbiznis/pgbilling/internal/entitlement"
	"github.com/smallbiznis/pgbilling/internal/observability"
	obsmetrics "github.com/smallbiznis/pgbilling/internal/observability/metrics"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	planrepository "github.com/smallbiznis/pgbilling/internal/plan/repository"
	planservice "github.com/smallbiznis/pgbilling/internal/plan/service"
	pricingservice "github.com/smallbiznis/pgbilling/internal/pricing/service"
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/pgbilling/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/pgbilling/internal/subscription/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testOrgID = "77"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&plandomain.Plan{}, &subscriptiondomain.Subscription{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	planSvc := planservice.New(planservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  planrepository.Provide(),
		Cache: cache.NewMemoryPlanCache(0),
	})
	evaluator := entitlement.NewDefault()
	subscriptionSvc := subscriptionservice.NewService(subscriptionservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      subscriptionrepository.Provide(),
		PlanSvc:   planSvc,
		Evaluator: evaluator,
	})
	pricingSvc := pricingservice.New(pricingservice.Params{Log: log, PlanSvc: planSvc, Metrics: obsmetrics.NewNoop()})

	enforcer, err := authorization.NewEnforcer(nil)
	require.NoError(t, err)
	authzSvc := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})

	return NewServer(ServerParams{
		Gin:             NewEngine(observability.Config{}, nil),
		Cfg:             config.Config{},
		Log:             log,
		PlanSvc:         planSvc,
		SubscriptionSvc: subscriptionSvc,
		PricingSvc:      pricingSvc,
		Evaluator:       evaluator,
		AuthzSvc:        authzSvc,
		ObsMetrics:      obsmetrics.NewNoop(),
	})
}

func doJSON(t *testing.T, s *Server, method, path, role string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderOrg, testOrgID)
	if role != "" {
		req.Header.Set(HeaderActorRole, role)
		req.Header.Set(HeaderActorID, role+"-1")
	}

	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func createStandardPlan(t *testing.T, s *Server) string {
	t.Helper()
	rec, payload := doJSON(t, s, http.MethodPost, "/api/v1/plans", authorization.RoleAdmin, map[string]any{
		"name":                 "Standard",
		"billing_cycle":        "monthly",
		"base_price":           1000,
		"base_bed_count":       10,
		"max_beds_allowed":     20,
		"top_up_price_per_bed": 50,
		"branch_count":         1,
		"modules": []map[string]any{
			{
				"name":    "resident_management",
				"enabled": true,
				"permissions": map[string]any{
					"residents": map[string]bool{"create": true, "read": true, "update": false, "delete": false},
				},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := payload["data"].(map[string]any)
	assert.Equal(t, "standard", data["code"])
	return jsonID(t, data["id"])
}

func createSubscription(t *testing.T, s *Server, planID string) string {
	t.Helper()
	rec, payload := doJSON(t, s, http.MethodPost, "/api/v1/subscriptions", authorization.RoleOwner, map[string]any{
		"plan_id": planID,
		"beds":    12,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := payload["data"].(map[string]any)
	assert.Equal(t, "active", data["status"])
	return jsonID(t, data["id"])
}

// snowflake ids marshal as JSON strings.
func jsonID(t *testing.T, v any) string {
	t.Helper()
	id, ok := v.(string)
	require.True(t, ok, "id %v is not a string", v)
	return id
}

func TestRequestsRequireOrgAndActor(t *testing.T) {
	s := newTestServer(t)

	rec, payload := doJSON(t, s, http.MethodGet, "/api/v1/plans", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", payload["error"].(map[string]any)["type"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	req.Header.Set(HeaderActorRole, authorization.RoleAdmin)
	rec = httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlanManagementRequiresAdmin(t *testing.T) {
	s := newTestServer(t)

	rec, payload := doJSON(t, s, http.MethodPost, "/api/v1/plans", authorization.RoleSales, map[string]any{"name": "Basic"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", payload["error"].(map[string]any)["type"])

	planID := createStandardPlan(t, s)

	rec, payload = doJSON(t, s, http.MethodGet, "/api/v1/plans?active=true", authorization.RoleMember, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["data"], 1)

	rec, payload = doJSON(t, s, http.MethodPatch, "/api/v1/plans/"+planID, authorization.RoleAdmin, map[string]any{"base_price": 1200})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := payload["data"].(map[string]any)
	assert.Equal(t, float64(1200), data["base_price"])
	assert.Equal(t, float64(2), data["version"])

	rec, _ = doJSON(t, s, http.MethodDelete, "/api/v1/plans/"+planID, authorization.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, payload = doJSON(t, s, http.MethodPatch, "/api/v1/plans/"+planID, authorization.RoleAdmin, map[string]any{"base_price": 900})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", payload["error"].(map[string]any)["type"])
}

func TestPlanValidationErrors(t *testing.T) {
	s := newTestServer(t)

	rec, payload := doJSON(t, s, http.MethodPost, "/api/v1/plans", authorization.RoleAdmin, map[string]any{
		"name":          "Broken",
		"billing_cycle": "weekly",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errPayload := payload["error"].(map[string]any)
	assert.Equal(t, "validation_error", errPayload["type"])
	first := errPayload["errors"].([]any)[0].(map[string]any)
	assert.Equal(t, "invalid_billing_cycle", first["code"])
	assert.Equal(t, "billing_cycle", first["field"])

	rec, _ = doJSON(t, s, http.MethodGet, "/api/v1/plans/123", authorization.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBedTopUpBeyondCapRequiresUpgrade(t *testing.T) {
	s := newTestServer(t)
	planID := createStandardPlan(t, s)
	subID := createSubscription(t, s, planID)

	rec, _ := doJSON(t, s, http.MethodPatch, "/api/v1/subscriptions/"+subID+"/usage", authorization.RoleOwner, map[string]any{"beds_used": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = doJSON(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/beds", authorization.RoleOwner, map[string]any{"additional": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, payload := doJSON(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/beds", authorization.RoleOwner, map[string]any{"additional": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	errPayload := payload["error"].(map[string]any)
	assert.Equal(t, "upgrade_required", errPayload["type"])
	assert.Equal(t, "bed_limit_reached", errPayload["errors"].([]any)[0].(map[string]any)["code"])

	rec, _ = doJSON(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/beds", authorization.RoleMember, map[string]any{"additional": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEntitlementEndpoints(t *testing.T) {
	s := newTestServer(t)
	planID := createStandardPlan(t, s)
	subID := createSubscription(t, s, planID)

	rec, payload := doJSON(t, s, http.MethodGet, "/api/v1/subscriptions/"+subID+"/entitlements", authorization.RoleMember, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := payload["data"].(map[string]any)
	assert.Equal(t, true, summary["is_subscribed"])
	assert.Equal(t, float64(12), summary["max_beds"])

	rec, payload = doJSON(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/entitlements/check", authorization.RoleMember, map[string]any{
		"module":    "resident_management",
		"submodule": "residents",
		"action":    "edit",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	check := payload["data"].(map[string]any)
	assert.Equal(t, "action", check["check"])
	assert.Equal(t, false, check["allowed"])
	assert.Equal(t, true, check["restricted"])

	rec, payload = doJSON(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/entitlements/check", authorization.RoleMember, map[string]any{
		"module":    "resident_management",
		"submodule": "residents",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	perms := payload["data"].(map[string]any)["permissions"].(map[string]any)
	assert.Equal(t, true, perms["create"])
	assert.Equal(t, false, perms["delete"])

	rec, payload = doJSON(t, s, http.MethodGet, "/api/v1/subscriptions/"+subID+"/routes/check?path=/app/tickets/42", authorization.RoleMember, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decision := payload["data"].(map[string]any)
	assert.Equal(t, false, decision["allowed"])
	assert.Equal(t, "ticket_system", decision["module"])

	rec, _ = doJSON(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/entitlements/check", authorization.RoleMember, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPricingQuotes(t *testing.T) {
	s := newTestServer(t)
	planID := createStandardPlan(t, s)

	rec, payload := doJSON(t, s, http.MethodPost, "/api/v1/pricing/calculate", authorization.RoleSales, map[string]any{
		"plan_id": planID,
		"beds":    12,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, payload["quote_id"], 26)
	data := payload["data"].(map[string]any)
	assert.InDelta(t, 1298.0, data["total_price"], 1e-9)
	assert.Equal(t, "1298.00", payload["display"].(map[string]any)["total_price"])

	rec, payload = doJSON(t, s, http.MethodPost, "/api/v1/pricing/compare", authorization.RoleSales, map[string]any{
		"plan_ids": []string{planID, "999"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := payload["data"].(map[string]any)
	assert.Len(t, result["comparisons"], 1)
	assert.Len(t, result["unavailable"], 1)

	rec, payload = doJSON(t, s, http.MethodGet, "/api/v1/pricing/tier?price=2600", authorization.RoleSales, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "professional", payload["data"].(map[string]any)["tier"])

	rec, _ = doJSON(t, s, http.MethodGet, "/api/v1/pricing/tier?price=-1", authorization.RoleSales, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, s, http.MethodPost, "/api/v1/pricing/calculate", authorization.RoleSales, map[string]any{
		"plan_id": planID,
		"beds":    -1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, s, http.MethodPost, "/api/v1/pricing/calculate", authorization.RoleMember, map[string]any{"plan_id": planID})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCostOptimizationUsesSubscriptionSnapshot(t *testing.T) {
	s := newTestServer(t)
	planID := createStandardPlan(t, s)
	subID := createSubscription(t, s, planID)

	rec, payload := doJSON(t, s, http.MethodGet, "/api/v1/subscriptions/"+subID+"/pricing/optimization", authorization.RoleOwner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := payload["data"].(map[string]any)
	current := report["current"].(map[string]any)
	assert.Equal(t, float64(12), current["beds"])
	assert.NotEmpty(t, payload["quote_id"])
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	rec, payload := doJSON(t, s, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", payload["error"].(map[string]any)["type"])
}
