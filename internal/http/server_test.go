package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.NewStore()
	store.SeedDefaults()

	srv := NewServer(Config{
		Addr:              ":0",
		JWTSecret:         "test-secret-at-least-16-chars",
		TokenLifetime:     time.Hour,
		RequestsPerMinute: 10000,
		ReportCacheSize:   100,
		ReportCacheTTL:    time.Minute,
	}, store, 4)
	t.Cleanup(func() {
		srv.limiter.Stop()
		srv.cacheMgr.Stop()
	})
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func registerAndLogin(t *testing.T, srv *Server, email string) string {
	t.Helper()

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":     email,
		"password":  "password123",
		"full_name": "Test User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decodeBody(t, rec, &out)
	require.Equal(t, "bearer", out.TokenType)
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice@example.com")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	decodeBody(t, rec, &me)
	assert.Equal(t, "alice@example.com", me["email"])

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterConflict(t *testing.T) {
	srv := newTestServer(t)
	registerAndLogin(t, srv, "bob@example.com")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "bob@example.com",
		"password": "password456",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	registerAndLogin(t, srv, "carol@example.com")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "carol@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "dave@example.com")
	today := core.Today().String()

	// Create with a string amount.
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"type":        "expense",
		"amount":      "25.99",
		"description": "groceries",
		"occurred_on": today,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]any
	decodeBody(t, rec, &created)
	assert.Equal(t, "25.99", created["amount"])
	id := int64(created["id"].(float64))

	// Numeric amounts work too.
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"type":        "income",
		"amount":      1200.5,
		"occurred_on": today,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/transactions/%d", id), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/transactions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []map[string]any
	decodeBody(t, rec, &listed)
	assert.Len(t, listed, 2)

	// Partial update.
	rec = doRequest(t, srv, http.MethodPut, fmt.Sprintf("/api/v1/transactions/%d", id), token, map[string]any{
		"amount": "30.00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated map[string]any
	decodeBody(t, rec, &updated)
	assert.Equal(t, "30.00", updated["amount"])

	// Soft delete.
	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/transactions/%d", id), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted map[string]any
	decodeBody(t, rec, &deleted)
	assert.Equal(t, true, deleted["is_deleted"])

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/transactions/%d", id), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Restore through the dual-mode write.
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/transactions", token, map[string]any{"id": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var restored map[string]any
	decodeBody(t, rec, &restored)
	assert.Equal(t, false, restored["is_deleted"])
	assert.Equal(t, "30.00", restored["amount"])
}

func TestTransactionWriteModeErrors(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "erin@example.com")

	// Restore id mixed with create fields.
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"id":     1,
		"amount": "10.00",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "only the id field")

	// Create without required fields.
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"description": "mystery",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "required")

	// Restoring a transaction that was never deleted.
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/transactions", token, map[string]any{"id": 424242})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Zero amount.
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"type":        "expense",
		"amount":      "0.00",
		"occurred_on": core.Today().String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactionOwnershipIsolation(t *testing.T) {
	srv := newTestServer(t)
	ownerToken := registerAndLogin(t, srv, "owner@example.com")
	otherToken := registerAndLogin(t, srv, "other@example.com")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/transactions", ownerToken, map[string]any{
		"type":        "expense",
		"amount":      "5.00",
		"occurred_on": core.Today().String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	decodeBody(t, rec, &created)
	id := int64(created["id"].(float64))

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/transactions/%d", id), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/transactions/%d", id), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "frank@example.com")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/categories?type=expense", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cats []map[string]any
	decodeBody(t, rec, &cats)
	require.NotEmpty(t, cats, "seeded defaults should be visible")
	defaultID := int64(cats[0]["id"].(float64))

	// Defaults cannot be deleted or renamed.
	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/categories/%d", defaultID), token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doRequest(t, srv, http.MethodPut, fmt.Sprintf("/api/v1/categories/%d", defaultID), token, map[string]any{"name": "Mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/categories", token, map[string]any{
		"name": "Books",
		"type": "expense",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]any
	decodeBody(t, rec, &created)
	id := int64(created["id"].(float64))

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/categories/%d", id), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail map[string]any
	decodeBody(t, rec, &detail)
	assert.Equal(t, float64(0), detail["transaction_count"])

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/categories/%d", id), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/categories/%d", id), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryBadType(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "grace@example.com")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/categories", token, map[string]any{
		"name": "Weird",
		"type": "transfer",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "heidi@example.com")
	today := core.Today().String()

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"type":        "income",
		"amount":      "3000.00",
		"occurred_on": today,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"type":        "expense",
		"amount":      "1000.00",
		"occurred_on": today,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/transactions/statistics", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	decodeBody(t, rec, &stats)
	assert.Equal(t, "3000.00", stats["total_income"])
	assert.Equal(t, "1000.00", stats["total_expense"])
	assert.Equal(t, "2000.00", stats["balance"])

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/reports/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary map[string]any
	decodeBody(t, rec, &summary)
	require.Contains(t, summary, "statistics")
	require.Contains(t, summary, "averages")

	// Second read is served from the cache and must match.
	rec2 := doRequest(t, srv, http.MethodGet, "/api/v1/reports/summary", token, nil)
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.JSONEq(t, rec.Body.String(), rec2.Body.String())

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/reports/by-category", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/reports/trends?period=daily", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trend map[string]any
	decodeBody(t, rec, &trend)
	assert.Len(t, trend["data"], 30)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/reports/trends?period=yearly", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/reports/monthly?months=13", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrendsDefaultPeriodIsWeekly(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "judy@example.com")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/reports/trends", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var trend map[string]any
	decodeBody(t, rec, &trend)
	assert.Equal(t, "weekly", trend["period"])
	assert.Len(t, trend["data"], 12)
}

func TestReportQueryValidation(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "mallory@example.com")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/reports/monthly?months=six", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/reports/monthly?months=-2", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/transactions?category_id=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportCacheInvalidatedByWrites(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "ivan@example.com")
	today := core.Today().String()

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/reports/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var before map[string]any
	decodeBody(t, rec, &before)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/transactions", token, map[string]any{
		"type":        "income",
		"amount":      "100.00",
		"occurred_on": today,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/reports/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var after map[string]any
	decodeBody(t, rec, &after)

	stats := after["statistics"].(map[string]any)
	assert.Equal(t, "100.00", stats["total_income"], "write must drop the cached report")
}

func TestReportsRequireAuth(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{
		"/api/v1/transactions",
		"/api/v1/categories",
		"/api/v1/reports/summary",
		"/api/v1/reports/by-category",
		"/api/v1/reports/monthly",
		"/api/v1/reports/trends",
	} {
		rec := doRequest(t, srv, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}
