package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vetbridge-affiliate/internal/adapters/http/middleware"
	"vetbridge-affiliate/internal/adapters/http/routes"
	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/bootstrap"
	"vetbridge-affiliate/internal/config"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/export"
	"vetbridge-affiliate/internal/pkg/password"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type apiClient struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func newTestApp(t *testing.T) *apiClient {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	hash, err := password.HashWithCost("admin-password", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Operator{
		Username: "admin",
		Password: hash,
		Role:     models.OperatorRoleAdmin,
		IsActive: true,
	}).Error)

	rates, err := domain.ParseRateTable(config.DefaultCommissionRates)
	require.NoError(t, err)
	cfg := &config.Config{
		AppMode:    "dev",
		JWT:        config.JWTConfig{Secret: "routes-test-secret", AccessTokenMins: 15},
		Commission: config.CommissionConfig{Rates: rates},
		Simulator:  config.SimulatorConfig{ScalePolicy: domain.ScalePolicyReject, ChunkSize: 100},
	}

	app := fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	routes.Setup(app, bootstrap.New(db, cfg).Routes(), cfg)
	return &apiClient{t: t, app: app}
}

func (c *apiClient) do(method, path string, body interface{}) (*http.Response, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, raw
}

func (c *apiClient) json(method, path string, body interface{}, wantStatus int, out interface{}) envelope {
	c.t.Helper()
	resp, raw := c.do(method, path, body)
	require.Equal(c.t, wantStatus, resp.StatusCode, string(raw))
	var env envelope
	require.NoError(c.t, json.Unmarshal(raw, &env))
	if out != nil {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
	return env
}

func (c *apiClient) login() {
	var auth struct {
		AccessToken string `json:"access_token"`
	}
	c.json(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "admin-password"}, http.StatusOK, &auth)
	require.NotEmpty(c.t, auth.AccessToken)
	c.token = auth.AccessToken
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	client := newTestApp(t)

	client.json(http.MethodGet, "/api/v1/affiliates", nil, http.StatusUnauthorized, nil)
	client.json(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "nope"}, http.StatusUnauthorized, nil)

	client.token = "garbage"
	client.json(http.MethodGet, "/api/v1/reports/export", nil, http.StatusUnauthorized, nil)
}

func TestLedgerFlow(t *testing.T) {
	client := newTestApp(t)
	client.login()

	var root, child models.AffiliateResponse
	client.json(http.MethodPost, "/api/v1/affiliates", map[string]interface{}{
		"name": "Root", "role": "master", "referral_code": "ROOT1", "comp_active": true,
	}, http.StatusCreated, &root)
	client.json(http.MethodPost, "/api/v1/affiliates", map[string]interface{}{
		"name": "Child", "upline_code": "ROOT1", "comp_active": true,
	}, http.StatusCreated, &child)
	require.NotNil(t, child.UplineID)
	assert.Equal(t, root.ID, *child.UplineID)

	client.json(http.MethodPost, "/api/v1/affiliates", map[string]interface{}{
		"name": "Dup", "referral_code": "ROOT1",
	}, http.StatusConflict, nil)
	client.json(http.MethodPatch, fmt.Sprintf("/api/v1/affiliates/%d/upline", root.ID), map[string]interface{}{
		"upline_id": child.ID,
	}, http.StatusConflict, nil)

	var recorded struct {
		Sale        models.SaleResponse `json:"sale"`
		Computation struct {
			Status      string                      `json:"status"`
			Commissions []models.CommissionResponse `json:"commissions"`
		} `json:"computation"`
	}
	client.json(http.MethodPost, "/api/v1/sales", map[string]interface{}{
		"affiliate_id": child.ID, "amount": "1000.00", "compute": true,
	}, http.StatusCreated, &recorded)
	assert.Equal(t, "1000.00", recorded.Sale.Amount)
	assert.Equal(t, "computed", recorded.Computation.Status)
	require.Len(t, recorded.Computation.Commissions, 2)
	assert.Equal(t, "100.00", recorded.Computation.Commissions[0].Amount)
	assert.Equal(t, "50.00", recorded.Computation.Commissions[1].Amount)

	client.json(http.MethodPost, "/api/v1/sales", map[string]interface{}{
		"affiliate_id": child.ID, "amount": "1.234",
	}, http.StatusBadRequest, nil)

	commissionID := recorded.Computation.Commissions[0].ID
	client.json(http.MethodPatch, fmt.Sprintf("/api/v1/commissions/%d/status", commissionID),
		map[string]string{"status": "paid"}, http.StatusUnprocessableEntity, nil)

	var moved struct {
		Moved int64 `json:"moved"`
	}
	client.json(http.MethodPatch, fmt.Sprintf("/api/v1/sales/%d/commissions/status", recorded.Sale.ID),
		map[string]string{"status": "approved"}, http.StatusOK, &moved)
	assert.Equal(t, int64(2), moved.Moved)

	client.json(http.MethodPost, fmt.Sprintf("/api/v1/sales/%d/compute", recorded.Sale.ID),
		map[string]bool{"recompute": true}, http.StatusConflict, nil)

	var summary struct {
		Approved string   `json:"approved"`
		Levels   []string `json:"levels"`
	}
	client.json(http.MethodGet, fmt.Sprintf("/api/v1/affiliates/%d/summary", root.ID), nil, http.StatusOK, &summary)
	assert.Equal(t, "50.00", summary.Approved)
	assert.Equal(t, "50.00", summary.Levels[1])

	resp, raw := client.do(http.MethodGet, "/api/v1/reports/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "1", resp.Header.Get("X-Export-Version"))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")
	rows, err := export.ReadAll(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	client.json(http.MethodGet, "/api/v1/reports/verify", nil, http.StatusOK, nil)
	client.json(http.MethodGet, "/api/v1/reports/affiliates?scope=bogus", nil, http.StatusBadRequest, nil)
}

func TestSimulationEndpoints(t *testing.T) {
	client := newTestApp(t)
	client.login()

	client.json(http.MethodPost, "/api/v1/simulations", map[string]interface{}{
		"veteran_opt_ins": 10, "hierarchy_randomness": 50,
	}, http.StatusBadRequest, nil)

	var created struct {
		Result struct {
			RunID          string `json:"run_id"`
			AffiliatesUsed int    `json:"affiliates_used"`
			SalesCreated   int    `json:"sales_created"`
		} `json:"result"`
		Verify struct {
			Mismatches []interface{} `json:"mismatches"`
		} `json:"verify"`
	}
	client.json(http.MethodPost, "/api/v1/simulations", map[string]interface{}{
		"veteran_opt_ins": 1000, "hierarchy_randomness": 0, "seed": 5, "verify": true,
	}, http.StatusCreated, &created)
	assert.Equal(t, 5, created.Result.AffiliatesUsed)
	assert.Equal(t, 35, created.Result.SalesCreated)
	assert.Empty(t, created.Verify.Mismatches)

	var page struct {
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	client.json(http.MethodGet, "/api/v1/affiliates?scope=run:"+created.Result.RunID, nil, http.StatusOK, &page)
	assert.Equal(t, int64(5), page.Meta.Total)
	client.json(http.MethodGet, "/api/v1/affiliates", nil, http.StatusOK, &page)
	assert.Zero(t, page.Meta.Total)

	client.json(http.MethodDelete, "/api/v1/simulations/"+created.Result.RunID, nil, http.StatusOK, nil)
	client.json(http.MethodGet, "/api/v1/affiliates?scope=synthetic", nil, http.StatusOK, &page)
	assert.Zero(t, page.Meta.Total)

	client.json(http.MethodGet, "/api/v1/simulations/missing", nil, http.StatusNotFound, nil)
}

func TestMetricsEndpoint(t *testing.T) {
	client := newTestApp(t)

	resp, raw := client.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")
}
