//go:build integration

package app_test

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/bissquit/healthboard/internal/app"
	"github.com/bissquit/healthboard/internal/config"
	"github.com/bissquit/healthboard/internal/pkg/postgres"
	"github.com/bissquit/healthboard/internal/testutil"
	"github.com/bissquit/healthboard/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	operatorEmail    = "ops@example.com"
	operatorPassword = "correct-horse"
	viewerEmail      = "viewer@example.com"
	viewerPassword   = "battery-staple"
)

var (
	testApp    *app.App
	testServer *httptest.Server
)

func hash(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	pg, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}

	if err := postgres.Migrate(migrations.FS, pg.ConnectionString, postgres.MigrateUp); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.MetricsPort = "0"
	cfg.Database.URL = pg.ConnectionString
	cfg.Database.ConnectAttempts = 3
	cfg.Log.Level = "error"
	cfg.JWT.SecretKey = "integration-test-secret"
	cfg.Checks.Enabled = false
	cfg.Checks.RegisterOnStart = true
	cfg.Checks.StorageDir = os.TempDir()
	cfg.Operators = []config.OperatorConfig{
		{Email: operatorEmail, PasswordHash: hash(operatorPassword), Role: "operator"},
		{Email: viewerEmail, PasswordHash: hash(viewerPassword), Role: "viewer"},
	}

	testApp, err = app.New(&cfg)
	if err != nil {
		log.Fatalf("create app: %v", err)
	}
	if err := testApp.Start(ctx); err != nil {
		log.Fatalf("start app: %v", err)
	}

	testServer = httptest.NewServer(testApp.Router())

	code := m.Run()

	testServer.Close()
	if err := testApp.Shutdown(ctx); err != nil {
		log.Printf("shutdown app: %v", err)
	}
	if err := pg.Terminate(ctx); err != nil {
		log.Printf("terminate postgres: %v", err)
	}
	os.Exit(code)
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type service struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type event struct {
	ID         string   `json:"id"`
	ServiceIDs []string `json:"service_ids"`
	Status     string   `json:"status"`
	PeakStatus string   `json:"peak_status"`
	Summary    string   `json:"summary"`
}

func TestProbes(t *testing.T) {
	client := testutil.NewClient(testServer.URL)

	for _, path := range []string{"/healthz", "/readyz", "/version", "/api/openapi.yaml"} {
		resp, err := client.GET(path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

func TestBuiltinServicesRegistered(t *testing.T) {
	client := testutil.NewClientWithValidation(t, testServer.URL)

	resp, err := client.GET("/api/v1/services/database")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body envelope[service]
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, "database", body.Data.Slug)
}

func TestWriteEndpointsRequireOperator(t *testing.T) {
	client := testutil.NewClientWithValidation(t, testServer.URL)
	req := map[string]string{"name": "Search", "slug": "search-auth"}

	resp, err := client.POST("/api/v1/services", req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	client.LoginAs(t, viewerEmail, viewerPassword)
	resp, err = client.POST("/api/v1/services", req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestIncidentFlow(t *testing.T) {
	client := testutil.NewClientWithValidation(t, testServer.URL)
	client.LoginAs(t, operatorEmail, operatorPassword)

	resp, err := client.POST("/api/v1/services", map[string]any{"name": "Payments", "slug": "payments"})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created envelope[service]
	testutil.DecodeJSON(t, resp, &created)
	assert.Equal(t, "green", created.Data.Status)

	resp, err = client.POST("/api/v1/events", map[string]any{
		"services": []string{"payments"},
		"status":   "red",
		"message":  "card processing is failing",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var opened envelope[event]
	testutil.DecodeJSON(t, resp, &opened)
	assert.Equal(t, "red", opened.Data.Status)
	assert.Equal(t, []string{created.Data.ID}, opened.Data.ServiceIDs)

	resp, err = client.GET("/api/v1/services/payments")
	require.NoError(t, err)
	var degraded envelope[service]
	testutil.DecodeJSON(t, resp, &degraded)
	assert.Equal(t, "red", degraded.Data.Status)

	resp, err = client.POST("/api/v1/events/"+opened.Data.ID+"/updates", map[string]any{
		"status":  "green",
		"message": "resolved",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.GET("/api/v1/events/" + opened.Data.ID)
	require.NoError(t, err)
	var resolved envelope[event]
	testutil.DecodeJSON(t, resp, &resolved)
	assert.Equal(t, "green", resolved.Data.Status)
	assert.Equal(t, "red", resolved.Data.PeakStatus)

	resp, err = client.GET("/api/v1/events/" + opened.Data.ID + "/updates")
	require.NoError(t, err)
	var updates envelope[[]map[string]any]
	testutil.DecodeJSON(t, resp, &updates)
	assert.Len(t, updates.Data, 2)

	resp, err = client.DELETE("/api/v1/events/" + opened.Data.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.GET("/api/v1/events/" + opened.Data.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestChecksReportIntoServices(t *testing.T) {
	ctx := context.Background()

	results := testApp.Checks().RunOnce(ctx)
	require.NotEmpty(t, results)

	for _, res := range results {
		svc, err := testApp.Health().GetServiceBySlug(ctx, res.Slug)
		require.NoError(t, err, res.Slug)
		assert.Equal(t, res.Status, svc.Status, "%s: %s", res.Slug, res.Message)
	}

	client := testutil.NewClientWithValidation(t, testServer.URL)
	resp, err := client.GET("/api/v1/checks")
	require.NoError(t, err)
	assert.Contains(t, []int{http.StatusOK, http.StatusInternalServerError}, resp.StatusCode)
	_ = resp.Body.Close()
}
