package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/platform/db"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:                env,
		CORSOrigins:        []string{"http://localhost:3000"},
		TokenTTL:           time.Hour,
		RequestTimeout:     5 * time.Second,
		PurchaseTxTimeout:  time.Second,
		PurchaseLinePolicy: config.LinePolicyLenient,
		BodyLimit:          "1M",
	}
}

func TestNewServer_RegistersRoutes(t *testing.T) {
	e, err := newServer(testConfig("development"), nil, []byte("k"), bcrypt.MinCost, zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	want := []string{
		"POST /api/auth/login",
		"GET /api/patients", "POST /api/patients", "DELETE /api/patients/:id",
		"GET /api/doctors", "POST /api/doctors",
		"GET /api/departments",
		"GET /api/pharmacy", "POST /api/pharmacy", "DELETE /api/pharmacy/:id",
		"GET /api/items",
		"GET /api/treatments", "POST /api/treatments", "DELETE /api/treatments/:id",
		"GET /api/payments", "POST /api/payments", "DELETE /api/payments/:id",
		"GET /api/payments/summary",
		"GET /api/bills", "POST /api/bills", "GET /api/bills/:id", "GET /api/bills/:id/items", "DELETE /api/bills/:id",
		"POST /api/purchases", "GET /api/purchases/patient/:id",
		"GET /health", "GET /health/db",
	}
	for _, route := range want {
		if !registered[route] {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestNewServer_HealthAndLogin(t *testing.T) {
	e, err := newServer(testConfig("production"), nil, []byte("0123456789abcdef0123456789abcdef"), bcrypt.MinCost, zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health 200 without token, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"staff","password":"staff123"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Token == "" {
		t.Fatal("expected token in login response")
	}
}

func TestNewServer_ProductionRequiresToken(t *testing.T) {
	e, err := newServer(testConfig("production"), nil, []byte("0123456789abcdef0123456789abcdef"), bcrypt.MinCost, zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/purchases", strings.NewReader(`{}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestResolveSigningKey_Configured(t *testing.T) {
	key, random, err := resolveSigningKey("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if random {
		t.Error("expected random=false when a key is configured")
	}
	if string(key) != "0123456789abcdef0123456789abcdef" {
		t.Errorf("unexpected key %q", key)
	}
}

func TestResolveSigningKey_RandomGeneration(t *testing.T) {
	key, random, err := resolveSigningKey("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !random || len(key) != 32 {
		t.Errorf("expected random 32-byte key, got random=%v len=%d", random, len(key))
	}
	key2, _, _ := resolveSigningKey("")
	if hex.EncodeToString(key) == hex.EncodeToString(key2) {
		t.Error("two random keys should not be identical")
	}
}

func TestMigrationFiles_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles(""), ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Name() == "001_clinic.sql" {
			found = true
		}
	}
	if !found {
		t.Error("expected 001_clinic.sql in embedded migrations")
	}
}

func TestPrintStatus(t *testing.T) {
	files := fstest.MapFS{
		"001_clinic.sql": {Data: []byte("SELECT 1;")},
		"002_extra.sql":  {Data: []byte("SELECT 2;")},
	}
	migs, err := db.NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	statuses := db.BuildStatus(migs, map[int]time.Time{1: at})

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	printStatus(cmd, statuses)

	out := buf.String()
	if !strings.Contains(out, "applied") || !strings.Contains(out, "2026-01-02 03:04:05") {
		t.Errorf("expected applied row, got:\n%s", out)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("expected pending row, got:\n%s", out)
	}
}
