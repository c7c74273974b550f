package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmanzanog/instrument-registry/internal/application"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/config"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/persistence/memory"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/persistence/sqldb"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestSetupLogger(t *testing.T) {
	originalLogger := slog.Default()
	defer slog.SetDefault(originalLogger)

	logger := setupLogger("debug")

	if logger == nil {
		t.Fatal("setupLogger returned nil logger")
	}

	if slog.Default() != logger {
		t.Error("setupLogger did not set the logger as default")
	}

	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level to be enabled")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitializeDatabase_SQLite(t *testing.T) {
	cfg := &config.Config{
		DBDriver: config.DBDriverSQLite,
		DBDSN:    "file:" + filepath.Join(t.TempDir(), "registry.db"),
	}

	repo, closer, err := initializeDatabase(cfg)
	if err != nil {
		t.Fatalf("initializeDatabase failed: %v", err)
	}
	defer func() { _ = closer.Close() }()

	if _, ok := repo.(*sqldb.InstrumentRepository); !ok {
		t.Errorf("expected *sqldb.InstrumentRepository, got %T", repo)
	}

	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}

	instruments, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(instruments) != 0 {
		t.Errorf("expected empty table, got %d rows", len(instruments))
	}
}

func TestInitializeDatabase_Memory(t *testing.T) {
	repo, closer, err := initializeDatabase(&config.Config{DBDriver: config.DBDriverMemory})
	if err != nil {
		t.Fatalf("initializeDatabase failed: %v", err)
	}
	if closer != nil {
		t.Errorf("expected no closer for memory store")
	}
	if _, ok := repo.(*memory.InstrumentRepository); !ok {
		t.Errorf("expected *memory.InstrumentRepository, got %T", repo)
	}
}

func TestInitializeDatabase_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	repo, closer, err := initializeDatabase(&config.Config{DBDriver: config.DBDriverPostgres, DBDSN: connStr})
	if err != nil {
		t.Fatalf("initializeDatabase failed: %v", err)
	}
	defer func() { _ = closer.Close() }()

	if err := repo.Ping(ctx); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestInitializeDatabase_UnsupportedDriver(t *testing.T) {
	cfg := &config.Config{
		DBDriver: "mysql",
		DBDSN:    "some-connection-string",
	}

	repo, _, err := initializeDatabase(cfg)

	if err == nil {
		t.Fatal("expected error for unsupported driver, got nil")
	}

	if repo != nil {
		t.Errorf("expected nil repository, got %v", repo)
	}

	expectedErrMsg := "unsupported database driver: mysql"
	if err.Error() != expectedErrMsg {
		t.Errorf("expected error message %q, got %q", expectedErrMsg, err.Error())
	}
}

func TestInitializeDatabase_InvalidDSN(t *testing.T) {
	cfg := &config.Config{
		DBDriver: config.DBDriverPostgres,
		DBDSN:    "invalid-connection-string",
	}

	repo, _, err := initializeDatabase(cfg)

	if err == nil {
		t.Fatal("expected error for invalid DSN, got nil")
	}

	if repo != nil {
		t.Errorf("expected nil repository, got %v", repo)
	}
}

func TestBuildServer(t *testing.T) {
	service := application.NewInstrumentService(memory.NewInstrumentRepository())

	cfg := &config.Config{
		ServerHost:  "localhost",
		ServerPort:  "8080",
		CORSOrigins: []string{"http://localhost:4200"},
	}

	server := buildServer(cfg, service, nil)

	if server.Addr != "localhost:8080" {
		t.Errorf("expected server address %q, got %q", "localhost:8080", server.Addr)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	w := httptest.NewRecorder()
	server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status code 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:4200" {
		t.Errorf("expected CORS header, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	// validators must be registered for the create endpoint to reject bad enums
	body := `{"short_name":"X","full_name":"X","instrument_type":"Stock","original_currency":"USD","interest_currency":"USD"}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/instruments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	server.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status code 400, got %d", w.Code)
	}
}

func TestBuildServer_DifferentPorts(t *testing.T) {
	testCases := []struct {
		name string
		host string
		port string
		want string
	}{
		{
			name: "default localhost",
			host: "localhost",
			port: "8080",
			want: "localhost:8080",
		},
		{
			name: "all interfaces",
			host: "0.0.0.0",
			port: "3000",
			want: "0.0.0.0:3000",
		},
	}

	service := application.NewInstrumentService(memory.NewInstrumentRepository())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{
				ServerHost: tc.host,
				ServerPort: tc.port,
			}

			server := buildServer(cfg, service, nil)

			if server.Addr != tc.want {
				t.Errorf("expected server address %q, got %q", tc.want, server.Addr)
			}
		})
	}
}

func TestBuildPriceSync(t *testing.T) {
	repo := memory.NewInstrumentRepository()

	if ps := buildPriceSync(&config.Config{}, repo); ps != nil {
		t.Error("expected price sync to be disabled without MARKET_DATA_URL")
	}

	market := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []any{}, "errors": []any{}})
	}))
	defer market.Close()

	ps := buildPriceSync(&config.Config{MarketDataURL: market.URL}, repo)
	if ps == nil {
		t.Fatal("expected price sync to be enabled")
	}

	report, err := ps.RefreshPrices(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if report.Symbols != 0 {
		t.Errorf("expected no symbols for an empty store, got %d", report.Symbols)
	}
}

func TestApp_Shutdown(t *testing.T) {
	service := application.NewInstrumentService(memory.NewInstrumentRepository())
	_, cancel := context.WithCancel(context.Background())

	app := &App{
		Server:        buildServer(&config.Config{ServerHost: "localhost", ServerPort: "0"}, service, nil),
		CancelContext: cancel,
	}

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	if err := app.Shutdown(ctx); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}
