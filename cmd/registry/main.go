package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmanzanog/instrument-registry/internal/application"
	"github.com/jmanzanog/instrument-registry/internal/domain"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/config"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/marketdata/yfinance"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/persistence/memory"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/persistence/sqldb"
	httpHandler "github.com/jmanzanog/instrument-registry/internal/interfaces/http"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/sijms/go-ora/v2"
)

// setupLogger configures and returns a structured logger with source information
func setupLogger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLevel(level),
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initializeDatabase opens the configured store and runs migrations. The
// returned closer is nil for the in-memory store.
func initializeDatabase(cfg *config.Config) (domain.InstrumentRepository, io.Closer, error) {
	var db *sql.DB
	var dialect sqldb.Dialect
	var err error

	switch cfg.DBDriver {
	case config.DBDriverMemory:
		slog.Warn("Using in-memory store, data is lost on restart")
		return memory.NewInstrumentRepository(), nil, nil
	case config.DBDriverSQLite:
		db, err = sql.Open("sqlite3", cfg.DBDSN)
		dialect = &sqldb.SQLiteDialect{}
	case config.DBDriverPostgres:
		db, err = sql.Open("pgx", cfg.DBDSN)
		dialect = &sqldb.PostgresDialect{}
	case config.DBDriverOracle:
		db, err = sql.Open("oracle", cfg.DBDSN)
		dialect = &sqldb.OracleDialect{}
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.DBDriver)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.DBDriver == config.DBDriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	wrapper := sqldb.New(db, dialect)

	if err := wrapper.Dialect.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database ready", "driver", cfg.DBDriver)
	return sqldb.NewInstrumentRepository(wrapper), db, nil
}

// buildServer creates and configures the HTTP server with all routes and handlers.
// priceRefresher may be nil.
func buildServer(cfg *config.Config, instrumentService *application.InstrumentService, priceRefresher httpHandler.PriceRefresher) *http.Server {
	httpHandler.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery(), httpHandler.RequestLogging(), httpHandler.CORS(cfg.CORSOrigins))

	handler := httpHandler.NewHandler(instrumentService, priceRefresher)
	httpHandler.SetupRoutes(router, handler)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// buildPriceSync returns nil when no market data service is configured.
func buildPriceSync(cfg *config.Config, repo domain.InstrumentRepository) *application.PriceSync {
	if cfg.MarketDataURL == "" {
		slog.Info("MARKET_DATA_URL not set, price refresh disabled")
		return nil
	}
	slog.Info("Using market data service", "url", cfg.MarketDataURL)
	return application.NewPriceSync(repo, yfinance.NewClientWithBaseURL(cfg.MarketDataURL))
}

// App wraps the application components for easier testing
type App struct {
	Server        *http.Server
	PriceUpdater  *application.PriceUpdater
	DB            io.Closer
	CancelContext context.CancelFunc
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down application...")

	if a.PriceUpdater != nil {
		a.PriceUpdater.Stop()
	}
	a.CancelContext()

	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("database close error: %w", err)
		}
	}

	return nil
}

// run contains the main application logic without os.Exit calls
func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogger(cfg.LogLevel)

	repo, db, err := initializeDatabase(cfg)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}

	instrumentService := application.NewInstrumentService(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &App{
		DB:            db,
		CancelContext: cancel,
	}

	var refresher httpHandler.PriceRefresher
	if priceSync := buildPriceSync(cfg, repo); priceSync != nil {
		refresher = priceSync
		app.PriceUpdater = application.NewPriceUpdater(priceSync, cfg.PriceRefreshInterval)
		go app.PriceUpdater.Start(ctx)
	}

	app.Server = buildServer(cfg, instrumentService, refresher)

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "host", cfg.ServerHost, "port", cfg.ServerPort)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		slog.Info("Received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("Server exited gracefully")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}
