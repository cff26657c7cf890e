// internal/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	router "cryptocard-ledger/internal/api"
	"cryptocard-ledger/internal/api/handler"
	apimw "cryptocard-ledger/internal/api/middleware"
	"cryptocard-ledger/internal/config"
	"cryptocard-ledger/internal/notify"
	"cryptocard-ledger/internal/payment"
	"cryptocard-ledger/internal/repository"
	"cryptocard-ledger/internal/repository/file"
	"cryptocard-ledger/internal/repository/memory"
	"cryptocard-ledger/internal/repository/postgres"
	"cryptocard-ledger/internal/service"
	"cryptocard-ledger/internal/store"
	"cryptocard-ledger/internal/util"
	"cryptocard-ledger/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB      // nil unless the postgres backend is selected
	Redis  *redis.Client // nil unless REDIS_ADDR is set

	// Repositories
	TransactionRepository repository.TransactionRepository
	WatchlistRepository   repository.WatchlistRepository

	Store *store.TransactionStore

	// Services
	LedgerService    service.LedgerService
	WatchlistService service.WatchlistService

	// Alerting
	Dispatcher *notify.Dispatcher
	Hub        *notify.Hub
	Watcher    *notify.Watcher

	// HTTP API
	HTTPHandler http.Handler

	stopHub context.CancelFunc
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize loads configuration from the environment and wires every
// component.
func (app *Application) Initialize(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	util.InitLogger(util.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format, AddSource: cfg.Log.AddSource})
	return app.InitializeWithConfig(ctx, cfg, util.GetLogger())
}

// InitializeWithConfig wires the application from an explicit configuration.
func (app *Application) InitializeWithConfig(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	app.Config = cfg
	app.Logger = logger
	app.Logger.Info("Application configuration loaded successfully.", "store_backend", cfg.StoreBackend)

	// 1. Repositories
	if err := app.initRepositories(ctx); err != nil {
		return err
	}

	// 2. Transaction store
	app.Store = store.New(app.TransactionRepository, app.Logger)
	if err := app.Store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load transaction log: %w", err)
	}

	// 3. Services
	var authorizer payment.Authorizer = payment.StaticAuthorizer{}
	if cfg.Payment.BaseURL != "" {
		authorizer = payment.NewHTTPAuthorizer(cfg.Payment, app.Logger)
	}
	app.LedgerService = service.NewLedgerService(app.Store, authorizer, cfg.CommissionRate, app.Logger)
	app.WatchlistService = service.NewWatchlistService(app.WatchlistRepository, app.Logger)
	app.Logger.Info("Services initialized.")

	// 4. Alerting
	hubCtx, stopHub := context.WithCancel(context.Background())
	app.stopHub = stopHub
	app.Hub = notify.NewHub(app.Logger, cfg.AlertOrigins)
	go app.Hub.Run(hubCtx)

	app.Dispatcher = notify.NewDispatcher(app.Logger, notify.LogSink{Logger: app.Logger}, app.Hub)
	watcher, err := notify.NewWatcher(app.LedgerService, app.Dispatcher, cfg.AlertSchedule, app.Logger)
	if err != nil {
		return err
	}
	app.Watcher = watcher

	// 5. Idempotency keys
	var idempotency apimw.IdempotencyStore
	if cfg.RedisAddr != "" {
		app.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		idempotency = apimw.NewRedisIdempotencyStore(app.Redis)
		app.Logger.Info("Redis connection established.")
	}

	// 6. HTTP handlers and router
	app.HTTPHandler = router.NewRouter(router.RouterConfig{
		Transactions:   handler.NewTransactionHandler(app.LedgerService, app.Logger),
		Admin:          handler.NewAdminHandler(app.LedgerService, app.Logger),
		Watchlist:      handler.NewWatchlistHandler(app.WatchlistService, app.Logger),
		AlertStream:    app.Hub,
		Verifier:       apimw.NewTokenVerifier(cfg.JWTSecret),
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         app.Logger,
	})
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

func (app *Application) initRepositories(ctx context.Context) error {
	switch app.Config.StoreBackend {
	case config.StorePostgres:
		database, err := db.NewPostgresDB(app.Config.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.DB = database
		if err := postgres.EnsureSchema(ctx, app.DB); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		app.TransactionRepository = postgres.NewTransactionRepository(app.DB)
		app.WatchlistRepository = postgres.NewWatchlistRepository(app.DB)
		app.Logger.Info("Database connection established.")
	case config.StoreFile:
		app.TransactionRepository = file.NewTransactionRepository(app.Config.StoreFile)
		app.WatchlistRepository = file.NewWatchlistRepository(app.Config.WatchlistFile)
	case config.StoreMemory:
		app.TransactionRepository = memory.NewTransactionRepository()
		app.WatchlistRepository = memory.NewWatchlistRepository()
	default:
		return fmt.Errorf("unknown store backend %q", app.Config.StoreBackend)
	}
	app.Logger.Info("Repositories initialized.")
	return nil
}

// Start begins background work.
func (app *Application) Start() {
	app.Watcher.Start()
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	var errs []error

	if app.Watcher != nil {
		if err := app.Watcher.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop watcher: %w", err))
		}
	}
	if app.stopHub != nil {
		app.stopHub()
	}
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close redis connection", "error", err)
			errs = append(errs, fmt.Errorf("failed to close redis connection: %w", err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			errs = append(errs, fmt.Errorf("failed to close database connection: %w", err))
		} else {
			app.Logger.Info("Database connection closed.")
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
