package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/config"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/handler"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/bank"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/cache"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/memstore"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/notify"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/observability"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/postgres"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/redistoken"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/resilience"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/port"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("bank_api_url", cfg.BankAPIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("postgres", cfg.PGHost != ""),
		zap.Bool("redis_tokens", cfg.RedisAddr != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "erp-bankhub")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	cb := resilience.NewCircuitBreaker("bank")

	// --- Persistence ---
	var (
		slipStore      port.SlipStore
		statementStore port.StatementStore
		auditSink      port.AuditSink
		credStore      port.CredentialStore
		accountStore   port.AccountStore
		agreementStore port.AgreementStore
		clientStore    port.ClientStore
		orderStore     port.OrderStore
		paymentStore   port.PaymentStore
		userStore      port.UserStore
	)

	if cfg.PGHost != "" {
		db, err := postgres.Connect(postgres.ConnectionInfo{
			Host:     cfg.PGHost,
			Port:     cfg.PGPort,
			Username: cfg.PGUser,
			Password: cfg.PGPassword,
			DBName:   cfg.PGDatabase,
			SSLMode:  cfg.PGSSLMode,
		})
		if err != nil {
			logger.Fatal("postgres connection failed", zap.Error(err))
		}
		defer db.Close()
		logger.Info("using postgres persistence", zap.String("host", cfg.PGHost))

		slipStore = postgres.NewSlipStore(db)
		statementStore = postgres.NewStatementStore(db)
		auditSink = postgres.NewAuditStore(db)
		configStore := postgres.NewConfigStore(db)
		credStore, accountStore, agreementStore = configStore, configStore, configStore
		erpStore := postgres.NewERPStore(db)
		clientStore, orderStore, paymentStore, userStore = erpStore, erpStore, erpStore, erpStore
	} else {
		logger.Warn("no postgres configured, using in-memory stores")
		slipStore = memstore.NewSlipStore()
		statementStore = memstore.NewStatementStore()
		auditSink = memstore.NewAuditSink()
		configStore := memstore.NewConfigStore()
		credStore, accountStore, agreementStore = configStore, configStore, configStore
		erpStore := memstore.NewERPStore()
		clientStore, orderStore, paymentStore, userStore = erpStore, erpStore, erpStore, erpStore
	}

	// --- Token store ---
	var tokenStore port.TokenStore
	if cfg.RedisAddr != "" {
		store, err := redistoken.New(redistoken.ConnectionInfo{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Timeout:  5 * time.Second,
		}, logger)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer store.Close()
		logger.Info("using redis token store", zap.String("addr", cfg.RedisAddr))
		tokenStore = store
	} else {
		tokenStore = service.NewMemoryTokenStore(cache.New[domain.Token](cfg.TokenSweepGap))
	}

	// --- Bank clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	authClient := bank.NewAuthClient(httpClient, cfg.BankAuthURL, logger)

	tokenSvc := service.NewTokenService(credStore, authClient, tokenStore, metrics, logger)
	bankClient := bank.NewClient(httpClient, cfg.BankAPIURL, tokenSvc, cb, resilienceCfg, metrics, logger)

	// --- Services ---
	settlementSvc := service.NewSettlementService(
		slipStore, orderStore, paymentStore, userStore,
		notify.NewZapNotifier(logger), auditSink, metrics, logger,
	)
	boletoSvc := service.NewBoletoService(
		bankClient, slipStore, credStore, accountStore, agreementStore,
		orderStore, clientStore, auditSink, settlementSvc, metrics, logger,
	)
	statementSvc := service.NewStatementService(
		bankClient, credStore, accountStore,
		cache.New[[]domain.RawStatementEntry](cfg.MonthlyCacheSweep), metrics, logger,
	)
	reconcileSvc := service.NewReconcileService(clientStore, statementStore, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Boletos:    boletoSvc,
		Statements: statementSvc,
		Reconciler: reconcileSvc,
		Settlement: settlementSvc,
		Tokens:     tokenSvc,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
