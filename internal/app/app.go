// Package app assembles the kernel from configuration: storage backend,
// ephemeral stores, services and the HTTP router.
package app

import (
	"context"
	"fmt"
	"net/http"

	"vending-kernel/api"
	"vending-kernel/config"
	"vending-kernel/internal/adapter/http/dto"
	httpHandler "vending-kernel/internal/adapter/http/handler"
	"vending-kernel/internal/adapter/http/middleware"
	"vending-kernel/internal/adapter/storage/memory"
	pgStorage "vending-kernel/internal/adapter/storage/postgres"
	redisStorage "vending-kernel/internal/adapter/storage/redis"
	"vending-kernel/internal/core/ports"
	"vending-kernel/internal/service"
	"vending-kernel/pkg/logger"
	"vending-kernel/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App is a fully wired kernel.
type App struct {
	Router *gin.Engine

	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type repositories struct {
	wallets  ports.WalletRepository
	products ports.ProductRepository
	orders   ports.OrderRepository
	payments ports.PaymentRepository
	settings ports.SettingRepository
}

type stores struct {
	conversations ports.ConversationStore
	attempts      ports.AttemptGuard
	nonces        ports.NonceStore
	rateLimit     ports.RateLimitStore
}

// Build wires every component named by cfg. The returned App must be closed.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{}
	fail := func(err error) (*App, error) {
		a.Close()
		return nil, err
	}

	sealKey, err := service.DeriveKey(cfg.Security.MasterKey, service.KeyPurposeCredentialSealing)
	if err != nil {
		return fail(err)
	}
	sealer, err := service.NewAESCredentialSealer(sealKey)
	if err != nil {
		return fail(err)
	}
	tokenKey, err := service.DeriveKey(cfg.Security.MasterKey, service.KeyPurposeActionTokens)
	if err != nil {
		return fail(err)
	}

	var checkers []ports.HealthChecker
	var repos repositories
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, logger.Component(log, "postgres"))
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, pool.Close)
		tx := pgStorage.NewTransactor(pool, cfg.Database.TxRetries, logger.Component(log, "postgres"))
		repos = repositories{
			wallets:  pgStorage.NewWalletRepo(pool, tx),
			products: pgStorage.NewProductRepo(pool, tx, sealer),
			orders:   pgStorage.NewOrderRepo(pool, sealer),
			payments: pgStorage.NewPaymentRepo(pool, tx),
			settings: pgStorage.NewSettingRepo(pool),
		}
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
	default:
		wallets := memory.NewWalletRepo()
		repos = repositories{
			wallets:  wallets,
			products: memory.NewProductRepo(),
			orders:   memory.NewOrderRepo(),
			payments: memory.NewPaymentRepo(wallets),
			settings: memory.NewSettingRepo(),
		}
		log.Warn().Msg("storage driver is memory, state is lost on restart")
	}

	var st stores
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		st = redisStores(rdb, cfg)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	} else {
		st = stores{
			conversations: memory.NewConversationStore(cfg.Conversation.TTL),
			attempts:      memory.NewAttemptGuard(),
			nonces:        memory.NewNonceStore(),
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewKernelMetrics(reg)

	sigSvc := service.NewHMACSignatureService(cfg.Gateway.Secret)
	tokenSvc := service.NewJWTActionTokenService(tokenKey, cfg.Security.ActionTokenTTL, cfg.Security.Issuer)
	notifier, err := service.NewGatewayNotifier(service.NotifierConfig{
		URL:          cfg.Gateway.NotifyURL,
		AccessKey:    cfg.Gateway.AccessKey,
		MaxAttempts:  cfg.Gateway.MaxAttempts,
		RetryBackoff: cfg.Gateway.RetryBackoff,
	}, sigSvc, &http.Client{Timeout: cfg.Gateway.Timeout}, m, logger.Component(log, "notifier"))
	if err != nil {
		return fail(err)
	}
	if cfg.Gateway.NotifyURL == "" {
		log.Warn().Msg("gateway.notify_url is empty, notifications are dropped")
	}

	privilege := service.NewPrivilegeService(cfg.Admins.IDs, repos.wallets)
	ledger := service.NewLedgerService(repos.wallets, logger.Component(log, "ledger"))
	stock := service.NewStockService(repos.products, logger.Component(log, "stock"))
	catalog := service.NewCatalogService(repos.products, logger.Component(log, "catalog"))
	settings := service.NewSettingsService(repos.settings, logger.Component(log, "settings"))
	admin := service.NewAdminService(repos.wallets, repos.orders, repos.payments, ledger, notifier, logger.Component(log, "admin"))
	purchases := service.NewPurchaseService(ledger, stock, repos.products, repos.orders, st.attempts, notifier, m,
		service.PurchaseConfig{AttemptTTL: cfg.Purchase.AttemptTTL, CurrencySymbol: cfg.Currency.Symbol},
		logger.Component(log, "purchase"))
	payments := service.NewPaymentService(repos.payments, ledger, privilege, tokenSvc, notifier, m,
		cfg.Currency.Symbol, logger.Component(log, "payment"))
	flows := service.NewConversationService(st.conversations, privilege, catalog, stock, admin, settings, payments, m,
		logger.Component(log, "conversation"))

	a.Router = httpHandler.SetupRouter(httpHandler.RouterDeps{
		LedgerSvc:       ledger,
		CatalogSvc:      catalog,
		PurchaseSvc:     purchases,
		PaymentSvc:      payments,
		SettingsSvc:     settings,
		ConversationSvc: flows,
		AdminSvc:        admin,
		Privilege:       privilege,
		SigSvc:          sigSvc,
		NonceStore:      st.nonces,
		GatewayKey:      cfg.Gateway.AccessKey,
		RateLimitStore:  st.rateLimit,
		RateLimitRules:  rateLimitRules(cfg.RateLimit),
		HealthCheckers:  checkers,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		OpenAPISpec:     api.OpenAPI,
		Currency:        dto.Currency{Code: cfg.Currency.Code, Symbol: cfg.Currency.Symbol},
		Logger:          logger.Component(log, "http"),
	})
	return a, nil
}

func redisStores(rdb *goredis.Client, cfg *config.Config) stores {
	st := stores{
		attempts: redisStorage.NewAttemptGuard(rdb),
		nonces:   redisStorage.NewNonceStore(rdb),
	}
	if cfg.RateLimit.Enabled {
		st.rateLimit = redisStorage.NewRateLimitStore(rdb)
	}
	if cfg.Conversation.Store == "redis" {
		st.conversations = redisStorage.NewConversationStore(rdb, cfg.Conversation.TTL)
	} else {
		st.conversations = memory.NewConversationStore(cfg.Conversation.TTL)
	}
	return st
}

// rateLimitRules overrides the default limits with configured ones.
func rateLimitRules(cfg config.RateLimitConfig) map[string]middleware.RateLimitRule {
	rules := middleware.DefaultRateLimitRules()
	set := func(group string, perMinute int64) {
		if perMinute > 0 {
			r := rules[group]
			r.Limit = perMinute
			rules[group] = r
		}
	}
	set(middleware.GroupPurchases, cfg.PurchasesPerMinute)
	set(middleware.GroupFlows, cfg.FlowInputsPerMinute)
	set(middleware.GroupReads, cfg.ReadsPerMinute)
	set(middleware.GroupAdmin, cfg.AdminPerMinute)
	return rules
}
