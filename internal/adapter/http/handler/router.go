package handler

import (
	"net/http"

	"vending-kernel/internal/adapter/http/dto"
	"vending-kernel/internal/adapter/http/middleware"
	"vending-kernel/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc       ports.LedgerService
	CatalogSvc      ports.CatalogService
	PurchaseSvc     ports.PurchaseService
	PaymentSvc      ports.PaymentService
	SettingsSvc     ports.SettingsService
	ConversationSvc ports.ConversationService
	AdminSvc        ports.AdminService
	Privilege       ports.PrivilegeChecker
	SigSvc          ports.SignatureService
	NonceStore      ports.NonceStore
	GatewayKey      string
	RateLimitStore  ports.RateLimitStore // nil = rate limiting disabled
	RateLimitRules  map[string]middleware.RateLimitRule
	HealthCheckers  []ports.HealthChecker
	MetricsHandler  http.Handler // nil = /metrics not mounted
	OpenAPISpec     []byte
	Currency        dto.Currency
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep: pings every configured backend)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	docs := NewDocsHandler(deps.OpenAPISpec)
	swagger := r.Group("/swagger")
	{
		swagger.GET("", docs.SwaggerUI)
		swagger.GET("/spec", docs.SwaggerSpec)
	}

	rules := deps.RateLimitRules
	if rules == nil {
		rules = middleware.DefaultRateLimitRules()
	}

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Gateway-authenticated routes, always on behalf of one actor ---
	v1 := r.Group("/api/v1",
		middleware.GatewayAuth(deps.GatewayKey, deps.SigSvc, deps.NonceStore, deps.Logger),
		middleware.ActorIdentity(),
		middleware.RequireJSON(),
		middleware.AdminAudit(deps.Logger),
	)

	wallet := NewWalletHandler(deps.LedgerSvc, deps.Currency)
	products := NewProductHandler(deps.CatalogSvc, deps.Currency)
	purchases := NewPurchaseHandler(deps.PurchaseSvc, deps.Currency)
	payments := NewPaymentHandler(deps.PaymentSvc, deps.Currency)
	settings := NewSettingsHandler(deps.SettingsSvc)
	flows := NewConversationHandler(deps.ConversationSvc)
	admin := NewAdminHandler(deps.AdminSvc, deps.Currency)

	reads := rl(middleware.GroupReads)
	v1.GET("/wallet", reads, wallet.GetWallet)
	v1.GET("/products", reads, products.ListProducts)
	v1.GET("/products/:id", reads, products.GetProduct)
	v1.POST("/purchases", rl(middleware.GroupPurchases), purchases.Purchase)
	v1.GET("/orders", reads, purchases.ListOrders)
	v1.GET("/payments", reads, payments.ListMine)
	v1.POST("/payments/decisions", rl(middleware.GroupAdmin), payments.DecideWithToken)
	v1.GET("/settings/:key", reads, settings.GetText)

	conversation := v1.Group("/conversation", rl(middleware.GroupFlows))
	{
		conversation.GET("", flows.Current)
		conversation.DELETE("", flows.Cancel)
		conversation.POST("/flows", flows.Start)
		conversation.POST("/inputs", flows.Input)
	}

	// --- Privileged actors only ---
	adminGroup := v1.Group("/admin", middleware.RequireAdmin(deps.Privilege, deps.Logger), rl(middleware.GroupAdmin))
	{
		adminGroup.GET("/overview", admin.Overview)
		adminGroup.GET("/users", admin.ListUsers)
		adminGroup.PUT("/users/:actor_id/admin", admin.SetAdmin)
		adminGroup.GET("/orders", admin.ListOrders)
		adminGroup.GET("/payments", payments.ListByStatus)
		adminGroup.GET("/payments/:id", payments.Get)
		adminGroup.POST("/payments/:id/approve", payments.Approve)
		adminGroup.POST("/payments/:id/reject", payments.Reject)
	}

	return r
}
