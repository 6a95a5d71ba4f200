package handler

import (
	"net/http"

	"creator-ledger/config"
	"creator-ledger/internal/adapter/http/middleware"
	"creator-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminRole is the JWT role required on the admin group.
const AdminRole = "admin"

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WithdrawalSvc  ports.WithdrawalService
	BudgetQuerySvc ports.BudgetQueryService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Processor      config.ProcessorConfig
	MetricsHandler http.Handler // nil = no /metrics route
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimiter == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	budgetHandler := NewBudgetHandler(deps.BudgetQuerySvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc, deps.Logger)

	v1 := r.Group("/api/v1")

	// --- Operator routes (JWT, admin role) ---
	admin := v1.Group("/admin", middleware.JWTAuth(deps.TokenSvc, AdminRole, deps.Logger))
	{
		admin.GET("/campaigns/:id/budget", rl("admin_read"), budgetHandler.GetBudget)
		admin.GET("/campaigns/:id/ledger", rl("admin_read"), budgetHandler.ListLedger)
		admin.GET("/creators/:id/withdrawals", rl("admin_read"), withdrawalHandler.ListByCreator)
		admin.POST("/withdrawals/:id/approve", rl("admin_write"), withdrawalHandler.Approve)
		admin.POST("/withdrawals/:id/fail", rl("admin_write"), withdrawalHandler.Fail)
	}

	// --- Payment processor callbacks (HMAC) ---
	processor := v1.Group("/processor", middleware.HMACAuth(deps.SigSvc, deps.NonceStore, deps.Processor, deps.Logger))
	{
		processor.POST("/withdrawals/:id", rl("processor"), withdrawalHandler.ProcessorCallback)
	}

	return r
}
