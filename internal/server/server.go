package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/pgbilling/internal/authorization"
	"github.com/smallbiznis/pgbilling/internal/config"
	"github.com/smallbiznis/pgbilling/internal/entitlement"
	"github.com/smallbiznis/pgbilling/internal/observability"
	obsmiddleware "github.com/smallbiznis/pgbilling/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/pgbilling/internal/observability/metrics"
	obstracing "github.com/smallbiznis/pgbilling/internal/observability/tracing"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	pricingdomain "github.com/smallbiznis/pgbilling/internal/pricing/domain"
	"github.com/smallbiznis/pgbilling/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	planSvc         plandomain.Service
	subscriptionSvc subscriptiondomain.Service
	pricingSvc      pricingdomain.Service
	evaluator       *entitlement.Evaluator
	authzSvc        authorization.Service
	quoteLimiter    *ratelimit.QuoteLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	PlanSvc         plandomain.Service
	SubscriptionSvc subscriptiondomain.Service
	PricingSvc      pricingdomain.Service
	Evaluator       *entitlement.Evaluator
	AuthzSvc        authorization.Service
	QuoteLimiter    *ratelimit.QuoteLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		planSvc:         p.PlanSvc,
		subscriptionSvc: p.SubscriptionSvc,
		pricingSvc:      p.PricingSvc,
		evaluator:       p.Evaluator,
		authzSvc:        p.AuthzSvc,
		quoteLimiter:    p.QuoteLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(OrgContext())
	api.Use(ActorContext())

	// -------- Plans --------
	api.GET("/plans", s.authorize(authorization.ObjectPlan, authorization.ActionPlanView), s.ListPlans)
	api.POST("/plans", s.authorize(authorization.ObjectPlan, authorization.ActionPlanCreate), s.CreatePlan)
	api.GET("/plans/:id", s.authorize(authorization.ObjectPlan, authorization.ActionPlanView), s.GetPlanByID)
	api.PATCH("/plans/:id", s.authorize(authorization.ObjectPlan, authorization.ActionPlanUpdate), s.UpdatePlan)
	api.DELETE("/plans/:id", s.authorize(authorization.ObjectPlan, authorization.ActionPlanArchive), s.ArchivePlan)

	// -------- Subscriptions --------
	api.GET("/subscriptions", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionView), s.ListSubscriptions)
	api.POST("/subscriptions", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionCreate), s.CreateSubscription)
	api.GET("/subscriptions/:id", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionView), s.GetSubscriptionByID)
	api.PATCH("/subscriptions/:id/usage", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionUpdate), s.UpdateSubscriptionUsage)
	api.POST("/subscriptions/:id/beds", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionUpdate), s.AddSubscriptionBeds)
	api.POST("/subscriptions/:id/branches", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionUpdate), s.AddSubscriptionBranches)
	api.POST("/subscriptions/:id/plan", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionUpdate), s.ChangeSubscriptionPlan)
	api.POST("/subscriptions/:id/cancel", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionCancel), s.CancelSubscription)

	// -------- Entitlements --------
	api.GET("/subscriptions/:id/entitlements", s.authorize(authorization.ObjectEntitlement, authorization.ActionEntitlementView), s.GetEntitlementSummary)
	api.POST("/subscriptions/:id/entitlements/check", s.authorize(authorization.ObjectEntitlement, authorization.ActionEntitlementView), s.CheckEntitlement)
	api.GET("/subscriptions/:id/routes/check", s.authorize(authorization.ObjectEntitlement, authorization.ActionEntitlementView), s.CheckRoute)

	// -------- Pricing --------
	quote := s.authorize(authorization.ObjectPricing, authorization.ActionPricingQuote)
	api.POST("/pricing/calculate", quote, s.QuoteRateLimit(), s.CalculatePrice)
	api.POST("/pricing/compare", quote, s.QuoteRateLimit(), s.ComparePlans)
	api.POST("/pricing/upgrade", quote, s.QuoteRateLimit(), s.CalculateUpgrade)
	api.POST("/pricing/recommendations", quote, s.QuoteRateLimit(), s.RecommendPlans)
	api.POST("/pricing/projections", quote, s.QuoteRateLimit(), s.ProjectScaling)
	api.GET("/pricing/tier", quote, s.GetPriceTier)
	api.GET("/subscriptions/:id/pricing/optimization", quote, s.GetCostOptimization)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
