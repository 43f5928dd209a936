package server

import (
	"context"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/meridian/internal/audit"
	auditdomain "github.com/smallbiznis/meridian/internal/audit/domain"
	"github.com/smallbiznis/meridian/internal/authorization"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	"github.com/smallbiznis/meridian/internal/cache"
	"github.com/smallbiznis/meridian/internal/cleanup"
	"github.com/smallbiznis/meridian/internal/client"
	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/internal/config"
	"github.com/smallbiznis/meridian/internal/consent"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"
	"github.com/smallbiznis/meridian/internal/gateway"
	"github.com/smallbiznis/meridian/internal/grant"
	grantdomain "github.com/smallbiznis/meridian/internal/grant/domain"
	"github.com/smallbiznis/meridian/internal/migration"
	"github.com/smallbiznis/meridian/internal/observability"
	obsmiddleware "github.com/smallbiznis/meridian/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/meridian/internal/observability/metrics"
	obstracing "github.com/smallbiznis/meridian/internal/observability/tracing"
	"github.com/smallbiznis/meridian/internal/policy"
	"github.com/smallbiznis/meridian/internal/ratelimit"
	"github.com/smallbiznis/meridian/internal/region"
	"github.com/smallbiznis/meridian/internal/regionmetrics"
	"github.com/smallbiznis/meridian/internal/signingkey"
	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
	"github.com/smallbiznis/meridian/internal/token"
)

var Module = fx.Module("http.server",
	config.Module,
	observability.Module,
	fx.Provide(provideNode),
	fx.Provide(clock.New),
	fx.Provide(registerGin),
	region.Module,
	cache.Module,
	ratelimit.Module,
	regionmetrics.Module,
	migration.Module,
	audit.Module,
	policy.Module,
	client.Module,
	consent.Module,
	authorization.Module,
	signingkey.Module,
	token.Module,
	gateway.Module,
	grant.Module,
	cleanup.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// provideNode derives the snowflake node id from the region name so two
// shards never mint colliding ids.
func provideNode(cfg config.Config) (*snowflake.Node, error) {
	h := fnv.New32a()
	h.Write([]byte(cfg.Region))
	return snowflake.NewNode(int64(h.Sum32() % 1024))
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug: obsCfg.Debug(),
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	grants    grantdomain.Service
	clients   clientdomain.Service
	consents  consentdomain.Service
	store     authzdomain.Store
	keys      signingdomain.Manager
	auditSvc  auditdomain.Service
	policySvc policy.Service
	limiter   *ratelimit.TokenEndpointLimiter
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	Grants    grantdomain.Service
	Clients   clientdomain.Service
	Consents  consentdomain.Service
	Store     authzdomain.Store
	Keys      signingdomain.Manager
	AuditSvc  auditdomain.Service
	PolicySvc policy.Service
	Gateway   *gateway.Handler
	Limiter   *ratelimit.TokenEndpointLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("http.server"),
		grants:    p.Grants,
		clients:   p.Clients,
		consents:  p.Consents,
		store:     p.Store,
		keys:      p.Keys,
		auditSvc:  p.AuditSvc,
		policySvc: p.PolicySvc,
		limiter:   p.Limiter,
	}

	svc.registerWellKnownRoutes()
	svc.registerOAuthRoutes()
	svc.registerAdminRoutes()
	p.Gateway.RegisterRoutes(svc.engine)

	return svc
}
