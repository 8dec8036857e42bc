package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/flowmarket/flowmarket/internal/cache"
	"github.com/flowmarket/flowmarket/internal/catalog"
	catalogdomain "github.com/flowmarket/flowmarket/internal/catalog/domain"
	"github.com/flowmarket/flowmarket/internal/config"
	"github.com/flowmarket/flowmarket/internal/copyledger"
	copydomain "github.com/flowmarket/flowmarket/internal/copyledger/domain"
	"github.com/flowmarket/flowmarket/internal/entitlement"
	"github.com/flowmarket/flowmarket/internal/metrics"
	"github.com/flowmarket/flowmarket/internal/payout"
	payoutdomain "github.com/flowmarket/flowmarket/internal/payout/domain"
	"github.com/flowmarket/flowmarket/internal/ratelimit"
	"github.com/flowmarket/flowmarket/internal/transfer"
)

var Module = fx.Module("http.server",
	cache.Module,
	catalog.Module,
	entitlement.Module,
	copyledger.Module,
	payout.Module,
	transfer.Module,
	ratelimit.Module,
	metrics.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, m *metrics.Metrics, reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, m *metrics.Metrics, reg *prometheus.Registry) *gin.Engine {
	return NewEngine(log, m, reg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
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
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	copySvc     copydomain.Service
	catalogSvc  catalogdomain.Service
	earningsSvc payoutdomain.EarningsService
	aggregator  payoutdomain.AggregatorService
	disburser   payoutdomain.DisburserService
	copyLimiter *ratelimit.CopyLimiter
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config
	Log *zap.Logger

	CopySvc     copydomain.Service
	CatalogSvc  catalogdomain.Service
	EarningsSvc payoutdomain.EarningsService
	Aggregator  payoutdomain.AggregatorService
	Disburser   payoutdomain.DisburserService
	CopyLimiter *ratelimit.CopyLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("server"),
		copySvc:     p.CopySvc,
		catalogSvc:  p.CatalogSvc,
		earningsSvc: p.EarningsSvc,
		aggregator:  p.Aggregator,
		disburser:   p.Disburser,
		copyLimiter: p.CopyLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerOpsRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Flows --------
	v1.GET("/flows/:id", s.GetFlowByID)

	// -------- Copies --------
	v1.POST("/copies", s.UserRequired(), s.CopyRateLimit(), s.CreateCopy)
	v1.GET("/copies", s.UserRequired(), s.ListCopies)

	// -------- Earnings --------
	v1.GET("/creators/:id/earnings", s.GetCreatorEarnings)
}

// registerOpsRoutes exposes manual backfill triggers for the payout jobs.
// The scheduler is the normal driver; these exist for replays after an
// incident.
func (s *Server) registerOpsRoutes() {
	ops := s.engine.Group("/ops")

	ops.POST("/payouts/aggregate", s.AggregatePayouts)
	ops.POST("/payouts/disburse", s.DisbursePayouts)
}
