package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/ramonsarchive/ascend/internal/auth/domain"
	"github.com/ramonsarchive/ascend/internal/auth/session"
	"github.com/ramonsarchive/ascend/internal/config"
	membershipdomain "github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/observability"
	obsmiddleware "github.com/ramonsarchive/ascend/internal/observability/logger"
	obsmetrics "github.com/ramonsarchive/ascend/internal/observability/metrics"
	obstracing "github.com/ramonsarchive/ascend/internal/observability/tracing"
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
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", httpMetrics.Handler())

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
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
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
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	authsvc       authdomain.Service
	sessions      *session.Manager
	membershipSvc membershipdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Authsvc       authdomain.Service
	Sessions      *session.Manager
	MembershipSvc membershipdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		authsvc:       p.Authsvc,
		sessions:      p.Sessions,
		membershipSvc: p.MembershipSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.SessionContext())

	// -------- Tokens --------
	invites := api.Group("/invites")
	{
		invites.POST("/:token/accept", s.AcceptEmailInvite)
		invites.POST("/:token/decline", s.DeclineEmailInvite)
	}
	api.POST("/links/:token/accept", s.AcceptInviteLink)
	api.GET("/invite-page/:token", s.GetInvitePageData)

	scope := api.Group("/scopes/:kind/:scope")

	// -------- Email Invites --------
	scope.POST("/invites", s.CreateEmailInvite)
	scope.GET("/invites", s.ListPendingInvites)
	scope.DELETE("/invites/:id", s.RevokeEmailInvite)

	// -------- Invite Links --------
	scope.POST("/links", s.CreateInviteLink)
	scope.GET("/links", s.ListInviteLinks)
	scope.DELETE("/links/:id", s.RevokeInviteLink)

	// -------- Join Requests --------
	scope.POST("/join-requests", s.CreateJoinRequest)
	scope.GET("/join-requests", s.ListJoinRequests)
	scope.DELETE("/join-requests/mine", s.CancelJoinRequest)
	scope.POST("/join-requests/:id/review", s.ReviewJoinRequest)

	// -------- Members --------
	scope.GET("/members", s.ListMembers)
	scope.PATCH("/members/:id", s.ChangeMemberRole)
	scope.DELETE("/members/:id", s.RemoveMember)
	scope.POST("/leave", s.LeaveScope)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, membershipdomain.ErrNotFound)
	})
}
