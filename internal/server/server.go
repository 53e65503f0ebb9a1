package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/alerts"
	"github.com/nulzo/misan-console/internal/audit"
	"github.com/nulzo/misan-console/internal/config"
	"github.com/nulzo/misan-console/internal/emailtemplates"
	"github.com/nulzo/misan-console/internal/server/middleware"
	"github.com/nulzo/misan-console/internal/settings"
	"github.com/nulzo/misan-console/internal/support"
	"github.com/nulzo/misan-console/internal/translate"
	"github.com/nulzo/misan-console/internal/validation"
)

// Services are the domain services exposed over HTTP. Translate may be nil.
type Services struct {
	Settings       *settings.Service
	Alerts         *alerts.Service
	EmailTemplates *emailtemplates.Service
	Support        *support.Service
	Translate      *translate.Service
	Audit          *audit.Log
}

type Server struct {
	router   *gin.Engine
	config   *config.Config
	logger   *zap.Logger
	services Services
	limiter  *middleware.RateLimiter
}

func New(cfg *config.Config, logger *zap.Logger, services Services) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.InitBinding()

	engine := gin.New()
	engine.Use(middleware.Recovery(logger))
	engine.Use(middleware.RequestLogger(logger))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	}

	s := &Server{
		router:   engine,
		config:   cfg,
		logger:   logger,
		services: services,
		limiter:  middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger),
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
