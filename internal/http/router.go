package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/mindtrail-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mindtrail-backend/internal/http/middleware"
	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log          *logger.Logger
	Metrics      *observability.Metrics
	CORSOrigins  []string
	MaxBodyBytes int64
	ServiceName  string

	AuthMiddleware *httpMW.AuthMiddleware

	ReflectHandler   *httpH.ReflectHandler
	CapturesHandler  *httpH.CapturesHandler
	TemplatesHandler *httpH.TemplatesHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.Use(httpMW.LimitBody(cfg.MaxBodyBytes))
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.AttachIdentity())
	}
	{
		if cfg.TemplatesHandler != nil {
			api.GET("/templates", cfg.TemplatesHandler.List)
		}
		// identity is enforced inside the handler, after input validation
		if cfg.ReflectHandler != nil {
			api.POST("/reflect", cfg.ReflectHandler.Reflect)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.CapturesHandler != nil {
			protected.POST("/captures", cfg.CapturesHandler.Create)
			protected.GET("/captures", cfg.CapturesHandler.List)
			protected.GET("/captures/stream", cfg.CapturesHandler.Stream)
		}
	}

	return r
}
