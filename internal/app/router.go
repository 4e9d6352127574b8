package app

import (
	"github.com/gin-gonic/gin"

	httpserver "github.com/yungbote/mindtrail-backend/internal/http"
	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg *Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		CORSOrigins:      cfg.Server.CORSOrigins,
		MaxBodyBytes:     cfg.Reflect.MaxBodyBytes,
		ServiceName:      logger.ServiceName,
		AuthMiddleware:   middleware.Auth,
		ReflectHandler:   handlers.Reflect,
		CapturesHandler:  handlers.Captures,
		TemplatesHandler: handlers.Templates,
		HealthHandler:    handlers.Health,
	})
}
