package app

import (
	"github.com/yungbote/mindtrail-backend/internal/data/db"
	httpH "github.com/yungbote/mindtrail-backend/internal/http/handlers"
	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Reflect   *httpH.ReflectHandler
	Captures  *httpH.CapturesHandler
	Templates *httpH.TemplatesHandler
}

func wireHandlers(
	log *logger.Logger,
	cfg *Config,
	database *db.Service,
	repos Repos,
	svcs Services,
	tracker *observability.Tracker,
	metrics *observability.Metrics,
) Handlers {
	log.Info("Wiring handlers...")

	var health *httpH.HealthHandler
	if sqlDB, err := database.DB().DB(); err == nil {
		health = httpH.NewHealthHandler(sqlDB)
	} else {
		log.Warn("health check running without db ping", "error", err)
		health = httpH.NewHealthHandler(nil)
	}

	return Handlers{
		Health: health,
		Reflect: httpH.NewReflectHandler(httpH.ReflectHandlerDeps{
			Log:       log,
			Tracker:   tracker,
			Generator: svcs.Generator,
			Writer:    svcs.Writer,
			Clock:     svcs.Clock,
			Metrics:   metrics,
		}),
		Captures: httpH.NewCapturesHandler(httpH.CapturesHandlerDeps{
			Log:       log,
			Writer:    svcs.Writer,
			Repo:      repos.Capture,
			Feed:      svcs.Feed,
			Clock:     svcs.Clock,
			Heartbeat: cfg.Server.Heartbeat,
		}),
		Templates: httpH.NewTemplatesHandler(),
	}
}
