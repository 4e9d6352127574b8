package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mindtrail-backend/internal/data/db"
	httpserver "github.com/yungbote/mindtrail-backend/internal/http"
	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	Cfg      *Config
	DB       *db.Service
	Metrics  *observability.Metrics
	Tracker  *observability.Tracker
	SSEHub   *realtime.SSEHub
	Clients  Clients
	Repos    Repos
	Services Services
	Router   *gin.Engine

	otelShutdown func(context.Context) error
}

// New wires the service from cfg. The caller owns log and must Close the App.
func New(ctx context.Context, log *logger.Logger, cfg *Config) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if err := cfg.RequireServe(); err != nil {
		return nil, err
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{ServiceName: logger.ServiceName})

	database, err := db.Connect(log, cfg.DBConfig())
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("db automigrate: %w", err)
		}
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}
	tracker := observability.NewTracker(log)
	hub := realtime.NewSSEHub(log)

	clientset, err := wireClients(log, cfg)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	reposet := wireRepos(database.DB(), log)

	serviceset, err := wireServices(log, cfg, clientset, reposet, hub, tracker, metrics)
	if err != nil {
		clientset.Close()
		_ = database.Close()
		return nil, err
	}

	handlerset := wireHandlers(log, cfg, database, reposet, serviceset, tracker, metrics)
	middleware := wireMiddleware(log, serviceset)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           database,
		Metrics:      metrics,
		Tracker:      tracker,
		SSEHub:       hub,
		Clients:      clientset,
		Repos:        reposet,
		Services:     serviceset,
		Router:       router,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is done. With a redis bus configured it also
// forwards bus messages into the local hub.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	if a.Clients.SSEBus != nil {
		if err := a.Clients.SSEBus.StartForwarder(gctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start realtime forwarder: %w", err)
		}
		a.Log.Info("realtime forwarder started")
	}

	srv := httpserver.NewServer(a.Router, a.Cfg.Server.Addr)
	g.Go(func() error {
		a.Log.Info("http server listening", "addr", srv.Addr())
		return srv.Run(gctx, a.Cfg.Server.ShutdownTimeout)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("db close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
