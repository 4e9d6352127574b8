package app

import (
	"fmt"

	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/realtime"
	"github.com/yungbote/mindtrail-backend/internal/services"
)

type Services struct {
	Auth      services.AuthService
	Clock     services.Clock
	Emitter   services.SSEEmitter
	Generator services.ReflectionGenerator
	Writer    services.CaptureWriter
	Feed      services.CaptureFeed
}

func wireServices(
	log *logger.Logger,
	cfg *Config,
	clients Clients,
	repos Repos,
	hub *realtime.SSEHub,
	tracker *observability.Tracker,
	metrics *observability.Metrics,
) (Services, error) {
	log.Info("Wiring services...")

	authService, err := services.NewAuthService(log, cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	mode, err := services.ParseOutputMode(cfg.Reflect.OutputMode)
	if err != nil {
		return Services{}, err
	}

	// With a bus, every instance (this one included) receives the event through its forwarder.
	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	if clients.SSEBus != nil {
		emitter = &services.RedisEmitter{Bus: clients.SSEBus}
	}

	generator := services.NewReflectionGenerator(log, clients.OpenAI, tracker, metrics, services.ReflectionGeneratorConfig{
		Mode:    mode,
		Timeout: cfg.Reflect.GenerateTimeout,
	})
	writer := services.NewCaptureWriter(log, repos.Capture, emitter, tracker, metrics, cfg.Reflect.StoreTimeout)
	feed := services.NewCaptureFeed(log, repos.Capture, hub, metrics)

	return Services{
		Auth:      authService,
		Clock:     services.NewMonotonicClock(nil),
		Emitter:   emitter,
		Generator: generator,
		Writer:    writer,
		Feed:      feed,
	}, nil
}
