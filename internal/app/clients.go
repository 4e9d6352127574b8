package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/platform/openai"
	"github.com/yungbote/mindtrail-backend/internal/realtime/bus"
)

type Clients struct {
	SSEBus bus.Bus
	OpenAI openai.Client
}

func wireClients(log *logger.Logger, cfg *Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	var sseBus bus.Bus
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		b, err := bus.NewRedisBus(log, bus.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis realtime bus: %w", err)
		}
		sseBus = b
	}

	// Openai
	openaiClient, err := openai.NewClient(log, openai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
	})
	if err != nil {
		if sseBus != nil {
			_ = sseBus.Close()
		}
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	return Clients{SSEBus: sseBus, OpenAI: openaiClient}, nil
}

func (c Clients) Close() {
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
}
