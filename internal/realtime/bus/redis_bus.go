package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/realtime"
)

const DefaultChannel = "mindtrail:realtime"

const envelopeVersion = 1

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// envelope is the payload published on the shared redis channel.
type envelope struct {
	V           int               `json:"v"`
	Origin      string            `json:"origin"`
	Channel     string            `json:"channel"`
	Event       realtime.SSEEvent `json:"event"`
	Data        json.RawMessage   `json:"data,omitempty"`
	PublishedAt int64             `json:"publishedAt"`
}

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	origin  string
}

func NewRedisBus(log *logger.Logger, cfg RedisConfig) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis.addr")
	}
	ch := strings.TrimSpace(cfg.Channel)
	if ch == "" {
		ch = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	origin := uuid.NewString()
	return &redisBus{
		log:     log.With("service", "RedisRealtimeBus", "origin", origin),
		rdb:     rdb,
		channel: ch,
		origin:  origin,
	}, nil
}

// encodeEnvelope wraps a capture message for the wire. Only per-user capture
// channels are accepted.
func encodeEnvelope(origin string, msg realtime.SSEMessage, now time.Time) ([]byte, error) {
	if err := checkCaptureMessage(msg.Channel, msg.Event); err != nil {
		return nil, err
	}
	env := envelope{
		V:           envelopeVersion,
		Origin:      origin,
		Channel:     msg.Channel,
		Event:       msg.Event,
		PublishedAt: now.UnixMilli(),
	}
	if msg.Data != nil {
		data, err := json.Marshal(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("encode realtime data: %w", err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// decodeEnvelope returns the capture message carried by raw along with the
// origin instance that published it.
func decodeEnvelope(raw []byte) (realtime.SSEMessage, string, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return realtime.SSEMessage{}, "", fmt.Errorf("decode realtime envelope: %w", err)
	}
	if env.V != envelopeVersion {
		return realtime.SSEMessage{}, env.Origin, fmt.Errorf("unsupported realtime envelope version %d", env.V)
	}
	if err := checkCaptureMessage(env.Channel, env.Event); err != nil {
		return realtime.SSEMessage{}, env.Origin, err
	}
	msg := realtime.SSEMessage{Channel: env.Channel, Event: env.Event}
	if len(env.Data) > 0 {
		msg.Data = env.Data
	}
	return msg, env.Origin, nil
}

func checkCaptureMessage(channel string, event realtime.SSEEvent) error {
	prefix := realtime.CaptureChannel("")
	if !strings.HasPrefix(channel, prefix) || len(channel) == len(prefix) {
		return fmt.Errorf("invalid realtime channel %q", channel)
	}
	if event != realtime.SSEEventCaptureAdded {
		return fmt.Errorf("unknown realtime event %q", event)
	}
	return nil
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis realtime bus not initialized")
	}
	raw, err := encodeEnvelope(b.origin, msg, time.Now())
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis realtime bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				b.forward(m.Payload, onMsg)
			}
		}
	}()

	return nil
}

func (b *redisBus) forward(payload string, onMsg func(m realtime.SSEMessage)) {
	msg, origin, err := decodeEnvelope([]byte(payload))
	if err != nil {
		b.log.Warn("realtime_payload_dropped", "error", err, "from", origin)
		return
	}
	onMsg(msg)
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
