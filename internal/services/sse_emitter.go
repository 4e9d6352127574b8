package services

import (
	"context"

	"github.com/yungbote/mindtrail-backend/internal/realtime"
	"github.com/yungbote/mindtrail-backend/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage) error
}

// HubEmitter delivers to subscribers of this process only.
type HubEmitter struct{ Hub *realtime.SSEHub }

func (e *HubEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) error {
	e.Hub.Broadcast(msg)
	return nil
}

// RedisEmitter publishes to the bus; every instance's forwarder rebroadcasts
// into its local hub.
type RedisEmitter struct{ Bus bus.Bus }

func (e *RedisEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) error {
	return e.Bus.Publish(ctx, msg)
}
