package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

const HeartbeatInterval = 15 * time.Second

// StreamEvent is one named server-sent event.
type StreamEvent struct {
	Name string
	Data any
}

func SetStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteEvent writes one "event:/data:" frame and flushes it.
func WriteEvent(w http.ResponseWriter, ev StreamEvent) error {
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, raw); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// ServeStream relays events until ctx ends or events is closed, sending a
// comment heartbeat every interval.
func ServeStream(ctx context.Context, w http.ResponseWriter, log *logger.Logger, events <-chan StreamEvent, interval time.Duration) {
	if log == nil {
		log = logger.Nop()
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	if interval <= 0 {
		interval = HeartbeatInterval
	}
	SetStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE stream context done", "err", ctx.Err())
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := WriteEvent(w, ev); err != nil {
				log.Warn("Failed to write SSE event", "event", ev.Name, "error", err)
				return
			}
		}
	}
}
