package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"

	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
)

const tracerName = "github.com/yungbote/mindtrail-backend"

// TraceIDPrefix marks identifiers synthesized by this service.
const TraceIDPrefix = "trace_"

// TraceIDFromHeader propagates an inbound correlation id, or synthesizes one when
// the header is empty or carries the literal "null"/"undefined" a JS client sends.
func TraceIDFromHeader(headerValue string) string {
	v := strings.TrimSpace(headerValue)
	if v != "" && v != "null" && v != "undefined" {
		return v
	}
	return NewTraceID()
}

// NewTraceID returns "trace_" followed by 16 hex chars.
func NewTraceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		u := uuid.New()
		copy(b[:], u[:8])
	}
	return TraceIDPrefix + hex.EncodeToString(b[:])
}

type SpanContext struct {
	Name    string
	Route   string
	TraceID string
	UserID  string
	// Attrs are extra span_start fields, mirrored as otel attributes.
	Attrs map[string]any
}

// Tracker emits span lifecycle events to the logger and mirrors them as
// OpenTelemetry spans. Nothing is retained after End.
type Tracker struct {
	log    *logger.Logger
	now    func() time.Time
	tracer trace.Tracer
}

type TrackerOption func(*Tracker)

// WithClock overrides the wall clock used for span durations.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func WithTracer(tr trace.Tracer) TrackerOption {
	return func(t *Tracker) {
		if tr != nil {
			t.tracer = tr
		}
	}
}

func NewTracker(log *logger.Logger, opts ...TrackerOption) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	t := &Tracker{
		log:    log,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type Span struct {
	tracker   *Tracker
	sc        SpanContext
	startedAt time.Time
	otelSpan  trace.Span
}

// Start logs span_start and returns a handle whose End reports the duration.
func (t *Tracker) Start(ctx context.Context, sc SpanContext) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	keys := make([]string, 0, len(sc.Attrs))
	for k := range sc.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := []attribute.KeyValue{
		attribute.String("mindtrail.route", sc.Route),
		attribute.String("mindtrail.trace_id", sc.TraceID),
	}
	for _, k := range keys {
		attrs = append(attrs, attribute.String("mindtrail."+k, fmt.Sprint(sc.Attrs[k])))
	}
	ctx, otelSpan := t.tracer.Start(ctx, sc.Name, trace.WithAttributes(attrs...))
	s := &Span{tracker: t, sc: sc, startedAt: t.now(), otelSpan: otelSpan}

	fields := []interface{}{"event", "span_start", "name", sc.Name, "route", sc.Route, "traceId", sc.TraceID}
	if sc.UserID != "" {
		fields = append(fields, "uid", sc.UserID)
	}
	for _, k := range keys {
		switch k {
		case "event", "name", "route", "traceId", "uid":
			continue
		}
		fields = append(fields, k, sc.Attrs[k])
	}
	t.log.Debug("span_start", fields...)
	return ctx, s
}

// End logs span_end with duration_ms merged with fields and returns what was
// emitted. Calling it again emits another record measured from the same start.
func (s *Span) End(fields map[string]any) map[string]any {
	if s == nil {
		return nil
	}
	durationMS := s.tracker.now().Sub(s.startedAt).Milliseconds()
	if durationMS < 0 {
		durationMS = 0
	}

	out := make(map[string]any, len(fields)+5)
	for k, v := range fields {
		out[k] = v
	}
	out["event"] = "span_end"
	out["name"] = s.sc.Name
	out["route"] = s.sc.Route
	out["traceId"] = s.sc.TraceID
	out["duration_ms"] = durationMS
	if s.sc.UserID != "" {
		if _, ok := out["uid"]; !ok {
			out["uid"] = s.sc.UserID
		}
	}

	s.tracker.log.Debug("span_end", logger.KV(out)...)

	if s.otelSpan != nil && s.otelSpan.IsRecording() {
		s.otelSpan.SetAttributes(attribute.Int64("mindtrail.duration_ms", durationMS))
		for k, v := range fields {
			s.otelSpan.SetAttributes(attribute.String("mindtrail."+k, fmt.Sprint(v)))
		}
		if isErr, _ := fields["error"].(bool); isErr {
			s.otelSpan.SetStatus(codes.Error, fmt.Sprint(fields["error_category"]))
		}
		s.otelSpan.End()
	}
	return out
}

// ErrorFields is the conventional end payload of a failed span.
func ErrorFields(category fmt.Stringer) map[string]any {
	return map[string]any{"error": true, "error_category": category.String()}
}
