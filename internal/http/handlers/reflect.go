package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	capturerepo "github.com/yungbote/mindtrail-backend/internal/data/repos/capture"
	types "github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/http/response"
	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrail-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/services"
)

const ReflectRoute = "/api/reflect"

type ReflectHandler struct {
	log       *logger.Logger
	tracker   *observability.Tracker
	generator services.ReflectionGenerator
	writer    services.CaptureWriter
	clock     services.Clock
	metrics   *observability.Metrics
}

type ReflectHandlerDeps struct {
	Log       *logger.Logger
	Tracker   *observability.Tracker
	Generator services.ReflectionGenerator
	Writer    services.CaptureWriter
	Clock     services.Clock
	Metrics   *observability.Metrics
}

func NewReflectHandler(deps ReflectHandlerDeps) *ReflectHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = observability.NewTracker(log)
	}
	clock := deps.Clock
	if clock == nil {
		clock = services.NewMonotonicClock(nil)
	}
	return &ReflectHandler{
		log:       log.With("handler", "ReflectHandler"),
		tracker:   tracker,
		generator: deps.Generator,
		writer:    deps.Writer,
		clock:     clock,
		metrics:   deps.Metrics,
	}
}

type reflectResponse struct {
	ID      string   `json:"id"`
	Insight string   `json:"insight"`
	Topics  []string `json:"topics"`
	TraceID string   `json:"traceId"`
}

// POST /api/reflect
func (h *ReflectHandler) Reflect(c *gin.Context) {
	started := time.Now()
	ctx := c.Request.Context()
	traceID := ctxutil.TraceID(ctx)
	if traceID == "" {
		traceID = observability.TraceIDFromHeader(c.GetHeader("X-Trace-Id"))
		ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{TraceID: traceID})
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set("X-Trace-Id", traceID)
	}

	defer func() {
		h.log.Info("reflect_request_completed",
			"route", ReflectRoute,
			"traceId", traceID,
			"duration_ms", time.Since(started).Milliseconds(),
			"status", c.Writer.Status(),
		)
	}()

	ctx, span := h.tracker.Start(ctx, observability.SpanContext{Name: "reflect_request", Route: ReflectRoute, TraceID: traceID})

	in, err := readCaptureInput(c.Request.Body)
	if err != nil {
		e := apierr.Validation(err)
		span.End(observability.ErrorFields(e.Category))
		h.metrics.ObserveReflect("rejected", e.Category.String())
		h.log.Warn("reflect_validation_error", "traceId", traceID, "error_category", e.Category.String(), "error_message", err.Error())
		response.RespondError(c, e, "")
		return
	}

	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == "" {
		cause := services.ErrMissingToken
		if rd != nil && rd.AuthErr != nil {
			cause = rd.AuthErr
		}
		e := apierr.Unauthorized(cause)
		span.End(observability.ErrorFields(e.Category))
		h.metrics.ObserveReflect("rejected", e.Category.String())
		h.log.Warn("reflect_auth_error", "traceId", traceID, "error_category", e.Category.String(), "error_message", cause.Error())
		response.RespondError(c, e, "")
		return
	}
	uid := rd.UserID
	rc := services.RequestContext{TraceID: traceID, UserID: uid, Route: ReflectRoute}

	gen, err := h.generator.Generate(ctx, in.Text, rc)
	if err != nil {
		h.fail(c, span, traceID, err)
		return
	}

	insight, topics := gen.Content, []string{}
	if h.generator.Mode() == services.OutputModeStructured {
		parsedInsight, parsedTopics, perr := services.ParseStructuredReflection(gen.Content)
		if perr != nil {
			h.log.Error("reflect_parse_error",
				"traceId", traceID,
				"error_category", apierr.CategoryInternal.String(),
				"error_message", perr.Error(),
			)
			parsedInsight, parsedTopics = "", []string{}
		}
		insight, topics = parsedInsight, parsedTopics
	}

	record := &types.Capture{
		TextRaw:   in.Text,
		Insight:   insight,
		Topics:    topics,
		Tags:      in.Tags,
		Context:   in.Context,
		CreatedAt: h.clock.NowMillis(),
	}
	id, err := h.writer.Append(ctx, capturerepo.CollectionRef{UserID: uid}, record, rc)
	if err != nil {
		h.fail(c, span, traceID, err)
		return
	}

	ended := span.End(map[string]any{
		"success":        true,
		"uid":            uid,
		"doc_id":         id,
		"text_length":    len(in.Text),
		"insight_length": len(insight),
	})
	h.metrics.ObserveReflect("success", "")
	h.log.Info("reflect_success",
		"traceId", traceID,
		"uid", uid,
		"doc_id", id,
		"text_length", len(in.Text),
		"insight_length", len(insight),
		"duration_ms", ended["duration_ms"],
	)
	response.RespondOK(c, reflectResponse{ID: id, Insight: insight, Topics: topics, TraceID: traceID})
}

func (h *ReflectHandler) fail(c *gin.Context, span *observability.Span, traceID string, err error) {
	e := apierr.Upstream(err)
	span.End(observability.ErrorFields(e.Category))
	h.metrics.ObserveReflect("failed", e.Category.String())
	h.log.Error("reflect_request_error",
		"traceId", traceID,
		"error_category", e.Category.String(),
		"error_name", fmt.Sprintf("%T", err),
		"error_message", err.Error(),
		"stack", fmt.Sprintf("%+v", err),
	)
	if c.Writer.Written() {
		return
	}
	response.RespondError(c, e, "Reflect failed")
}
