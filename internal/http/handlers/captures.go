package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	capturerepo "github.com/yungbote/mindtrail-backend/internal/data/repos/capture"
	types "github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/http/response"
	"github.com/yungbote/mindtrail-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrail-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/realtime"
	"github.com/yungbote/mindtrail-backend/internal/services"
)

const CapturesRoute = "/api/captures"

type CapturesHandler struct {
	log       *logger.Logger
	writer    services.CaptureWriter
	repo      capturerepo.CaptureRepo
	feed      services.CaptureFeed
	clock     services.Clock
	heartbeat time.Duration
}

type CapturesHandlerDeps struct {
	Log       *logger.Logger
	Writer    services.CaptureWriter
	Repo      capturerepo.CaptureRepo
	Feed      services.CaptureFeed
	Clock     services.Clock
	Heartbeat time.Duration
}

func NewCapturesHandler(deps CapturesHandlerDeps) *CapturesHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = services.NewMonotonicClock(nil)
	}
	return &CapturesHandler{
		log:       log.With("handler", "CapturesHandler"),
		writer:    deps.Writer,
		repo:      deps.Repo,
		feed:      deps.Feed,
		clock:     clock,
		heartbeat: deps.Heartbeat,
	}
}

type createCaptureResponse struct {
	ID      string `json:"id"`
	TraceID string `json:"traceId"`
}

type listCapturesResponse struct {
	Items   []*types.Capture `json:"items"`
	Total   int64            `json:"total"`
	TraceID string           `json:"traceId"`
}

// POST /api/captures stores the text as-is, without an insight.
func (h *CapturesHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	traceID := ctxutil.TraceID(ctx)
	uid := ctxutil.UserID(ctx)

	in, err := readCaptureInput(c.Request.Body)
	if err != nil {
		h.log.Warn("capture_validation_error", "traceId", traceID, "error_message", err.Error())
		response.RespondError(c, apierr.Validation(err), "")
		return
	}

	record := &types.Capture{
		TextRaw:   in.Text,
		Topics:    []string{},
		Tags:      in.Tags,
		Context:   in.Context,
		CreatedAt: h.clock.NowMillis(),
	}
	rc := services.RequestContext{TraceID: traceID, UserID: uid, Route: CapturesRoute}
	id, err := h.writer.Append(ctx, capturerepo.CollectionRef{UserID: uid}, record, rc)
	if err != nil {
		response.RespondError(c, apierr.Upstream(err), "Capture failed")
		return
	}
	response.RespondCreated(c, createCaptureResponse{ID: id, TraceID: traceID})
}

// GET /api/captures?limit=n returns the newest captures and the user's total.
func (h *CapturesHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	traceID := ctxutil.TraceID(ctx)

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		response.RespondError(c, apierr.Validation(err), "")
		return
	}
	ref := capturerepo.CollectionRef{UserID: ctxutil.UserID(ctx)}
	items, err := h.repo.List(ctx, nil, ref, limit)
	if err != nil {
		h.log.Error("captures_list_error", "traceId", traceID, "error", err)
		response.RespondError(c, apierr.Upstream(err), "List failed")
		return
	}
	total, err := h.repo.Count(ctx, nil, ref)
	if err != nil {
		h.log.Error("captures_count_error", "traceId", traceID, "error", err)
		response.RespondError(c, apierr.Upstream(err), "List failed")
		return
	}
	response.RespondOK(c, listCapturesResponse{Items: items, Total: total, TraceID: traceID})
}

// GET /api/captures/stream emits a "snapshot" event on subscribe and after
// every change; an "error" event ends the stream.
func (h *CapturesHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	uid := ctxutil.UserID(ctx)
	traceID := ctxutil.TraceID(ctx)

	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		response.RespondError(c, apierr.Validation(err), "")
		return
	}

	sub, err := h.feed.Subscribe(ctx, uid, limit)
	if err != nil {
		response.RespondError(c, apierr.Internal(err), "Subscribe failed")
		return
	}
	defer sub.Cancel()

	log := h.log.With("traceId", traceID, "uid", uid)
	log.Info("captures_stream_open")
	defer log.Info("captures_stream_closed")

	events := make(chan realtime.StreamEvent)
	go relaySnapshots(ctx, sub, events)
	realtime.ServeStream(ctx, c.Writer, log, events, h.heartbeat)
}

func relaySnapshots(ctx context.Context, sub *services.Subscription, events chan<- realtime.StreamEvent) {
	defer close(events)
	for snap := range sub.Updates() {
		ev := realtime.StreamEvent{Name: "snapshot", Data: gin.H{"items": snap.Items}}
		if snap.Err != nil {
			ev = realtime.StreamEvent{Name: "error", Data: gin.H{"error": snap.Err.Error()}}
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
		if snap.Err != nil {
			return
		}
	}
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return capturerepo.DefaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid limit: must be a positive integer")
	}
	if n > capturerepo.MaxListLimit {
		n = capturerepo.MaxListLimit
	}
	return n, nil
}
