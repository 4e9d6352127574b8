package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	capturerepo "github.com/yungbote/mindtrail-backend/internal/data/repos/capture"
	types "github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/realtime"
)

type CaptureWriter interface {
	// Append inserts one record into ref and returns the assigned id.
	Append(ctx context.Context, ref capturerepo.CollectionRef, c *types.Capture, rc RequestContext) (string, error)
}

type captureWriter struct {
	log     *logger.Logger
	repo    capturerepo.CaptureRepo
	emit    SSEEmitter
	tracker *observability.Tracker
	metrics *observability.Metrics
	timeout time.Duration
}

func NewCaptureWriter(
	log *logger.Logger,
	repo capturerepo.CaptureRepo,
	emit SSEEmitter,
	tracker *observability.Tracker,
	metrics *observability.Metrics,
	timeout time.Duration,
) CaptureWriter {
	if log == nil {
		log = logger.Nop()
	}
	if tracker == nil {
		tracker = observability.NewTracker(log)
	}
	return &captureWriter{
		log:     log.With("service", "CaptureWriter"),
		repo:    repo,
		emit:    emit,
		tracker: tracker,
		metrics: metrics,
		timeout: timeout,
	}
}

func (w *captureWriter) Append(ctx context.Context, ref capturerepo.CollectionRef, c *types.Capture, rc RequestContext) (string, error) {
	ctx, span := w.tracker.Start(ctx, observability.SpanContext{
		Name:    "store_write",
		Route:   rc.Route,
		TraceID: rc.TraceID,
		UserID:  ref.UserID,
	})

	writeCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	started := time.Now()
	id, err := w.repo.Add(writeCtx, nil, ref, c)
	elapsed := time.Since(started)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			if w.timeout > 0 {
				err = fmt.Errorf("store upstream timeout after %s: %w", w.timeout, err)
			} else {
				err = fmt.Errorf("store upstream timeout: %w", err)
			}
		}
		category := apierr.Classify(err)
		span.End(observability.ErrorFields(category))
		w.metrics.ObserveStoreWrite("error", elapsed)
		w.log.Error("store_write_error",
			"traceId", rc.TraceID,
			"collection", ref.Path(),
			"error_category", category.String(),
			"error_message", err.Error(),
		)
		return "", err
	}

	span.End(map[string]any{"success": true, "doc_id": id})
	w.metrics.ObserveStoreWrite("ok", elapsed)
	w.log.Info("store_write_success", "traceId", rc.TraceID, "collection", ref.Path(), "doc_id", id)

	w.notify(ctx, ref, c, rc)
	return id, nil
}

func (w *captureWriter) notify(ctx context.Context, ref capturerepo.CollectionRef, c *types.Capture, rc RequestContext) {
	if w.emit == nil {
		return
	}
	msg := realtime.SSEMessage{
		Channel: realtime.CaptureChannel(ref.UserID),
		Event:   realtime.SSEEventCaptureAdded,
		Data:    map[string]any{"id": c.ID, "created_at": c.CreatedAt},
	}
	if err := w.emit.Emit(context.WithoutCancel(ctx), msg); err != nil {
		w.log.Warn("capture_notify_error", "traceId", rc.TraceID, "doc_id", c.ID, "error", err)
	}
}
