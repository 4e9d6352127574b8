package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/platform/openai"
)

const ReflectionSystemPrompt = "You are Mindtrail AI assistant. Produce insights and topics."

type OutputMode string

const (
	OutputModeText       OutputMode = "text"
	OutputModeStructured OutputMode = "structured"
)

func ParseOutputMode(raw string) (OutputMode, error) {
	switch OutputMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OutputModeText:
		return OutputModeText, nil
	case OutputModeStructured:
		return OutputModeStructured, nil
	}
	return "", fmt.Errorf("invalid reflect.output_mode %q", raw)
}

type Generation struct {
	Content string
	Model   string
	Usage   *openai.Usage
}

type ReflectionGenerator interface {
	// Generate issues exactly one provider call; errors are returned unchanged
	// apart from transport annotations.
	Generate(ctx context.Context, text string, rc RequestContext) (Generation, error)
	Mode() OutputMode
}

type reflectionGenerator struct {
	log     *logger.Logger
	client  openai.Client
	tracker *observability.Tracker
	metrics *observability.Metrics
	mode    OutputMode
	timeout time.Duration
}

type ReflectionGeneratorConfig struct {
	Mode    OutputMode
	Timeout time.Duration
}

func NewReflectionGenerator(
	log *logger.Logger,
	client openai.Client,
	tracker *observability.Tracker,
	metrics *observability.Metrics,
	cfg ReflectionGeneratorConfig,
) ReflectionGenerator {
	if log == nil {
		log = logger.Nop()
	}
	if tracker == nil {
		tracker = observability.NewTracker(log)
	}
	mode := cfg.Mode
	if mode == "" {
		mode = OutputModeText
	}
	return &reflectionGenerator{
		log:     log.With("service", "ReflectionGenerator"),
		client:  client,
		tracker: tracker,
		metrics: metrics,
		mode:    mode,
		timeout: cfg.Timeout,
	}
}

func (g *reflectionGenerator) Mode() OutputMode { return g.mode }

// reflectionSchema constrains structured output to an insight and at most three topics.
func reflectionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"insight", "topics"},
		"properties": map[string]any{
			"insight": map[string]any{"type": "string"},
			"topics": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"maxItems": domain.MaxTopics,
			},
		},
	}
}

func (g *reflectionGenerator) Generate(ctx context.Context, text string, rc RequestContext) (Generation, error) {
	ctx, span := g.tracker.Start(ctx, observability.SpanContext{
		Name:    "openai_call",
		Route:   rc.Route,
		TraceID: rc.TraceID,
		UserID:  rc.UserID,
		Attrs:   map[string]any{"mode": string(g.mode)},
	})

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	started := time.Now()
	var (
		out openai.Completion
		err error
	)
	if g.mode == OutputModeStructured {
		out, err = g.client.GenerateJSON(callCtx, ReflectionSystemPrompt, text, "mindtrail_reflection", reflectionSchema())
	} else {
		out, err = g.client.GenerateText(callCtx, ReflectionSystemPrompt, text)
	}
	elapsed := time.Since(started)

	if err != nil {
		err = annotateTransportError(err, g.timeout)
		category := apierr.Classify(err)
		span.End(observability.ErrorFields(category))
		g.metrics.ObserveLLMRequest(g.client.Model(), openai.StatusLabel(err), elapsed, 0, 0)
		g.log.Error("openai_error",
			"traceId", rc.TraceID,
			"route", rc.Route,
			"error_category", category.String(),
			"error_message", err.Error(),
		)
		return Generation{}, err
	}

	gen := Generation{Content: out.Content, Model: out.Model, Usage: out.Usage}
	fields := map[string]any{"success": true, "model": gen.Model}
	var in, outTokens int
	if gen.Usage != nil {
		in, outTokens = gen.Usage.PromptTokens, gen.Usage.CompletionTokens
		fields["prompt_tokens"] = in
		fields["completion_tokens"] = outTokens
	}
	ended := span.End(fields)
	g.metrics.ObserveLLMRequest(gen.Model, openai.StatusLabel(nil), elapsed, in, outTokens)
	g.log.Info("openai_success",
		"traceId", rc.TraceID,
		"route", rc.Route,
		"model", gen.Model,
		"prompt_tokens", in,
		"completion_tokens", outTokens,
		"duration_ms", ended["duration_ms"],
	)
	return gen, nil
}

// annotateTransportError marks deadline and network failures so they classify
// as upstream. Provider answers (http status, refusals) pass through.
func annotateTransportError(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		if timeout > 0 {
			return fmt.Errorf("openai upstream timeout after %s: %w", timeout, err)
		}
		return fmt.Errorf("openai upstream timeout: %w", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("openai upstream timeout: %w", err)
		}
		return fmt.Errorf("openai network error: %w", err)
	}
	var httpErr *openai.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode >= 500 {
		return fmt.Errorf("openai upstream unavailable: %w", err)
	}
	return err
}

// ParseStructuredReflection decodes structured generator output. Topics are
// trimmed, empties dropped, and bounded to three.
func ParseStructuredReflection(content string) (string, []string, error) {
	var payload struct {
		Insight string   `json:"insight"`
		Topics  []string `json:"topics"`
	}
	raw := strings.TrimSpace(content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return "", []string{}, fmt.Errorf("decode structured reflection: %w", err)
	}
	return strings.TrimSpace(payload.Insight), domain.BoundTopics(payload.Topics), nil
}
