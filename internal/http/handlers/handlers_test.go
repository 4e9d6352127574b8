package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	capturerepo "github.com/yungbote/mindtrail-backend/internal/data/repos/capture"
	types "github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/http/middleware"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/platform/openai"
	"github.com/yungbote/mindtrail-backend/internal/services"
)

type fakeGenerator struct {
	mu    sync.Mutex
	mode  services.OutputMode
	calls []services.RequestContext
	texts []string
	out   services.Generation
	err   error
}

func (g *fakeGenerator) Generate(ctx context.Context, text string, rc services.RequestContext) (services.Generation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, rc)
	g.texts = append(g.texts, text)
	return g.out, g.err
}

func (g *fakeGenerator) Mode() services.OutputMode {
	if g.mode == "" {
		return services.OutputModeText
	}
	return g.mode
}

type fakeWriter struct {
	mu      sync.Mutex
	records []*types.Capture
	err     error
	seq     int
}

func (w *fakeWriter) Append(ctx context.Context, ref capturerepo.CollectionRef, c *types.Capture, rc services.RequestContext) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	w.seq++
	c.ID = "cap-" + strings.Repeat("x", w.seq)
	c.UserID = ref.UserID
	cp := *c
	w.records = append(w.records, &cp)
	return c.ID, nil
}

type harness struct {
	engine *gin.Engine
	gen    *fakeGenerator
	writer *fakeWriter
	token  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithLog(t, newTestLogger(t))
}

func newHarnessWithLog(t *testing.T, log *logger.Logger) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth, err := services.NewAuthService(nil, "test-secret", "")
	require.NoError(t, err)
	token, err := auth.MintToken("user-1", time.Hour)
	require.NoError(t, err)

	h := &harness{
		gen:    &fakeGenerator{out: services.Generation{Content: "You reflected well.", Model: "m", Usage: &openai.Usage{PromptTokens: 3, CompletionTokens: 4}}},
		writer: &fakeWriter{},
		token:  token,
	}
	reflect := NewReflectHandler(ReflectHandlerDeps{
		Log:       log,
		Generator: h.gen,
		Writer:    h.writer,
	})
	am := middleware.NewAuthMiddleware(nil, auth)

	r := gin.New()
	r.Use(middleware.AttachTraceContext(), am.AttachIdentity())
	r.POST(ReflectRoute, reflect.Reflect)
	h.engine = r
	return h
}

func (h *harness) post(body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, ReflectRoute, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func (h *harness) authed(extra map[string]string) map[string]string {
	m := map[string]string{"Authorization": "Bearer " + h.token}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func TestReflectRejectsEmptyTextWithoutSideEffects(t *testing.T) {
	h := newHarness(t)

	for _, body := range []string{`{"text":"   "}`, `{}`, `not json`, ``} {
		rec, out := h.post(body, h.authed(nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, "validation", out["error_category"])
		assert.NotEmpty(t, out["traceId"])
		assert.NotEmpty(t, out["error"])
	}
	assert.Empty(t, h.gen.calls)
	assert.Empty(t, h.writer.records)
}

func TestReflectValidatesBeforeIdentity(t *testing.T) {
	h := newHarness(t)
	rec, out := h.post(`{"text":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", out["error_category"])
}

func TestReflectRejectsUnknownContext(t *testing.T) {
	h := newHarness(t)
	rec, out := h.post(`{"text":"hi","context":"holiday"}`, h.authed(nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", out["error_category"])
	assert.Empty(t, h.gen.calls)
}

func TestReflectRequiresIdentity(t *testing.T) {
	h := newHarness(t)

	rec, out := h.post(`{"text":"hello"}`, map[string]string{"X-Trace-Id": "t-auth"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"error": "Unauthorized", "traceId": "t-auth"}, out)

	rec, _ = h.post(`{"text":"hello"}`, map[string]string{"Authorization": "Bearer forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Empty(t, h.gen.calls)
	assert.Empty(t, h.writer.records)
}

func TestReflectPropagatesTraceID(t *testing.T) {
	h := newHarness(t)
	rec, out := h.post(`{"text":"Had a good day"}`, h.authed(map[string]string{"X-Trace-Id": "abc123"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", out["traceId"])
	assert.Equal(t, "abc123", rec.Header().Get("X-Trace-Id"))
	require.Len(t, h.gen.calls, 1)
	assert.Equal(t, "abc123", h.gen.calls[0].TraceID)
	assert.Equal(t, "user-1", h.gen.calls[0].UserID)
}

func TestReflectSynthesizesTraceID(t *testing.T) {
	h := newHarness(t)
	_, out := h.post(`{"text":"note"}`, h.authed(map[string]string{"X-Trace-Id": "undefined"}))
	assert.Regexp(t, `^trace_[0-9a-f]{16}$`, out["traceId"])
}

func TestReflectSuccessPersistsTrimmedText(t *testing.T) {
	h := newHarness(t)
	rec, out := h.post(`{"text_raw":"  hello world \n","context":"family","tags":["a"," a ","b",3]}`, h.authed(nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, out["id"])
	assert.Equal(t, "You reflected well.", out["insight"])
	assert.Equal(t, []any{}, out["topics"])

	require.Len(t, h.writer.records, 1)
	got := h.writer.records[0]
	assert.Equal(t, "hello world", got.TextRaw)
	assert.Equal(t, "hello world", h.gen.texts[0])
	assert.Equal(t, types.ContextFamily, got.Context)
	assert.Equal(t, []string{"a", "b"}, []string(got.Tags))
	assert.Equal(t, "user-1", got.UserID)
	assert.NotZero(t, got.CreatedAt)
}

func TestReflectDuplicateSubmissionsCreateDistinctRecords(t *testing.T) {
	h := newHarness(t)
	_, first := h.post(`{"text":"same"}`, h.authed(nil))
	_, second := h.post(`{"text":"same"}`, h.authed(nil))

	assert.NotEqual(t, first["id"], second["id"])
	require.Len(t, h.writer.records, 2)
	assert.LessOrEqual(t, h.writer.records[0].CreatedAt, h.writer.records[1].CreatedAt)
	assert.Len(t, h.gen.calls, 2)
}

func TestReflectGeneratorFailureSkipsStore(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		category string
	}{
		{name: "timeout", err: errors.New("network timeout"), category: "upstream"},
		{name: "unknown", err: errors.New("boom"), category: "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.gen.err = tc.err

			rec, out := h.post(`{"text":"hello"}`, h.authed(map[string]string{"X-Trace-Id": "t-500"}))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "Reflect failed", out["error"])
			assert.Equal(t, tc.err.Error(), out["details"])
			assert.Equal(t, tc.category, out["error_category"])
			assert.Equal(t, "t-500", out["traceId"])
			assert.Empty(t, h.writer.records)
		})
	}
}

func TestReflectStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.writer.err = errors.New("store upstream timeout after 5s: context deadline exceeded")

	rec, out := h.post(`{"text":"hello"}`, h.authed(nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "upstream", out["error_category"])
	assert.Len(t, h.gen.calls, 1)
}

func TestReflectStructuredMode(t *testing.T) {
	h := newHarness(t)
	h.gen.mode = services.OutputModeStructured
	h.gen.out = services.Generation{Content: `{"insight":"Sleep matters.","topics":["sleep","energy","focus","extra"]}`}

	rec, out := h.post(`{"text":"tired"}`, h.authed(nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sleep matters.", out["insight"])
	assert.Equal(t, []any{"sleep", "energy", "focus"}, out["topics"])
	assert.Equal(t, []string{"sleep", "energy", "focus"}, []string(h.writer.records[0].Topics))
}

func TestReflectStructuredParseFailureFallsBack(t *testing.T) {
	h := newHarness(t)
	h.gen.mode = services.OutputModeStructured
	h.gen.out = services.Generation{Content: "plain prose, not json"}

	rec, out := h.post(`{"text":"tired"}`, h.authed(nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", out["insight"])
	assert.Equal(t, []any{}, out["topics"])
	require.Len(t, h.writer.records, 1)
}
