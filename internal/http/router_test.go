package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpH "github.com/yungbote/mindtrail-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mindtrail-backend/internal/http/middleware"
	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/services"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth, err := services.NewAuthService(nil, "secret", "")
	require.NoError(t, err)
	return NewRouter(RouterConfig{
		Metrics:          observability.NewMetrics(),
		MaxBodyBytes:     1024,
		AuthMiddleware:   httpMW.NewAuthMiddleware(nil, auth),
		ReflectHandler:   httpH.NewReflectHandler(httpH.ReflectHandlerDeps{}),
		CapturesHandler:  httpH.NewCapturesHandler(httpH.CapturesHandlerDeps{}),
		TemplatesHandler: httpH.NewTemplatesHandler(),
		HealthHandler:    httpH.NewHealthHandler(nil),
	})
}

func TestRouterPublicRoutes(t *testing.T) {
	r := testRouter(t)

	for _, path := range []string{"/healthcheck", "/api/templates", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"), path)
	}
}

func TestRouterProtectsCaptureRoutes(t *testing.T) {
	r := testRouter(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/captures"},
		{http.MethodPost, "/api/captures"},
		{http.MethodGet, "/api/captures/stream"},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouterReflectValidatesBeforeAuth(t *testing.T) {
	r := testRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reflect", strings.NewReader(`{"text":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reflect", strings.NewReader(`{"text":"hi"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterBodyLimitFailsValidation(t *testing.T) {
	r := testRouter(t)
	big := `{"text":"` + strings.Repeat("a", 4096) + `"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reflect", strings.NewReader(big)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
