package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindtrail-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/services"
)

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), authService: authService}
}

// AttachIdentity resolves the bearer credential when present and records the
// outcome on the request context. It never rejects; handlers decide when an
// identity is required.
func (am *AuthMiddleware) AttachIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := am.resolve(c)
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

// RequireAuth rejects requests without a valid identity with 401.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil {
			rd = am.resolve(c)
			c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		}
		if rd.UserID == "" {
			traceID := ctxutil.TraceID(c.Request.Context())
			am.log.Warn("auth_rejected", "traceId", traceID, "path", c.Request.URL.Path, "error", rd.AuthErr)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "traceId": traceID})
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) resolve(c *gin.Context) *ctxutil.RequestData {
	tokenString := extractTokenFromAll(c)
	rd := &ctxutil.RequestData{TokenString: tokenString}
	if tokenString == "" {
		rd.AuthErr = services.ErrMissingToken
		return rd
	}
	if am.authService == nil {
		rd.AuthErr = services.ErrInvalidToken
		return rd
	}
	uid, err := am.authService.ResolveIdentity(tokenString)
	if err != nil {
		rd.AuthErr = err
		return rd
	}
	rd.UserID = uid
	return rd
}

// The query form exists for EventSource clients, which cannot set headers.
func extractTokenFromAll(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if c.Request.Method == http.MethodGet {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}
