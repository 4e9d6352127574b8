package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindtrail-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrail-backend/internal/platform/ctxutil"
)

// ErrorBody is the error envelope shared by every endpoint.
type ErrorBody struct {
	Error         string `json:"error"`
	Details       string `json:"details,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	TraceID       string `json:"traceId"`
}

// RespondError writes e with message as the public error string. Validation
// errors carry their own message; server failures expose the cause as details.
func RespondError(c *gin.Context, e *apierr.Error, message string) {
	if e == nil {
		e = apierr.Internal(nil)
	}
	body := ErrorBody{TraceID: ctxutil.TraceID(c.Request.Context())}

	switch {
	case e.Status == http.StatusUnauthorized:
		body.Error = "Unauthorized"
	case e.Status >= http.StatusInternalServerError:
		body.Error = message
		if e.Err != nil {
			body.Details = e.Err.Error()
		}
		body.ErrorCategory = e.Category.String()
	default:
		body.Error = e.Error()
		if message != "" && e.Err == nil {
			body.Error = message
		}
		body.ErrorCategory = e.Category.String()
	}
	c.AbortWithStatusJSON(e.Status, body)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
