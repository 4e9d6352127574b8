package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/mindtrail-backend/internal/domain"
)

// TemplatesHandler serves the capture templates.
type TemplatesHandler struct{}

func NewTemplatesHandler() *TemplatesHandler { return &TemplatesHandler{} }

// GET /api/templates
func (h *TemplatesHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": types.Templates()})
}
