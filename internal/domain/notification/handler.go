package notification

import (
	"net/http"
	"strconv"

	"assistantportal/internal/middleware"
	"assistantportal/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registers the notification history routes under the protected group.
func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.GET("/notifications", h.List)
}

// List returns the delivered notifications of the current user, newest first.
func (h *Handler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Unauthorized(c)
		return
	}

	limit := 20
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
			if limit > 100 {
				limit = 100
			}
		}
	}

	offset := 0
	if s := c.Query("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	rows, total, err := h.repo.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to get notifications")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"notifications": rows,
		"total":         total,
	})
}
