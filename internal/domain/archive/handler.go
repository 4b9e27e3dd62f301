package archive

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"assistantportal/internal/middleware"
	"assistantportal/internal/pkg/response"
	"assistantportal/internal/pkg/validator"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts archive routes. Sending a message lives in the chat handler.
func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	archives := protected.Group("/archives")
	{
		archives.GET("", h.List)
		archives.POST("", h.Create)
		archives.POST("/:id/select", h.Select)
		archives.GET("/:id/messages", h.Messages)
	}
}

type createRequest struct {
	Name string `json:"name" validate:"max=200"`
}

func (h *Handler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	list, err := h.store.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load archives")
		return
	}

	var currentID string
	if cur, ok := h.store.Current(userID); ok {
		currentID = cur.ID
	}
	response.Success(c, http.StatusOK, gin.H{
		"archives":   list,
		"current_id": currentID,
	})
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", errs)
		return
	}

	a, err := h.store.Create(c.Request.Context(), middleware.UserID(c), req.Name)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create archive")
		return
	}
	response.Success(c, http.StatusCreated, a)
}

func (h *Handler) Select(c *gin.Context) {
	a, err := h.store.Select(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, a)
}

func (h *Handler) Messages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := h.store.Messages(c.Request.Context(), middleware.UserID(c), c.Param("id"), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"messages": msgs})
}

// WriteError maps archive errors to responses. Shared with the chat handler.
func WriteError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, ErrArchiveNotFound), errors.Is(err, ErrNotOwner):
		response.Error(c, http.StatusNotFound, "ARCHIVE_NOT_FOUND", "Archive not found")
	case errors.Is(err, ErrEmptyName):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, err error) {
	if !WriteError(c, err) {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
