package portal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"assistantportal/internal/domain/draft"
	"assistantportal/internal/middleware"
	"assistantportal/internal/pkg/response"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	session := protected.Group("/session")
	{
		session.GET("", h.GetSession)
		session.POST("/start", h.StartSession)
		session.POST("/stop", h.StopSession)
	}

	protected.POST("/toast/dismiss", h.DismissToast)
	protected.POST("/gift/close", h.CloseGift)

	drafts := protected.Group("/drafts")
	{
		drafts.POST("/leave/submit", h.SubmitLeave)
		drafts.POST("/leave/close", h.CloseLeave)
		drafts.POST("/approval/close", h.CloseApproval)
	}
}

// StartSession godoc
// @Summary Open the notification channel for the signed-in user
// @Tags Session
// @Security BearerAuth
// @Produce json
// @Router /session/start [post]
func (h *Handler) StartSession(c *gin.Context) {
	s := h.registry.Start(middleware.UserID(c), c.GetString(middleware.CtxToken))
	response.Success(c, http.StatusOK, s.Snapshot())
}

// StopSession godoc
// @Summary Close the notification channel, at logout
// @Tags Session
// @Security BearerAuth
// @Produce json
// @Router /session/stop [post]
func (h *Handler) StopSession(c *gin.Context) {
	stopped := h.registry.Stop(middleware.UserID(c))
	response.Success(c, http.StatusOK, gin.H{"stopped": stopped})
}

func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, s.Snapshot())
}

func (h *Handler) DismissToast(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Toast().Dismiss()
	response.Success(c, http.StatusOK, gin.H{"dismissed": true})
}

func (h *Handler) CloseGift(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.GiftPopup().Close()
	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

// SubmitLeave godoc
// @Summary Submit the open leave draft to the leave system
// @Tags Drafts
// @Security BearerAuth
// @Produce json
// @Router /drafts/leave/submit [post]
func (h *Handler) SubmitLeave(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	in, err := s.LeavePanel().Submit(c.Request.Context())
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{"submitted": in})
	case errors.Is(err, draft.ErrNoDraft):
		response.Error(c, http.StatusConflict, "NO_DRAFT", "No leave draft is open")
	case errors.Is(err, draft.ErrSubmitRejected):
		response.Error(c, http.StatusUnprocessableEntity, "LEAVE_REJECTED", err.Error())
	default:
		response.Error(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Leave service is unavailable")
	}
}

func (h *Handler) CloseLeave(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.LeavePanel().Close()
	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

func (h *Handler) CloseApproval(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.ApprovalPanel().Close()
	response.Success(c, http.StatusOK, gin.H{"closed": true})
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	s, ok := h.registry.Get(middleware.UserID(c))
	if !ok {
		response.Error(c, http.StatusNotFound, "SESSION_NOT_FOUND", ErrSessionNotFound.Error())
		return nil, false
	}
	return s, true
}
