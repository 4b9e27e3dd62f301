package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"assistantportal/internal/domain/archive"
	"assistantportal/internal/domain/draft"
	"assistantportal/internal/middleware"
	"assistantportal/internal/pkg/response"
	"assistantportal/internal/pkg/validator"
)

// TargetResolver returns the draft panels of a user's live session, or nil.
type TargetResolver func(userID string) DraftTargets

type Handler struct {
	service *Service
	targets TargetResolver
}

func NewHandler(service *Service, targets TargetResolver) *Handler {
	return &Handler{service: service, targets: targets}
}

func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.POST("/archives/:id/messages", h.SendMessage)
	protected.GET("/archives/:id/stream", h.StreamSession)
}

type sendMessageRequest struct {
	MessageText      string       `json:"message_text" validate:"required,max=8000"`
	ModelSelector    string       `json:"model_selector" validate:"required,max=100"`
	Attachments      []Attachment `json:"attachments" validate:"max=10,dive"`
	WebSearchEnabled *bool        `json:"web_search_enabled"`
	ModuleSelector   string       `json:"module_selector" validate:"max=100"`
}

// SendMessage godoc
// @Summary Send a chat message and stream the answer
// @Tags Chat
// @Security BearerAuth
// @Accept json
// @Produce text/event-stream
// @Param id path string true "Archive ID"
// @Router /archives/{id}/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", errs)
		return
	}

	userID := middleware.UserID(c)
	var targets DraftTargets
	if h.targets != nil {
		targets = h.targets(userID)
	}

	sink := &sseSink{c: c}
	result, err := h.service.SendMessage(c.Request.Context(), userID, c.Param("id"), MessageInput{
		MessageText:      req.MessageText,
		ModelSelector:    req.ModelSelector,
		Attachments:      req.Attachments,
		WebSearchEnabled: req.WebSearchEnabled,
		ModuleSelector:   req.ModuleSelector,
	}, targets, sink)

	if err != nil {
		if !sink.started {
			writeSendError(c, err)
			return
		}
		sink.send("error", gin.H{
			"code":    "STREAM_FAILED",
			"message": "Assistant response was interrupted",
			"partial": result.Text,
		})
		return
	}

	sink.send("done", result)
}

// StreamSession godoc
// @Summary Snapshot of the answer currently streaming into an archive
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Param id path string true "Archive ID"
// @Router /archives/{id}/stream [get]
func (h *Handler) StreamSession(c *gin.Context) {
	archiveID := c.Param("id")
	if _, err := h.service.store.Get(c.Request.Context(), middleware.UserID(c), archiveID); err != nil {
		writeSendError(c, err)
		return
	}
	sess, ok := h.service.Session(archiveID)
	if !ok {
		sess = StreamSession{ArchiveID: archiveID, Triggers: []TriggerRecord{}}
	}
	response.Success(c, http.StatusOK, sess)
}

func writeSendError(c *gin.Context, err error) {
	if archive.WriteError(c, err) {
		return
	}
	switch {
	case errors.Is(err, ErrStreamInFlight):
		response.Error(c, http.StatusConflict, "STREAM_IN_FLIGHT", "A response is already streaming for this archive")
	case errors.Is(err, ErrEmptyMessage):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "message_text is required")
	case errors.Is(err, ErrUpstream):
		response.Error(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Assistant is unavailable")
	case errors.Is(err, ErrStreamFailed):
		response.Error(c, http.StatusBadGateway, "STREAM_FAILED", "Assistant response was interrupted")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// sseSink writes stream events to the caller as server-sent events. Headers
// go out with the first event so early failures can still answer in JSON.
type sseSink struct {
	c       *gin.Context
	started bool
}

func (s *sseSink) OnText(delta string) {
	s.send("text", gin.H{"delta": delta})
}

func (s *sseSink) OnLeaveDraft(in draft.DraftPanelInput) {
	s.send("leave_draft", in)
}

func (s *sseSink) OnApprovalDraft(d draft.ApprovalDraft) {
	s.send("approval_draft", d)
}

func (s *sseSink) send(event string, data any) {
	if !s.started {
		h := s.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.c.Status(http.StatusOK)
		s.started = true
	}
	s.c.SSEvent(event, data)
	s.c.Writer.Flush()
}
