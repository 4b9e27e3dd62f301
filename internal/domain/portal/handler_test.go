package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistantportal/internal/domain/draft"
	"assistantportal/internal/middleware"
)

type stubSubmitter struct {
	err error
	got []draft.DraftPanelInput
}

func (s *stubSubmitter) SubmitLeave(_ context.Context, in draft.DraftPanelInput) error {
	s.got = append(s.got, in)
	return s.err
}

func setupHandler(t *testing.T, sub draft.Submitter) (*gin.Engine, *Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	opts := testOptions(&hubRecorder{})
	opts.StreamURL = upstream.URL
	opts.Submitter = sub
	reg := NewRegistry(opts)
	t.Cleanup(func() {
		reg.Shutdown()
		upstream.Close()
	})

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserID, "u1")
		c.Set(middleware.CtxToken, "tkn")
		c.Next()
	})
	NewHandler(reg).RegisterRoutes(api)
	return r, reg
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1"+path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHandlerSessionLifecycle(t *testing.T) {
	r, reg := setupHandler(t, &stubSubmitter{})

	w := do(r, http.MethodGet, "/session")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", errorCode(t, w))

	w = do(r, http.MethodPost, "/session/start")
	require.Equal(t, http.StatusOK, w.Code)
	s, ok := reg.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "tkn", s.currentToken())

	w = do(r, http.MethodGet, "/session")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/toast/dismiss").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/gift/close").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/drafts/approval/close").Code)

	w = do(r, http.MethodPost, "/session/stop")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stopped":true`)
	_, ok = reg.Get("u1")
	assert.False(t, ok)
}

func TestHandlerSubmitLeave(t *testing.T) {
	sub := &stubSubmitter{}
	r, reg := setupHandler(t, sub)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/session/start").Code)
	s, _ := reg.Get("u1")

	w := do(r, http.MethodPost, "/drafts/leave/submit")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_DRAFT", errorCode(t, w))

	s.OpenLeave(draft.DraftPanelInput{StartDate: "2025-05-01", EndDate: "2025-05-01", HalfDaySlot: draft.HalfDayAll})
	w = do(r, http.MethodPost, "/drafts/leave/submit")
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sub.got, 1)
	assert.Equal(t, "2025-05-01", sub.got[0].StartDate)
	_, open := s.LeavePanel().Current()
	assert.False(t, open)
}

func TestHandlerSubmitLeaveErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"rejected", fmt.Errorf("%w: balance", draft.ErrSubmitRejected), http.StatusUnprocessableEntity, "LEAVE_REJECTED"},
		{"upstream", errors.New("dial: refused"), http.StatusBadGateway, "UPSTREAM_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, reg := setupHandler(t, &stubSubmitter{err: tt.err})
			require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/session/start").Code)
			s, _ := reg.Get("u1")
			s.OpenLeave(draft.DraftPanelInput{StartDate: "2025-05-01"})

			w := do(r, http.MethodPost, "/drafts/leave/submit")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))

			_, open := s.LeavePanel().Current()
			assert.True(t, open)
		})
	}
}
