package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSubmitter posts drafts to the leave REST API.
type HTTPSubmitter struct {
	url    string
	client *http.Client
	// token returns the caller's bearer token, may be nil.
	token func(ctx context.Context) string
}

func NewHTTPSubmitter(url string, client *http.Client, token func(ctx context.Context) string) *HTTPSubmitter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSubmitter{url: url, client: client, token: token}
}

type leaveRequestBody struct {
	UserID           string         `json:"userId"`
	StartDate        string         `json:"startDate"`
	EndDate          string         `json:"endDate"`
	LeaveType        string         `json:"leaveType"`
	Reason           string         `json:"reason"`
	HalfDaySlot      HalfDaySlot    `json:"halfDaySlot"`
	ApprovalLine     []ApprovalStep `json:"approvalLine"`
	CCList           []CCEntry      `json:"ccList"`
	UseNextYearLeave bool           `json:"useNextYearLeave"`
}

func (s *HTTPSubmitter) SubmitLeave(ctx context.Context, in DraftPanelInput) error {
	body, err := json.Marshal(leaveRequestBody{
		UserID:           in.UserID,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		LeaveType:        in.LeaveType,
		Reason:           in.Reason,
		HalfDaySlot:      in.HalfDaySlot,
		ApprovalLine:     in.ApprovalLine,
		CCList:           in.CCList,
		UseNextYearLeave: in.UseNextYearLeave,
	})
	if err != nil {
		return fmt.Errorf("encode leave request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create leave request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != nil {
		if t := s.token(ctx); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit leave request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrSubmitRejected, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
