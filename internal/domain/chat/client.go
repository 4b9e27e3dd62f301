package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"assistantportal/internal/domain/archive"
	"assistantportal/internal/pkg/jwt"
)

// Attachment is a file already uploaded to the assistant.
type Attachment struct {
	FileID   string `json:"fileId" validate:"required"`
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// SendRequest is the outbound chat-send body.
type SendRequest struct {
	ArchiveID        string       `json:"archiveId"`
	UserID           string       `json:"userId"`
	MessageText      string       `json:"messageText"`
	ModelSelector    string       `json:"modelSelector"`
	Attachments      []Attachment `json:"attachments,omitempty"`
	WebSearchEnabled *bool        `json:"webSearchEnabled,omitempty"`
	ModuleSelector   string       `json:"moduleSelector,omitempty"`
}

// Client talks to the assistant API. Responses are chunked plain text.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient. The http client must not set a Timeout: streams run long and are
// bounded by the request context instead.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Send posts one user message and returns the response stream.
func (c *Client) Send(ctx context.Context, req SendRequest) (io.ReadCloser, error) {
	return c.open(ctx, "/chat/stream", req)
}

// Title opens the title stream for a fresh archive.
func (c *Client) Title(ctx context.Context, req archive.TitleRequest) (io.ReadCloser, error) {
	return c.open(ctx, "/chat/title", req)
}

func (c *Client) open(ctx context.Context, path string, body any) (io.ReadCloser, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")
	if token := jwt.TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrUpstream, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp.Body, nil
}
