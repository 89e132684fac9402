package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"xpert-backend/internal/models"
)

// DefaultTimeout bounds every call made by the dashboard helpers.
const DefaultTimeout = 20 * time.Second

// Client talks to a running Xpert backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		token:      token,
	}
}

// ErrMalformedResponse is returned when the backend answers with a body that
// is not a usable chat completion.
var ErrMalformedResponse = errors.New("malformed chat completion")

// Complete sends one chat turn tagged with role and returns the assistant text.
func (c *Client) Complete(ctx context.Context, role models.UserRole, userText string) (string, error) {
	payload := models.ChatRequest{
		Model: "your-llm-model-id",
		Messages: []models.ChatMessage{
			{Role: "system", Content: fmt.Sprintf("You are Xpert, operating in %s mode. Analyze context and respond to the user.", role)},
			{Role: "user", Content: userText},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", statusError(resp)
	}

	var completion models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return completion.Choices[0].Message.Content, nil
}

// Ask is Complete for chat UIs: failures come back as displayable text.
func (c *Client) Ask(ctx context.Context, role models.UserRole, userText string) string {
	text, err := c.Complete(ctx, role, userText)
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "ERROR: Invalid JSON format returned by the backend. Check FastAPI logs."
	case err != nil:
		return fmt.Sprintf("ERROR: API Connection Failed. Ensure FastAPI server is running. Details: %v", err)
	}
	return text
}

type AnalyzeParams struct {
	Path    string
	Message string
	Role    string
	Mock    bool
	Debug   bool
}

// APIError is a non-2xx answer from /analyze.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Analyze uploads the image at p.Path to /analyze.
func (c *Client) Analyze(ctx context.Context, p AnalyzeParams) (*models.AnalysisResponse, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(p.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if p.Message != "" {
		mw.WriteField("message", p.Message)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	q := url.Values{}
	if p.Role != "" {
		q.Set("role", p.Role)
	}
	if p.Mock {
		q.Set("mock", "1")
	}
	if p.Debug {
		q.Set("debug", "1")
	}
	endpoint := c.baseURL + "/analyze"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, statusError(resp)
	}

	var out models.AnalysisResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &out, nil
}

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode health: %w", err)
	}
	return &out, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// statusError reads either error body shape the backend produces: the flat
// {"error": "..."} of the handlers or the middleware's {"error": {...}}.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var flat models.ErrorResponse
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: flat.Error}
	}
	var structured models.APIErrorResponse
	if json.Unmarshal(body, &structured) == nil && structured.Error.Message != "" {
		return &APIError{Status: resp.StatusCode, Message: structured.Error.Message}
	}
	return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}
