// Package upstream is the HTTP client for the remote assessment API. It owns
// nothing: attempts, grading and definitions live upstream, and this package
// only moves them across the wire.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/model"
	"github.com/stemsi/exstem-gateway/internal/response"
	"github.com/stemsi/exstem-gateway/internal/session"
)

const maxResponseBytes = 4 << 20

// APIError is a non-2xx answer from the upstream API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// envelope mirrors response.Response on the decoding side.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error,omitempty"`
}

// Client holds the shared transport for every student's calls.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a Client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "upstream").Logger(),
	}
}

// For returns a Caller that acts on behalf of the student holding token.
func (c *Client) For(token string) *Caller {
	return &Caller{client: c, token: token}
}

// Caller implements session.API for one student. The token is replaced on
// every gateway request so long-lived sessions keep using a fresh one.
type Caller struct {
	client *Client

	mu    sync.RWMutex
	token string
}

var _ session.API = (*Caller)(nil)

// SetToken replaces the bearer token used for subsequent calls.
func (c *Caller) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Caller) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Caller) StartAttempt(ctx context.Context, examID string) error {
	return c.do(ctx, http.MethodPost, "/exams/"+url.PathEscape(examID)+"/attempt/start", nil, nil)
}

func (c *Caller) GetAttempt(ctx context.Context, examID string) (*model.Attempt, error) {
	var a *model.Attempt
	err := c.do(ctx, http.MethodGet, "/exams/"+url.PathEscape(examID)+"/attempt", nil, &a)
	if IsStatus(err, http.StatusNotFound) {
		return nil, session.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, session.ErrAttemptNotFound
	}
	return a, nil
}

func (c *Caller) PauseAttempt(ctx context.Context, examID string) error {
	return c.do(ctx, http.MethodPost, "/exams/"+url.PathEscape(examID)+"/attempt/pause", nil, nil)
}

func (c *Caller) ResumeAttempt(ctx context.Context, examID string) error {
	return c.do(ctx, http.MethodPost, "/exams/"+url.PathEscape(examID)+"/attempt/resume", nil, nil)
}

func (c *Caller) SubmitAttempt(ctx context.Context, examID string, answers []model.UserAnswer) (*model.SubmitReceipt, error) {
	var r model.SubmitReceipt
	body := model.SubmitAttemptRequest{Answers: answers}
	if err := c.do(ctx, http.MethodPost, "/exams/"+url.PathEscape(examID)+"/attempt/submit", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Caller) GetAttemptDetail(ctx context.Context, attemptID string) (*model.AttemptDetail, error) {
	var d model.AttemptDetail
	if err := c.do(ctx, http.MethodGet, "/attempts/"+url.PathEscape(attemptID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Caller) GetExamDefinition(ctx context.Context, examID string) (*model.ExamDefinition, error) {
	var d model.ExamDefinition
	if err := c.do(ctx, http.MethodGet, "/exams/"+url.PathEscape(examID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Caller) GetExerciseDefinition(ctx context.Context, exerciseID string) (*model.ExerciseDefinition, error) {
	var d model.ExerciseDefinition
	if err := c.do(ctx, http.MethodGet, "/exercises/"+url.PathEscape(exerciseID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Caller) SubmitExercise(ctx context.Context, exerciseID string, answers []model.UserAnswer) (*model.SubmitReceipt, error) {
	var r model.SubmitReceipt
	body := model.SubmitAttemptRequest{Answers: answers}
	if err := c.do(ctx, http.MethodPost, "/exercises/"+url.PathEscape(exerciseID)+"/submit", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Caller) ListMyAttempts(ctx context.Context, kind model.AssessmentKind) ([]model.Attempt, error) {
	var out []model.Attempt
	q := url.Values{"type": {string(kind)}}
	if err := c.do(ctx, http.MethodGet, "/me/attempts?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do performs one call and decodes the envelope's data into out (may be nil).
func (c *Caller) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.client.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	reqID := response.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.client.http.Do(req)
	if err != nil {
		c.client.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("Upstream call failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.client.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Upstream call")

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = string(env.Error.Code)
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
