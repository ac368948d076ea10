// internal/analysis/client.go
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"printhub/pkg/config"
	"printhub/pkg/middleware"
)

// Outcome codes for failures the service or the transport can report.
const (
	CodeConnectionError = "CONNECTION_ERROR"
	CodeUnknownError    = "UNKNOWN_ERROR"
)

// Issue is a single diagnostic reported by the PrintScript service.
type Issue struct {
	Rule    string `json:"rule"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// ValidationOutcome is always a structured result: validation never leaks
// a raw transport error to its caller.
type ValidationOutcome struct {
	Valid   bool    `json:"isValid"`
	Errors  []Issue `json:"errors,omitempty"`
	Code    string  `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Request carries everything the service needs for one format or lint
// call. Ephemeral; built per call, never persisted.
type Request struct {
	ResourceID    string `json:"resourceId"`
	CorrelationID string `json:"correlationId"`
	Language      string `json:"language"`
	Version       string `json:"version"`
	Content       string `json:"input"`
	UserID        string `json:"userId"`
}

// Client wraps the PrintScript analysis service. Every outbound call is
// stamped with the caller's correlation id and bounded by the configured
// timeout. rdb carries the fire-and-forget notification streams; when nil
// the notifications are no-ops.
type Client struct {
	base     string
	http     *http.Client
	rdb      *redis.Client
	log      *zap.SugaredLogger
	defaults *DefaultRules
}

func NewClient(cfg config.Config, rdb *redis.Client, log *zap.SugaredLogger) *Client {
	c := &Client{
		base: strings.TrimRight(cfg.AnalysisURL, "/"),
		http: &http.Client{Timeout: cfg.OutboundTimeout},
		rdb:  rdb,
		log:  log,
	}
	if cfg.DefaultRulesPath != "" {
		d, err := LoadDefaultRules(cfg.DefaultRulesPath)
		if err != nil {
			log.Warnw("default rules not loaded", "path", cfg.DefaultRulesPath, "err", err)
		} else {
			c.defaults = d
		}
	}
	return c
}

// Validate checks a snippet's syntax. A connection failure yields a
// synthetic CONNECTION_ERROR outcome, an unexpected response yields
// UNKNOWN_ERROR; the caller always receives a structured result.
func (c *Client) Validate(ctx context.Context, content, language, version string) ValidationOutcome {
	body, _ := json.Marshal(map[string]string{
		"content":  content,
		"language": language,
		"version":  version,
	})
	req, err := c.newRequest(ctx, http.MethodPost, "/api/validate", bytes.NewReader(body))
	if err != nil {
		return ValidationOutcome{Valid: false, Code: CodeUnknownError, Message: err.Error()}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return ValidationOutcome{Valid: false, Code: CodeConnectionError, Message: err.Error()}
	}
	defer resp.Body.Close()
	var out ValidationOutcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ValidationOutcome{Valid: false, Code: CodeUnknownError, Message: fmt.Sprintf("unexpected validation response (%d)", resp.StatusCode)}
	}
	return out
}

// Format returns the formatted content for a snippet.
func (c *Client) Format(ctx context.Context, r Request) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	if err := c.postJSON(ctx, "/api/format", r, &out); err != nil {
		return "", fmt.Errorf("analysis: format: %w", err)
	}
	return out.Content, nil
}

// Lint returns the issues the service reports for a snippet.
func (c *Client) Lint(ctx context.Context, r Request) ([]Issue, error) {
	var out struct {
		Issues []Issue `json:"issues"`
	}
	if err := c.postJSON(ctx, "/api/lint", r, &out); err != nil {
		return nil, fmt.Errorf("analysis: lint: %w", err)
	}
	return out.Issues, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := middleware.CorrelationFrom(ctx); id != "" {
		req.Header.Set(middleware.CorrelationHeader, id)
	}
	return req, nil
}
