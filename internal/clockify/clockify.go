// Package clockify is a small client for the Clockify REST API.
//
// Only the calls the tracker needs are implemented: paged time entries,
// project lookup and management, and the workspace tag list. Every call
// goes through do, which retries transient failures with exponential
// backoff and reports the final failure as apperror.ErrUpstream.
package clockify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sakif/playtracker/internal/apperror"
)

const (
	DefaultBaseURL = "https://api.clockify.me/api/v1"
	// PageSize is the largest page the time-entries endpoint accepts.
	PageSize = 500

	apiKeyHeader = "X-API-KEY"
	// startLayout is the only start format the time-entries endpoint accepts.
	startLayout = "2006-01-02T15:04:05Z"
)

// Config holds what the client needs to reach one workspace.
type Config struct {
	BaseURL     string
	WorkspaceID string
	APIKey      string

	// MaxRetries bounds retries of a single call. Zero means 4.
	MaxRetries uint64
	// RetryInitialInterval is the first backoff delay. Zero means 500ms.
	RetryInitialInterval time.Duration
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

type Client struct {
	baseURL   string
	workspace string
	apiKey    string
	http      *http.Client
	logger    *slog.Logger

	maxRetries      uint64
	initialInterval time.Duration
}

func New(cfg Config, logger *slog.Logger) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		workspace:       cfg.WorkspaceID,
		apiKey:          cfg.APIKey,
		http:            cfg.HTTPClient,
		logger:          logger,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.RetryInitialInterval,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.maxRetries == 0 {
		c.maxRetries = 4
	}
	if c.initialInterval == 0 {
		c.initialInterval = 500 * time.Millisecond
	}
	return c
}

// statusError is a non-2xx response.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// retryable reports whether a failed attempt is worth repeating. A POST
// that reached the server may have been applied, so only a 429 (rejected
// before processing) is repeated for it.
func retryable(method string, status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return method != http.MethodPost && status >= 500
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialInterval
	eb.MaxInterval = 10 * time.Second
	eb.MaxElapsedTime = 0 // bounded by MaxRetries instead
	return backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)
}

// do performs one API call with retries and decodes a JSON response into
// out (if non-nil). path is relative to the workspace.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + "/workspaces/" + url.PathEscape(c.workspace) + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	op := method + " " + path

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("clockify: encoding %s body: %w", op, err)
		}
	}

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set(apiKeyHeader, c.apiKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("clockify request failed", "op", op, "attempt", attempt, "error", err)
			if method == http.MethodPost {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			se := &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
			if retryable(method, resp.StatusCode) {
				c.logger.Warn("clockify request failed", "op", op, "attempt", attempt, "status", resp.StatusCode)
				return se
			}
			return backoff.Permanent(se)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	}, c.newBackOff(ctx))
	if err == nil {
		return nil
	}

	var se *statusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return apperror.NotFound("clockify resource", path)
	}
	return apperror.Upstream(op, err)
}

// TimeEntries fetches one page of a user's time entries that started at or
// after start. Pages are 1-based; an empty page marks the end.
//
// A user id that is not a hex object id cannot exist on the service; it is
// rejected as a validation error without a request.
func (c *Client) TimeEntries(ctx context.Context, userID string, start time.Time, page, pageSize int) ([]TimeEntry, error) {
	if !isHex(userID) {
		return nil, apperror.ValidationFailed("clockify_id",
			fmt.Sprintf("clockify user id %q is not a hex object id", userID))
	}
	if pageSize <= 0 {
		pageSize = PageSize
	}

	q := url.Values{}
	q.Set("page-size", fmt.Sprint(pageSize))
	q.Set("page", fmt.Sprint(page))
	q.Set("start", start.UTC().Format(startLayout))

	var entries []TimeEntry
	if err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(userID)+"/time-entries", q, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Project fetches a single project by id.
func (c *Client) Project(ctx context.Context, projectID string) (*Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProjectsByName searches projects by name. strict requests an exact match.
func (c *Client) ProjectsByName(ctx context.Context, name string, strict bool) ([]Project, error) {
	q := url.Values{}
	q.Set("name", name)
	if strict {
		q.Set("strict-name-search", "true")
	}

	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/projects", q, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// AddProject creates a project and returns it with its new id.
func (c *Client) AddProject(ctx context.Context, name string) (*Project, error) {
	var p Project
	if err := c.do(ctx, http.MethodPost, "/projects", nil, map[string]string{"name": name}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProjectName renames an existing project.
func (c *Client) UpdateProjectName(ctx context.Context, projectID, name string) error {
	return c.do(ctx, http.MethodPut, "/projects/"+url.PathEscape(projectID), nil,
		map[string]string{"name": name}, nil)
}

// Tags lists every tag in the workspace.
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.do(ctx, http.MethodGet, "/tags", nil, nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
