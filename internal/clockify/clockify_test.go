package clockify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/playtracker/internal/apperror"
)

const testUser = "5f1e2d3c4b5a69788796a5b4"

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:              srv.URL,
		WorkspaceID:          "ws1",
		APIKey:               "secret",
		MaxRetries:           3,
		RetryInitialInterval: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTimeEntries_RequestShape(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_ = json.NewEncoder(w).Encode([]TimeEntry{{
			ID:        "e1",
			ProjectID: ptr("p1"),
			TagIDs:    []string{"tag_steam"},
			TimeInterval: TimeInterval{
				Start:    "2024-01-01T10:00:00Z",
				End:      ptr("2024-01-01T12:00:00Z"),
				Duration: ptr("PT2H"),
			},
		}})
	}))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries, err := c.TimeEntries(context.Background(), testUser, start, 2, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, "PT2H", *entries[0].TimeInterval.Duration)

	require.NotNil(t, got)
	assert.Equal(t, "/workspaces/ws1/user/"+testUser+"/time-entries", got.URL.Path)
	assert.Equal(t, "500", got.URL.Query().Get("page-size"))
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "2024-01-01T00:00:00Z", got.URL.Query().Get("start"))
	assert.Equal(t, "secret", got.Header.Get("X-API-KEY"))
}

func TestTimeEntries_NonHexUserIsRejected(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	entries, err := c.TimeEntries(context.Background(), "not-an-id", time.Now(), 1, 0)
	require.ErrorIs(t, err, apperror.ErrValidation)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "clockify_id", appErr.Field)
	assert.Empty(t, entries)
	assert.Zero(t, calls.Load())
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]Tag{{ID: "t1", Name: "Steam"}})
	}))

	tags, err := c.Tags(context.Background())
	require.NoError(t, err)
	assert.Len(t, tags, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_GivesUpAsUpstreamError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.Tags(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrUpstream))
	// one attempt plus MaxRetries
	assert.Equal(t, int32(4), calls.Load())
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.Tags(context.Background())
	assert.True(t, errors.Is(err, apperror.ErrUpstream))
	assert.Equal(t, int32(1), calls.Load())
}

func TestProject_NotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.Project(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestDo_ContextCanceled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Tags(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProjectManagement(t *testing.T) {
	var lastMethod, lastPath string
	var lastBody map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastMethod, lastPath = r.Method, r.URL.Path
		lastBody = nil
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&lastBody)
		}
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "Hades", r.URL.Query().Get("name"))
			assert.Equal(t, "true", r.URL.Query().Get("strict-name-search"))
			_ = json.NewEncoder(w).Encode([]Project{{ID: "p1", Name: "Hades"}})
		case http.MethodPost:
			_ = json.NewEncoder(w).Encode(Project{ID: "p9", Name: lastBody["name"]})
		case http.MethodPut:
			w.WriteHeader(http.StatusOK)
		}
	}))
	ctx := context.Background()

	found, err := c.ProjectsByName(ctx, "Hades", true)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "p1", found[0].ID)

	created, err := c.AddProject(ctx, "Celeste")
	require.NoError(t, err)
	assert.Equal(t, "p9", created.ID)
	assert.Equal(t, "/workspaces/ws1/projects", lastPath)

	require.NoError(t, c.UpdateProjectName(ctx, "p9", "Celeste 64"))
	assert.Equal(t, http.MethodPut, lastMethod)
	assert.Equal(t, "/workspaces/ws1/projects/p9", lastPath)
	assert.Equal(t, "Celeste 64", lastBody["name"])
}

func TestAddProject_NotRetriedAfterServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.AddProject(context.Background(), "Celeste")
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, int32(1), calls.Load(), "a POST the server may have applied must not be repeated")
}

func TestAddProject_RetriedWhenRateLimited(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(Project{ID: "p9", Name: "Celeste"})
	}))

	p, err := c.AddProject(context.Background(), "Celeste")
	require.NoError(t, err)
	assert.Equal(t, "p9", p.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func ptr[T any](v T) *T { return &v }
