package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/post-migrate/app/database"
	"github.com/lysyi3m/post-migrate/app/migration"
)

const testAccessKey = "secret"

type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) UpsertPost(ctx context.Context, post database.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) GetPost(ctx context.Context, id string) (*database.Post, error) {
	args := m.Called(ctx, id)
	post, _ := args.Get(0).(*database.Post)
	return post, args.Error(1)
}

func (m *MockPostRepository) GetPostCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Start(ctx context.Context, opts migration.Options) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func (m *MockRunner) Running() (string, bool) {
	args := m.Called()
	return args.String(0), args.Bool(1)
}

func (m *MockRunner) Latest(ctx context.Context) (*migration.Summary, error) {
	args := m.Called(ctx)
	summary, _ := args.Get(0).(*migration.Summary)
	return summary, args.Error(1)
}

var defaultOptions = migration.Options{PageSize: 20, MaxConcurrency: 5}

func newTestServer(posts *MockPostRepository, runner *MockRunner, accessKey string) *gin.Engine {
	handler := NewHandler(context.Background(), posts, runner, defaultOptions)
	return NewServer(handler, accessKey, "test")
}

func perform(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGetPost(t *testing.T) {
	posts := new(MockPostRepository)
	posts.On("GetPost", mock.Anything, "42").Return(&database.Post{
		ID:          "42",
		Title:       "Chords",
		Body:        `<img src="https://cdn.example/2020/a.jpg">`,
		Excerpt:     "Chords…",
		ReadingTime: 2,
		Images:      []string{"https://cdn.example/2020/a.jpg"},
		PublishedAt: time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil)

	w := perform(newTestServer(posts, new(MockRunner), ""), "GET", "/posts/42", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "42", body["id"])
	assert.Equal(t, float64(2), body["reading_time"])
	assert.Equal(t, "2020-05-01T10:00:00Z", body["published_at"])
	assert.Equal(t, []any{"https://cdn.example/2020/a.jpg"}, body["images"])
}

func TestGetPost_NotFound(t *testing.T) {
	posts := new(MockPostRepository)
	posts.On("GetPost", mock.Anything, "missing").Return(nil, nil)

	w := perform(newTestServer(posts, new(MockRunner), ""), "GET", "/posts/missing", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPost_DatabaseError(t *testing.T) {
	posts := new(MockPostRepository)
	posts.On("GetPost", mock.Anything, "42").Return(nil, database.ErrUnavailable)

	w := perform(newTestServer(posts, new(MockRunner), ""), "GET", "/posts/42", "", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetHealth(t *testing.T) {
	posts := new(MockPostRepository)
	posts.On("GetPostCount", mock.Anything).Return(12, nil)
	runner := new(MockRunner)
	runner.On("Running").Return("run-1", true)

	w := perform(newTestServer(posts, runner, ""), "GET", "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(12), body["posts"])
	assert.Equal(t, true, body["run_in_progress"])
	assert.Equal(t, "run-1", body["run_id"])
}

func TestAPIRoutes_DisabledWithoutAccessKey(t *testing.T) {
	w := perform(newTestServer(new(MockPostRepository), new(MockRunner), ""), "GET", "/api/runs/latest", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": testAccessKey}, http.StatusOK},
		{"bearer key", map[string]string{"Authorization": "Bearer " + testAccessKey}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockRunner)
			runner.On("Latest", mock.Anything).Return(&migration.Summary{RunID: "run-1"}, nil)

			w := perform(newTestServer(new(MockPostRepository), runner, testAccessKey), "GET", "/api/runs/latest", "", tt.headers)

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestAPIGetLatestRun(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Latest", mock.Anything).Return(&migration.Summary{
		RunID:     "run-3",
		Total:     5,
		Succeeded: 4,
		Failed:    1,
		Failures:  []migration.Failure{{PostID: "2", Reason: "store unavailable: locked"}},
		NextPage:  3,
	}, nil)

	w := perform(newTestServer(new(MockPostRepository), runner, testAccessKey), "GET", "/api/runs/latest", "",
		map[string]string{"X-API-Key": testAccessKey})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "run-3", body["run_id"])
	assert.Equal(t, float64(1), body["failed"])
	assert.Len(t, body["failures"], 1)
}

func TestAPIGetLatestRun_NoRuns(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Latest", mock.Anything).Return(nil, nil)

	w := perform(newTestServer(new(MockPostRepository), runner, testAccessKey), "GET", "/api/runs/latest", "",
		map[string]string{"X-API-Key": testAccessKey})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIStartRun_Defaults(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Start", mock.Anything, defaultOptions).Return("run-4", nil)

	w := perform(newTestServer(new(MockPostRepository), runner, testAccessKey), "POST", "/api/runs", "",
		map[string]string{"X-API-Key": testAccessKey})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "run-4", decode(t, w)["run_id"])
	runner.AssertExpectations(t)
}

func TestAPIStartRun_Overrides(t *testing.T) {
	runner := new(MockRunner)
	expected := migration.Options{PageSize: 50, MaxConcurrency: 5, StartPage: 7}
	runner.On("Start", mock.Anything, expected).Return("run-5", nil)

	w := perform(newTestServer(new(MockPostRepository), runner, testAccessKey), "POST", "/api/runs",
		`{"page_size": 50, "start_page": 7}`, map[string]string{"X-API-Key": testAccessKey})

	assert.Equal(t, http.StatusAccepted, w.Code)
	runner.AssertExpectations(t)
}

func TestAPIStartRun_InvalidBody(t *testing.T) {
	runner := new(MockRunner)

	tests := []string{`{"page_size": "many"}`, `{"max_concurrency": 0}`, `{"start_page": -1}`}
	for _, body := range tests {
		w := perform(newTestServer(new(MockPostRepository), runner, testAccessKey), "POST", "/api/runs", body,
			map[string]string{"X-API-Key": testAccessKey})

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	runner.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestAPIStartRun_Conflict(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Start", mock.Anything, mock.Anything).Return("", migration.ErrRunInProgress)
	runner.On("Running").Return("run-6", true)

	w := perform(newTestServer(new(MockPostRepository), runner, testAccessKey), "POST", "/api/runs", "",
		map[string]string{"X-API-Key": testAccessKey})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "run-6", decode(t, w)["run_id"])
}

func TestAPIStartRun_Error(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Start", mock.Anything, mock.Anything).Return("", errors.New("boom"))

	w := perform(newTestServer(new(MockPostRepository), runner, testAccessKey), "POST", "/api/runs", "",
		map[string]string{"X-API-Key": testAccessKey})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRootEndpoint(t *testing.T) {
	w := perform(newTestServer(new(MockPostRepository), new(MockRunner), testAccessKey), "GET", "/", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "test", body["version"])
	endpoints := body["endpoints"].(map[string]any)
	assert.Contains(t, endpoints, "start_run")
}
