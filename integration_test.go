package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskify/backend/internal/app"
	"taskify/backend/internal/config"
	"taskify/backend/internal/logging"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Detail     string          `json:"detail"`
	Data       json.RawMessage `json:"data"`
}

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func (c *apiClient) do(method, path, token string, body interface{}) (int, envelope) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

type session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type taskBody struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	CreatedBy   string  `json:"created_by"`
	AssignedTo  *string `json:"assigned_to"`
}

func newTestApp(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	cfg := &config.Config{
		App:    config.AppConfig{Name: "taskify-test"},
		Server: config.ServerConfig{Environment: "test", CORSAllowedOrigins: []string{"*"}},
		Database: config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			SQLitePath:   filepath.Join(t.TempDir(), "taskify.db"),
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Redis: config.RedisConfig{Host: mr.Host(), Port: mr.Port(), PoolSize: 2},
		Auth: config.AuthConfig{
			JWTSecret:       "integration-secret",
			Issuer:          "taskify-backend",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: time.Hour,
			BCryptCost:      4,
		},
	}
	require.NoError(t, cfg.Validate())

	a, err := app.New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return &apiClient{t: t, router: a.Router}
}

func signUp(c *apiClient, email, username string) session {
	c.t.Helper()
	code, env := c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "username": username, "password": "pa55word",
	})
	require.Equal(c.t, http.StatusCreated, code, env.Detail)

	var s session
	require.NoError(c.t, json.Unmarshal(env.Data, &s))
	return s
}

func TestEndToEnd_TaskLifecycle(t *testing.T) {
	c := newTestApp(t)

	ada := signUp(c, "ada@example.com", "ada")
	bob := signUp(c, "bob@example.com", "bob")
	eve := signUp(c, "eve@example.com", "eve")

	code, env := c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ADA@example.com", "password": "pa55word",
	})
	require.Equal(t, http.StatusOK, code, env.Detail)

	code, env = c.do(http.MethodPost, "/api/v1/tasks", ada.AccessToken, map[string]interface{}{
		"title":       "Write report",
		"description": "quarterly numbers",
		"due_date":    "2030-01-01T09:00:00Z",
		"assigned_to": "bob@example.com",
		"created_by":  eve.User.ID,
	})
	require.Equal(t, http.StatusCreated, code, env.Detail)
	var task taskBody
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Equal(t, ada.User.ID, task.CreatedBy)
	assert.Equal(t, "pending", task.Status)

	code, _ = c.do(http.MethodGet, "/api/v1/tasks/"+task.ID, bob.AccessToken, nil)
	assert.Equal(t, http.StatusOK, code, "assignee can read")

	code, env = c.do(http.MethodGet, "/api/v1/tasks/"+task.ID, eve.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, http.StatusForbidden, env.StatusCode)

	code, _ = c.do(http.MethodDelete, "/api/v1/tasks/"+task.ID, eve.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = c.do(http.MethodGet, "/api/v1/tasks?page=1&limit=10", eve.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Tasks []taskBody `json:"tasks"`
		Total int64      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list.Tasks)
	assert.Zero(t, list.Total)

	code, env = c.do(http.MethodGet, "/api/v1/tasks", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Tasks, 1)

	code, env = c.do(http.MethodPatch, "/api/v1/tasks/"+task.ID, bob.AccessToken, map[string]interface{}{
		"status": "in-progress",
	})
	require.Equal(t, http.StatusOK, code, env.Detail)
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Equal(t, "in-progress", task.Status)
	require.NotNil(t, task.Description)
	assert.Equal(t, "quarterly numbers", *task.Description)

	code, env = c.do(http.MethodPatch, "/api/v1/tasks/"+task.ID, ada.AccessToken, map[string]interface{}{
		"status": "archived",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code, env.Detail)

	code, _ = c.do(http.MethodDelete, "/api/v1/tasks/"+task.ID, ada.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = c.do(http.MethodGet, "/api/v1/tasks/"+task.ID, ada.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEndToEnd_TokenLifecycle(t *testing.T) {
	c := newTestApp(t)
	ada := signUp(c, "ada@example.com", "ada")

	code, _ := c.do(http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := c.do(http.MethodGet, "/api/v1/auth/greet/user", ada.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Hello, ada!", env.Detail)

	code, _ = c.do(http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh_token": ada.RefreshToken})
	assert.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodPost, "/api/v1/auth/logout", "", map[string]string{"refresh_token": ada.RefreshToken})
	assert.Equal(t, http.StatusOK, code)

	code, env = c.do(http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh_token": ada.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Refresh token has been revoked", env.Detail)

	code, _ = c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "ada@example.com", "username": "other",
	})
	assert.Equal(t, http.StatusConflict, code)
}

func TestEndToEnd_DeleteAccountCascades(t *testing.T) {
	c := newTestApp(t)
	ada := signUp(c, "ada@example.com", "ada")
	bob := signUp(c, "bob@example.com", "bob")

	code, env := c.do(http.MethodPost, "/api/v1/tasks", ada.AccessToken, map[string]interface{}{
		"title": "for bob", "due_date": "2030-01-01T09:00:00Z", "assigned_to": "bob@example.com",
	})
	require.Equal(t, http.StatusCreated, code, env.Detail)
	var task taskBody
	require.NoError(t, json.Unmarshal(env.Data, &task))

	code, _ = c.do(http.MethodDelete, "/api/v1/auth/me", ada.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, code)

	code, _ = c.do(http.MethodGet, "/api/v1/tasks/"+task.ID, bob.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = c.do(http.MethodGet, "/api/v1/tasks", ada.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestEndToEnd_MixedCaseAssignee(t *testing.T) {
	c := newTestApp(t)
	alice := signUp(c, "Alice@Example.com", "alice")
	bob := signUp(c, "bob@example.com", "bob")
	assert.Equal(t, "alice@example.com", alice.User.Email)

	code, env := c.do(http.MethodPost, "/api/v1/tasks", bob.AccessToken, map[string]interface{}{
		"title": "for alice", "due_date": "2030-01-01T09:00:00Z", "assigned_to": "Alice@Example.com",
	})
	require.Equal(t, http.StatusCreated, code, env.Detail)
	var task taskBody
	require.NoError(t, json.Unmarshal(env.Data, &task))
	require.NotNil(t, task.AssignedTo)
	assert.Equal(t, "alice@example.com", *task.AssignedTo)

	code, env = c.do(http.MethodGet, "/api/v1/tasks/"+task.ID, alice.AccessToken, nil)
	assert.Equal(t, http.StatusOK, code, env.Detail)

	code, env = c.do(http.MethodGet, "/api/v1/tasks", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 1, list.Total)
}

func TestEndToEnd_ErrorEnvelopeCarriesNullData(t *testing.T) {
	c := newTestApp(t)
	ada := signUp(c, "ada@example.com", "ada")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/missing", nil)
	req.Header.Set("Authorization", "Bearer "+ada.AccessToken)
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"status_code":404,"detail":"Task not found","data":null}`, w.Body.String())
}

func TestEndToEnd_Probes(t *testing.T) {
	c := newTestApp(t)

	code, _ := c.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "database")
	assert.Contains(t, w.Body.String(), "redis")

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"job_queue"`)
	assert.Contains(t, w.Body.String(), `"dead_queue"`)
}
