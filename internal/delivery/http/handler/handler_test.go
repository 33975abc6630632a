package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skill-exchange/internal/changefeed"
	"skill-exchange/internal/delivery/http/middleware"
	"skill-exchange/internal/domain/user"
	"skill-exchange/internal/pkg/jwt"
	"skill-exchange/internal/pkg/response"
	"skill-exchange/internal/repository/memstore"
	"skill-exchange/internal/usecase"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app   *fiber.App
	store *memstore.Store
	jwt   jwt.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := zerolog.Nop()
	store := memstore.New()
	feed := changefeed.NewBroker(8, log)
	t.Cleanup(func() { _ = feed.Close() })

	skills := usecase.NewSkillUsecase(store.Skills(), store.UserSkills(), store.Users(), nil, log, time.Second)
	writer := usecase.NewMatchWriter(store.Matches(), feed, log, time.Second)
	lifecycle := usecase.NewMatchLifecycle(store.Matches(), feed, log, time.Second)
	matching := usecase.NewMatchingUsecase(skills, store.Skills(), store.UserSkills(), store.Users(), store.Matches(), writer, nil, log, time.Second)

	svc := jwt.NewHMACService("handler-secret", "")
	users := store.Users()
	auth := middleware.NewAuthMiddleware(svc, middleware.AuthOptions{
		OnAuthenticated: func(ctx context.Context, c jwt.Claims) error {
			return users.Ensure(ctx, user.User{ID: c.UserID, Email: c.Email})
		},
	})

	app := fiber.New()
	app.Use(middleware.NewErrorMiddleware(log).Middleware())
	protected := app.Group("/api", auth.Middleware())
	NewSkillHandler(skills).RegisterRoutes(protected)
	NewUserSkillHandler(skills).RegisterRoutes(protected)
	NewMatchHandler(matching, lifecycle).RegisterRoutes(protected)

	return &testEnv{app: app, store: store, jwt: svc}
}

func (e *testEnv) token(t *testing.T, id uuid.UUID) string {
	t.Helper()
	tok, err := e.jwt.GenerateAccessToken(id, id.String()+"@example.com", "", time.Minute)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, token, method, path string, body any) (int, response.SemanticResponse, json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw struct {
		response.SemanticResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	return resp.StatusCode, raw.SemanticResponse, raw.Data
}

func TestSkillHandler_EnsureAndFilter(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, uuid.New())
	env.store.SeedSkills(map[string]string{"Guitar": "Music", "Spanish": "Language"})

	status, _, data := env.do(t, tok, http.MethodPost, "/api/skills", map[string]string{"name": "  Piano "})
	require.Equal(t, http.StatusOK, status)
	var created struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	}
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, "Piano", created.Name)

	status, _, data = env.do(t, tok, http.MethodPost, "/api/skills", map[string]string{"name": "Piano"})
	require.Equal(t, http.StatusOK, status)
	var again struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, created.ID, again.ID)

	status, _, data = env.do(t, tok, http.MethodGet, "/api/skills?category=music", nil)
	require.Equal(t, http.StatusOK, status)
	var music []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(data, &music))
	require.Len(t, music, 1)
	assert.Equal(t, "Guitar", music[0].Name)

	status, res, _ := env.do(t, tok, http.MethodPost, "/api/skills", map[string]string{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, http.StatusBadRequest, res.Status)
}

func TestUserSkillHandler_Validation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, uuid.New())

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad direction filter", http.MethodGet, "/api/me/skills?direction=both", nil, http.StatusBadRequest},
		{"bad direction", http.MethodPost, "/api/me/skills", map[string]string{"name": "Go", "direction": "up"}, http.StatusBadRequest},
		{"blank name", http.MethodPost, "/api/me/skills", map[string]string{"name": "", "direction": "teaching"}, http.StatusBadRequest},
		{"ok", http.MethodPost, "/api/me/skills", map[string]string{"name": "Go", "direction": "Teaching"}, http.StatusCreated},
		{"list", http.MethodGet, "/api/me/skills", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res, _ := env.do(t, tok, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.want, res.Status)
		})
	}
}

func TestUserSkillHandler_DefaultsProficiency(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, uuid.New())

	status, _, data := env.do(t, tok, http.MethodPost, "/api/me/skills", map[string]string{"name": "Chess", "direction": "learning"})
	require.Equal(t, http.StatusCreated, status)

	var res struct {
		Direction        string `json:"direction"`
		ProficiencyLevel string `json:"proficiency_level"`
	}
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, "learning", res.Direction)
	assert.Equal(t, usecase.DefaultProficiencyLevel, res.ProficiencyLevel)
}

func TestMatchHandler_StatusErrors(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, uuid.New())

	status, _, _ := env.do(t, tok, http.MethodPatch, "/api/matches/not-a-uuid/status", map[string]string{"status": "accepted"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = env.do(t, tok, http.MethodPatch, "/api/matches/"+uuid.NewString()+"/status", map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = env.do(t, tok, http.MethodPatch, "/api/matches/"+uuid.NewString()+"/status", map[string]string{"status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMatchHandler_EmptyList(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, uuid.New())

	status, _, data := env.do(t, tok, http.MethodGet, "/api/me/matches", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", string(data))

	status, _, data = env.do(t, tok, http.MethodPost, "/api/me/matches/discover", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", string(data))
}

func TestHandlers_RequireToken(t *testing.T) {
	env := newTestEnv(t)

	status, res, _ := env.do(t, "", http.MethodGet, "/api/me/matches", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", res.Message)

	status, _, _ = env.do(t, "not-a-jwt", http.MethodGet, "/api/skills", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMapUsecaseError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: empty name", usecase.ErrValidation), fiber.StatusBadRequest},
		{usecase.ErrAuthorization, fiber.StatusForbidden},
		{fmt.Errorf("%w: match", usecase.ErrNotFound), fiber.StatusNotFound},
		{usecase.ErrInvalidTransition, fiber.StatusConflict},
		{usecase.ErrDiscoveryInProgress, fiber.StatusConflict},
		{fmt.Errorf("list: %w", usecase.ErrTimeout), fiber.StatusGatewayTimeout},
		{usecase.ErrStore, fiber.StatusInternalServerError},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		var appErr *middleware.AppError
		require.ErrorAs(t, mapUsecaseError(tt.err), &appErr)
		assert.Equal(t, tt.want, appErr.StatusCode, tt.err.Error())
		assert.ErrorIs(t, appErr, tt.err)
	}
	assert.NoError(t, mapUsecaseError(nil))
}

func TestHealthHandler(t *testing.T) {
	down := errors.New("down")
	tests := []struct {
		name   string
		checks []HealthCheck
		want   int
		deps   map[string]string
	}{
		{
			name:   "all ok",
			checks: []HealthCheck{{Name: "postgres", Check: func(context.Context) error { return nil }}},
			want:   http.StatusOK,
			deps:   map[string]string{"postgres": "ok"},
		},
		{
			name: "optional down",
			checks: []HealthCheck{
				{Name: "postgres", Check: func(context.Context) error { return nil }},
				{Name: "redis", Optional: true, Check: func(context.Context) error { return down }},
			},
			want: http.StatusOK,
			deps: map[string]string{"postgres": "ok", "redis": "degraded"},
		},
		{
			name:   "required down",
			checks: []HealthCheck{{Name: "postgres", Check: func(context.Context) error { return down }}},
			want:   http.StatusServiceUnavailable,
			deps:   map[string]string{"postgres": "down"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			NewHealthHandler(func() map[string]any { return map[string]any{"store": "memory"} }, tt.checks...).RegisterRoutes(app)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.want, resp.StatusCode)

			var body struct {
				Data struct {
					Dependencies map[string]string `json:"dependencies"`
					Store        string            `json:"store"`
				} `json:"data"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.deps, body.Data.Dependencies)
			assert.Equal(t, "memory", body.Data.Store)
		})
	}
}
