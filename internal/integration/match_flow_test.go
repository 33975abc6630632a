package integration

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"skill-exchange/internal/app"
	"skill-exchange/internal/config"
	"skill-exchange/internal/delivery/http/dto"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type semanticResponse struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type actor struct {
	id    uuid.UUID
	token string
}

func TestIntegration_MemoryStore_MatchFlow(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Driver = config.StoreDriverMemory

	runMatchFlow(t, cfg)
}

func TestIntegration_Postgres_MatchFlow(t *testing.T) {
	host := stringsOrDefault(os.Getenv("SKILLX_TEST_DB_HOST"), os.Getenv("DB_HOST"))
	port := stringsOrDefault(os.Getenv("SKILLX_TEST_DB_PORT"), os.Getenv("DB_PORT"))
	name := stringsOrDefault(os.Getenv("SKILLX_TEST_DB_NAME"), os.Getenv("DB_NAME"))
	user := stringsOrDefault(os.Getenv("SKILLX_TEST_DB_USER"), os.Getenv("DB_USER"))
	pass := stringsOrDefault(os.Getenv("SKILLX_TEST_DB_PASSWORD"), os.Getenv("DB_PASSWORD"))
	ssl := stringsOrDefault(os.Getenv("SKILLX_TEST_DB_SSL_MODE"), "disable")

	if host == "" || port == "" || name == "" || user == "" {
		t.Skip("missing test DB env vars: set SKILLX_TEST_DB_HOST/PORT/NAME/USER/PASSWORD (or DB_HOST/DB_PORT/DB_NAME/DB_USER/DB_PASSWORD)")
	}

	cfg := baseConfig()
	cfg.Store.Driver = config.StoreDriverPostgres
	cfg.Database = config.DatabaseConfig{
		DBHost:         host,
		DBPort:         port,
		DBName:         name,
		DBUser:         user,
		DBPassword:     pass,
		DBSSLMode:      ssl,
		ConnectTimeout: 5 * time.Second,
		RunMigrations:  true,
		RunSeeders:     true,
	}

	runMatchFlow(t, cfg)
}

func baseConfig() config.Config {
	return config.Config{
		App: config.AppConfig{AppName: "skill-exchange-test", Environment: "test", HTTPPort: "0", LogLevel: "error"},
		// Nothing listens on port 1; the cache runs in bypass mode.
		Redis: config.RedisConfig{Host: "127.0.0.1", Port: "1", TTL: time.Minute},
		JWT:   config.JWTConfig{AccessSecret: "integration-secret", Issuer: "skill-exchange-test"},
		Store: config.StoreConfig{Timeout: 5 * time.Second},
		Feed:  config.FeedConfig{Driver: config.FeedDriverMemory, Buffer: 16},
	}
}

func runMatchFlow(t *testing.T, cfg config.Config) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	bootstrap, cleanup, err := app.Bootstrap(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	h := &harness{t: t, app: bootstrap}

	alice := h.actor("alice")
	bob := h.actor("bob")
	carol := h.actor("carol")

	guitar := "Guitar " + uuid.NewString()[:8]
	spanish := "Spanish " + uuid.NewString()[:8]

	h.addSkill(alice, guitar, "teaching")
	h.addSkill(alice, spanish, "learning")
	h.addSkill(bob, spanish, "teaching")
	h.addSkill(bob, guitar, "learning")

	var mine []dto.UserSkillResponse
	h.call(alice, http.MethodGet, "/api/v1/me/skills?direction=teaching", nil, http.StatusOK, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, guitar, mine[0].Skill.Name)

	var discovered []dto.MatchResponse
	h.call(alice, http.MethodPost, "/api/v1/me/matches/discover", nil, http.StatusOK, &discovered)
	require.Len(t, discovered, 2)

	var bobTeaches dto.MatchResponse
	for _, m := range discovered {
		assert.Equal(t, "pending", m.Status)
		if m.Teacher.ID == bob.id {
			bobTeaches = m
			assert.Equal(t, "student", m.Role)
			assert.Equal(t, spanish, m.TeachingSkill.Name)
			assert.Equal(t, guitar, m.LearningSkill.Name)
		} else {
			assert.Equal(t, "teacher", m.Role)
			assert.Equal(t, alice.id, m.Teacher.ID)
		}
	}
	require.NotEqual(t, uuid.Nil, bobTeaches.ID)

	// Rerunning from the other side finds the same pairings.
	var again []dto.MatchResponse
	h.call(bob, http.MethodPost, "/api/v1/me/matches/discover", nil, http.StatusOK, &again)
	require.Len(t, again, 2)
	assert.ElementsMatch(t, ids(discovered), ids(again))

	statusPath := "/api/v1/matches/" + bobTeaches.ID.String() + "/status"
	h.call(carol, http.MethodPatch, statusPath, map[string]string{"status": "accepted"}, http.StatusForbidden, nil)
	h.call(bob, http.MethodPatch, statusPath, map[string]string{"status": "pending"}, http.StatusBadRequest, nil)

	var accepted dto.MatchResponse
	h.call(bob, http.MethodPatch, statusPath, map[string]string{"status": "accepted"}, http.StatusOK, &accepted)
	assert.Equal(t, "accepted", accepted.Status)
	assert.Equal(t, "teacher", accepted.Role)

	h.call(alice, http.MethodPatch, statusPath, map[string]string{"status": "rejected"}, http.StatusConflict, nil)

	var listed []dto.MatchResponse
	h.call(alice, http.MethodGet, "/api/v1/me/matches", nil, http.StatusOK, &listed)
	require.Len(t, listed, 2)
	for _, m := range listed {
		if m.ID == bobTeaches.ID {
			assert.Equal(t, "accepted", m.Status)
		} else {
			assert.Equal(t, "pending", m.Status)
		}
	}

	var none []dto.MatchResponse
	h.call(carol, http.MethodGet, "/api/v1/me/matches", nil, http.StatusOK, &none)
	assert.Empty(t, none)

	h.call(actor{}, http.MethodGet, "/api/v1/me/matches", nil, http.StatusUnauthorized, nil)

	var health map[string]any
	h.call(actor{}, http.MethodGet, "/health", nil, http.StatusOK, &health)
	assert.Equal(t, cfg.Store.Driver, health["store"])
}

type harness struct {
	t   *testing.T
	app *app.App
}

func (h *harness) actor(name string) actor {
	h.t.Helper()
	id := uuid.New()
	tok, err := h.app.Container.JWT.GenerateAccessToken(id, name+"-"+id.String()[:8]+"@example.com", strings.ToUpper(name[:1])+name[1:], time.Hour)
	require.NoError(h.t, err)
	return actor{id: id, token: tok}
}

func (h *harness) addSkill(a actor, name, direction string) {
	h.t.Helper()
	var res dto.UserSkillResponse
	h.call(a, http.MethodPost, "/api/v1/me/skills", map[string]string{"name": name, "direction": direction}, http.StatusCreated, &res)
	assert.Equal(h.t, name, res.Skill.Name)
	assert.Equal(h.t, direction, res.Direction)
}

func (h *harness) call(a actor, method, path string, body any, wantStatus int, out any) {
	h.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := h.app.Fiber.Test(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var sr semanticResponse
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&sr))
	require.Equal(h.t, wantStatus, resp.StatusCode, "%s %s: %s", method, path, sr.Message)
	assert.Equal(h.t, wantStatus, sr.Status)

	if out != nil {
		require.NoError(h.t, json.Unmarshal(sr.Data, out))
	}
}

func ids(items []dto.MatchResponse) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func stringsOrDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return strings.TrimSpace(def)
	}
	return v
}
