package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
)

const (
	guildID   = "100000000000000001"
	channelID = "500000000000000001"
)

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	app     *fiber.App
	docs    *persistence.MemoryDocuments
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, deps ...handlers.Dependency) *testServer {
	t.Helper()
	ctx := context.Background()
	docs := persistence.NewMemoryDocuments()
	guildRepo := repository.NewGuildRepository(docs)
	ticketRepo := repository.NewActiveTicketRepository(docs)

	require.NoError(t, guildRepo.AddTicketType(ctx, guildID, domain.TicketType{Type: "support", RoleAccess: []string{"300000000000000001"}}))
	require.NoError(t, ticketRepo.Create(ctx, &domain.ActiveTicket{
		OwnerUserID: "400000000000000001",
		GuildID:     guildID,
		ChannelID:   channelID,
		Type:        "support",
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, ticketRepo.SetMessageHistory(ctx, domain.TicketKey{ChannelID: channelID, OwnerUserID: "400000000000000001"}, []domain.IndividualMessage{
		{TimeStamp: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC), Message: "hello", UserID: "U"},
	}))

	hash, err := auth.HashPassword("hunter2", bcrypt.MinCost)
	require.NoError(t, err)
	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "secret",
		AccessTokenTTLMinutes: 10,
		AdminUsername:         "admin",
		AdminPasswordHash:     hash,
	})
	guilds := service.NewGuildService(service.GuildDependencies{GuildRepo: guildRepo})
	tickets := service.NewTicketService(service.TicketDependencies{GuildRepo: guildRepo, TicketRepo: ticketRepo})

	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("ticket-bot", "test", append([]handlers.Dependency{{Name: "store", Pinger: docs}}, deps...)...),
		Auth:           handlers.NewAuthHandler(authService),
		Guilds:         handlers.NewGuildsHandler(guilds),
		Tickets:        handlers.NewTicketsHandler(tickets, time.UTC),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		Metrics:        metrics,
	})
	return &testServer{app: app, docs: docs, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else {
		out["raw"] = string(raw)
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	status, body := s.do(t, "POST", "/auth/login", "", `{"username":"admin","password":"hunter2"}`)
	require.Equal(t, fiber.StatusOK, status)
	return body["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, "GET", "/health/live", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = srv.do(t, "GET", "/health/ready", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"store": "ok"}, body["dependencies"])

	srv = newTestServer(t, handlers.Dependency{Name: "redis", Pinger: downPinger{}})
	status, body = srv.do(t, "GET", "/health/ready", "", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "connection refused", details["redis"])
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, "POST", "/auth/login", "", `{"username":"admin","password":"nope"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])

	status, _ = srv.do(t, "POST", "/auth/login", "", `{"username":"admin"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	assert.NotEmpty(t, srv.login(t))
}

func TestProtectedRoutes(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, "GET", "/guilds/"+guildID+"/ticket-types", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	token := srv.login(t)
	status, body := srv.do(t, "GET", "/guilds/"+guildID+"/ticket-types", token, "")
	require.Equal(t, fiber.StatusOK, status)
	types := body["data"].([]any)
	require.Len(t, types, 1)
	assert.Equal(t, "support", types[0].(map[string]any)["type"])

	status, _ = srv.do(t, "GET", "/guilds/nope/ticket-types", token, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = srv.do(t, "GET", "/tickets/"+channelID, token, "")
	require.Equal(t, fiber.StatusOK, status)
	ticket := body["data"].(map[string]any)
	assert.Equal(t, string(domain.TicketStateOpenUnclaimed), ticket["state"])
	assert.Equal(t, "[01.03.2026. 10:05:00] U: hello", ticket["transcript"])

	status, body = srv.do(t, "GET", "/tickets/500000000000000009", token, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, "GET", "/health/live", "", "")

	status, body := srv.do(t, "GET", "/metrics", "", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body["raw"], `ticketbot_http_requests_total{method="GET",path="/health/live",status="200"} 1`)
}
