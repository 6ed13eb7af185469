package http

import (
	"bytes"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/idea-service/internal/api/dto"
	"github.com/spec-kit/idea-service/internal/api/http/handlers"
	"github.com/spec-kit/idea-service/internal/auth"
	"github.com/spec-kit/idea-service/internal/cache"
	"github.com/spec-kit/idea-service/internal/config"
	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/events"
	"github.com/spec-kit/idea-service/internal/observability"
	"github.com/spec-kit/idea-service/internal/repository/memory"
	"github.com/spec-kit/idea-service/internal/service"
)

const testOwnerSecret = "let-me-own"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type testServer struct {
	t   *testing.T
	app *fiber.App
}

func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()

	store := memory.New()
	logger := zap.NewNop()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	dispatcher := events.NewInMemoryDispatcher(logger)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := auth.NewTokenManager("router-test-secret", 10)
	authService := service.NewAuthService(config.AuthConfig{
		BcryptCost:              bcrypt.MinCost,
		OwnerRegistrationSecret: testOwnerSecret,
	}, service.AuthDependencies{UserRepo: store.Users(), TokenManager: tokens, Logger: logger})
	ideaService := service.NewIdeaService(service.IdeaDependencies{
		IdeaRepo:   store.Ideas(),
		UpdateRepo: store.Updates(),
		UserRepo:   store.Users(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	statsService := service.NewStatsService(service.StatsDependencies{
		IdeaRepo:   store.Ideas(),
		Cache:      cache.NewStatsCache(client, time.Minute),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	statsService.RegisterHandlers()

	app := NewApp("idea-service-test", logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("idea-service-test", "test", nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Ideas:          handlers.NewIdeasHandler(ideaService),
		Directory:      handlers.NewDirectoryHandler(service.NewDirectoryService(store.Users())),
		Stats:          handlers.NewStatsHandler(statsService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
		RateLimiter:    limiter,
		Metrics:        metrics,
	})
	return &testServer{t: t, app: app}
}

func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &env); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

func (s *testServer) register(name, email, role, secret string) (string, dto.UserResponse) {
	s.t.Helper()
	status, env := s.do(stdhttp.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Name: name, Email: email, Password: "password-123", Role: role, OwnerSecret: secret,
	})
	if status != stdhttp.StatusCreated {
		s.t.Fatalf("register %s: status %d, error %+v", email, status, env.Error)
	}
	var session dto.SessionResponse
	decode(s.t, env, &session)
	return session.Auth.Token, session.User
}

func decode(t *testing.T, env envelope, into any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, into); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func expectError(t *testing.T, status int, env envelope, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status = %d, want %d (error %+v)", status, wantStatus, env.Error)
	}
	if env.Error == nil || env.Error.Code != wantCode {
		t.Fatalf("error = %+v, want code %s", env.Error, wantCode)
	}
}

func TestRouter_IdeaLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	customerTok, customer := s.register("Casey", "casey@example.com", "", "")
	devTok, dev := s.register("Devon", "devon@example.com", "developer", "")
	otherDevTok, _ := s.register("Dana", "dana@example.com", "developer", "")
	ownerTok, _ := s.register("Olive", "olive@example.com", "owner", testOwnerSecret)

	if customer.Role != domain.RoleCustomer {
		t.Fatalf("default role = %s", customer.Role)
	}

	status, env := s.do(stdhttp.MethodPost, "/api/ideas", customerTok, dto.CreateIdeaRequest{
		Title: "  Dark mode ", Description: "<b>please</b> add it",
	})
	if status != stdhttp.StatusCreated {
		t.Fatalf("create idea: %d %+v", status, env.Error)
	}
	var idea dto.IdeaResponse
	decode(t, env, &idea)
	if idea.Status != domain.IdeaStatusPending || idea.AssignedTo != nil {
		t.Fatalf("new idea = %+v", idea)
	}
	if idea.Title != "Dark mode" || idea.Description != "<b>please</b> add it" {
		t.Errorf("stored idea text = %q / %q", idea.Title, idea.Description)
	}

	status, env = s.do(stdhttp.MethodPost, "/api/ideas", devTok, dto.CreateIdeaRequest{Title: "x", Description: "y"})
	expectError(t, status, env, stdhttp.StatusForbidden, "FORBIDDEN")

	status, env = s.do(stdhttp.MethodGet, "/api/ideas/"+idea.ID, devTok, nil)
	expectError(t, status, env, stdhttp.StatusForbidden, "FORBIDDEN")

	status, env = s.do(stdhttp.MethodPut, "/api/ideas/"+idea.ID, devTok, dto.UpdateIdeaRequest{AssignedTo: &dev.ID})
	expectError(t, status, env, stdhttp.StatusForbidden, "FORBIDDEN")

	status, env = s.do(stdhttp.MethodPut, "/api/ideas/"+idea.ID, ownerTok, dto.UpdateIdeaRequest{AssignedTo: &dev.ID})
	if status != stdhttp.StatusOK {
		t.Fatalf("assign: %d %+v", status, env.Error)
	}
	decode(t, env, &idea)
	if idea.AssignedTo == nil || *idea.AssignedTo != dev.ID || idea.Status != domain.IdeaStatusInProgress {
		t.Fatalf("assigned idea = %+v", idea)
	}

	status, env = s.do(stdhttp.MethodPost, "/api/ideas/"+idea.ID+"/updates", devTok, dto.CreateUpdateRequest{Message: "started"})
	if status != stdhttp.StatusCreated {
		t.Fatalf("dev update: %d %+v", status, env.Error)
	}
	status, env = s.do(stdhttp.MethodPost, "/api/ideas/"+idea.ID+"/updates", customerTok, dto.CreateUpdateRequest{Message: "thanks"})
	if status != stdhttp.StatusCreated {
		t.Fatalf("customer update: %d %+v", status, env.Error)
	}
	status, env = s.do(stdhttp.MethodPost, "/api/ideas/"+idea.ID+"/updates", otherDevTok, dto.CreateUpdateRequest{Message: "me too"})
	expectError(t, status, env, stdhttp.StatusForbidden, "FORBIDDEN")
	status, env = s.do(stdhttp.MethodPost, "/api/ideas/"+idea.ID+"/updates", devTok, dto.CreateUpdateRequest{Message: "   "})
	expectError(t, status, env, stdhttp.StatusBadRequest, "VALIDATION_FAILED")

	status, env = s.do(stdhttp.MethodGet, "/api/ideas/"+idea.ID, customerTok, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("detail: %d %+v", status, env.Error)
	}
	var detail dto.IdeaDetailResponse
	decode(t, env, &detail)
	if len(detail.Updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(detail.Updates))
	}
	if detail.Updates[0].Seq != 1 || detail.Updates[0].AuthorRole != domain.RoleDeveloper || detail.Updates[1].Message != "thanks" {
		t.Errorf("updates = %+v", detail.Updates)
	}
	if len(detail.History) == 0 {
		t.Error("expected history entries for assignment")
	}

	completed := string(domain.IdeaStatusCompleted)
	status, env = s.do(stdhttp.MethodPut, "/api/ideas/"+idea.ID, ownerTok, dto.UpdateIdeaRequest{Status: &completed})
	if status != stdhttp.StatusOK {
		t.Fatalf("complete: %d %+v", status, env.Error)
	}

	bogus := "archived"
	status, env = s.do(stdhttp.MethodPut, "/api/ideas/"+idea.ID, ownerTok, dto.UpdateIdeaRequest{Status: &bogus})
	expectError(t, status, env, stdhttp.StatusBadRequest, "VALIDATION_FAILED")

	status, env = s.do(stdhttp.MethodDelete, "/api/ideas/"+idea.ID+"/assignee", ownerTok, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("unassign: %d %+v", status, env.Error)
	}
	decode(t, env, &idea)
	if idea.AssignedTo != nil || idea.Status != domain.IdeaStatusCompleted {
		t.Errorf("unassigned idea = %+v", idea)
	}

	status, env = s.do(stdhttp.MethodGet, "/api/ideas/"+idea.ID, devTok, nil)
	expectError(t, status, env, stdhttp.StatusForbidden, "FORBIDDEN")
}

func TestRouter_ListsAndStatsAreScoped(t *testing.T) {
	s := newTestServer(t, nil)

	aliceTok, _ := s.register("Alice", "alice@example.com", "customer", "")
	bobTok, _ := s.register("Bob", "bob@example.com", "customer", "")
	devTok, dev := s.register("Devon", "devon@example.com", "developer", "")
	ownerTok, _ := s.register("Olive", "olive@example.com", "owner", testOwnerSecret)

	var first dto.IdeaResponse
	for i, tok := range []string{aliceTok, aliceTok, bobTok} {
		status, env := s.do(stdhttp.MethodPost, "/api/ideas", tok, dto.CreateIdeaRequest{Title: "idea", Description: "d"})
		if status != stdhttp.StatusCreated {
			t.Fatalf("create %d: %d", i, status)
		}
		if i == 0 {
			decode(t, env, &first)
		}
	}

	countIdeas := func(tok string) int {
		t.Helper()
		status, env := s.do(stdhttp.MethodGet, "/api/ideas", tok, nil)
		if status != stdhttp.StatusOK {
			t.Fatalf("list: %d %+v", status, env.Error)
		}
		var items []dto.IdeaResponse
		decode(t, env, &items)
		return len(items)
	}
	stats := func(tok string) domain.Stats {
		t.Helper()
		status, env := s.do(stdhttp.MethodGet, "/api/stats", tok, nil)
		if status != stdhttp.StatusOK {
			t.Fatalf("stats: %d %+v", status, env.Error)
		}
		var st domain.Stats
		decode(t, env, &st)
		return st
	}

	if got := countIdeas(aliceTok); got != 2 {
		t.Errorf("alice sees %d ideas", got)
	}
	if got := countIdeas(bobTok); got != 1 {
		t.Errorf("bob sees %d ideas", got)
	}
	if got := countIdeas(devTok); got != 0 {
		t.Errorf("developer sees %d ideas before assignment", got)
	}
	if got := countIdeas(ownerTok); got != 3 {
		t.Errorf("owner sees %d ideas", got)
	}
	if st := stats(ownerTok); st.Total != 3 || st.Pending != 3 {
		t.Errorf("owner stats before assign = %+v", st)
	}

	status, env := s.do(stdhttp.MethodPut, "/api/ideas/"+first.ID, ownerTok, dto.UpdateIdeaRequest{AssignedTo: &dev.ID})
	if status != stdhttp.StatusOK {
		t.Fatalf("assign: %d %+v", status, env.Error)
	}

	if got := countIdeas(devTok); got != 1 {
		t.Errorf("developer sees %d ideas after assignment", got)
	}
	if st := stats(devTok); st.Total != 1 || st.InProgress != 1 {
		t.Errorf("developer stats = %+v", st)
	}
	if st := stats(ownerTok); st.Total != 3 || st.Pending != 2 || st.InProgress != 1 {
		t.Errorf("owner stats after assign = %+v (cache not invalidated?)", st)
	}
	if st := stats(aliceTok); st.Total != 2 || st.InProgress != 1 {
		t.Errorf("alice stats = %+v", st)
	}

	status, env = s.do(stdhttp.MethodGet, "/api/ideas?page=1&page_size=2", ownerTok, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("paged list: %d", status)
	}
	var page []dto.IdeaResponse
	decode(t, env, &page)
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}

	status, env = s.do(stdhttp.MethodGet, "/api/developers", ownerTok, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("developers: %d", status)
	}
	var devs []dto.DeveloperResponse
	decode(t, env, &devs)
	if len(devs) != 1 || devs[0].ID != dev.ID {
		t.Errorf("developers = %+v", devs)
	}

	status, env = s.do(stdhttp.MethodGet, "/api/developers", devTok, nil)
	expectError(t, status, env, stdhttp.StatusForbidden, "FORBIDDEN")
	status, env = s.do(stdhttp.MethodGet, "/api/users", aliceTok, nil)
	expectError(t, status, env, stdhttp.StatusForbidden, "FORBIDDEN")

	status, env = s.do(stdhttp.MethodGet, "/api/users", ownerTok, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("users: %d", status)
	}
	var users []dto.UserResponse
	decode(t, env, &users)
	if len(users) != 4 {
		t.Errorf("users = %d, want 4", len(users))
	}
	if strings.Contains(strings.ToLower(string(env.Data)), "password") {
		t.Errorf("user listing exposes credentials: %s", env.Data)
	}

	status, env = s.do(stdhttp.MethodGet, "/api/ideas?status=in_progress", ownerTok, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("status filter: %d", status)
	}
	var filtered []dto.IdeaResponse
	decode(t, env, &filtered)
	for _, f := range filtered {
		if f.Status != domain.IdeaStatusInProgress {
			t.Errorf("status filter returned %+v", f)
		}
	}
	if len(filtered) != 1 {
		t.Errorf("in_progress ideas = %d, want 1", len(filtered))
	}

	status, env = s.do(stdhttp.MethodGet, "/api/ideas?status=archived", ownerTok, nil)
	expectError(t, status, env, stdhttp.StatusBadRequest, "VALIDATION_FAILED")
}

func TestRouter_AuthFlows(t *testing.T) {
	s := newTestServer(t, nil)
	tok, user := s.register("Casey", "casey@example.com", "customer", "")

	status, env := s.do(stdhttp.MethodGet, "/api/me", tok, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("me: %d", status)
	}
	var me dto.UserResponse
	decode(t, env, &me)
	if me.ID != user.ID || me.Email != "casey@example.com" {
		t.Errorf("me = %+v", me)
	}

	status, env = s.do(stdhttp.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "casey@example.com", Password: "password-123"})
	if status != stdhttp.StatusOK {
		t.Fatalf("login: %d %+v", status, env.Error)
	}

	status, env = s.do(stdhttp.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "casey@example.com", Password: "wrong-password"})
	expectError(t, status, env, stdhttp.StatusUnauthorized, "UNAUTHORIZED")

	status, env = s.do(stdhttp.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Name: "Again", Email: "casey@example.com", Password: "password-123",
	})
	expectError(t, status, env, stdhttp.StatusBadRequest, "VALIDATION_FAILED")

	status, env = s.do(stdhttp.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Name: "Mallory", Email: "mallory@example.com", Password: "password-123", Role: "owner", OwnerSecret: "guess",
	})
	expectError(t, status, env, stdhttp.StatusForbidden, "FORBIDDEN")

	status, env = s.do(stdhttp.MethodGet, "/api/ideas", "", nil)
	expectError(t, status, env, stdhttp.StatusUnauthorized, "UNAUTHORIZED")

	status, env = s.do(stdhttp.MethodGet, "/api/ideas", "not-a-token", nil)
	expectError(t, status, env, stdhttp.StatusUnauthorized, "UNAUTHORIZED")
}

func TestRouter_NotFoundAndMalformedIDs(t *testing.T) {
	s := newTestServer(t, nil)
	ownerTok, _ := s.register("Olive", "olive@example.com", "owner", testOwnerSecret)

	status, env := s.do(stdhttp.MethodGet, "/api/ideas/does-not-exist", ownerTok, nil)
	expectError(t, status, env, stdhttp.StatusNotFound, "NOT_FOUND")

	pending := string(domain.IdeaStatusPending)
	status, env = s.do(stdhttp.MethodPut, "/api/ideas/does-not-exist", ownerTok, dto.UpdateIdeaRequest{Status: &pending})
	expectError(t, status, env, stdhttp.StatusNotFound, "NOT_FOUND")

	status, env = s.do(stdhttp.MethodPost, "/api/ideas/does-not-exist/updates", ownerTok, dto.CreateUpdateRequest{Message: "hi"})
	expectError(t, status, env, stdhttp.StatusNotFound, "NOT_FOUND")

	status, env = s.do(stdhttp.MethodGet, "/nowhere", "", nil)
	expectError(t, status, env, stdhttp.StatusNotFound, "NOT_FOUND")
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	status, _ := s.do(stdhttp.MethodGet, "/health/live", "", nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("live: %d", status)
	}

	req := httptest.NewRequest(stdhttp.MethodGet, "/health/ready", nil)
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	var ready struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		t.Fatalf("decode ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK || ready.Status != "ready" || ready.Dependencies["postgres"] != "disabled" {
		t.Errorf("ready = %d %+v", resp.StatusCode, ready)
	}

	resp, err = s.app.Test(httptest.NewRequest(stdhttp.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `idea_http_requests_total{method="GET",route="/health/live",status="200"} 1`) {
		t.Errorf("metrics exposition missing request counter:\n%s", body)
	}
}
