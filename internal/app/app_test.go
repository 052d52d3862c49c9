package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/app"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/logger"
	"libraryhub/internal/pkg/password"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	password.Cost = bcrypt.MinCost
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) AddDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}

type server struct {
	app   *app.App
	clock *clock
	users *services.UserService
}

func testConfig() *config.Config {
	return &config.Config{
		AppMode:  "dev",
		Port:     "0",
		Database: config.DatabaseConfig{Driver: "sqlite"},
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			RefreshSecret:    "test-refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
		Cookie:  config.CookieConfig{SameSite: "Lax"},
		Session: config.SessionConfig{ExpiryHours: 1},
		Lending: domain.LendingPolicy{LoanPeriodDays: 14, PenaltyPerDay: decimal.NewFromInt(1)},
		Notify:  config.NotifyConfig{QueueSize: 10, SendTimeoutSeconds: 1},
	}
}

func newServer(t *testing.T) *server {
	t.Helper()

	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { _ = config.CloseDatabase(db) })

	clk := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	log := logger.Discard()

	srv, err := app.New(testConfig(), db, log, app.WithClock(clk.Now), app.WithMailer(services.NewLogMailer(log)))
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &server{
		app:   srv,
		clock: clk,
		users: services.NewUserService(repositories.NewStore(db), clk.Now, log),
	}
}

func (s *server) addUser(t *testing.T, name string, role domain.Role) {
	t.Helper()
	_, err := s.users.CreateUser(context.Background(), &services.CreateUserInput{
		Username: name,
		Email:    name + "@example.com",
		Password: "password123",
		Role:     role.String(),
	})
	require.NoError(t, err)
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (s *server) login(t *testing.T, name string) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/token/", "", map[string]string{
		"email":    name + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, code, body)
	return body["access"].(string)
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "missing data in %v", body)
	return d
}

func TestHealthAndRoot(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "healthy", body["checks"].(map[string]interface{})["database"])

	code, _ = s.do(t, http.MethodGet, "/api/", "", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "go_goroutines")
}

func TestTokenEndpoints(t *testing.T) {
	s := newServer(t)
	s.addUser(t, "alice", domain.RoleMember)

	code, body := s.do(t, http.MethodPost, "/api/token/", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["success"])

	access := s.login(t, "alice")

	code, body = s.do(t, http.MethodGet, "/users/me/", access, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", data(t, body)["username"])

	code, _ = s.do(t, http.MethodGet, "/users/me/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/users/me/", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterThenLogin(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/api/register/", "", map[string]string{
		"username":         "carol",
		"email":            "carol@example.com",
		"password":         "password123",
		"confirm_password": "password123",
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "MEMBER", data(t, body)["role"])

	s.login(t, "carol")
}

func TestCatalogWritesNeedStaff(t *testing.T) {
	s := newServer(t)
	s.addUser(t, "alice", domain.RoleMember)
	s.addUser(t, "sam", domain.RoleStaff)

	book := map[string]interface{}{
		"title": "Dune", "author": "Frank Herbert", "isbn": "9780441013593",
		"published_date": "1965-08-01", "total_copies": 2,
	}

	code, _ := s.do(t, http.MethodPost, "/books/", "", book)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/books/", s.login(t, "alice"), book)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(t, http.MethodPost, "/books/", s.login(t, "sam"), book)
	require.Equal(t, http.StatusCreated, code, body)
	created := data(t, body)
	assert.Equal(t, float64(2), created["available_copies"])

	id := strconv.Itoa(int(created["id"].(float64)))
	code, body = s.do(t, http.MethodGet, "/books/"+id+"/", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Dune", data(t, body)["title"])

	code, _ = s.do(t, http.MethodGet, "/books/999/", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCheckoutAndReturnOverHTTP(t *testing.T) {
	s := newServer(t)
	s.addUser(t, "alice", domain.RoleMember)
	s.addUser(t, "sam", domain.RoleStaff)

	code, body := s.do(t, http.MethodPost, "/books/", s.login(t, "sam"), map[string]interface{}{
		"title": "Dune", "author": "Frank Herbert", "isbn": "9780441013593", "total_copies": 1,
	})
	require.Equal(t, http.StatusCreated, code, body)
	bookID := data(t, body)["id"]

	alice := s.login(t, "alice")

	code, _ = s.do(t, http.MethodGet, "/bookcheckout/is-returned/?book=1", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodPost, "/bookcheckout/", alice, map[string]interface{}{"book": bookID})
	require.Equal(t, http.StatusCreated, code, body)
	entry := data(t, body)
	assert.Equal(t, "2024-03-15", entry["due_date"])
	assert.Equal(t, "0.00", entry["penalty"])

	code, body = s.do(t, http.MethodPost, "/bookcheckout/", alice, map[string]interface{}{"book": bookID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No copies available", body["error"])

	code, body = s.do(t, http.MethodGet, "/bookcheckout/is-returned/?book=1", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, services.MessageNotReturned, body["message"])

	s.clock.AddDays(17)

	code, body = s.do(t, http.MethodPost, "/bookcheckout/return/", alice, map[string]interface{}{"book": "1"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "3.00", data(t, body)["penalty"])

	code, body = s.do(t, http.MethodPost, "/bookcheckout/return/", alice, map[string]interface{}{"book": bookID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "You have not checked out this book", body["error"])

	code, body = s.do(t, http.MethodGet, "/users/borrowing_history/", alice, nil)
	require.Equal(t, http.StatusOK, code)
	results := data(t, body)["results"].([]interface{})
	assert.Len(t, results, 1)
}

func TestLedgerListingScope(t *testing.T) {
	s := newServer(t)
	s.addUser(t, "alice", domain.RoleMember)
	s.addUser(t, "bob", domain.RoleMember)
	s.addUser(t, "sam", domain.RoleStaff)

	staff := s.login(t, "sam")
	code, _ := s.do(t, http.MethodPost, "/books/", staff, map[string]interface{}{
		"title": "Dune", "author": "Frank Herbert", "isbn": "9780441013593", "total_copies": 3,
	})
	require.Equal(t, http.StatusCreated, code)

	for _, name := range []string{"alice", "bob"} {
		code, body := s.do(t, http.MethodPost, "/bookcheckout/", s.login(t, name), map[string]interface{}{"book": 1})
		require.Equal(t, http.StatusCreated, code, body)
	}

	code, body := s.do(t, http.MethodGet, "/bookcheckout/", s.login(t, "alice"), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, data(t, body)["results"].([]interface{}), 1)

	code, body = s.do(t, http.MethodGet, "/bookcheckout/", staff, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, data(t, body)["results"].([]interface{}), 2)

	code, _ = s.do(t, http.MethodGet, "/bookcheckout/?open=maybe", staff, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUserAdministration(t *testing.T) {
	s := newServer(t)
	s.addUser(t, "root", domain.RoleAdmin)
	s.addUser(t, "alice", domain.RoleMember)
	s.addUser(t, "sam", domain.RoleStaff)

	alice := s.login(t, "alice")
	code, _ := s.do(t, http.MethodGet, "/users/", alice, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := s.do(t, http.MethodGet, "/users/", s.login(t, "sam"), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, data(t, body)["results"].([]interface{}), 3)

	code, _ = s.do(t, http.MethodDelete, "/users/2/", s.login(t, "sam"), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/users/1/", alice, nil)
	assert.Equal(t, http.StatusForbidden, code)

	admin := s.login(t, "root")
	code, body = s.do(t, http.MethodPatch, "/users/2/", admin, map[string]interface{}{"role": "staff"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "STAFF", data(t, body)["role"])

	code, _ = s.do(t, http.MethodDelete, "/users/2/", admin, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = s.do(t, http.MethodGet, "/users/2/", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDashboardAPI(t *testing.T) {
	s := newServer(t)
	s.addUser(t, "alice", domain.RoleMember)

	code, body := s.do(t, http.MethodGet, "/api/dashboard/", s.login(t, "alice"), nil)
	require.Equal(t, http.StatusOK, code)
	d := data(t, body)
	assert.NotNil(t, d["member"])
	assert.Nil(t, d["staff"])
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	s := newServer(t)
	code, body := s.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.True(t, strings.Contains(body["error"].(string), "Cannot GET"))
}
