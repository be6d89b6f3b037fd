package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/db"
	apphttp "github.com/taskhub/taskhub/internal/http"
)

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 30,
		AuthRateLimit:       1000,
		APIRateLimit:        1000,
	}
}

// setupRouter needs a live database; set TEST_DB_DSN to run these.
func setupRouter(t *testing.T) (*gin.Engine, *pgxpool.Pool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping integration test")
	}

	ctx := context.Background()

	if err := db.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := apphttp.NewRouter(logger, pool, testConfig())

	return router, pool
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE todos, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

func doJSON(router http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustToken(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal token response: %v body=%s", err, w.Body.String())
	}
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("unexpected token response: %s", w.Body.String())
	}
	return resp.AccessToken
}

func TestSignupLoginTodoLifecycle(t *testing.T) {
	router, pool := setupRouter(t)
	resetDB(t, pool)

	// signup issues a usable token
	w := doJSON(router, http.MethodPost, "/signup", "", `{"username":"alice","email":"a@x.com","password":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("signup: got %d body=%s", w.Code, w.Body.String())
	}
	t1 := mustToken(t, w)

	// duplicate signup rejected
	w = doJSON(router, http.MethodPost, "/signup", "", `{"username":"alice","email":"other@x.com","password":"pw2"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate signup: got %d body=%s", w.Code, w.Body.String())
	}

	// login with the same credentials issues another token
	w = doJSON(router, http.MethodPost, "/login", "", `{"username":"alice","password":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: got %d body=%s", w.Code, w.Body.String())
	}
	t2 := mustToken(t, w)

	// create under the first token
	w = doJSON(router, http.MethodPost, "/todos", t1, `{"title":"buy milk","completed":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create todo: got %d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		ID     int64 `json:"id"`
		UserID int64 `json:"user_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal todo: %v", err)
	}
	if created.UserID != 1 {
		t.Fatalf("todo owner %d, want alice's id 1", created.UserID)
	}

	path := fmt.Sprintf("/todos/%d", created.ID)

	// read back under the second token (same identity)
	w = doJSON(router, http.MethodGet, path, t2, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get todo: got %d body=%s", w.Code, w.Body.String())
	}

	// complete it
	w = doJSON(router, http.MethodPut, path, t1, `{"title":"buy milk","completed":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update todo: got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"completed":true`) {
		t.Fatalf("update not applied: %s", w.Body.String())
	}

	// delete, then a get must 404
	w = doJSON(router, http.MethodDelete, path, t1, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete todo: got %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(router, http.MethodGet, path, t1, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d, want 404", w.Code)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	router, pool := setupRouter(t)
	resetDB(t, pool)

	signup := func(username string) string {
		w := doJSON(router, http.MethodPost, "/signup", "",
			fmt.Sprintf(`{"username":%q,"email":"%s@x.com","password":"pw"}`, username, username))
		if w.Code != http.StatusOK {
			t.Fatalf("signup %s: got %d body=%s", username, w.Code, w.Body.String())
		}
		return mustToken(t, w)
	}

	alice := signup("alice")
	bob := signup("bob")

	w := doJSON(router, http.MethodPost, "/todos", alice, `{"title":"secret plan","completed":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create: got %d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal todo: %v", err)
	}

	path := fmt.Sprintf("/todos/%d", created.ID)

	// bob sees not-found everywhere, not forbidden
	if w := doJSON(router, http.MethodGet, path, bob, ""); w.Code != http.StatusNotFound {
		t.Fatalf("bob get: got %d, want 404", w.Code)
	}
	if w := doJSON(router, http.MethodPut, path, bob, `{"title":"hijack","completed":true}`); w.Code != http.StatusNotFound {
		t.Fatalf("bob update: got %d, want 404", w.Code)
	}
	if w := doJSON(router, http.MethodDelete, path, bob, ""); w.Code != http.StatusNotFound {
		t.Fatalf("bob delete: got %d, want 404", w.Code)
	}

	// bob's listing does not include alice's todo
	w = doJSON(router, http.MethodGet, "/todos", bob, "")
	if w.Code != http.StatusOK {
		t.Fatalf("bob list: got %d body=%s", w.Code, w.Body.String())
	}
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to unmarshal list: %v", err)
	}
	if list.Count != 0 {
		t.Fatalf("bob sees %d todos, want 0", list.Count)
	}

	// alice still owns it
	if w := doJSON(router, http.MethodGet, path, alice, ""); w.Code != http.StatusOK {
		t.Fatalf("alice get: got %d body=%s", w.Code, w.Body.String())
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	router, pool := setupRouter(t)
	resetDB(t, pool)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/users/1"},
		{http.MethodPost, "/todos"},
		{http.MethodGet, "/todos"},
		{http.MethodGet, "/todos/1"},
		{http.MethodPut, "/todos/1"},
		{http.MethodDelete, "/todos/1"},
	} {
		w := doJSON(router, tc.method, tc.path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: got %d, want 401", tc.method, tc.path, w.Code)
		}
		if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Fatalf("%s %s: missing WWW-Authenticate challenge", tc.method, tc.path)
		}
	}
}
