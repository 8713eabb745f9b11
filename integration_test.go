package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"mini-todo/auth"
	"mini-todo/db"
	appmw "mini-todo/middleware"
	"mini-todo/store"
	"mini-todo/store/memory"
	"mini-todo/store/mysql"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

var router http.Handler

// runID is suffixed to every email so a shared MySQL database can be reused
// between runs.
var runID = uuid.NewString()[:8]

func email(name string) string {
	return name + "+" + runID + "@example.com"
}

// testStore uses MySQL when TEST_DSN is set and the in-memory store otherwise.
func testStore(ctx context.Context) (store.Store, func()) {
	dsn := os.Getenv("TEST_DSN")
	if dsn == "" {
		return memory.New(), func() {}
	}
	conn, err := db.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("connect test database: %v", err)
	}
	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatalf("migrate test database: %v", err)
	}
	return mysql.New(conn), func() { conn.Close() }
}

func newTestRouter(st store.Store, limiter *appmw.RateLimiter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds, err := auth.NewCredentials(st.Users(), bcrypt.MinCost)
	if err != nil {
		log.Fatalf("credentials: %v", err)
	}
	return newRouter(routerDeps{
		store:       st,
		credentials: creds,
		tokens:      auth.NewTokens(st.Users(), "integration-secret", 0),
		loginLimit:  limiter,
		logger:      logger,
	})
}

func TestMain(m *testing.M) {
	if err := godotenv.Load(".env.test"); err != nil {
		log.Println("Warning: no .env.test file, using the in-memory store unless TEST_DSN is set")
	}

	st, closeStore := testStore(context.Background())
	router = newTestRouter(st, appmw.NewRateLimiter(0, 0))

	code := m.Run()
	closeStore()
	os.Exit(code)
}

func send(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewBuffer(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(appmw.AuthHeader, token)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func register(t *testing.T, addr, password string) (string, string) {
	t.Helper()
	resp := send(t, router, "POST", "/users", "", map[string]string{"email": addr, "password": password})
	if resp.Code != http.StatusOK {
		t.Fatalf("register %s: got %d %s", addr, resp.Code, resp.Body.String())
	}
	var user map[string]any
	json.Unmarshal(resp.Body.Bytes(), &user)
	return user["_id"].(string), resp.Header().Get(appmw.AuthHeader)
}

func TestRegisterAndLogin(t *testing.T) {
	addr := email("peter")
	id, token := register(t, addr, "pwd987!")
	if token == "" {
		t.Fatal("register did not return an x-auth header")
	}

	resp := send(t, router, "GET", "/users/me", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", resp.Code)
	}
	var me map[string]any
	json.Unmarshal(resp.Body.Bytes(), &me)
	if me["_id"] != id || me["email"] != addr {
		t.Errorf("unexpected /users/me body %v", me)
	}

	resp = send(t, router, "POST", "/users", "", map[string]string{"email": addr, "password": "pwd987!"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("duplicate registration: expected 400, got %v", resp.Code)
	}

	resp = send(t, router, "POST", "/users/login", "", map[string]string{"email": addr, "password": "wrong!!"})
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %v", resp.Code)
	}

	resp = send(t, router, "POST", "/users/login", "", map[string]string{"email": addr, "password": "pwd987!"})
	if resp.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %v", resp.Code)
	}
	second := resp.Header().Get(appmw.AuthHeader)
	if second == "" || second == token {
		t.Error("login should issue a distinct token")
	}

	// both tokens remain valid until revoked individually
	for _, tok := range []string{token, second} {
		if resp := send(t, router, "GET", "/users/me", tok, nil); resp.Code != http.StatusOK {
			t.Errorf("token rejected: %v", resp.Code)
		}
	}
}

func TestTodoLifecycle(t *testing.T) {
	_, token := register(t, email("lifecycle"), "password123")

	resp := send(t, router, "POST", "/todos", token, map[string]string{"text": "Integration Test Todo"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", resp.Code)
	}
	var created map[string]any
	json.Unmarshal(resp.Body.Bytes(), &created)
	todoID := created["_id"].(string)

	resp = send(t, router, "GET", "/todos", token, nil)
	var list struct {
		Todos []map[string]any `json:"todos"`
	}
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list.Todos) != 1 || list.Todos[0]["_id"] != todoID {
		t.Fatalf("Created todo not found in list: %v", list.Todos)
	}

	resp = send(t, router, "PATCH", "/todos/"+todoID, token, map[string]any{"completed": true})
	var patched struct {
		Todo map[string]any `json:"todo"`
	}
	json.Unmarshal(resp.Body.Bytes(), &patched)
	if patched.Todo["completed"] != true || patched.Todo["completedAt"] == nil {
		t.Errorf("completion not recorded: %v", patched.Todo)
	}

	resp = send(t, router, "PATCH", "/todos/"+todoID, token, map[string]any{"completed": false})
	json.Unmarshal(resp.Body.Bytes(), &patched)
	if patched.Todo["completed"] != false || patched.Todo["completedAt"] != nil {
		t.Errorf("completion not cleared: %v", patched.Todo)
	}

	if resp := send(t, router, "DELETE", "/todos/"+todoID, token, nil); resp.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %v", resp.Code)
	}
	if resp := send(t, router, "GET", "/todos/"+todoID, token, nil); resp.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %v", resp.Code)
	}
}

func TestTenantIsolation(t *testing.T) {
	_, alice := register(t, email("alice"), "password123")
	_, bob := register(t, email("bob"), "password123")

	resp := send(t, router, "POST", "/todos", alice, map[string]string{"text": "alice only"})
	var created map[string]any
	json.Unmarshal(resp.Body.Bytes(), &created)
	todoID := created["_id"].(string)

	resp = send(t, router, "GET", "/todos", bob, nil)
	if !bytes.Equal(bytes.TrimSpace(resp.Body.Bytes()), []byte(`{"todos":[]}`)) {
		t.Errorf("bob sees foreign todos: %s", resp.Body.String())
	}

	for _, method := range []string{"GET", "DELETE", "PATCH"} {
		resp := send(t, router, method, "/todos/"+todoID, bob, map[string]any{"text": "hijacked"})
		if resp.Code != http.StatusNotFound {
			t.Errorf("%s foreign todo: expected 404, got %v", method, resp.Code)
		}
	}

	resp = send(t, router, "GET", "/todos/"+todoID, alice, nil)
	var got struct {
		Todo map[string]any `json:"todo"`
	}
	json.Unmarshal(resp.Body.Bytes(), &got)
	if got.Todo["text"] != "alice only" {
		t.Errorf("todo modified by another user: %v", got.Todo)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	_, token := register(t, email("logout"), "password123")

	if resp := send(t, router, "DELETE", "/users/me/token", token, nil); resp.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %v", resp.Code)
	}
	if resp := send(t, router, "GET", "/todos", token, nil); resp.Code != http.StatusUnauthorized {
		t.Errorf("revoked token accepted: %v", resp.Code)
	}
}

func TestHealth(t *testing.T) {
	resp := send(t, router, "GET", "/health", "", nil)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status OK, got %v", resp.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	limited := newTestRouter(memory.New(), appmw.NewRateLimiter(0.001, 2))
	body := map[string]string{"email": "nobody@example.com", "password": "password123"}

	for i := 0; i < 2; i++ {
		if resp := send(t, limited, "POST", "/users/login", "", body); resp.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %v", i, resp.Code)
		}
	}
	if resp := send(t, limited, "POST", "/users/login", "", body); resp.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 once the burst is spent, got %v", resp.Code)
	}
	// only the credential routes are throttled
	if resp := send(t, limited, "GET", "/health", "", nil); resp.Code != http.StatusOK {
		t.Errorf("health throttled: %v", resp.Code)
	}
}
