package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"mini-todo/auth"
	"mini-todo/middleware"
	"mini-todo/models"
	"mini-todo/store/memory"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type testEnv struct {
	store  *memory.Store
	creds  *auth.Credentials
	tokens *auth.Tokens
	router *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memory.New()
	creds, err := auth.NewCredentials(st.Users(), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}
	tokens := auth.NewTokens(st.Users(), "handlers-secret", 0)

	users := NewUsers(creds, tokens, discard)
	todos := NewTodos(st.Todos(), discard)

	r := chi.NewRouter()
	r.Post("/users", users.Register)
	r.Post("/users/login", users.Login)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, discard))
		r.Get("/users/me", users.Me)
		r.Delete("/users/me/token", users.Logout)
		r.Patch("/users/me/password", users.ChangePassword)
		r.Post("/todos", todos.Create)
		r.Get("/todos", todos.List)
		r.Get("/todos/{id}", todos.Get)
		r.Delete("/todos/{id}", todos.Delete)
		r.Patch("/todos/{id}", todos.Update)
	})

	return &testEnv{store: st, creds: creds, tokens: tokens, router: r}
}

// seedUser registers a user and returns it with one issued token.
func (e *testEnv) seedUser(t *testing.T, email, password string) (*models.User, string) {
	t.Helper()
	ctx := context.Background()
	user, err := e.creds.Register(ctx, email, password)
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	token, err := e.tokens.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return user, token
}

func (e *testEnv) seedTodo(t *testing.T, creatorID, text string) *models.Todo {
	t.Helper()
	todo := &models.Todo{Text: text, CreatorID: creatorID}
	if err := e.store.Todos().Insert(context.Background(), todo); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return todo
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		jsonBody, _ := json.Marshal(b)
		reader = bytes.NewBuffer(jsonBody)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.AuthHeader, token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}
