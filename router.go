package main

import (
	"log/slog"
	"net/http"

	"mini-todo/auth"
	"mini-todo/handlers"
	appmw "mini-todo/middleware"
	"mini-todo/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type routerDeps struct {
	store       store.Store
	credentials *auth.Credentials
	tokens      *auth.Tokens
	loginLimit  *appmw.RateLimiter
	logger      *slog.Logger
	accessLog   bool
}

func newRouter(d routerDeps) http.Handler {
	users := handlers.NewUsers(d.credentials, d.tokens, d.logger)
	todos := handlers.NewTodos(d.store.Todos(), d.logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if d.accessLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(appmw.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(d.loginLimit.Limit)
		r.Post("/users", users.Register)
		r.Post("/users/login", users.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(appmw.RequireAuth(d.tokens, d.logger))

		r.Get("/users/me", users.Me)
		r.Delete("/users/me/token", users.Logout)
		r.Patch("/users/me/password", users.ChangePassword)

		r.Post("/todos", todos.Create)
		r.Get("/todos", todos.List)
		r.Get("/todos/{id}", todos.Get)
		r.Delete("/todos/{id}", todos.Delete)
		r.Patch("/todos/{id}", todos.Update)
	})

	return r
}
