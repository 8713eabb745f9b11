package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mini-todo/auth"
	"mini-todo/middleware"
	"mini-todo/models"
	"mini-todo/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Todos struct {
	todos store.Todos
	log   *slog.Logger
	now   func() time.Time
}

func NewTodos(todos store.Todos, logger *slog.Logger) *Todos {
	return &Todos{todos: todos, log: logger, now: time.Now}
}

type todoResponse struct {
	Todo *models.Todo `json:"todo"`
}

type todoListResponse struct {
	Todos []models.Todo `json:"todos"`
}

// parseID returns the canonical form of the {id} URL param, or false when it
// is not a todo identifier.
func parseID(r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// requester is only missing when a route was mounted without RequireAuth.
func (h *Todos) requester(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
	}
	return user, ok
}

func cleanText(text *string) (string, error) {
	if text == nil {
		return "", &auth.ValidationError{Field: "text", Message: "text is required"}
	}
	trimmed := strings.TrimSpace(*text)
	if trimmed == "" {
		return "", &auth.ValidationError{Field: "text", Message: "text cannot be empty"}
	}
	return trimmed, nil
}

// Create handles POST /todos. The creator is always the requester.
func (h *Todos) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}

	var req struct {
		Text *string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	text, err := cleanText(req.Text)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	todo := &models.Todo{Text: text, CreatorID: user.ID}
	if err := h.todos.Insert(r.Context(), todo); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// List handles GET /todos.
func (h *Todos) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}

	todos, err := h.todos.FindByCreator(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	writeJSON(w, http.StatusOK, todoListResponse{Todos: todos})
}

// Get handles GET /todos/{id}.
func (h *Todos) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}
	id, ok := parseID(r)
	if !ok {
		invalidID(w)
		return
	}

	todo, err := h.todos.FindOne(r.Context(), id, user.ID)
	h.respondTodo(w, r, todo, err)
}

// Delete handles DELETE /todos/{id}.
func (h *Todos) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}
	id, ok := parseID(r)
	if !ok {
		invalidID(w)
		return
	}

	todo, err := h.todos.Delete(r.Context(), id, user.ID)
	h.respondTodo(w, r, todo, err)
}

type updateTodoRequest struct {
	Text      *string         `json:"text"`
	Completed json.RawMessage `json:"completed"`
}

// Update handles PATCH /todos/{id}. Only text and completed are read from
// the body; completedAt is derived from completed.
func (h *Todos) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}
	id, ok := parseID(r)
	if !ok {
		invalidID(w)
		return
	}

	var req updateTodoRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	var patch models.TodoPatch
	if req.Text != nil {
		text, err := cleanText(req.Text)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		patch.Text = &text
	}

	// anything other than a literal true resets completion
	var completed bool
	if len(req.Completed) > 0 && json.Unmarshal(req.Completed, &completed) == nil && completed {
		at := h.now().UnixMilli()
		patch.Completed = true
		patch.CompletedAt = &at
	}

	todo, err := h.todos.Update(r.Context(), id, user.ID, patch)
	h.respondTodo(w, r, todo, err)
}

func (h *Todos) respondTodo(w http.ResponseWriter, r *http.Request, todo *models.Todo, err error) {
	if errors.Is(err, store.ErrNotFound) {
		notFound(w)
		return
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, todoResponse{Todo: todo})
}
