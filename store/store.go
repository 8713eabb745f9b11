// Package store defines the persistence contracts for users and todos.
// Every todo lookup takes the owner id alongside the todo id, so a record
// owned by someone else is reported exactly like a missing one.
package store

import (
	"context"
	"errors"

	"mini-todo/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Store groups the repositories handed to the auth services and handlers.
type Store interface {
	Users() Users
	Todos() Todos
}

type Users interface {
	// Create assigns u.ID and persists u. Returns ErrDuplicateEmail when the
	// email is taken.
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByID returns the user with its token sequence loaded.
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	AddToken(ctx context.Context, userID string, tok models.Token) error
	// RemoveToken is a no-op when the token is absent.
	RemoveToken(ctx context.Context, userID, token string) error
}

type Todos interface {
	// Insert assigns t.ID and persists t.
	Insert(ctx context.Context, t *models.Todo) error
	FindByCreator(ctx context.Context, creatorID string) ([]models.Todo, error)
	FindOne(ctx context.Context, id, creatorID string) (*models.Todo, error)
	Update(ctx context.Context, id, creatorID string, patch models.TodoPatch) (*models.Todo, error)
	Delete(ctx context.Context, id, creatorID string) (*models.Todo, error)
}
