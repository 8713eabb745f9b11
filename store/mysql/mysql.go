// Package mysql implements the store contracts on top of the schema in db/migrations.
package mysql

import (
	"database/sql"

	"mini-todo/store"
)

type Store struct {
	users *Users
	todos *Todos
}

func New(db *sql.DB) *Store {
	return &Store{users: NewUsers(db), todos: NewTodos(db)}
}

func (s *Store) Users() store.Users { return s.users }
func (s *Store) Todos() store.Todos { return s.todos }
