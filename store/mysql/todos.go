package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mini-todo/models"
	"mini-todo/store"

	"github.com/google/uuid"
)

const todoColumns = "id, text, completed, completed_at, creator_id, created_at"

type Todos struct {
	db *sql.DB
}

func NewTodos(db *sql.DB) *Todos {
	return &Todos{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	var (
		t           models.Todo
		completedAt sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Text, &t.Completed, &completedAt, &t.CreatorID, &t.CreatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		at := completedAt.Int64
		t.CompletedAt = &at
	}
	return &t, nil
}

func (r *Todos) Insert(ctx context.Context, t *models.Todo) error {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO todos (id, text, completed, completed_at, creator_id) VALUES (?, ?, ?, ?, ?)",
		id, t.Text, t.Completed, nullMillis(t.CompletedAt), t.CreatorID)
	if err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}

	created, err := scanTodo(r.db.QueryRowContext(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE id = ?", id))
	if err != nil {
		return fmt.Errorf("reload todo: %w", err)
	}
	*t = *created
	return nil
}

func (r *Todos) FindByCreator(ctx context.Context, creatorID string) ([]models.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE creator_id = ? ORDER BY created_at ASC, id ASC", creatorID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]models.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (r *Todos) FindOne(ctx context.Context, id, creatorID string) (*models.Todo, error) {
	t, err := scanTodo(r.db.QueryRowContext(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE id = ? AND creator_id = ?", id, creatorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find todo: %w", err)
	}
	return t, nil
}

func (r *Todos) Update(ctx context.Context, id, creatorID string, patch models.TodoPatch) (*models.Todo, error) {
	var updated *models.Todo
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		t, err := lockOwned(ctx, tx, id, creatorID)
		if err != nil {
			return err
		}
		patch.Apply(t)
		if _, err := tx.ExecContext(ctx,
			"UPDATE todos SET text = ?, completed = ?, completed_at = ? WHERE id = ? AND creator_id = ?",
			t.Text, t.Completed, nullMillis(t.CompletedAt), id, creatorID); err != nil {
			return fmt.Errorf("update todo: %w", err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Todos) Delete(ctx context.Context, id, creatorID string) (*models.Todo, error) {
	var deleted *models.Todo
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		t, err := lockOwned(ctx, tx, id, creatorID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM todos WHERE id = ? AND creator_id = ?", id, creatorID); err != nil {
			return fmt.Errorf("delete todo: %w", err)
		}
		deleted = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func lockOwned(ctx context.Context, tx *sql.Tx, id, creatorID string) (*models.Todo, error) {
	t, err := scanTodo(tx.QueryRowContext(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE id = ? AND creator_id = ? FOR UPDATE", id, creatorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock todo: %w", err)
	}
	return t, nil
}

func (r *Todos) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func nullMillis(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
