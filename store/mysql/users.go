package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mini-todo/models"
	"mini-todo/store"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MySQL server error numbers.
const (
	erDupEntry        = 1062
	erNoReferencedRow = 1452
)

type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

func (r *Users) Create(ctx context.Context, u *models.User) error {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)",
		id, u.Email, u.PasswordHash)
	if err != nil {
		if isDuplicate(err) {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	u.Tokens = nil
	return nil
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &u, nil
}

func (r *Users) FindByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT access, token FROM user_tokens WHERE user_id = ? ORDER BY id ASC", id)
	if err != nil {
		return nil, fmt.Errorf("load user tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tok models.Token
		if err := rows.Scan(&tok.Access, &tok.Token); err != nil {
			return nil, fmt.Errorf("scan user token: %w", err)
		}
		u.Tokens = append(u.Tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load user tokens: %w", err)
	}
	return &u, nil
}

func (r *Users) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ? WHERE id = ?", hash, userID)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	// MySQL reports changed rows, an identical hash would read as zero
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return r.exists(ctx, userID)
	}
	return nil
}

func (r *Users) exists(ctx context.Context, userID string) error {
	var id string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM users WHERE id = ?", userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	return nil
}

func (r *Users) AddToken(ctx context.Context, userID string, tok models.Token) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO user_tokens (user_id, access, token) VALUES (?, ?, ?)",
		userID, tok.Access, tok.Token)
	if err != nil {
		if mysqlErrno(err) == erNoReferencedRow {
			return store.ErrNotFound
		}
		return fmt.Errorf("insert user token: %w", err)
	}
	return nil
}

func (r *Users) RemoveToken(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM user_tokens WHERE user_id = ? AND token = ?", userID, token)
	if err != nil {
		return fmt.Errorf("delete user token: %w", err)
	}
	return nil
}

func isDuplicate(err error) bool {
	return mysqlErrno(err) == erDupEntry
}

func mysqlErrno(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}
