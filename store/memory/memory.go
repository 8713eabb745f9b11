// Package memory keeps users and todos in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mini-todo/models"
	"mini-todo/store"

	"github.com/google/uuid"
)

type Store struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	byEmail map[string]string
	todos   map[string]*models.Todo
	seq     map[string]int64
	next    int64
}

func New() *Store {
	return &Store{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]string),
		todos:   make(map[string]*models.Todo),
		seq:     make(map[string]int64),
	}
}

func (s *Store) Users() store.Users { return (*users)(s) }
func (s *Store) Todos() store.Todos { return (*todos)(s) }

type users Store

func (u *users) Create(_ context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, taken := u.byEmail[user.Email]; taken {
		return store.ErrDuplicateEmail
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.Tokens = nil

	u.users[user.ID] = cloneUser(user)
	u.byEmail[user.Email] = user.ID
	return nil
}

func (u *users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	id, ok := u.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u.users[id]), nil
}

func (u *users) FindByID(_ context.Context, id string) (*models.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	user, ok := u.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(user), nil
}

func (u *users) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = hash
	return nil
}

func (u *users) AddToken(_ context.Context, userID string, tok models.Token) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.Tokens = append(user.Tokens, tok)
	return nil
}

func (u *users) RemoveToken(_ context.Context, userID, token string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[userID]
	if !ok {
		return nil
	}
	kept := user.Tokens[:0]
	for _, t := range user.Tokens {
		if t.Token != token {
			kept = append(kept, t)
		}
	}
	user.Tokens = kept
	return nil
}

type todos Store

func (m *todos) Insert(_ context.Context, t *models.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC()
	m.next++
	m.seq[t.ID] = m.next
	m.todos[t.ID] = cloneTodo(t)
	return nil
}

func (m *todos) FindByCreator(_ context.Context, creatorID string) ([]models.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]models.Todo, 0)
	for _, t := range m.todos {
		if t.CreatorID == creatorID {
			list = append(list, *cloneTodo(t))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return m.seq[list[i].ID] < m.seq[list[j].ID]
	})
	return list, nil
}

func (m *todos) FindOne(_ context.Context, id, creatorID string) (*models.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.owned(id, creatorID)
	if err != nil {
		return nil, err
	}
	return cloneTodo(t), nil
}

func (m *todos) Update(_ context.Context, id, creatorID string, patch models.TodoPatch) (*models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.owned(id, creatorID)
	if err != nil {
		return nil, err
	}
	patch.Apply(t)
	return cloneTodo(t), nil
}

func (m *todos) Delete(_ context.Context, id, creatorID string) (*models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.owned(id, creatorID)
	if err != nil {
		return nil, err
	}
	delete(m.todos, id)
	delete(m.seq, id)
	return t, nil
}

// owned must be called with the lock held.
func (m *todos) owned(id, creatorID string) (*models.Todo, error) {
	t, ok := m.todos[id]
	if !ok || t.CreatorID != creatorID {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Tokens = append([]models.Token(nil), u.Tokens...)
	return &c
}

func cloneTodo(t *models.Todo) *models.Todo {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
