package models

import "time"

// AccessAuth is the only token purpose issued by this service.
const AccessAuth = "auth"

type Token struct {
	Access string `json:"access"`
	Token  string `json:"token"`
}

type User struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Tokens       []Token   `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

type Todo struct {
	ID          string    `json:"_id"`
	Text        string    `json:"text"`
	Completed   bool      `json:"completed"`
	CompletedAt *int64    `json:"completedAt"` // epoch millis
	CreatorID   string    `json:"_creator"`
	CreatedAt   time.Time `json:"-"`
}

// TodoPatch is the resolved update applied to an owned todo.
// Text is left untouched when nil; Completed and CompletedAt are always written.
type TodoPatch struct {
	Text        *string
	Completed   bool
	CompletedAt *int64
}

// Apply writes the patch onto t.
func (p TodoPatch) Apply(t *Todo) {
	if p.Text != nil {
		t.Text = *p.Text
	}
	t.Completed = p.Completed
	t.CompletedAt = p.CompletedAt
}
