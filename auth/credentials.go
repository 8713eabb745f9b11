package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mini-todo/models"
	"mini-todo/store"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	// bytes, the bcrypt input limit
	maxPasswordLen = 72
	emailRule      = "required,email,max=255"
)

var passwordRule = fmt.Sprintf("required,min=%d,max=%d", minPasswordLen, maxPasswordLen)

// Credentials registers users and checks email/password pairs.
type Credentials struct {
	users    store.Users
	validate *validator.Validate
	cost     int
	// dummyHash is compared against when the email is unknown so a miss
	// costs the same bcrypt work as a wrong password.
	dummyHash []byte
}

func NewCredentials(users store.Users, cost int) (*Credentials, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Credentials{
		users:     users,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cost:      cost,
		dummyHash: dummy,
	}, nil
}

// Register validates the input, hashes the password and stores the user.
// The returned user carries no tokens.
func (c *Credentials) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if err := c.checkEmail(email); err != nil {
		return nil, err
	}
	if err := c.checkPassword(password); err != nil {
		return nil, err
	}

	hash, err := c.hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: email, PasswordHash: hash}
	if err := c.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, &ValidationError{Field: "email", Message: "email is already registered"}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Verify returns the user owning email when password matches, or nil.
// A non-nil error means the lookup itself failed.
func (c *Credentials) Verify(ctx context.Context, email, password string) (*models.User, error) {
	user, err := c.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(password))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return user, nil
}

// ChangePassword replaces the stored hash after checking the current password.
func (c *Credentials) ChangePassword(ctx context.Context, user *models.User, current, next string) error {
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	if err := c.checkPassword(next); err != nil {
		return err
	}

	hash, err := c.hash(next)
	if err != nil {
		return err
	}
	if err := c.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	user.PasswordHash = hash
	return nil
}

func (c *Credentials) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (c *Credentials) checkPassword(password string) error {
	if err := c.validate.Var(password, passwordRule); err != nil {
		return passwordError(err)
	}
	if len(password) > maxPasswordLen {
		return tooLong()
	}
	return nil
}

func (c *Credentials) checkEmail(email string) error {
	err := c.validate.Var(email, emailRule)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	return &ValidationError{Field: "email", Message: "email is not a valid address"}
}

func passwordError(err error) *ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
		return tooLong()
	}
	return &ValidationError{
		Field:   "password",
		Message: fmt.Sprintf("password must be at least %d characters", minPasswordLen),
	}
}

func tooLong() *ValidationError {
	return &ValidationError{Field: "password", Message: fmt.Sprintf("password must be at most %d bytes", maxPasswordLen)}
}
