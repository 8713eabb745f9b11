package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"mini-todo/models"
	"mini-todo/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID string `json:"_id"`
	Access string `json:"access"`
	jwt.RegisteredClaims
}

// Tokens issues signed per-user tokens and keeps them in the user's token
// sequence. A token is only valid while it is still in that sequence.
type Tokens struct {
	users  store.Users
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(users store.Users, secret string, ttl time.Duration) *Tokens {
	return &Tokens{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a new auth token for user and appends it to the user's tokens.
func (s *Tokens) Issue(ctx context.Context, user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Access: models.AccessAuth,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	tok := models.Token{Access: models.AccessAuth, Token: signed}
	if err := s.users.AddToken(ctx, user.ID, tok); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	user.Tokens = append(user.Tokens, tok)
	return signed, nil
}

// Resolve returns the user a token belongs to. Any failure is an *AuthError
// except store failures, which are returned wrapped.
func (s *Tokens) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, &AuthError{Reason: ReasonMissingToken}
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &AuthError{Reason: ReasonTokenExpired, Err: err}
		}
		return nil, &AuthError{Reason: ReasonInvalidSignature, Err: err}
	}
	if claims.Access != models.AccessAuth || claims.UserID == "" {
		return nil, &AuthError{Reason: ReasonInvalidSignature, Err: errors.New("unexpected claims")}
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &AuthError{Reason: ReasonUserNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("load token owner: %w", err)
	}

	if !hasToken(user.Tokens, token) {
		return nil, &AuthError{Reason: ReasonTokenRevoked}
	}
	return user, nil
}

// Revoke drops token from the user's sequence. Revoking an absent token succeeds.
func (s *Tokens) Revoke(ctx context.Context, user *models.User, token string) error {
	if err := s.users.RemoveToken(ctx, user.ID, token); err != nil {
		return fmt.Errorf("remove token: %w", err)
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

func hasToken(tokens []models.Token, token string) bool {
	found := false
	for _, t := range tokens {
		if t.Access == models.AccessAuth && subtle.ConstantTimeCompare([]byte(t.Token), []byte(token)) == 1 {
			found = true
		}
	}
	return found
}
