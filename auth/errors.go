package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is returned for both an unknown email and a wrong
// password so callers cannot tell the two apart.
var ErrInvalidCredentials = errors.New("invalid email or password")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Reason int

const (
	ReasonMissingToken Reason = iota + 1
	ReasonInvalidSignature
	ReasonTokenExpired
	ReasonUserNotFound
	ReasonTokenRevoked
)

func (r Reason) String() string {
	switch r {
	case ReasonMissingToken:
		return "missing token"
	case ReasonInvalidSignature:
		return "invalid signature"
	case ReasonTokenExpired:
		return "token expired"
	case ReasonUserNotFound:
		return "user not found"
	case ReasonTokenRevoked:
		return "token revoked"
	default:
		return "unknown"
	}
}

type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason.String()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsReason reports whether err is an *AuthError with the given reason.
func IsReason(err error, r Reason) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Reason == r
}
