package auth

import (
	"fmt"

	"finca/internal/core"
)

// DeniedError is returned when an operation needs a signed-in user. SignInURL
// is where the caller should send the user.
type DeniedError struct {
	SignInURL string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%v (sign in at %s)", core.ErrDenied, e.SignInURL)
}

func (e *DeniedError) Unwrap() error {
	return core.ErrDenied
}

// Gate guards mutating operations.
type Gate struct {
	signInURL string
}

func NewGate(signInURL string) *Gate {
	if signInURL == "" {
		signInURL = "/login"
	}
	return &Gate{signInURL: signInURL}
}

// RequireSignedIn returns nil for a present user and *DeniedError otherwise.
func (g *Gate) RequireSignedIn(u *User) error {
	if u == nil || u.ID == "" {
		return &DeniedError{SignInURL: g.signInURL}
	}
	return nil
}

func (g *Gate) SignInURL() string {
	return g.signInURL
}
