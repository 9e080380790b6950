// Package session supplies bearer tokens to the API client. Acquiring or
// refreshing a token is owned by the backend's auth service; this package
// only stores and hands out what the user already has.
package session

import (
	"context"
	"errors"
)

// ErrNotLoggedIn is returned when no usable token is stored.
var ErrNotLoggedIn = errors.New("not logged in; run 'rdimport login --token <token>' first")

// Session is the auth collaborator injected into the HTTP client.
type Session interface {
	Token(ctx context.Context) (string, error)
	// OnUnauthorized is called when the server rejects the token.
	OnUnauthorized()
}

// Static serves a fixed token, e.g. one taken from RDIMPORT_TOKEN.
type Static struct {
	token        string
	unauthorized func()
}

func NewStatic(token string, onUnauthorized func()) *Static {
	return &Static{token: token, unauthorized: onUnauthorized}
}

func (s *Static) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNotLoggedIn
	}
	return s.token, nil
}

func (s *Static) OnUnauthorized() {
	if s.unauthorized != nil {
		s.unauthorized()
	}
}
