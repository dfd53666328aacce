// Package session carries the caller's auth token and profile explicitly
// through context.Context and persists them between runs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNoSession is returned by a Store that holds nothing yet.
var ErrNoSession = errors.New("session: nothing stored")

// Session is the authenticated identity used for backend calls.
// Profile is kept opaque.
type Session struct {
	Token   string          `json:"token"`
	Profile json.RawMessage `json:"profile,omitempty"`
	SavedAt time.Time       `json:"saved_at"`
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return strings.TrimSpace(s.Token) != ""
}

// Store loads a session at process start and saves it at process end.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
}

type ctxKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext extracts the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// TokenFromContext returns the bearer token if a session is present.
func TokenFromContext(ctx context.Context) string {
	s, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s.Token)
}

func encode(s Session) ([]byte, error) {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	return json.Marshal(s)
}

func decode(raw []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}
