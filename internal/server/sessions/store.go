// Package sessions keeps the server side of a login: one active session
// per user, each carrying its own anti-forgery token.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/cryptox"
)

// tokenBytes is the entropy of session ids and anti-forgery tokens.
const tokenBytes = 32

type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	CSRFToken string    `json:"csrf_token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions. Get returns common.ErrorNotFound for unknown or
// expired ids. Delete is idempotent.
type Store interface {
	// Create starts a session for userID and ends any session the user
	// already had.
	Create(ctx context.Context, userID int64) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// generator produces ids and timestamps; tests replace it.
type generator struct {
	token func(size int) (string, error)
	now   func() time.Time
}

func defaultGenerator() generator {
	return generator{
		token: cryptox.NewToken,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (g generator) newSession(userID int64, ttl time.Duration) (*Session, error) {
	id, err := g.token(tokenBytes)
	if err != nil {
		return nil, err
	}
	csrf, err := g.token(tokenBytes)
	if err != nil {
		return nil, err
	}
	now := g.now()
	return &Session{
		ID:        id,
		UserID:    userID,
		CSRFToken: csrf,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}
