package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/common"
)

// MemoryStore keeps sessions in process memory. It is used when no Redis
// address is configured and is safe for concurrent use.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	gen       generator
	byID      map[string]*Session
	byUser    map[int64]string
	lastSweep time.Time
}

// sweepEvery bounds how often Create scans for expired sessions.
const sweepEvery = time.Minute

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:    ttl,
		gen:    defaultGenerator(),
		byID:   make(map[string]*Session),
		byUser: make(map[int64]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, userID int64) (*Session, error) {
	sess, err := s.gen.newSession(userID, s.ttl)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if now := s.gen.now(); now.Sub(s.lastSweep) >= sweepEvery {
		s.sweep(now)
	}
	if prev, ok := s.byUser[userID]; ok {
		delete(s.byID, prev)
	}
	s.byID[sess.ID] = sess
	s.byUser[userID] = sess.ID

	c := *sess
	return &c, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if !s.gen.now().Before(sess.ExpiresAt) {
		s.drop(sess)
		return nil, common.ErrorNotFound
	}
	c := *sess
	return &c, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		s.drop(sess)
	}
	return nil
}

func (s *MemoryStore) drop(sess *Session) {
	delete(s.byID, sess.ID)
	if s.byUser[sess.UserID] == sess.ID {
		delete(s.byUser, sess.UserID)
	}
}

// sweep drops every session that expired by now.
func (s *MemoryStore) sweep(now time.Time) {
	for _, sess := range s.byID {
		if !now.Before(sess.ExpiresAt) {
			s.drop(sess)
		}
	}
	s.lastSweep = now
}
