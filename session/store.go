package session

import (
	"context"
	"errors"
	"log"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/metrics"
	"github.com/matrix-org/policyrelay/storage"
)

var ErrNotFound = errors.New("session not found or expired")

type Config struct {
	Ttl         time.Duration
	MaxMessages int // zero for no limit
}

type Session struct {
	Id       string
	messages []chat.Message
	lock     chan struct{} // buffered with capacity 1, held while a turn is in progress
}

// Store - Holds conversation history per session. Sessions expire after a period of inactivity.
type Store struct {
	sessions    *cache.Cache[string, *Session] // session ID -> session
	ttl         time.Duration
	maxMessages int
}

func NewStore(cnf *Config) (*Store, error) {
	if cnf.Ttl <= 0 {
		return nil, errors.New("session TTL must be positive")
	}
	if cnf.MaxMessages < 0 {
		return nil, errors.New("session max messages must not be negative")
	}
	return &Store{
		sessions: cache.New[string, *Session](
			cache.WithJanitorInterval[string, *Session](max(cnf.Ttl/2, time.Second)),
		),
		ttl:         cnf.Ttl,
		maxMessages: cnf.MaxMessages,
	}, nil
}

func (s *Store) Create() *Session {
	sess := &Session{
		Id:       storage.NextId(),
		messages: make([]chat.Message, 0),
		lock:     make(chan struct{}, 1),
	}
	s.sessions.Set(sess.Id, sess, cache.WithExpiration(s.ttl))
	log.Printf("[%s] Created session", sess.Id)
	return sess
}

func (s *Store) get(id string) (*Session, error) {
	sess, ok := s.sessions.Get(id)
	metrics.RecordSessionCacheRequest(ok)
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// History - Returns a copy of the session's messages, oldest first.
func (s *Store) History(ctx context.Context, id string) ([]chat.Message, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if err = sess.acquire(ctx); err != nil {
		return nil, err
	}
	defer sess.release()
	return append(make([]chat.Message, 0, len(sess.messages)), sess.messages...), nil
}

// Turn - Runs fn with a copy of the session's history while holding the session, so turns for one session happen one
// at a time. When fn succeeds, the messages it returns are appended to the history and the session's expiry is
// refreshed. When fn fails, the history is unchanged.
func (s *Store) Turn(ctx context.Context, id string, fn func(history []chat.Message) ([]chat.Message, error)) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	if err = sess.acquire(ctx); err != nil {
		return err
	}
	defer sess.release()

	history := append(make([]chat.Message, 0, len(sess.messages)+2), sess.messages...)
	appended, err := fn(history)
	if err != nil {
		return err
	}

	messages := append(sess.messages, appended...)
	if s.maxMessages > 0 && len(messages) > s.maxMessages {
		log.Printf("[%s] Trimming history from %d to %d messages", sess.Id, len(messages), s.maxMessages)
		messages = append(make([]chat.Message, 0, s.maxMessages), messages[len(messages)-s.maxMessages:]...)
	}
	sess.messages = messages

	// Refresh the expiry. This also revives a session which expired while the turn was running.
	s.sessions.Set(sess.Id, sess, cache.WithExpiration(s.ttl))
	return nil
}

func (s *Store) Delete(id string) {
	s.sessions.Delete(id)
}

func (s *Store) Len() int {
	return s.sessions.Len()
}

func (sess *Session) acquire(ctx context.Context) error {
	select {
	case sess.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sess *Session) release() {
	<-sess.lock
}
