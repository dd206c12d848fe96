package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"medgame/internal/security"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrPerkUsed       = errors.New("perk already used in this session")
	ErrTranscriptFull = errors.New("transcript is full")
)

const (
	DefaultTTL      = time.Hour
	DefaultMaxTurns = 120
)

type entry struct {
	mu        sync.Mutex
	session   *Session
	expiresAt time.Time
}

// Store keeps consultation sessions in memory with a fixed lifetime.
// Calls on the same id are serialized by a per-entry mutex.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	ttl      time.Duration
	maxTurns int
	now      func() time.Time
	newID    func() string
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTTL sets the lifetime of a session, counted from creation
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxTurns caps the transcript length
func WithMaxTurns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithIDGenerator replaces the session id source
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:  make(map[string]*entry),
		ttl:      DefaultTTL,
		maxTurns: DefaultMaxTurns,
		now:      time.Now,
		newID:    security.GenerateSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxTurns returns the transcript cap
func (s *Store) MaxTurns() int {
	return s.maxTurns
}

// Create stores a copy of sess under a fresh id and returns the id
func (s *Store) Create(sess *Session) string {
	c := sess.clone()
	c.ID = s.newID()
	c.CreatedAt = s.now()

	s.mu.Lock()
	s.entries[c.ID] = &entry{session: c, expiresAt: c.CreatedAt.Add(s.ttl)}
	s.mu.Unlock()

	return c.ID
}

// lookup returns the live entry for id, or nil when it is missing or expired
func (s *Store) lookup(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil
	}
	return e
}

func (s *Store) current(id string, e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id] == e
}

// Get returns a copy of the session
func (s *Store) Get(id string) (*Session, error) {
	e := s.lookup(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !s.current(id, e) {
		return nil, ErrNotFound
	}
	return e.session.clone(), nil
}

// Mutate runs fn on a working copy of the session while holding the
// entry lock. The copy replaces the stored session only when fn returns nil.
func (s *Store) Mutate(id string, fn func(*Session) error) error {
	e := s.lookup(id)
	if e == nil {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !s.current(id, e) {
		return ErrNotFound
	}

	working := e.session.clone()
	if err := fn(working); err != nil {
		return err
	}
	if len(working.Transcript) > s.maxTurns {
		return ErrTranscriptFull
	}
	working.ID = e.session.ID
	working.CreatedAt = e.session.CreatedAt
	e.session = working
	return nil
}

// AppendTurn adds one turn to the transcript
func (s *Store) AppendTurn(id string, role Role, text string) error {
	return s.Mutate(id, func(sess *Session) error {
		sess.Append(Turn{Role: role, Text: text})
		return nil
	})
}

// MarkPerkUsed flags key and reports whether this call was the first
func (s *Store) MarkPerkUsed(id string, key PerkKey) (bool, error) {
	var first bool
	err := s.Mutate(id, func(sess *Session) error {
		first = sess.MarkPerk(key)
		return nil
	})
	return first, err
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, expired or not
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reap removes expired sessions that are not being mutated
func (s *Store) Reap() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if now.Before(e.expiresAt) {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		delete(s.entries, id)
		e.mu.Unlock()
		removed++
	}
	return removed
}

// StartReaper reaps expired sessions every interval until ctx is done
func (s *Store) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Reap(); n > 0 {
					log.Printf("Reaped %d expired sessions", n)
				}
			}
		}
	}()
}
