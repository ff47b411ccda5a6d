package auth

import (
	"log"
	"sync"

	"github.com/pawhaven/pawhaven-backend/internal/models"
)

// Store owns SessionState. Every mutation goes through it and every mutation
// of user/authenticated is mirrored to the Persister, so the in-memory and
// durable copies cannot drift for longer than one write. Readers subscribe
// rather than mutate.
type Store struct {
	mu        sync.RWMutex
	state     SessionState
	persister Persister
	subs      map[int]chan SessionState
	nextSub   int
}

func NewStore(p Persister) *Store {
	return &Store{
		persister: p,
		subs:      make(map[int]chan SessionState),
	}
}

// LoadPersisted seeds state from durable storage for the optimistic initial
// render. Called once by the Reconciler at start.
func (s *Store) LoadPersisted() SessionState {
	user, authenticated, err := s.persister.LoadSession()
	if err != nil {
		log.Printf("failed to read persisted session: %v", err)
		user, authenticated = nil, false
	}

	s.mu.Lock()
	s.state.User = user
	s.state.IsAuthenticated = authenticated && user != nil
	// Loading stays set until the authoritative check confirms the
	// optimistic state, unless we already believe we are signed in.
	s.state.IsLoading = !s.state.IsAuthenticated
	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetUser records an authenticated user and persists the new state.
func (s *Store) SetUser(user *models.UserProfile) {
	if user == nil {
		s.Clear()
		return
	}

	s.mu.Lock()
	u := *user
	s.state.User = &u
	s.state.IsAuthenticated = true
	snapshot := s.state
	s.mu.Unlock()

	if err := s.persister.SaveSession(user, true); err != nil {
		log.Printf("failed to persist session: %v", err)
	}
	s.notify(snapshot)
}

// Clear resets to the signed-out state and clears the persisted copy.
func (s *Store) Clear() {
	s.mu.Lock()
	s.state.User = nil
	s.state.IsAuthenticated = false
	snapshot := s.state
	s.mu.Unlock()

	if err := s.persister.ClearSession(); err != nil {
		log.Printf("failed to clear persisted session: %v", err)
	}
	s.notify(snapshot)
}

// SetLoading flips the loading flag without touching user state.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	if s.state.IsLoading == loading {
		s.mu.Unlock()
		return
	}
	s.state.IsLoading = loading
	snapshot := s.state
	s.mu.Unlock()

	s.notify(snapshot)
}

// Subscribe registers a state listener. The returned cancel func must be
// called on teardown. Notifications are best-effort: a slow subscriber drops
// intermediate snapshots rather than blocking the writer.
func (s *Store) Subscribe() (<-chan SessionState, func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan SessionState, 8)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify(snapshot SessionState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
