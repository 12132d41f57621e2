package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/RogueTeam/ilpgateway/sessions"
)

// Store keeps sessions in a map guarded by a mutex. Updates hold the lock
// while the mutator runs
type Store struct {
	mu       sync.Mutex
	sessions map[string]sessions.Session
}

var _ sessions.Store = (*Store)(nil)

func New() *Store {
	return &Store{sessions: make(map[string]sessions.Session)}
}

func (s *Store) Create(ctx context.Context, session sessions.Session) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found := s.sessions[session.Id]
	if found {
		return fmt.Errorf("%w: %s", sessions.ErrExists, session.Id)
	}
	s.sessions[session.Id] = session
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (session sessions.Session, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, found := s.sessions[id]
	if !found {
		return session, fmt.Errorf("%w: %s", sessions.ErrNotFound, id)
	}
	return session, nil
}

func (s *Store) Update(ctx context.Context, id string, fn sessions.Mutator) (session sessions.Session, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, found := s.sessions[id]
	if !found {
		return session, fmt.Errorf("%w: %s", sessions.ErrNotFound, id)
	}

	err = fn(&session)
	if err != nil {
		return session, err
	}
	s.sessions[id] = session
	return session, nil
}

func (s *Store) Delete(ctx context.Context, id string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, found := s.sessions[id]
	if !found {
		return fmt.Errorf("%w: %s", sessions.ErrNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Stream sends a snapshot taken when called
func (s *Store) Stream(ctx context.Context) (<-chan sessions.Session, <-chan error) {
	s.mu.Lock()
	snapshot := make([]sessions.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		snapshot = append(snapshot, session)
	}
	s.mu.Unlock()

	stream := make(chan sessions.Session, 1_000)
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		defer close(stream)

		for _, session := range snapshot {
			select {
			case stream <- session:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
		errChan <- nil
	}()
	return stream, errChan
}
