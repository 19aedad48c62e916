package history

import (
	"context"
	"sync"
	"time"

	"github.com/claude/circuitrunner/internal/models"
)

// MemoryStore is an in-process Store used by the CLI and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]storedSession
}

type storedSession struct {
	userID  int
	session models.WorkoutSession
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]storedSession)}
}

func (m *MemoryStore) InsertSession(_ context.Context, s models.WorkoutSession, userID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sessions[s.ID]; ok {
		if st.userID != userID {
			return false, models.ErrIDTaken
		}
		return false, nil
	}
	m.sessions[s.ID] = storedSession{userID: userID, session: s}
	return true, nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string, userID int) (*models.WorkoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok || st.userID != userID {
		return nil, ErrNotFound
	}
	s := st.session
	return &s, nil
}

// QuerySessions returns sessions started in [start, end). A zero limit
// returns everything.
func (m *MemoryStore) QuerySessions(_ context.Context, start, end time.Time, userID, limit int) ([]models.WorkoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkoutSession
	for _, st := range m.sessions {
		if st.userID != userID {
			continue
		}
		ts := sessionTime(st.session)
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		out = append(out, st.session)
	}
	sortNewest(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateSessionFeedback(_ context.Context, id string, fb models.Feedback, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok || st.userID != userID {
		return ErrNotFound
	}
	st.session.Feedback = &fb
	m.sessions[id] = st
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string, userID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok || st.userID != userID {
		return false, nil
	}
	delete(m.sessions, id)
	return true, nil
}
