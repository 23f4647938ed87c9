package usecase

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

type sessionState struct {
	turn    int
	history []string
}

// SessionStore keeps per-session conversation state in memory. History
// holds the most recent queries, newest last, capped at historyLimit.
type SessionStore struct {
	mu           sync.Mutex
	sessions     map[string]*sessionState
	historyLimit int
}

func NewSessionStore(historyLimit int) *SessionStore {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &SessionStore{
		sessions:     make(map[string]*sessionState),
		historyLimit: historyLimit,
	}
}

// Begin resolves the session for a request, increments its turn counter
// and records the query. The returned history contains the queries of
// previous turns only.
func (s *SessionStore) Begin(sessionID, query string) (domain.Session, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(sessionID)
	if id == "" {
		id = uuid.NewString()
	}

	state, ok := s.sessions[id]
	if !ok {
		state = &sessionState{}
		s.sessions[id] = state
	}

	previous := make([]string, len(state.history))
	copy(previous, state.history)

	state.turn++
	state.history = append(state.history, query)
	if len(state.history) > s.historyLimit {
		state.history = state.history[len(state.history)-s.historyLimit:]
	}

	return domain.Session{ID: id, Turn: state.turn}, previous
}

// Turn reports the current turn counter for a session, zero when the
// session is unknown.
func (s *SessionStore) Turn(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return 0
	}
	return state.turn
}
