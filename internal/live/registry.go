package live

import (
	"errors"
	"sync"
	"time"

	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionEnded      = errors.New("session ended")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrCapacityExceeded  = errors.New("session is at capacity")
	ErrAlreadyMember     = errors.New("already a session member")
	ErrNotAMember        = errors.New("not a session member")
)

// Registry holds the authoritative live state of every known session:
// the lifecycle record plus the roster. Every mutation against one
// session runs under that session's lock, so the capacity check and the
// insert it guards are a single atomic step, and a status check and the
// write that follows it cannot interleave with another writer.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
}

type sessionState struct {
	mu      sync.Mutex
	session models.Session
	members map[int64]*models.Participant
	order   []int64
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*sessionState)}
}

// Put registers a session, replacing any previous state for the same ID.
// The participants argument restores a roster when warming the registry
// from the durable store; pass none for a freshly created session.
func (r *Registry) Put(session models.Session, participants ...models.Participant) {
	state := &sessionState{
		session: session,
		members: make(map[int64]*models.Participant, len(participants)),
	}
	for i := range participants {
		p := participants[i]
		if _, ok := state.members[p.UserID]; ok {
			continue
		}
		state.members[p.UserID] = &p
		state.order = append(state.order, p.UserID)
	}

	r.mu.Lock()
	r.sessions[session.ID] = state
	r.mu.Unlock()
}

func (r *Registry) state(sessionID string) (*sessionState, error) {
	r.mu.RLock()
	state, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

// Get returns a snapshot of the session record.
func (r *Registry) Get(sessionID string) (models.Session, error) {
	state, err := r.state(sessionID)
	if err != nil {
		return models.Session{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.session, nil
}

// UpdateStatusIfCurrent moves the session status from current to next in
// one atomic compare-and-set. It fails with ErrInvalidTransition when the
// session is no longer in the expected status.
func (r *Registry) UpdateStatusIfCurrent(sessionID, current, next string) (models.Session, error) {
	state, err := r.state(sessionID)
	if err != nil {
		return models.Session{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.session.Status != current {
		return models.Session{}, ErrInvalidTransition
	}
	state.session.Status = next
	state.session.UpdatedAt = time.Now().UTC()
	return state.session, nil
}

// AddParticipant admits a user to the roster. The terminal-state gate,
// the membership check and the capacity check all happen under the
// session lock, so concurrent joins against one remaining slot admit
// exactly one caller.
func (r *Registry) AddParticipant(sessionID string, userID int64, role string) (models.Participant, error) {
	state, err := r.state(sessionID)
	if err != nil {
		return models.Participant{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.session.Status == models.SessionEnded {
		return models.Participant{}, ErrSessionEnded
	}
	if _, ok := state.members[userID]; ok {
		return models.Participant{}, ErrAlreadyMember
	}
	// Capacity bounds the audience; the coach's own seat is not counted.
	if role != models.RoleCoach {
		count := 0
		for _, member := range state.members {
			if member.Role != models.RoleCoach {
				count++
			}
		}
		if count >= state.session.Capacity {
			return models.Participant{}, ErrCapacityExceeded
		}
	}

	participant := &models.Participant{
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now().UTC(),
	}
	state.members[userID] = participant
	state.order = append(state.order, userID)
	return *participant, nil
}

func (r *Registry) RemoveParticipant(sessionID string, userID int64) error {
	state, err := r.state(sessionID)
	if err != nil {
		return err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.session.Status == models.SessionEnded {
		return ErrSessionEnded
	}
	if _, ok := state.members[userID]; !ok {
		return ErrNotAMember
	}
	delete(state.members, userID)
	for i, id := range state.order {
		if id == userID {
			state.order = append(state.order[:i], state.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) SetMuted(sessionID string, userID int64, muted bool) (models.Participant, error) {
	state, err := r.state(sessionID)
	if err != nil {
		return models.Participant{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return state.setMutedLocked(userID, muted)
}

// ToggleMuted flips the participant's muted flag as one atomic step.
func (r *Registry) ToggleMuted(sessionID string, userID int64) (models.Participant, error) {
	state, err := r.state(sessionID)
	if err != nil {
		return models.Participant{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	member, ok := state.members[userID]
	if !ok {
		return models.Participant{}, ErrNotAMember
	}
	return state.setMutedLocked(userID, !member.Muted)
}

func (s *sessionState) setMutedLocked(userID int64, muted bool) (models.Participant, error) {
	if s.session.Status == models.SessionEnded {
		return models.Participant{}, ErrSessionEnded
	}
	member, ok := s.members[userID]
	if !ok {
		return models.Participant{}, ErrNotAMember
	}
	member.Muted = muted
	return *member, nil
}

// Participant returns a snapshot of one membership record.
func (r *Registry) Participant(sessionID string, userID int64) (models.Participant, error) {
	state, err := r.state(sessionID)
	if err != nil {
		return models.Participant{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	member, ok := state.members[userID]
	if !ok {
		return models.Participant{}, ErrNotAMember
	}
	return *member, nil
}

// ListParticipants returns the roster in join order.
func (r *Registry) ListParticipants(sessionID string) ([]models.Participant, error) {
	state, err := r.state(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	participants := make([]models.Participant, 0, len(state.order))
	for _, userID := range state.order {
		participants = append(participants, *state.members[userID])
	}
	return participants, nil
}

// ClearParticipants empties the roster, returning the removed members.
// Used for the cascade when a session reaches its terminal state.
func (r *Registry) ClearParticipants(sessionID string) []models.Participant {
	state, err := r.state(sessionID)
	if err != nil {
		return nil
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	removed := make([]models.Participant, 0, len(state.order))
	for _, userID := range state.order {
		removed = append(removed, *state.members[userID])
	}
	state.members = make(map[int64]*models.Participant)
	state.order = nil
	return removed
}
