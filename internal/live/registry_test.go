package live

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
)

func newTestSession(id string, capacity int) models.Session {
	return models.Session{
		ID:        id,
		CoachID:   1,
		Title:     "Morning mobility",
		Status:    models.SessionScheduled,
		Capacity:  capacity,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestAddParticipantEnforcesCapacityUnderConcurrency(t *testing.T) {
	const capacity = 5
	const contenders = 12

	registry := NewRegistry()
	registry.Put(newTestSession("s1", capacity))

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := registry.AddParticipant("s1", userID, models.RoleParticipant)
			results <- err
		}(int64(i + 100))
	}
	wg.Wait()
	close(results)

	admitted, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, ErrCapacityExceeded):
			rejected++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}

	if admitted != capacity {
		t.Fatalf("expected %d admitted, got %d", capacity, admitted)
	}
	if rejected != contenders-capacity {
		t.Fatalf("expected %d rejected, got %d", contenders-capacity, rejected)
	}

	roster, err := registry.ListParticipants("s1")
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(roster) != capacity {
		t.Fatalf("expected roster of %d, got %d", capacity, len(roster))
	}
}

func TestCoachSeatDoesNotCountAgainstCapacity(t *testing.T) {
	registry := NewRegistry()
	registry.Put(newTestSession("s1", 2))

	if _, err := registry.AddParticipant("s1", 1, models.RoleCoach); err != nil {
		t.Fatalf("coach join: %v", err)
	}
	if _, err := registry.AddParticipant("s1", 2, models.RoleParticipant); err != nil {
		t.Fatalf("first participant join: %v", err)
	}
	if _, err := registry.AddParticipant("s1", 3, models.RoleParticipant); err != nil {
		t.Fatalf("second participant join: %v", err)
	}
	if _, err := registry.AddParticipant("s1", 4, models.RoleParticipant); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestAddParticipantRejectsDuplicateMembership(t *testing.T) {
	registry := NewRegistry()
	registry.Put(newTestSession("s1", 3))

	if _, err := registry.AddParticipant("s1", 7, models.RoleParticipant); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := registry.AddParticipant("s1", 7, models.RoleParticipant); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestRemoveParticipantTwiceFailsSecondTime(t *testing.T) {
	registry := NewRegistry()
	registry.Put(newTestSession("s1", 3))

	if _, err := registry.AddParticipant("s1", 7, models.RoleParticipant); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := registry.RemoveParticipant("s1", 7); err != nil {
		t.Fatalf("first leave: %v", err)
	}
	if err := registry.RemoveParticipant("s1", 7); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
}

func TestListParticipantsPreservesJoinOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Put(newTestSession("s1", 10))

	ids := []int64{42, 17, 99, 3}
	for _, id := range ids {
		if _, err := registry.AddParticipant("s1", id, models.RoleParticipant); err != nil {
			t.Fatalf("join %d: %v", id, err)
		}
	}
	if err := registry.RemoveParticipant("s1", 17); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := registry.AddParticipant("s1", 17, models.RoleParticipant); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	roster, err := registry.ListParticipants("s1")
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	want := []int64{42, 99, 3, 17}
	if len(roster) != len(want) {
		t.Fatalf("expected %d participants, got %d", len(want), len(roster))
	}
	for i, p := range roster {
		if p.UserID != want[i] {
			t.Fatalf("position %d: expected user %d, got %d", i, want[i], p.UserID)
		}
	}
}

func TestUpdateStatusIfCurrentIsCompareAndSet(t *testing.T) {
	registry := NewRegistry()
	registry.Put(newTestSession("s1", 3))

	if _, err := registry.UpdateStatusIfCurrent("s1", models.SessionScheduled, models.SessionActive); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := registry.UpdateStatusIfCurrent("s1", models.SessionScheduled, models.SessionActive); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second start, got %v", err)
	}

	session, err := registry.Get("s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if session.Status != models.SessionActive {
		t.Fatalf("expected active, got %q", session.Status)
	}
}

func TestEndedSessionRejectsRosterMutation(t *testing.T) {
	registry := NewRegistry()
	registry.Put(newTestSession("s1", 3))

	if _, err := registry.AddParticipant("s1", 7, models.RoleParticipant); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := registry.UpdateStatusIfCurrent("s1", models.SessionScheduled, models.SessionEnded); err != nil {
		t.Fatalf("end: %v", err)
	}
	registry.ClearParticipants("s1")

	if _, err := registry.AddParticipant("s1", 8, models.RoleParticipant); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded on join, got %v", err)
	}
	if err := registry.RemoveParticipant("s1", 7); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded on leave, got %v", err)
	}
	if _, err := registry.SetMuted("s1", 7, true); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded on mute, got %v", err)
	}
}

func TestToggleMutedFlipsFlag(t *testing.T) {
	registry := NewRegistry()
	registry.Put(newTestSession("s1", 3))

	if _, err := registry.AddParticipant("s1", 7, models.RoleParticipant); err != nil {
		t.Fatalf("join: %v", err)
	}

	muted, err := registry.ToggleMuted("s1", 7)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !muted.Muted {
		t.Fatalf("expected muted after first toggle")
	}

	unmuted, err := registry.ToggleMuted("s1", 7)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if unmuted.Muted {
		t.Fatalf("expected unmuted after second toggle")
	}

	if _, err := registry.ToggleMuted("s1", 999); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember, got %v", err)
	}
}

func TestUnknownSessionFailsWithNotFound(t *testing.T) {
	registry := NewRegistry()

	if _, err := registry.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := registry.AddParticipant("missing", 7, models.RoleParticipant); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestPutRestoresRosterSnapshot(t *testing.T) {
	registry := NewRegistry()
	session := newTestSession("s1", 5)
	session.Status = models.SessionActive

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	participants := make([]models.Participant, 0, 3)
	for i := 0; i < 3; i++ {
		participants = append(participants, models.Participant{
			SessionID: "s1",
			UserID:    int64(i + 1),
			Role:      models.RoleParticipant,
			JoinedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	registry.Put(session, participants...)

	roster, err := registry.ListParticipants("s1")
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(roster) != 3 {
		t.Fatalf("expected 3 restored participants, got %d", len(roster))
	}
	for i, p := range roster {
		if p.UserID != int64(i+1) {
			t.Fatalf("position %d: expected user %d, got %d", i, i+1, p.UserID)
		}
	}
}

func TestIndependentSessionsDoNotShareCapacity(t *testing.T) {
	registry := NewRegistry()
	for i := 0; i < 4; i++ {
		registry.Put(newTestSession(fmt.Sprintf("s%d", i), 2))
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(session string, userID int64) {
				defer wg.Done()
				if _, err := registry.AddParticipant(session, userID, models.RoleParticipant); err != nil {
					t.Errorf("join %s/%d: %v", session, userID, err)
				}
			}(fmt.Sprintf("s%d", i), int64(j+1))
		}
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		roster, err := registry.ListParticipants(fmt.Sprintf("s%d", i))
		if err != nil {
			t.Fatalf("ListParticipants: %v", err)
		}
		if len(roster) != 2 {
			t.Fatalf("session s%d: expected 2 participants, got %d", i, len(roster))
		}
	}
}
