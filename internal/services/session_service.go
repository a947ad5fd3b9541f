package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/projecthubmthae/G8Livesystem2025/internal/live"
	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
	"github.com/projecthubmthae/G8Livesystem2025/internal/repository"
	livews "github.com/projecthubmthae/G8Livesystem2025/internal/websocket"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotInSession    = errors.New("not in session")
	ErrMuted           = errors.New("participant is muted")
	ErrSessionNotEnded = errors.New("session not ended")
	ErrPaymentNotFound = errors.New("payment not found")
)

type broadcaster interface {
	Publish(sessionID, eventType string, data any)
	CloseSession(sessionID, eventType string, data any)
}

type sessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, sessionID string) (*models.Session, error)
	List(ctx context.Context, status string) ([]models.Session, error)
	UpdateStatusIfCurrent(ctx context.Context, sessionID, currentStatus, nextStatus string) (*models.Session, error)
}

type participantStore interface {
	Create(ctx context.Context, participant models.Participant) error
	Delete(ctx context.Context, sessionID string, userID int64) error
	SetMuted(ctx context.Context, sessionID string, userID int64, muted bool) error
	DeleteBySession(ctx context.Context, sessionID string) error
}

type messageStore interface {
	Create(ctx context.Context, message models.Message) error
}

type feedbackStore interface {
	Create(ctx context.Context, input repository.CreateFeedbackInput) (*models.Feedback, error)
	ListBySessionID(ctx context.Context, sessionID string, page, limit int) ([]models.Feedback, int, error)
}

type paymentStore interface {
	Create(ctx context.Context, input repository.CreatePaymentInput) (*models.Payment, error)
	UpdateStatusByReference(ctx context.Context, reference, status string) (*models.Payment, error)
}

// SessionService coordinates live coaching sessions: it gates every
// operation on the session lifecycle, mutates the roster through the
// registry's per-session lock, applies the moderation rule, and
// publishes the resulting event after the mutation has committed.
type SessionService struct {
	registry        *live.Registry
	hub             broadcaster
	sessionRepo     sessionStore
	participantRepo participantStore
	messageRepo     messageStore
	feedbackRepo    feedbackStore
	paymentRepo     paymentStore
	payments        PaymentProvider
	channels        ChannelProvisioner
	log             *zap.Logger
}

func NewSessionService(
	registry *live.Registry,
	hub broadcaster,
	sessionRepo sessionStore,
	participantRepo participantStore,
	messageRepo messageStore,
	feedbackRepo feedbackStore,
	paymentRepo paymentStore,
	payments PaymentProvider,
	channels ChannelProvisioner,
	log *zap.Logger,
) *SessionService {
	return &SessionService{
		registry:        registry,
		hub:             hub,
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		messageRepo:     messageRepo,
		feedbackRepo:    feedbackRepo,
		paymentRepo:     paymentRepo,
		payments:        payments,
		channels:        channels,
		log:             log,
	}
}

type CreateSessionInput struct {
	Title    string
	Capacity int
}

// CreateSession writes the session record and registers it live. The
// payment link and video channel are enrichments obtained from external
// collaborators after the record has committed; if either call fails the
// session stands and the field stays empty, so the caller can retry.
func (s *SessionService) CreateSession(
	ctx context.Context,
	actorID int64,
	role string,
	input CreateSessionInput,
) (*models.SessionDetail, error) {
	if role != models.RoleCoach {
		return nil, ErrForbidden
	}
	title := strings.TrimSpace(input.Title)
	if title == "" || input.Capacity <= 0 {
		return nil, ErrInvalidInput
	}

	session := models.Session{
		ID:       uuid.NewString(),
		CoachID:  actorID,
		Title:    title,
		Status:   models.SessionScheduled,
		Capacity: input.Capacity,
	}
	if err := s.sessionRepo.Create(ctx, &session); err != nil {
		return nil, err
	}
	s.registry.Put(session)

	detail := &models.SessionDetail{Session: session}

	if s.payments != nil {
		link, err := s.payments.CreatePaymentLink(ctx, session.ID)
		if err != nil {
			s.log.Warn("payment link enrichment failed",
				zap.String("session_id", session.ID), zap.Error(err))
		} else {
			detail.PaymentLink = &link
		}
	}
	if s.channels != nil {
		channel, err := s.channels.CreateChannel(ctx, session.ID)
		if err != nil {
			s.log.Warn("video channel enrichment failed",
				zap.String("session_id", session.ID), zap.Error(err))
		} else {
			detail.Channel = channel
		}
	}

	return detail, nil
}

func (s *SessionService) StartSession(ctx context.Context, actorID int64, sessionID string) (*models.Session, error) {
	session, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateStatusTransition(actorID, session, models.SessionActive); err != nil {
		return nil, err
	}

	updated, err := s.registry.UpdateStatusIfCurrent(sessionID, session.Status, models.SessionActive)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, sessionID, session.Status, models.SessionActive); err != nil {
		return nil, err
	}

	s.hub.Publish(sessionID, livews.EventSessionStarted, map[string]any{"status": updated.Status})
	return &updated, nil
}

func (s *SessionService) EndSession(ctx context.Context, actorID int64, sessionID string) (*models.Session, error) {
	session, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateStatusTransition(actorID, session, models.SessionEnded); err != nil {
		return nil, err
	}

	updated, err := s.registry.UpdateStatusIfCurrent(sessionID, session.Status, models.SessionEnded)
	if err != nil {
		return nil, err
	}
	removed := s.registry.ClearParticipants(sessionID)

	if _, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, sessionID, session.Status, models.SessionEnded); err != nil {
		return nil, err
	}
	if err := s.participantRepo.DeleteBySession(ctx, sessionID); err != nil {
		return nil, err
	}

	s.hub.CloseSession(sessionID, livews.EventSessionEnded, map[string]any{"status": updated.Status})
	s.log.Info("session ended",
		zap.String("session_id", sessionID), zap.Int("participants_removed", len(removed)))
	return &updated, nil
}

// JoinSession admits the actor to the roster. Joining is allowed while
// the session is scheduled (a pre-start lobby) or active; only the
// terminal state rejects it.
func (s *SessionService) JoinSession(ctx context.Context, actorID int64, sessionID string) (*models.Participant, error) {
	session, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	role := models.RoleParticipant
	if session.CoachID == actorID {
		role = models.RoleCoach
	}

	participant, err := s.registry.AddParticipant(sessionID, actorID, role)
	if err != nil {
		return nil, err
	}
	if err := s.participantRepo.Create(ctx, participant); err != nil {
		_ = s.registry.RemoveParticipant(sessionID, actorID)
		return nil, err
	}

	s.hub.Publish(sessionID, livews.EventUserJoined, participant)
	return &participant, nil
}

func (s *SessionService) LeaveSession(ctx context.Context, actorID int64, sessionID string) error {
	if err := s.registry.RemoveParticipant(sessionID, actorID); err != nil {
		return err
	}
	if err := s.participantRepo.Delete(ctx, sessionID, actorID); err != nil {
		return err
	}

	s.hub.Publish(sessionID, livews.EventUserLeft, map[string]any{"user_id": actorID})
	return nil
}

// ToggleMute flips the target's muted flag, subject to the moderation
// rule evaluated by canMute.
func (s *SessionService) ToggleMute(
	ctx context.Context,
	actorID int64,
	sessionID string,
	targetID int64,
) (*models.Participant, error) {
	session, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionEnded {
		return nil, live.ErrSessionEnded
	}

	target, err := s.registry.Participant(sessionID, targetID)
	if err != nil {
		return nil, err
	}
	if !canMute(actorID, session, target) {
		return nil, ErrForbidden
	}

	updated, err := s.registry.ToggleMuted(sessionID, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.participantRepo.SetMuted(ctx, sessionID, targetID, updated.Muted); err != nil {
		return nil, err
	}

	s.hub.Publish(sessionID, livews.EventUserUpdated, map[string]any{
		"user_id": updated.UserID,
		"muted":   updated.Muted,
	})
	return &updated, nil
}

func (s *SessionService) SendMessage(
	ctx context.Context,
	actorID int64,
	sessionID string,
	body string,
) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionEnded {
		return nil, live.ErrSessionEnded
	}

	sender, err := s.registry.Participant(sessionID, actorID)
	if err != nil {
		if errors.Is(err, live.ErrNotAMember) {
			return nil, ErrNotInSession
		}
		return nil, err
	}
	if sender.Muted {
		return nil, ErrMuted
	}

	message := models.Message{
		SessionID: sessionID,
		SenderID:  actorID,
		Body:      body,
		SentAt:    time.Now().UTC(),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	s.hub.Publish(sessionID, livews.EventNewMessage, message)
	return &message, nil
}

// SubmitFeedback requires the terminal state: the gate inverted from
// every other operation.
func (s *SessionService) SubmitFeedback(
	ctx context.Context,
	actorID int64,
	sessionID string,
	rating int,
	comment *string,
) (*models.Feedback, error) {
	session, err := s.lookupSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionEnded {
		return nil, ErrSessionNotEnded
	}
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidInput
	}

	return s.feedbackRepo.Create(ctx, repository.CreateFeedbackInput{
		SessionID: sessionID,
		UserID:    actorID,
		Rating:    rating,
		Comment:   comment,
	})
}

func (s *SessionService) ListFeedback(
	ctx context.Context,
	actorID int64,
	sessionID string,
	page int,
	limit int,
) ([]models.Feedback, int, error) {
	session, err := s.lookupSession(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if session.CoachID != actorID {
		return nil, 0, ErrForbidden
	}
	return s.feedbackRepo.ListBySessionID(ctx, sessionID, page, limit)
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.SessionDetail, error) {
	session, err := s.lookupSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	detail := &models.SessionDetail{Session: session}
	if participants, err := s.registry.ListParticipants(sessionID); err == nil {
		detail.Participants = participants
	}
	return detail, nil
}

func (s *SessionService) ListSessions(ctx context.Context, status string) ([]models.Session, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", models.SessionScheduled, models.SessionActive, models.SessionEnded:
	default:
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.List(ctx, status)
}

type PaymentCharge struct {
	models.Payment
	ClientSecret string `json:"client_secret,omitempty"`
}

// ProcessPayment asks the provider for a payment intent and records it
// as pending; the provider reports the outcome later through
// ConfirmPayment. The provider call runs outside any session lock.
func (s *SessionService) ProcessPayment(
	ctx context.Context,
	actorID int64,
	sessionID string,
	amount float64,
	currency string,
) (*PaymentCharge, error) {
	if amount <= 0 || strings.TrimSpace(currency) == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.lookupSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionEnded {
		return nil, live.ErrSessionEnded
	}
	if s.payments == nil {
		return nil, errors.New("payment provider not configured")
	}

	intent, err := s.payments.CreatePaymentIntent(ctx, amount, currency, map[string]string{
		"session_id": sessionID,
		"user_id":    strconv.FormatInt(actorID, 10),
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.Create(ctx, repository.CreatePaymentInput{
		SessionID: sessionID,
		UserID:    actorID,
		Amount:    amount,
		Currency:  currency,
		Status:    models.PaymentPending,
		Reference: intent.ID,
	})
	if err != nil {
		return nil, err
	}

	return &PaymentCharge{Payment: *payment, ClientSecret: intent.ClientSecret}, nil
}

// ConfirmPayment applies a provider status callback to the matching
// payment record.
func (s *SessionService) ConfirmPayment(ctx context.Context, reference, status string) (*models.Payment, error) {
	nextStatus, err := normalizePaymentStatus(status)
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.UpdateStatusByReference(ctx, strings.TrimSpace(reference), nextStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// lookupSession prefers the live registry and falls back to the durable
// store for sessions that ended before this process started.
func (s *SessionService) lookupSession(ctx context.Context, sessionID string) (models.Session, error) {
	session, err := s.registry.Get(sessionID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, live.ErrSessionNotFound) {
		return models.Session{}, err
	}

	stored, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, live.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return *stored, nil
}

func validateStatusTransition(actorID int64, session models.Session, nextStatus string) error {
	if session.CoachID != actorID {
		return ErrUnauthorized
	}
	switch nextStatus {
	case models.SessionActive:
		if session.Status != models.SessionScheduled {
			return live.ErrInvalidTransition
		}
	case models.SessionEnded:
		if session.Status == models.SessionEnded {
			return live.ErrInvalidTransition
		}
	default:
		return live.ErrInvalidTransition
	}
	return nil
}

// canMute preserves the platform's moderation rule exactly: the coach
// may mute anyone, and any actor may mute a target who is not the coach.
// Non-coach participants muting each other is documented behavior.
func canMute(actorID int64, session models.Session, target models.Participant) bool {
	return actorID == session.CoachID || target.Role != models.RoleCoach
}

func normalizePaymentStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded", "paid":
		return models.PaymentSucceeded, nil
	case "failed", "canceled", "cancelled":
		return models.PaymentFailed, nil
	case "pending":
		return models.PaymentPending, nil
	default:
		return "", ErrInvalidInput
	}
}
