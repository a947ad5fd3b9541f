package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/projecthubmthae/G8Livesystem2025/internal/live"
	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
	"github.com/projecthubmthae/G8Livesystem2025/internal/services"
)

type stubSessionService struct {
	createResult   *models.SessionDetail
	createErr      error
	startResult    *models.Session
	startErr       error
	endResult      *models.Session
	endErr         error
	joinResult     *models.Participant
	joinErr        error
	leaveErr       error
	muteResult     *models.Participant
	muteErr        error
	messageResult  *models.Message
	messageErr     error
	feedbackResult *models.Feedback
	feedbackErr    error
	listFBResult   []models.Feedback
	listFBTotal    int
	listFBErr      error
	getResult      *models.SessionDetail
	getErr         error
	listResult     []models.Session
	listErr        error
	chargeResult   *services.PaymentCharge
	chargeErr      error
	confirmResult  *models.Payment
	confirmErr     error

	lastActorID     int64
	lastRole        string
	lastSessionID   string
	lastTargetID    int64
	lastBody        string
	lastRating      int
	lastPage        int
	lastLimit       int
	lastStatus      string
	lastAmount      float64
	lastCurrency    string
	lastReference   string
	lastCreateInput services.CreateSessionInput
}

func (s *stubSessionService) CreateSession(_ context.Context, actorID int64, role string, input services.CreateSessionInput) (*models.SessionDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastCreateInput = input
	return s.createResult, s.createErr
}

func (s *stubSessionService) StartSession(_ context.Context, actorID int64, sessionID string) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastSessionID = sessionID
	return s.startResult, s.startErr
}

func (s *stubSessionService) EndSession(_ context.Context, actorID int64, sessionID string) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastSessionID = sessionID
	return s.endResult, s.endErr
}

func (s *stubSessionService) JoinSession(_ context.Context, actorID int64, sessionID string) (*models.Participant, error) {
	s.lastActorID = actorID
	s.lastSessionID = sessionID
	return s.joinResult, s.joinErr
}

func (s *stubSessionService) LeaveSession(_ context.Context, actorID int64, sessionID string) error {
	s.lastActorID = actorID
	s.lastSessionID = sessionID
	return s.leaveErr
}

func (s *stubSessionService) ToggleMute(_ context.Context, actorID int64, sessionID string, targetID int64) (*models.Participant, error) {
	s.lastActorID = actorID
	s.lastSessionID = sessionID
	s.lastTargetID = targetID
	return s.muteResult, s.muteErr
}

func (s *stubSessionService) SendMessage(_ context.Context, actorID int64, sessionID string, body string) (*models.Message, error) {
	s.lastActorID = actorID
	s.lastSessionID = sessionID
	s.lastBody = body
	return s.messageResult, s.messageErr
}

func (s *stubSessionService) SubmitFeedback(_ context.Context, actorID int64, sessionID string, rating int, comment *string) (*models.Feedback, error) {
	s.lastActorID = actorID
	s.lastSessionID = sessionID
	s.lastRating = rating
	return s.feedbackResult, s.feedbackErr
}

func (s *stubSessionService) ListFeedback(_ context.Context, actorID int64, sessionID string, page, limit int) ([]models.Feedback, int, error) {
	s.lastActorID = actorID
	s.lastSessionID = sessionID
	s.lastPage = page
	s.lastLimit = limit
	return s.listFBResult, s.listFBTotal, s.listFBErr
}

func (s *stubSessionService) GetSession(_ context.Context, sessionID string) (*models.SessionDetail, error) {
	s.lastSessionID = sessionID
	return s.getResult, s.getErr
}

func (s *stubSessionService) ListSessions(_ context.Context, status string) ([]models.Session, error) {
	s.lastStatus = status
	return s.listResult, s.listErr
}

func (s *stubSessionService) ProcessPayment(_ context.Context, actorID int64, sessionID string, amount float64, currency string) (*services.PaymentCharge, error) {
	s.lastActorID = actorID
	s.lastSessionID = sessionID
	s.lastAmount = amount
	s.lastCurrency = currency
	return s.chargeResult, s.chargeErr
}

func (s *stubSessionService) ConfirmPayment(_ context.Context, reference, status string) (*models.Payment, error) {
	s.lastReference = reference
	s.lastStatus = status
	return s.confirmResult, s.confirmErr
}

func newTestApp(handler *SessionHandler, userID, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("role", role)
		return c.Next()
	})
	app.Post("/api/v1/sessions", handler.CreateSession)
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Post("/api/v1/sessions/:id/start", handler.StartSession)
	app.Post("/api/v1/sessions/:id/end", handler.EndSession)
	app.Post("/api/v1/sessions/:id/join", handler.JoinSession)
	app.Delete("/api/v1/sessions/:id/leave", handler.LeaveSession)
	app.Post("/api/v1/sessions/:id/participants/:userId/mute", handler.ToggleMute)
	app.Post("/api/v1/sessions/:id/messages", handler.SendMessage)
	app.Post("/api/v1/sessions/:id/feedback", handler.SubmitFeedback)
	app.Get("/api/v1/sessions/:id/feedback", handler.ListFeedback)
	app.Post("/api/v1/sessions/:id/payments", handler.ProcessPayment)
	return app
}

func TestCreateSessionReturnsCreatedDetail(t *testing.T) {
	service := &stubSessionService{
		createResult: &models.SessionDetail{
			Session: models.Session{
				ID:       "s-1",
				CoachID:  7,
				Title:    "Mobility basics",
				Status:   models.SessionScheduled,
				Capacity: 8,
			},
		},
	}
	handler := &SessionHandler{service: service, defaultCurrency: "usd"}
	app := newTestApp(handler, "7", "coach")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"title": "Mobility basics",
		"capacity": 8
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 7 {
		t.Fatalf("expected actor id 7, got %d", service.lastActorID)
	}
	if service.lastRole != "coach" {
		t.Fatalf("expected coach role, got %q", service.lastRole)
	}
	if service.lastCreateInput.Title != "Mobility basics" || service.lastCreateInput.Capacity != 8 {
		t.Fatalf("unexpected create input: %+v", service.lastCreateInput)
	}
}

func TestCreateSessionRejectsNonCoach(t *testing.T) {
	service := &stubSessionService{createErr: services.ErrUnauthorized}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "42", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"title":"x","capacity":2}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestStartSessionForwardsActorAndSession(t *testing.T) {
	service := &stubSessionService{
		startResult: &models.Session{ID: "s-1", CoachID: 7, Status: models.SessionActive},
	}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "7", "coach")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/start", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 7 || service.lastSessionID != "s-1" {
		t.Fatalf("unexpected forwarding: actor=%d session=%q", service.lastActorID, service.lastSessionID)
	}

	var body struct {
		Session models.Session `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Session.Status != models.SessionActive {
		t.Fatalf("expected active status, got %q", body.Session.Status)
	}
}

func TestStartSessionReturnsUnprocessableForInvalidTransition(t *testing.T) {
	service := &stubSessionService{startErr: live.ErrInvalidTransition}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "7", "coach")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/start", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestJoinSessionReturnsConflictWhenFull(t *testing.T) {
	service := &stubSessionService{joinErr: live.ErrCapacityExceeded}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "42", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/join", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestLeaveSessionReturnsNoContent(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "42", "user")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/s-1/leave", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 || service.lastSessionID != "s-1" {
		t.Fatalf("unexpected forwarding: actor=%d session=%q", service.lastActorID, service.lastSessionID)
	}
}

func TestToggleMuteParsesTargetID(t *testing.T) {
	service := &stubSessionService{
		muteResult: &models.Participant{SessionID: "s-1", UserID: 42, Role: models.RoleParticipant, Muted: true},
	}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "7", "coach")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/participants/42/mute", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastTargetID != 42 {
		t.Fatalf("expected target id 42, got %d", service.lastTargetID)
	}
}

func TestToggleMuteRejectsBadTargetID(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "7", "coach")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/participants/abc/mute", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSendMessageReturnsForbiddenWhenMuted(t *testing.T) {
	service := &stubSessionService{messageErr: services.ErrMuted}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "42", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/messages", strings.NewReader(`{"body":"hello"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if service.lastBody != "hello" {
		t.Fatalf("expected forwarded body, got %q", service.lastBody)
	}
}

func TestSubmitFeedbackRequiresEndedSession(t *testing.T) {
	service := &stubSessionService{feedbackErr: services.ErrSessionNotEnded}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "42", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/feedback", strings.NewReader(`{"rating":5}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if service.lastRating != 5 {
		t.Fatalf("expected forwarded rating, got %d", service.lastRating)
	}
}

func TestListFeedbackClampsLimitAndReturnsPagination(t *testing.T) {
	service := &stubSessionService{
		listFBResult: []models.Feedback{{ID: 1, SessionID: "s-1", UserID: 42, Rating: 4}},
		listFBTotal:  1,
	}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "7", "coach")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-1/feedback?page=2&limit=500", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastPage != 2 {
		t.Fatalf("expected page 2, got %d", service.lastPage)
	}
	if service.lastLimit != maxPageLimit {
		t.Fatalf("expected limit clamped to %d, got %d", maxPageLimit, service.lastLimit)
	}

	var body struct {
		Pagination models.PaginationMeta `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Pagination.Total != 1 {
		t.Fatalf("expected total 1, got %d", body.Pagination.Total)
	}
}

func TestListSessionsForwardsStatusFilter(t *testing.T) {
	service := &stubSessionService{
		listResult: []models.Session{{ID: "s-1", Status: models.SessionActive}},
	}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "42", "user")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?status=active", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastStatus != "active" {
		t.Fatalf("expected status filter forwarded, got %q", service.lastStatus)
	}
}

func TestGetSessionReturnsNotFound(t *testing.T) {
	service := &stubSessionService{getErr: live.ErrSessionNotFound}
	handler := &SessionHandler{service: service}
	app := newTestApp(handler, "42", "user")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/missing", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestProcessPaymentFallsBackToDefaultCurrency(t *testing.T) {
	service := &stubSessionService{
		chargeResult: &services.PaymentCharge{
			Payment: models.Payment{
				ID:        3,
				SessionID: "s-1",
				UserID:    42,
				Amount:    25,
				Currency:  "usd",
				Status:    models.PaymentPending,
				Reference: "pi_123",
			},
			ClientSecret: "secret_abc",
		},
	}
	handler := &SessionHandler{service: service, defaultCurrency: "usd"}
	app := newTestApp(handler, "42", "user")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s-1/payments", strings.NewReader(`{"amount":25}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastCurrency != "usd" {
		t.Fatalf("expected default currency, got %q", service.lastCurrency)
	}
	if service.lastAmount != 25 {
		t.Fatalf("expected amount 25, got %v", service.lastAmount)
	}
}

func TestConfirmPaymentRequiresReference(t *testing.T) {
	service := &stubSessionService{}
	handler := &SessionHandler{service: service}

	app := fiber.New()
	app.Post("/api/v1/payments/confirm", handler.ConfirmPayment)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", strings.NewReader(`{"status":"succeeded"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestConfirmPaymentReturnsNotFoundForUnknownReference(t *testing.T) {
	service := &stubSessionService{confirmErr: services.ErrPaymentNotFound}
	handler := &SessionHandler{service: service}

	app := fiber.New()
	app.Post("/api/v1/payments/confirm", handler.ConfirmPayment)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", strings.NewReader(`{"reference":"pi_zzz","status":"succeeded"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if service.lastReference != "pi_zzz" {
		t.Fatalf("expected forwarded reference, got %q", service.lastReference)
	}
}

func TestMapSessionErrorDefaultsToInternalServerError(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapSessionError(c, errors.New("boom"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}
