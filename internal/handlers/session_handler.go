package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/projecthubmthae/G8Livesystem2025/internal/live"
	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
	"github.com/projecthubmthae/G8Livesystem2025/internal/services"
)

type sessionApplicationService interface {
	CreateSession(ctx context.Context, actorID int64, role string, input services.CreateSessionInput) (*models.SessionDetail, error)
	StartSession(ctx context.Context, actorID int64, sessionID string) (*models.Session, error)
	EndSession(ctx context.Context, actorID int64, sessionID string) (*models.Session, error)
	JoinSession(ctx context.Context, actorID int64, sessionID string) (*models.Participant, error)
	LeaveSession(ctx context.Context, actorID int64, sessionID string) error
	ToggleMute(ctx context.Context, actorID int64, sessionID string, targetID int64) (*models.Participant, error)
	SendMessage(ctx context.Context, actorID int64, sessionID string, body string) (*models.Message, error)
	SubmitFeedback(ctx context.Context, actorID int64, sessionID string, rating int, comment *string) (*models.Feedback, error)
	ListFeedback(ctx context.Context, actorID int64, sessionID string, page, limit int) ([]models.Feedback, int, error)
	GetSession(ctx context.Context, sessionID string) (*models.SessionDetail, error)
	ListSessions(ctx context.Context, status string) ([]models.Session, error)
	ProcessPayment(ctx context.Context, actorID int64, sessionID string, amount float64, currency string) (*services.PaymentCharge, error)
	ConfirmPayment(ctx context.Context, reference, status string) (*models.Payment, error)
}

type SessionHandler struct {
	service         sessionApplicationService
	defaultCurrency string
}

func NewSessionHandler(service *services.SessionService, defaultCurrency string) *SessionHandler {
	return &SessionHandler{service: service, defaultCurrency: defaultCurrency}
}

type createSessionRequest struct {
	Title    string `json:"title"`
	Capacity int    `json:"capacity"`
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

type submitFeedbackRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

type processPaymentRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type confirmPaymentRequest struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	role, _ := c.Locals("role").(string)

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	detail, err := h.service.CreateSession(c.Context(), actorID, role, services.CreateSessionInput{
		Title:    req.Title,
		Capacity: req.Capacity,
	})
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": detail})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.service.ListSessions(c.Context(), c.Query("status"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Params("id"))
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	detail, err := h.service.GetSession(c.Context(), sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"session": detail})
}

func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	session, err := h.service.StartSession(c.Context(), actorID, c.Params("id"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) EndSession(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	session, err := h.service.EndSession(c.Context(), actorID, c.Params("id"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) JoinSession(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	participant, err := h.service.JoinSession(c.Context(), actorID, c.Params("id"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"participant": participant})
}

func (h *SessionHandler) LeaveSession(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	if err := h.service.LeaveSession(c.Context(), actorID, c.Params("id")); err != nil {
		return mapSessionError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SessionHandler) ToggleMute(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	targetID, err := strconv.ParseInt(c.Params("userId"), 10, 64)
	if err != nil || targetID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	participant, err := h.service.ToggleMute(c.Context(), actorID, c.Params("id"), targetID)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"participant": participant})
}

func (h *SessionHandler) SendMessage(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.SendMessage(c.Context(), actorID, c.Params("id"), req.Body)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *SessionHandler) SubmitFeedback(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req submitFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Comment != nil && strings.TrimSpace(*req.Comment) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "comment must not be empty"})
	}

	feedback, err := h.service.SubmitFeedback(c.Context(), actorID, c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"feedback": feedback})
}

func (h *SessionHandler) ListFeedback(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	feedback, total, err := h.service.ListFeedback(c.Context(), actorID, c.Params("id"), page, limit)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{
		"feedback":   feedback,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *SessionHandler) ProcessPayment(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req processPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = h.defaultCurrency
	}

	charge, err := h.service.ProcessPayment(c.Context(), actorID, c.Params("id"), req.Amount, currency)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payment": charge})
}

// ConfirmPayment receives the payment provider's status callback; it is
// registered outside the authenticated group.
func (h *SessionHandler) ConfirmPayment(c *fiber.Ctx) error {
	var req confirmPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Reference) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reference is required"})
	}

	payment, err := h.service.ConfirmPayment(c.Context(), req.Reference, req.Status)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"payment": payment})
}

func parseActorID(c *fiber.Ctx) (int64, error) {
	raw, _ := c.Locals("user_id").(string)
	actorID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || actorID <= 0 {
		return 0, errors.New("invalid user id")
	}
	return actorID, nil
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrMuted):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Participant is muted"})
	case errors.Is(err, services.ErrNotInSession):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not a session participant"})
	case errors.Is(err, live.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case errors.Is(err, services.ErrPaymentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	case errors.Is(err, live.ErrNotAMember):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not a session member"})
	case errors.Is(err, live.ErrSessionEnded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Session has ended"})
	case errors.Is(err, live.ErrAlreadyMember):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Already joined"})
	case errors.Is(err, live.ErrCapacityExceeded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Session is at capacity"})
	case errors.Is(err, live.ErrInvalidTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSessionNotEnded):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Feedback requires an ended session"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
