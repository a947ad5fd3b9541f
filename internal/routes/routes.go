package routes

import (
	"context"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/projecthubmthae/G8Livesystem2025/internal/config"
	"github.com/projecthubmthae/G8Livesystem2025/internal/handlers"
	"github.com/projecthubmthae/G8Livesystem2025/internal/live"
	"github.com/projecthubmthae/G8Livesystem2025/internal/middleware"
	"github.com/projecthubmthae/G8Livesystem2025/internal/repository"
	"github.com/projecthubmthae/G8Livesystem2025/internal/services"
	livews "github.com/projecthubmthae/G8Livesystem2025/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, log *zap.Logger) error {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	registry := live.NewRegistry()
	if err := warmUpRegistry(context.Background(), registry, sessionRepo, participantRepo); err != nil {
		return err
	}

	hub := livews.NewHub(log)
	go hub.Run()

	var paymentProvider services.PaymentProvider
	if cfg.PaymentAPIURL != "" && cfg.PaymentAPIKey != "" {
		paymentProvider = services.NewHTTPPaymentProvider(cfg.PaymentAPIURL, cfg.PaymentAPIKey)
	}
	var channelProvisioner services.ChannelProvisioner
	if cfg.VideoAPIURL != "" && cfg.VideoAPIKey != "" {
		channelProvisioner = services.NewHTTPChannelProvisioner(cfg.VideoAPIURL, cfg.VideoAPIKey)
	}

	sessionService := services.NewSessionService(
		registry,
		hub,
		sessionRepo,
		participantRepo,
		messageRepo,
		feedbackRepo,
		paymentRepo,
		paymentProvider,
		channelProvisioner,
		log,
	)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(sessionService, cfg.DefaultCurrency)
	liveHandler := handlers.NewLiveHandler(sessionService, hub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	// Provider status callbacks carry no user token.
	api.Post("/v1/payments/confirm", sessionHandler.ConfirmPayment)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	sessions := authProtected.Group("/sessions")
	sessions.Post("", sessionHandler.CreateSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/start", sessionHandler.StartSession)
	sessions.Post("/:id/end", sessionHandler.EndSession)
	sessions.Post("/:id/join", sessionHandler.JoinSession)
	sessions.Delete("/:id/leave", sessionHandler.LeaveSession)
	sessions.Post("/:id/participants/:userId/mute", sessionHandler.ToggleMute)
	sessions.Post("/:id/messages", sessionHandler.SendMessage)
	sessions.Post("/:id/feedback", sessionHandler.SubmitFeedback)
	sessions.Get("/:id/feedback", sessionHandler.ListFeedback)
	sessions.Post("/:id/payments", sessionHandler.ProcessPayment)

	api.Use("/v1/sessions/:id/ws", liveHandler.WebSocketAuth)
	api.Get("/v1/sessions/:id/ws", websocket.New(liveHandler.HandleWebSocket))

	return nil
}

// warmUpRegistry restores the live state for every session that has not
// reached its terminal status, so lifecycle and roster checks keep
// working across a restart.
func warmUpRegistry(
	ctx context.Context,
	registry *live.Registry,
	sessionRepo *repository.SessionRepository,
	participantRepo *repository.ParticipantRepository,
) error {
	sessions, err := sessionRepo.ListNotEnded(ctx)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		participants, err := participantRepo.ListBySessionID(ctx, session.ID)
		if err != nil {
			return err
		}
		registry.Put(session, participants...)
	}
	return nil
}
