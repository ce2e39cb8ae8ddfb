package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/config"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/database"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/lifecycle"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/notify"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/outbox"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/payment"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/repository"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/service"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/kafka"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

// Server is the HTTP surface of the load management service
type Server struct {
	config     *config.Config
	logger     logger.Logger
	router     *mux.Router
	httpServer *http.Server
	db         *database.Database

	loadRepo         *repository.LoadRepository
	driverRepo       *repository.DriverRepository
	clientRepo       *repository.ClientRepository
	roleRepo         *repository.UserRoleRepository
	notificationRepo *repository.NotificationRepository
	pushSubRepo      *repository.PushSubscriptionRepository
	outboxRepo       *repository.OutboxRepository

	lifecycle      *lifecycle.Manager
	paymentGate    *payment.Gate
	driverService  *service.DriverService
	accountService *service.AccountService

	outboxProcessor *outbox.Processor
	kafkaProducer   *kafka.Producer
}

// NewServer creates a new API server with the given configuration and logger.
func NewServer(cfg *config.Config, logger logger.Logger) *Server {
	r := mux.NewRouter()
	db, err := database.New(cfg, logger)

	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		panic(err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		panic(err)
	}

	// Repositories
	outboxRepo := repository.NewOutboxRepository(db, logger)
	loadRepo := repository.NewLoadRepository(db, outboxRepo, logger)
	driverRepo := repository.NewDriverRepository(db, outboxRepo, logger)
	clientRepo := repository.NewClientRepository(db, logger)
	roleRepo := repository.NewUserRoleRepository(db, logger)
	notificationRepo := repository.NewNotificationRepository(db, logger)
	pushSubRepo := repository.NewPushSubscriptionRepository(db, logger)

	// Notification channels
	var emailSender notify.EmailSender

	if cfg.Email.SendGridAPIKey != "" {
		emailSender = notify.NewSendGridSender(cfg.Email.SendGridAPIKey, cfg.Email.FromEmail, cfg.Email.FromName)
	} else {
		logger.Warn("No email API key configured, emails will only be logged")
		emailSender = notify.NewLogEmailSender(logger)
	}

	pushSender := notify.NewWebPushSender(cfg.Push)
	notifier := notify.NewDispatcher(notificationRepo, pushSubRepo, roleRepo, emailSender, pushSender, logger)

	// Core services
	lifecycleManager := lifecycle.NewManager(loadRepo, driverRepo, clientRepo, notifier, logger)
	paymentGate := payment.NewGate(loadRepo, clientRepo, notifier, logger)
	driverService := service.NewDriverService(driverRepo, loadRepo, notifier, logger)
	accountService := service.NewAccountService(clientRepo, driverRepo, roleRepo, logger)

	// Change-feed publishing
	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)

	if err != nil {
		logger.Error("Failed to create Kafka producer", "error", err)
		panic(err)
	}

	processorConfig := &outbox.ProcessorConfig{
		PollingInterval: 5 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
	}
	outboxProcessor := outbox.NewProcessor(outboxRepo, processorConfig, logger)

	kafkaHandler := outbox.NewKafkaHandler(kafkaProducer, cfg.Kafka.ChangeFeedTopic, logger)

	for _, eventType := range []string{
		models.EventLoadCreated,
		models.EventLoadStatusChanged,
		models.EventLoadAssignmentUpdated,
		models.EventDriverAvailabilityChanged,
		models.EventPaymentStatusChanged,
	} {
		outboxProcessor.RegisterHandler(eventType, kafkaHandler)
	}

	server := &Server{
		config: cfg,
		logger: logger,
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		db:               db,
		loadRepo:         loadRepo,
		driverRepo:       driverRepo,
		clientRepo:       clientRepo,
		roleRepo:         roleRepo,
		notificationRepo: notificationRepo,
		pushSubRepo:      pushSubRepo,
		outboxRepo:       outboxRepo,
		lifecycle:        lifecycleManager,
		paymentGate:      paymentGate,
		driverService:    driverService,
		accountService:   accountService,
		outboxProcessor:  outboxProcessor,
		kafkaProducer:    kafkaProducer,
	}

	server.setupRoutes()
	outboxProcessor.Start()

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.outboxProcessor.Stop()

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Error closing database connection", "error", err)
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	// Health check endpoint, outside auth
	s.router.HandleFunc("/api/v1/health", s.healthCheckHandler).Methods(http.MethodGet)

	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)

	// Signup linking, the one endpoint open to role-less accounts
	api.HandleFunc("/accounts/link", s.linkSignupHandler).Methods(http.MethodPost)

	// Loads
	api.HandleFunc("/loads", s.listLoadsHandler).Methods(http.MethodGet)
	api.HandleFunc("/loads", s.submitLoadHandler).Methods(http.MethodPost)
	api.HandleFunc("/loads/{id}", s.getLoadHandler).Methods(http.MethodGet)
	api.HandleFunc("/loads/{id}/assign", s.assignDriverHandler).Methods(http.MethodPost)
	api.HandleFunc("/loads/{id}/advance", s.advanceHandler).Methods(http.MethodPost)

	// Payments
	api.HandleFunc("/loads/{id}/checkout", s.createCheckoutHandler).Methods(http.MethodPost)
	api.HandleFunc("/loads/{id}/payment-callback", s.paymentCallbackHandler).Methods(http.MethodPost)

	// Driver directory
	api.HandleFunc("/drivers", s.listDriversHandler).Methods(http.MethodGet)
	api.HandleFunc("/drivers", s.provisionDriverHandler).Methods(http.MethodPost)
	api.HandleFunc("/drivers/candidates", s.listCandidatesHandler).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id}/availability", s.setAvailabilityHandler).Methods(http.MethodPatch)
	api.HandleFunc("/drivers/{id}", s.deactivateDriverHandler).Methods(http.MethodDelete)

	// Client directory
	api.HandleFunc("/clients", s.listClientsHandler).Methods(http.MethodGet)
	api.HandleFunc("/clients", s.provisionClientHandler).Methods(http.MethodPost)
	api.HandleFunc("/clients/{id}", s.deactivateClientHandler).Methods(http.MethodDelete)

	// Notification center
	api.HandleFunc("/notifications", s.listNotificationsHandler).Methods(http.MethodGet)
	api.HandleFunc("/notifications/unread-count", s.unreadCountHandler).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read-all", s.markAllNotificationsReadHandler).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{id}/read", s.markNotificationReadHandler).Methods(http.MethodPost)

	// Web push subscriptions
	api.HandleFunc("/push-subscriptions", s.pushSubscribeHandler).Methods(http.MethodPost)
	api.HandleFunc("/push-subscriptions", s.pushUnsubscribeHandler).Methods(http.MethodDelete)
}
