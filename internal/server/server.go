package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nutriplan-app/apiserver/config"
	"github.com/nutriplan-app/apiserver/internal/ai"
	"github.com/nutriplan-app/apiserver/internal/auth"
	"github.com/nutriplan-app/apiserver/internal/db"
	"github.com/nutriplan-app/apiserver/internal/handlers"
	"github.com/nutriplan-app/apiserver/internal/mailer"
	"github.com/nutriplan-app/apiserver/internal/middleware"
	"github.com/nutriplan-app/apiserver/internal/mq"
	"github.com/nutriplan-app/apiserver/internal/services"
	"github.com/nutriplan-app/apiserver/internal/storage"
	"github.com/nutriplan-app/apiserver/internal/store"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and its wired dependencies.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     *zap.SugaredLogger
	cancel     context.CancelFunc
}

// New constructs a Server with all services wired from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	logger := zapLogger.Sugar()

	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	planRepo := store.NewMealPlanRepository(dbConn)
	auditRepo := store.NewAuditRepository(dbConn)

	issuer := auth.NewIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenMinutes)*time.Minute)
	tfa := auth.NewTwoFactor("")

	workerCtx, cancel := context.WithCancel(context.Background())

	queue, err := openQueue(ctx, cfg)
	if err != nil {
		cancel()
		_ = dbConn.Close()
		return nil, err
	}

	smtpMailer := mailer.New(mailer.NewSMTPTransport(cfg.SMTP))
	var dispatcher mailer.Dispatcher
	if queue != nil {
		dispatcher = mailer.NewQueueDispatcher(queue)
		worker := mailer.NewWorker(queue, smtpMailer, logger)
		go func() {
			if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorw("mail worker stopped", "err", err)
			}
		}()
	} else {
		logger.Infow("no message broker configured, sending email synchronously")
		dispatcher = mailer.NewDirectDispatcher(smtpMailer)
	}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		cancel()
		_ = dbConn.Close()
		return nil, err
	}
	if st == nil {
		logger.Infow("no object storage configured, uploads disabled")
	}

	var generator ai.Generator
	if gen, err := ai.NewOpenAIGenerator(cfg.OpenAI); err != nil {
		logger.Warnw("meal plan generator unavailable", "err", err)
	} else {
		generator = gen
	}

	authService := services.NewAuthService(userRepo, auditRepo, issuer, tfa, dispatcher, logger)
	userService := services.NewUserService(userRepo, auditRepo, logger)
	planService := services.NewMealPlanService(planRepo, generator, logger)
	uploadService := services.NewUploadService(st)

	authHandler := handlers.NewAuthHandler(authService, userService, uploadService, issuer)
	planHandler := handlers.NewMealPlanHandler(planService, authService)

	loginLimiter := middleware.NewRateLimiter(workerCtx, cfg.RateLimit.LoginPerMinute, time.Minute)
	registerLimiter := middleware.NewRateLimiter(workerCtx, cfg.RateLimit.RegisterPerHour, time.Hour)

	router := chi.NewRouter()
	router.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		chimiddleware.Logger,
		chimiddleware.Timeout(60*time.Second),
	)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, loginLimiter.Middleware, registerLimiter.Middleware)
	})
	router.Route("/mealplan", func(r chi.Router) {
		handlers.MealPlanRouter(r, planHandler, authHandler.RequireAuth)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     logger,
		cancel:     cancel,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Infow("server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the mail worker and closes the server's resources.
func (s *Server) Shutdown() error {
	s.cancel()
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	_ = s.logger.Sync()
	return s.httpServer.Close()
}

func openQueue(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQ.Backend {
	case "rabbitmq":
		if cfg.MQ.RabbitMQ.URL == "" {
			return nil, nil
		}
		client, err := mq.NewRabbitMQClient(cfg.MQ.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		return mq.New(client), nil
	case "pubsub":
		if cfg.MQ.PubSub.ProjectID == "" {
			return nil, nil
		}
		client, err := mq.NewPubSubClient(ctx, cfg.MQ.PubSub)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to pub/sub: %w", err)
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

func openStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.Storage.Backend {
	case "minio":
		if cfg.Storage.Minio.Endpoint == "" {
			return nil, nil
		}
		client, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to minio: %w", err)
		}
		backend = client
	case "gcs":
		if cfg.Storage.GCS.Bucket == "" {
			return nil, nil
		}
		client, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to gcs: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	st := storage.NewStorage(backend)
	if err := st.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}
	return st, nil
}
