package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/imgshare/apiserver/config"
	"github.com/imgshare/apiserver/internal/db"
	"github.com/imgshare/apiserver/internal/handlers"
	"github.com/imgshare/apiserver/internal/mq"
	"github.com/imgshare/apiserver/internal/services"
	"github.com/imgshare/apiserver/internal/storage"
	"github.com/imgshare/apiserver/internal/store"
	"github.com/imgshare/apiserver/internal/upload"
	"github.com/rs/zerolog"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	objects    *storage.Storage
	mq         *mq.MQ
	logger     zerolog.Logger
}

// Routes holds the collaborators mounted by NewRouter.
type Routes struct {
	Credentials handlers.Credentials
	Images      handlers.ImageStore
	Uploads     handlers.Uploader
	Objects     handlers.ObjectReader
	JWTSecret   string
	StaticDir   string
}

// New connects to the database, object storage and optional broker, and
// returns a Server ready to Start.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage, cfg.UploadDir)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = objects.Close()
		_ = dbConn.Close()
		return nil, err
	}

	// A nil *ImageEvents must not end up inside the interface.
	var events services.EventPublisher
	if broker != nil {
		events = mq.NewImageEvents(broker, cfg.MQ.Channel)
	}

	userRepo := store.NewUserRepository(dbConn)
	imageRepo := store.NewImageRepository(dbConn)

	credentialService := services.NewCredentialService(userRepo)
	imageService := services.NewImageService(imageRepo, userRepo, events, logger)

	router := NewRouter(logger, Routes{
		Credentials: credentialService,
		Images:      imageService,
		Uploads:     upload.NewHandler(objects),
		Objects:     objects,
		JWTSecret:   cfg.JWTSecret,
		StaticDir:   cfg.StaticDir,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 3000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info().
		Int("port", port).
		Str("storage", cfg.Storage.Backend).
		Str("mq", cfg.MQ.Backend).
		Msg("server configured")

	return &Server{
		httpServer: httpServer,
		db:         dbConn,
		objects:    objects,
		mq:         broker,
		logger:     logger,
	}, nil
}

// NewRouter builds the HTTP routes over the given collaborators.
func NewRouter(logger zerolog.Logger, routes Routes) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, routes.Credentials, routes.JWTSecret)
	})
	router.Route("/api", func(r chi.Router) {
		r.Use(handlers.RequireAuth(routes.JWTSecret))
		r.Route("/images", func(r chi.Router) {
			handlers.ImageRouter(r, routes.Images, routes.Uploads)
		})
	})
	router.Get("/uploads/{filename}", handlers.UploadsHandler(routes.Objects))

	if routes.StaticDir != "" {
		router.Handle("/*", handlers.SPA(routes.StaticDir))
	}
	return router
}

// requestLogger attaches a request scoped logger to the context and logs one
// line per request once it completes.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Logger()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				event := reqLogger.Info()
				if status >= http.StatusInternalServerError {
					event = reqLogger.Warn()
				}
				event.
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()

			next.ServeHTTP(ww, r.WithContext(reqLogger.WithContext(r.Context())))
		})
	}
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker, object storage
// and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if closeErr := s.mq.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close mq")
		}
	}
	if s.objects != nil {
		if closeErr := s.objects.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close storage")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
