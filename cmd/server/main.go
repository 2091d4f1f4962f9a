package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"learnhub/internal/auth"
	"learnhub/internal/config"
	"learnhub/internal/course"
	"learnhub/internal/models"
	"learnhub/internal/playback"
	"learnhub/internal/quiz"
	"learnhub/pkg/cache"
	"learnhub/pkg/database"
	"learnhub/pkg/logger"
	"learnhub/pkg/metrics"
	"learnhub/pkg/ratelimit"
	"learnhub/pkg/response"
	"learnhub/pkg/storage"
	"learnhub/pkg/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not up yet
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Server.Mode, cfg.Log.File)
	defer logger.Sync()
	metrics.Init()
	if cfg.JWT.Generated {
		logger.Log.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	err = database.Migrate(db,
		&models.User{},
		&models.EmailAddress{},
		&models.Course{},
		&models.CourseProgress{},
		&models.QuizAttempt{},
	)
	if err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize Redis cache
	redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		logger.Log.Warn("Redis unreachable, sessions will not survive restarts", zap.Error(err))
	}

	// Course videos come from MinIO when it is configured
	var signer playback.URLSigner
	if cfg.Storage.Enabled() {
		store, err := storage.NewMinIOStorage(storage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
			URLExpiry: cfg.Storage.URLExpiry,
		})
		if err != nil {
			logger.Log.Fatal("Failed to create storage client", zap.Error(err))
		}
		bucketCtx, bucketCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := store.EnsureBucket(bucketCtx); err != nil {
			logger.Log.Warn("Media bucket not ready", zap.Error(err))
		}
		bucketCancel()
		signer = store
	}

	// Initialize repositories
	authRepo := auth.NewRepository(db)
	courseRepo := course.NewRepository(db)
	quizRepo := quiz.NewRepository(db)

	if err := courseRepo.SeedCourses(ctx, course.MockCourses()); err != nil {
		logger.Log.Fatal("Failed to seed courses", zap.Error(err))
	}

	// Initialize services
	authService := auth.NewService(authRepo, cfg.JWT.Secret, cfg.JWT.Expiry)

	wsHub := websocket.NewHub(authService, cfg.CORS.AllowedOrigins)

	courseService := course.NewService(courseRepo)
	quizService := quiz.NewService(quiz.DefaultCatalog(), cfg.Quiz.PassMark, quizRepo, redisCache, authService, wsHub)
	playbackService := playback.NewService(courseService, redisCache, signer, wsHub, playback.Config{
		DefaultVolume:   cfg.Playback.DefaultVolume,
		SkipSeconds:     cfg.Playback.SkipSeconds,
		DefaultVideoURL: cfg.Playback.DefaultVideoURL,
	})

	wsHub.Handle("media.", playbackService)
	// a learner's players close with their last socket
	wsHub.OnDisconnect(playbackService.CloseUser)
	go wsHub.Run(ctx)

	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	go limiter.Run(ctx)

	// Initialize handlers
	authHandler := auth.NewHandler(authService)
	courseHandler := course.NewHandler(courseService)
	quizHandler := quiz.NewHandler(quizService)
	playbackHandler := playback.NewHandler(playbackService)

	// Setup router
	router := mux.NewRouter()
	router.Use(metrics.Middleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			response.Error(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		response.Success(w, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// WebSocket endpoint
	router.HandleFunc("/ws", wsHub.HandleWebSocket)

	// Auth routes - no JWT required
	authRouter := router.PathPrefix("/api/auth").Subrouter()
	authRouter.Use(limiter.Middleware)
	authRouter.HandleFunc("/register", authHandler.Register).Methods("POST", "OPTIONS")
	authRouter.HandleFunc("/login", authHandler.Login).Methods("POST", "OPTIONS")
	authRouter.HandleFunc("/session", authHandler.Session).Methods("GET", "OPTIONS")

	// Dashboard routes - JWT required
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.JWTMiddleware(authService))

	apiRouter.HandleFunc("/me", authHandler.Me).Methods("GET", "OPTIONS")

	apiRouter.HandleFunc("/courses", courseHandler.ListCourses).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/courses/summary", courseHandler.GetSummary).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/courses/{id:[0-9]+}", courseHandler.GetCourse).Methods("GET", "OPTIONS")

	apiRouter.HandleFunc("/courses/{id:[0-9]+}/playback", playbackHandler.OpenSession).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/courses/{id:[0-9]+}/playback", playbackHandler.GetSession).Methods("GET")
	apiRouter.HandleFunc("/courses/{id:[0-9]+}/playback", playbackHandler.CloseSession).Methods("DELETE")
	apiRouter.HandleFunc("/courses/{id:[0-9]+}/playback/commands", playbackHandler.SendCommand).Methods("POST", "OPTIONS")

	apiRouter.HandleFunc("/quizzes", quizHandler.ListQuizzes).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/quizzes/{slug}/start", quizHandler.StartQuiz).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/quizzes/{slug}/commands", quizHandler.SendCommand).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/quizzes/{slug}/attempts", quizHandler.GetAttempts).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/quizzes/{slug}/leaderboard", quizHandler.GetLeaderboard).Methods("GET", "OPTIONS")

	// CORS middleware configuration
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      corsMiddleware.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown setup
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	logger.Log.Info("Server shutdown gracefully")
}
