package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "taskboard/docs"
	"taskboard/internal/auth"
	"taskboard/internal/config"
	"taskboard/internal/handler"
	"taskboard/internal/middleware"
	"taskboard/internal/migrations"
	"taskboard/internal/realtime"
	"taskboard/internal/realtime/pgnotify"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config

	log      *slog.Logger
	listener *pgnotify.Broker
}

// Init opens the database, brings the schema up to date and wires the routes.
func Init(cfg *config.Config, log *slog.Logger) (*Server, error) {
	db, err := OpenDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	hub := realtime.NewHub(log)
	var broker realtime.Broker = hub
	var listener *pgnotify.Broker
	if cfg.RealtimeBackend == config.RealtimePostgres {
		listener = pgnotify.New(hub, db, cfg.PostgresDSN(), log)
		broker = listener
	}

	s := New(db, broker, cfg, log)
	s.listener = listener
	return s, nil
}

// OpenDatabase connects with the configured driver and migrates the schema.
func OpenDatabase(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	switch cfg.DBDriver {
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath+"?_foreign_keys=on"), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("❌ failed to open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serialises writers anyway
		sqlDB.SetMaxOpenConns(1)
		if err := migrations.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		log.Info("✅ Connected to database", "driver", cfg.DBDriver, "path", cfg.SQLitePath)
		return db, nil

	default:
		if err := migrations.Up(cfg.PostgresURL(), log); err != nil {
			return nil, err
		}
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("❌ failed to connect to DB: %w", err)
		}
		log.Info("✅ Connected to database", "driver", cfg.DBDriver, "host", cfg.DBHost, "db", cfg.DBName)
		return db, nil
	}
}

// New builds the router over an open database.
func New(db *gorm.DB, broker realtime.Broker, cfg *config.Config, log *slog.Logger) *Server {
	if gin.Mode() != gin.TestMode && cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL())

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userRepo, profileRepo, tokens, log)
	profileHandler := handler.NewProfileHandler(profileRepo)
	projectHandler := handler.NewProjectHandler(projectRepo, broker, log)
	taskHandler := handler.NewTaskHandler(taskRepo, projectRepo, profileRepo, broker, log)
	commentHandler := handler.NewCommentHandler(commentRepo, taskRepo, broker, log)
	realtimeHandler := handler.NewRealtimeHandler(broker, cfg.PingInterval(), log)

	// Public routes
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/auth/signup", authHandler.SignUp)
	r.POST("/auth/login", authHandler.Login)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(tokens))
	{
		authorized.GET("/auth/session", authHandler.Session)

		// Profile routes
		authorized.GET("/profiles", profileHandler.List)
		authorized.PATCH("/profiles/me", profileHandler.UpdateMe)

		// Project routes
		authorized.POST("/projects", projectHandler.Create)
		authorized.GET("/projects", projectHandler.GetAll)
		authorized.GET("/projects/:id", projectHandler.GetByID)

		// Task routes
		authorized.GET("/projects/:id/tasks", taskHandler.GetByProject)
		authorized.POST("/projects/:id/tasks", taskHandler.Create)
		authorized.GET("/tasks/:id", taskHandler.GetByID)
		authorized.PATCH("/tasks/:id", taskHandler.Update)
		authorized.DELETE("/tasks/:id", taskHandler.Delete)

		// Comment routes
		authorized.GET("/tasks/:id/comments", commentHandler.GetByTask)
		authorized.POST("/tasks/:id/comments", commentHandler.Create)
		authorized.DELETE("/comments/:id", commentHandler.Delete)

		// Change feed
		authorized.GET("/realtime", realtimeHandler.Stream)
	}

	return &Server{
		Engine: r,
		DB:     db,
		Config: cfg,
		log:    log,
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.listener != nil {
		go func() {
			if err := s.listener.Listen(ctx); err != nil {
				s.log.Error("notification listener exited", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
		// request contexts end with the signal so open change streams close
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		s.log.Info("🚀 Server running", "port", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("❌ Failed to listen", "error", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	s.log.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("❌ Server forced to shutdown", "error", err)
		_ = srv.Close()
	}

	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	s.log.Info("✅ Server exited properly")
}
