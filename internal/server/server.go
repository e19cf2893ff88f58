package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/adilbekov/autoreel/internal/config"
	"github.com/adilbekov/autoreel/internal/genai"
	"github.com/adilbekov/autoreel/internal/models"
	"github.com/adilbekov/autoreel/internal/service"
)

// RunReader is the slice of the store the diagnostic API reads from.
type RunReader interface {
	ListRecentRuns(limit int) ([]models.AutomationRun, error)
	GetRun(id string) (*models.AutomationRun, error)
	ListEvents(runID string) ([]models.RunEvent, error)
	LastSuccessfulRunAt() (*models.AutomationRun, error)
}

// ChannelCounter reports how many channels the automation currently covers.
type ChannelCounter interface {
	CountEnabled() (int64, error)
}

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Store      RunReader
	Channels   ChannelCounter
	Automation *service.AutomationService
	Scheduler  *service.Scheduler
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Generation client is built once here and threaded through explicitly
	client, err := genai.NewClient(&cfg.GenAI, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation client: %w", err)
	}

	// Initialize services
	store := service.NewGormRunStore(db)
	channels := service.NewChannelService(db, logger)
	pipeline := genai.NewPipeline(client, logger)
	automation := service.NewAutomationService(&cfg.Automation, store, store, channels, pipeline, logger)
	scheduler := service.NewScheduler(&cfg.Automation, logger, automation)

	// Create router
	router := gin.New()

	// Create server
	srv := &Server{
		Config:     cfg,
		DB:         db,
		Router:     router,
		Logger:     logger,
		Store:      store,
		Channels:   channels,
		Automation: automation,
		Scheduler:  scheduler,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	{
		runs := api.Group("/runs")
		{
			runs.GET("", s.handleListRuns)
			runs.GET("/:id", s.handleGetRun)
		}

		api.GET("/status", s.handleGetStatus)
	}
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}
	if limit > 100 {
		limit = 100
	}

	runs, err := s.Store.ListRecentRuns(limit)
	if err != nil {
		s.Logger.Error("Failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := s.Store.GetRun(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		s.Logger.Error("Failed to get run", zap.String("run_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get run"})
		return
	}

	events, err := s.Store.ListEvents(id)
	if err != nil {
		s.Logger.Error("Failed to list run events", zap.String("run_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list run events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": run, "events": events})
}

func (s *Server) handleGetStatus(c *gin.Context) {
	enabledChannels, err := s.Channels.CountEnabled()
	if err != nil {
		s.Logger.Error("Failed to count channels", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build status"})
		return
	}

	lastSuccess, err := s.Store.LastSuccessfulRunAt()
	if err != nil {
		s.Logger.Error("Failed to query last successful run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build status"})
		return
	}

	status := gin.H{
		"timezone":           s.Config.Automation.Timezone,
		"automation_enabled": s.Config.Automation.Enabled,
		"enabled_channels":   enabledChannels,
		"interval":           s.Config.Automation.Interval,
	}
	if lastSuccess != nil {
		status["last_successful_run_at"] = lastSuccess.FinishedAt
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
