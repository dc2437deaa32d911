package web

import (
	"context"
	"net/http"
	"time"

	"narrative-agent/config"
	"narrative-agent/database"
	"narrative-agent/graph"
	"narrative-agent/pipeline"
	"narrative-agent/web/handlers"
	"narrative-agent/web/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router    *gin.Engine
	pipeline  *pipeline.Pipeline
	retention *RetentionService
	logger    *zap.Logger
	config    *config.Config
}

// NewServer builds the extraction API. store and relGraph may be nil when no
// archive database is configured; run endpoints then report the archive as
// disabled.
func NewServer(pipe *pipeline.Pipeline, store *database.PostgresStore, relGraph *graph.Graph, logger *zap.Logger, config *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = config.MaxUploadBytes

	server := &Server{
		router:   router,
		pipeline: pipe,
		logger:   logger,
		config:   config,
	}
	if store != nil && config.RunRetentionDays > 0 {
		server.retention = NewRetentionService(store, logger)
	}

	limiter := middleware.NewUploadRateLimiter(config.UploadsPerMinute, config.UploadBurst, logger)

	extractHandler := handlers.NewExtractHandler(pipe, store, relGraph, config, logger)
	router.GET("/health", extractHandler.Health)
	router.POST("/documents", middleware.RateLimit(limiter), extractHandler.ExtractDocument)
	router.GET("/runs", extractHandler.ListRuns)
	router.GET("/runs/:id/state", extractHandler.GetRunState)
	router.GET("/runs/:id/graph", extractHandler.GetRunGraph)
	router.GET("/runs/:id/graph/neighbors", extractHandler.GetRunNeighbors)

	return server
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting extraction API", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Extraction API failed to start", zap.Error(err))
		}
	}()

	if s.retention != nil {
		maxAge := time.Duration(s.config.RunRetentionDays) * 24 * time.Hour
		go s.retention.Start(ctx, time.Hour, maxAge)
	}

	// Wait for context cancellation
	<-ctx.Done()

	s.logger.Info("Shutting down extraction API")
	return srv.Shutdown(context.Background())
}
