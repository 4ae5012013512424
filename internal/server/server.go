// Package server is the HTTP surface of the estimator: job CRUD, the
// interactive and queued generation paths, settings, catalog import and
// estimate export.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/catalogimport"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/estimate"
	"github.com/contractor-tools/estimator/internal/repository"
)

// Generator is the interactive generation entrypoint.
type Generator interface {
	Generate(ctx context.Context, jobID uuid.UUID) (*estimate.Generation, error)
}

// Exporter renders a job's latest estimate as XLSX.
type Exporter interface {
	ExportLatestXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error)
}

// Importer loads a price-list workbook into the catalog.
type Importer interface {
	ImportXLSX(ctx context.Context, workspaceID uuid.UUID, customerID *uuid.UUID, trade constants.Trade, r io.Reader) (*catalogimport.Result, error)
}

// UploadSigner issues presigned PUT URLs for the client photo queue.
type UploadSigner interface {
	PresignPhotoPut(ctx context.Context, key, contentType string) (string, time.Duration, error)
}

// Deps wires every collaborator the handlers need.
type Deps struct {
	Jobs      repository.JobRepository
	Photos    repository.PhotoRepository
	Estimates repository.EstimateRepository
	Settings  repository.SettingsRepository
	Queue     repository.QueueRepository
	Generator Generator
	Exporter  Exporter
	Importer  Importer
	Uploads   UploadSigner
	Health    func(ctx context.Context) error

	Logger      *slog.Logger
	DebugErrors bool
	MaxAttempts int
}

type Server struct {
	deps   Deps
	logger *slog.Logger
	engine *gin.Engine
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = 3
	}
	s := &Server{deps: deps, logger: logger}
	s.engine = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the context is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("http.shutdown")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.accessLog())

	r.GET("/healthz", s.handleHealth)

	v1 := r.Group("/v1")
	{
		jobs := v1.Group("/jobs")
		jobs.POST("", s.requireWorkspace, s.handleCreateJob)
		jobs.GET("/:id", s.handleGetJob)
		jobs.PUT("/:id", s.handleUpdateJob)
		jobs.PUT("/:id/items", s.handleReplaceItems)
		jobs.POST("/:id/photos", s.handleAddPhoto)
		jobs.POST("/:id/generate", s.handleGenerate)
		jobs.POST("/:id/enqueue", s.handleEnqueue)
		jobs.GET("/:id/estimates", s.handleListEstimates)
		jobs.GET("/:id/estimates/latest", s.handleLatestEstimate)
		jobs.GET("/:id/export", s.handleExport)

		settings := v1.Group("/settings", s.requireWorkspace)
		settings.GET("", s.handleGetSettings)
		settings.PUT("", s.handlePutSettings)

		v1.POST("/catalog/import", s.requireWorkspace, s.handleCatalogImport)
	}
	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), reqID))
		c.Header("X-Request-ID", reqID)

		c.Next()
		s.logger.Info("http.request",
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

const workspaceHeader = "X-Workspace-ID"

// requireWorkspace resolves the tenant from the request header. Requests
// without a parseable workspace id are rejected before any handler runs.
func (s *Server) requireWorkspace(c *gin.Context) {
	id, err := uuid.Parse(c.GetHeader(workspaceHeader))
	if err != nil {
		s.respondError(c, common.NewAppError("MISSING_WORKSPACE",
			"missing or invalid "+workspaceHeader+" header", common.ErrInvalidInput))
		c.Abort()
		return
	}
	c.Set("workspace_id", id)
	c.Request = c.Request.WithContext(common.WithWorkspaceID(c.Request.Context(), id.String()))
	c.Next()
}

func workspaceID(c *gin.Context) uuid.UUID {
	return c.MustGet("workspace_id").(uuid.UUID)
}

func (s *Server) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.respondError(c, common.NewAppError("INVALID_ID", "invalid id in path", common.ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.error", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, common.ToErrorBody(err, s.deps.DebugErrors))
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Health != nil {
		if err := s.deps.Health(c.Request.Context()); err != nil {
			s.respondError(c, common.NewAppError("UNHEALTHY", "dependency check failed", errors.Join(common.ErrInternal, err)))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
