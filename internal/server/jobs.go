package server

import (
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contractor-tools/estimator/constants"
	"github.com/contractor-tools/estimator/internal/common"
	"github.com/contractor-tools/estimator/internal/entity"
)

func (s *Server) handleCreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, common.NewAppError("INVALID_JOB", "invalid job payload", common.ErrInvalidInput))
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		s.respondError(c, err)
		return
	}

	job := &entity.Job{
		WorkspaceID: workspaceID(c),
		CustomerID:  req.CustomerID,
		Title:       req.Title,
		Scope:       req.Scope,
		DueDate:     due,
	}
	if err := s.deps.Jobs.Create(c.Request.Context(), job); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, jobResponse{Job: *job})
}

func (s *Server) handleGetJob(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	job, err := s.deps.Jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	items, err := s.deps.Jobs.ListItems(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobResponse{Job: *job, Items: items})
}

func (s *Server) handleUpdateJob(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	var req updateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, common.NewAppError("INVALID_JOB", "invalid job payload", common.ErrInvalidInput))
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		s.respondError(c, err)
		return
	}

	job, err := s.deps.Jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	job.Title = req.Title
	job.Scope = req.Scope
	job.DueDate = due
	job.CustomerID = req.CustomerID
	if err := s.deps.Jobs.Update(c.Request.Context(), job); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobResponse{Job: *job})
}

// handleReplaceItems is last-writer-wins by design: the client sends the
// whole item list and the server swaps it wholesale.
func (s *Server) handleReplaceItems(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	var req replaceItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, common.NewAppError("INVALID_ITEMS", "invalid items payload", common.ErrInvalidInput))
		return
	}
	items, err := req.toEntities(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.deps.Jobs.ReplaceItems(c.Request.Context(), id, items); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items)})
}

func (s *Server) handleAddPhoto(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	var req addPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, common.NewAppError("INVALID_PHOTO", "invalid photo payload", common.ErrInvalidInput))
		return
	}
	ext := constants.NormalizeExt(path.Ext(req.FileName))
	if _, ok := constants.AllowedPhotoExtensions[ext]; !ok {
		s.respondError(c, common.NewAppError("UNSUPPORTED_PHOTO",
			"unsupported photo type "+ext, common.ErrInvalidInput))
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		if ext == "jpg" {
			contentType = "image/jpeg"
		} else {
			contentType = "image/" + ext
		}
	}

	photo := &entity.JobPhoto{
		ID:          uuid.New(),
		JobID:       id,
		ObjectKey:   fmt.Sprintf("jobs/%s/photos/%s.%s", id, uuid.New(), ext),
		ContentType: contentType,
	}
	url, ttl, err := s.deps.Uploads.PresignPhotoPut(c.Request.Context(), photo.ObjectKey, contentType)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.deps.Photos.Add(c.Request.Context(), photo); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, photoUploadResponse{
		PhotoID:   photo.ID,
		ObjectKey: photo.ObjectKey,
		UploadURL: url,
		ExpiresIn: int64(ttl / time.Second),
	})
}

// handleGenerate is the interactive path: the caller blocks on the whole
// pipeline and gets the fresh estimate back.
func (s *Server) handleGenerate(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	gen, err := s.deps.Generator.Generate(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, generateResponse{Job: gen.Job, Estimate: gen.Payload})
}

// handleEnqueue is the durable path: the generation request is parked in
// the queue and a worker picks it up.
func (s *Server) handleEnqueue(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	job, err := s.deps.Jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	entry, err := s.deps.Queue.Enqueue(c.Request.Context(), job.ID, job.WorkspaceID, s.deps.MaxAttempts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, enqueueResponse{
		QueueID:  entry.ID,
		JobID:    entry.JobID,
		Status:   entry.Status,
		Attempts: entry.Attempts,
	})
}

func (s *Server) handleListEstimates(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	recs, err := s.deps.Estimates.ListByJob(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]estimateResponse, len(recs))
	for i, rec := range recs {
		out[i] = toEstimateResponse(rec)
	}
	c.JSON(http.StatusOK, gin.H{"estimates": out})
}

func (s *Server) handleLatestEstimate(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	rec, err := s.deps.Estimates.Latest(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEstimateResponse(*rec))
}

func (s *Server) handleExport(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	data, err := s.deps.Exporter.ExportLatestXLSX(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="estimate-%s.xlsx"`, id))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
