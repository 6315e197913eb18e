package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avaliaedu/avalia-backend/internal/http/response"
	"github.com/avaliaedu/avalia-backend/internal/ingest"
	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/services"
)

type ImportHandler struct {
	log *logger.Logger
	svc services.ImportService
}

func NewImportHandler(baseLog *logger.Logger, svc services.ImportService) *ImportHandler {
	return &ImportHandler{
		log: baseLog.With("handler", "ImportHandler"),
		svc: svc,
	}
}

// Create accepts a multipart upload (field "file") plus a "cycle" form
// value, parses it synchronously and queues the import. The response is the
// queued job record; progress is polled through Get.
func (h *ImportHandler) Create(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", fmt.Errorf("multipart field 'file' is required"))
		return
	}
	cycle := c.PostForm("cycle")
	if cycle == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_cycle", fmt.Errorf("form field 'cycle' is required"))
		return
	}
	var operatorID *uuid.UUID
	if raw := c.PostForm("operator_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_operator_id", err)
			return
		}
		operatorID = &id
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer file.Close()

	job, err := h.svc.Submit(c.Request.Context(), fileHeader.Filename, file, cycle, operatorID)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnsupportedFormat):
			response.RespondError(c, http.StatusBadRequest, "unsupported_format", err)
		case errors.Is(err, services.ErrEmptyUpload):
			response.RespondError(c, http.StatusBadRequest, "empty_upload", err)
		case errors.Is(err, services.ErrMissingColumns):
			response.RespondError(c, http.StatusBadRequest, "missing_columns", err)
		default:
			h.log.Error("import submit failed", "error", err)
			response.RespondError(c, http.StatusInternalServerError, "submit_failed", err)
		}
		return
	}
	response.RespondAccepted(c, job)
}

func (h *ImportHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	job, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	if job == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("import job %s not found", id))
		return
	}
	response.RespondOK(c, job)
}

func (h *ImportHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	jobs, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	response.RespondOK(c, jobs)
}

func (h *ImportHandler) Pause(c *gin.Context) {
	h.transition(c, "pause", h.svc.Pause)
}

func (h *ImportHandler) Resume(c *gin.Context) {
	h.transition(c, "resume", h.svc.Resume)
}

func (h *ImportHandler) Cancel(c *gin.Context) {
	h.transition(c, "cancel", h.svc.Cancel)
}

// transition applies a guarded status change; a job in an incompatible
// state yields 409 rather than silently doing nothing.
func (h *ImportHandler) transition(c *gin.Context, name string, op func(ctx context.Context, id uuid.UUID) (bool, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	applied, err := op(c.Request.Context(), id)
	if err != nil {
		h.log.Error("transition failed", "op", name, "job_id", id, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "transition_failed", err)
		return
	}
	if !applied {
		response.RespondError(c, http.StatusConflict, "invalid_state",
			fmt.Errorf("job %s cannot %s in its current state", id, name))
		return
	}
	job, err := h.svc.Get(c.Request.Context(), id)
	if err != nil || job == nil {
		response.RespondOK(c, gin.H{"id": id, "applied": true})
		return
	}
	response.RespondOK(c, job)
}
