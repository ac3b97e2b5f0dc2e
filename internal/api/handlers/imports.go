// Package handlers exposes the import pipeline over HTTP. Handlers are
// plumbing only: multipart decoding, status mapping and JSON encoding; every
// decision lives in the importer service.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dcastellanos/extracto/internal/api/middleware"
	"github.com/dcastellanos/extracto/internal/importer"
	"github.com/dcastellanos/extracto/internal/store"
)

// maxMultipartMemory bounds how much of an upload is buffered in memory
// before spilling to disk.
const maxMultipartMemory = 8 << 20

// ImportsHandler handles the /api/imports endpoints.
type ImportsHandler struct {
	svc *importer.Service
	log zerolog.Logger
}

// NewImportsHandler creates the imports handler.
func NewImportsHandler(svc *importer.Service, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{svc: svc, log: log}
}

// Create handles POST /api/imports. The multipart form carries the statement
// under "file" and an optional PDF password under "password".
func (h *ImportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	job, err := h.svc.CreateImportJob(r.Context(), importer.CreateImportInput{
		UserID:   r.FormValue("user_id"),
		FileName: header.Filename,
		MimeType: mimeType,
		Password: r.FormValue("password"),
		Data:     data,
	})
	if err != nil {
		if errors.Is(err, importer.ErrUnsupportedFile) {
			middleware.WriteError(w, http.StatusUnsupportedMediaType, "Unsupported file type")
			return
		}
		h.log.Error().Err(err).Str("file", header.Filename).Msg("Failed to create import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create import")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// Get handles GET /api/imports/{id}.
func (h *ImportsHandler) Get(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.svc.GetImportJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Import not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get import")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// Confirm handles POST /api/imports/{id}/confirm.
func (h *ImportsHandler) Confirm(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.svc.ConfirmImportJob(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			middleware.WriteError(w, http.StatusNotFound, "Import not found")
		case errors.Is(err, importer.ErrNotReviewable):
			middleware.WriteError(w, http.StatusConflict, "Import is not awaiting review")
		default:
			h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to confirm import")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to confirm import")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// Cancel handles POST /api/imports/{id}/cancel.
func (h *ImportsHandler) Cancel(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.svc.CancelImportJob(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			middleware.WriteError(w, http.StatusNotFound, "Import not found")
		case errors.Is(err, importer.ErrAlreadyTerminal):
			middleware.WriteError(w, http.StatusConflict, "Import already finished")
		default:
			h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to cancel import")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to cancel import")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/imports.
func (h *ImportsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if s := query.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	jobs, err := h.svc.ListImportJobs(r.Context(), query.Get("user_id"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list import jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list imports")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imports": jobs,
		"count":   len(jobs),
	})
}
