package handler

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/vaultbox/internal/auth"
	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/service"
)

// uploadField is the multipart field carrying files. It may repeat.
const uploadField = "files"

// FileHandler handles the per-user file dashboard.
type FileHandler struct {
	files     *service.FileService
	maxMemory int64
	logger    zerolog.Logger
}

// NewFileHandler creates a new FileHandler.
// maxMemory bounds the multipart buffer; larger parts spill to temp files.
func NewFileHandler(files *service.FileService, maxMemory int64, logger zerolog.Logger) *FileHandler {
	if maxMemory <= 0 {
		maxMemory = 32 << 20
	}
	return &FileHandler{
		files:     files,
		maxMemory: maxMemory,
		logger:    logger.With().Str("handler", "file").Logger(),
	}
}

// RegisterRoutes registers the dashboard routes.
func (h *FileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.handleList)
	r.Post("/dashboard/upload", h.handleUpload)
	r.Get("/dashboard/download/{id}", h.handleDownload)
	r.Post("/dashboard/delete/{id}", h.handleDelete)
}

type fileResponse struct {
	FileID     string    `json:"file_id"`
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"upload_date"`
}

type uploadResponse struct {
	Files []service.UploadedFile `json:"files"`
}

func (h *FileHandler) handleList(w http.ResponseWriter, r *http.Request) {
	objects, err := h.files.List(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := make([]fileResponse, 0, len(objects))
	for _, o := range objects {
		resp = append(resp, fileResponse{FileID: o.ID, Filename: o.Filename, UploadDate: o.UploadDate})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *FileHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	requester := auth.IdentityFromContext(r.Context())

	// Anonymous callers are rejected before the body is parsed.
	if err := auth.RequireAuthenticated(requester); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			writeServiceError(w, r, h.logger, domain.ErrNoFileProvided)
			return
		}
		writeServiceError(w, r, h.logger, domain.NewDomainError(domain.ErrInvalidInput, "malformed multipart body", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var uploads []service.UploadFile
	for _, fh := range r.MultipartForm.File[uploadField] {
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		defer f.Close()

		uploads = append(uploads, service.UploadFile{
			Filename:    fh.Filename,
			ContentType: partContentType(fh),
			Body:        f,
		})
	}

	uploaded, err := h.files.Upload(r.Context(), requester, uploads)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Files: uploaded})
}

func partContentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *FileHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	output, err := h.files.Download(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer output.Body.Close()

	obj := output.Object
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": obj.Filename})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, output.Body); err != nil {
		h.logger.Warn().Err(err).Str("file_id", obj.ID).Msg("download interrupted")
	}
}

func (h *FileHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.files.Delete(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "File deleted"})
}
