package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/complidocs/complidocs/internal/docstore"
	"github.com/complidocs/complidocs/internal/retrieval"
)

// maxUploadBytes bounds document upload bodies. Documents are text; 10MB
// of text is far beyond any realistic SOP or report.
const maxUploadBytes = 10 << 20

// documentHandler serves the document CRUD and stats endpoints.
type documentHandler struct {
	service *retrieval.Service
	logger  *slog.Logger
}

// documentDTO is the JSON shape of a document header.
type documentDTO struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	FileType    string    `json:"fileType"`
	SizeBytes   int64     `json:"sizeBytes"`
	TextPreview string    `json:"textPreview"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toDocumentDTO(d docstore.Document) documentDTO {
	return documentDTO{
		ID:          d.ID.String(),
		Filename:    d.Filename,
		FileType:    d.FileType,
		SizeBytes:   d.SizeBytes,
		TextPreview: d.TextPreview,
		Category:    d.Category,
		Tags:        d.Tags,
		CreatedAt:   d.CreatedAt,
	}
}

type uploadRequest struct {
	Filename  string   `json:"filename"`
	Text      string   `json:"text"`
	FileType  string   `json:"fileType"`
	SizeBytes int64    `json:"sizeBytes"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
}

type uploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

// upload handles POST /api/v1/documents.
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "owner_required", "missing owner identity", h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}

	res, err := h.service.Upload(r.Context(), owner, retrieval.UploadInput{
		Filename:  req.Filename,
		Text:      req.Text,
		FileType:  req.FileType,
		SizeBytes: req.SizeBytes,
		Category:  req.Category,
		Tags:      req.Tags,
	})
	if err != nil {
		h.serviceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, uploadResponse{
		ID:       res.DocumentID.String(),
		Filename: res.Filename,
		Chunks:   res.ChunkCount,
	})
}

// list handles GET /api/v1/documents.
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "owner_required", "missing owner identity", h.logger)
		return
	}

	docs, err := h.service.List(r.Context(), owner)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	out := make([]documentDTO, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentDTO(d))
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"documents": out,
		"total":     len(out),
	})
}

// get handles GET /api/v1/documents/{id}.
func (h *documentHandler) get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "owner_required", "missing owner identity", h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid document id", h.logger)
		return
	}

	doc, err := h.service.Get(r.Context(), owner, id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toDocumentDTO(doc))
}

// remove handles DELETE /api/v1/documents/{id}.
func (h *documentHandler) remove(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "owner_required", "missing owner identity", h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid document id", h.logger)
		return
	}

	doc, err := h.service.Delete(r.Context(), owner, id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":    "document deleted",
		"documentId": doc.ID.String(),
		"filename":   doc.Filename,
	})
}

type statsResponse struct {
	TotalDocuments int   `json:"totalDocuments"`
	TotalChunks    int   `json:"totalChunks"`
	TotalSize      int64 `json:"totalSize"`
}

// stats handles GET /api/v1/stats.
func (h *documentHandler) stats(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "owner_required", "missing owner identity", h.logger)
		return
	}

	st, err := h.service.Stats(r.Context(), owner)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, statsResponse{
		TotalDocuments: st.DocumentCount,
		TotalChunks:    st.ChunkCount,
		TotalSize:      st.TotalSizeBytes,
	})
}

// serviceError maps service sentinels onto HTTP status codes. Unknown
// errors become opaque 500s; details go to the log only.
func (h *documentHandler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, retrieval.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
	case errors.Is(err, docstore.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
	default:
		h.logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}
