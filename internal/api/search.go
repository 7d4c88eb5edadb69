package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/complidocs/complidocs/internal/retrieval"
)

// searchHandler serves POST /api/v1/search.
type searchHandler struct {
	service *retrieval.Service
	logger  *slog.Logger
}

type searchRequest struct {
	Query       string   `json:"query"`
	Limit       int      `json:"limit"`
	Threshold   float64  `json:"threshold"`
	DocumentIDs []string `json:"documentIds"`
}

type searchResultDTO struct {
	DocumentID string   `json:"documentId"`
	Filename   string   `json:"filename"`
	FileType   string   `json:"fileType"`
	Category   string   `json:"category,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	ChunkIndex int      `json:"chunkIndex"`
	Text       string   `json:"text"`
	Similarity float64  `json:"similarity"`
}

type searchResponse struct {
	Query      string            `json:"query"`
	TotalFound int               `json:"totalFound"`
	Results    []searchResultDTO `json:"results"`
}

func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "owner_required", "missing owner identity", h.logger)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}

	docIDs := make([]uuid.UUID, 0, len(req.DocumentIDs))
	for _, raw := range req.DocumentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", "invalid document id in filter", h.logger)
			return
		}
		docIDs = append(docIDs, id)
	}

	results, total, err := h.service.Search(r.Context(), owner, req.Query, retrieval.SearchOptions{
		Limit:       req.Limit,
		Threshold:   req.Threshold,
		DocumentIDs: docIDs,
	})
	if err != nil {
		if errors.Is(err, retrieval.ErrInvalidInput) {
			WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
			return
		}
		h.logger.Error("search failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	out := make([]searchResultDTO, 0, len(results))
	for _, res := range results {
		out = append(out, searchResultDTO{
			DocumentID: res.DocumentID.String(),
			Filename:   res.Filename,
			FileType:   res.FileType,
			Category:   res.Category,
			Tags:       res.Tags,
			ChunkIndex: res.ChunkIndex,
			Text:       res.Text,
			Similarity: res.Similarity,
		})
	}

	WriteJSON(w, http.StatusOK, searchResponse{
		Query:      req.Query,
		TotalFound: total,
		Results:    out,
	})
}
