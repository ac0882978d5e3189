// Package handler exposes document ingestion over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/pkg/logger"
)

type Ingester interface {
	Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error)
}

type Handler struct {
	ingester Ingester
	docs     document.Store
	logger   *slog.Logger
}

func New(ing Ingester, docs document.Store) *Handler {
	return &Handler{
		ingester: ing,
		docs:     docs,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/documents/{id}", h.UpdateMetadata)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := h.ingester.Ingest(ctx, &req)
	if err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed", "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}

	log.Info("document accepted", "doc_id", resp.DocumentID, "published", resp.Published)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// Get reports a document's indexing state without its content.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		h.writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := h.docs.FindByID(r.Context(), id)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		if statusCode != http.StatusNotFound {
			logger.FromContext(r.Context()).Error("document lookup failed", "doc_id", id, "error", err)
		}
		h.writeError(w, statusCode, http.StatusText(statusCode))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"documentId":      doc.ID,
		"title":           doc.Title,
		"author":          doc.Author,
		"language":        doc.Language,
		"releaseDate":     doc.ReleaseDate,
		"status":          doc.Status.String(),
		"indexStartedAt":  doc.IndexStartedAt,
		"indexFinishedAt": doc.IndexFinishedAt,
		"indexError":      doc.IndexError,
	})
}

// UpdateMetadata replaces a document's metadata without touching its content
// or indexing state. Cached search responses pick the change up when they
// expire.
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		h.writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	var md document.Metadata
	if err := json.NewDecoder(r.Body).Decode(&md); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.docs.UpdateMetadata(ctx, id, md); err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		if statusCode != http.StatusNotFound {
			logger.FromContext(ctx).Error("metadata update failed", "doc_id", id, "error", err)
		}
		h.writeError(w, statusCode, http.StatusText(statusCode))
		return
	}
	h.Get(w, r)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
