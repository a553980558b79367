package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/civicfix/api/internal/middleware"
	"github.com/civicfix/api/internal/model"
	"github.com/civicfix/api/internal/service"
)

// EnrichmentHandler serves the interactive AI analysis preview
type EnrichmentHandler struct {
	enrichment *service.EnrichmentService
	logger     *slog.Logger
}

// NewEnrichmentHandler creates a new enrichment handler
func NewEnrichmentHandler(enrichment *service.EnrichmentService, logger *slog.Logger) *EnrichmentHandler {
	return &EnrichmentHandler{enrichment: enrichment, logger: logger}
}

type previewRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ImageBase64 string `json:"imageBase64"`
}

type previewResponse struct {
	ProblemID   string    `json:"problemId"`
	Suggestions string    `json:"suggestions"`
	Timestamp   time.Time `json:"timestamp"`
	Severity    string    `json:"severity"`
}

// Preview handles POST /api/ai-suggestions. It analyzes a draft problem
// before submission; the returned problemId is provisional and nothing is
// persisted. Provider failures surface as a fallback body, never an error.
func (h *EnrichmentHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	start := time.Now()
	result := h.enrichment.Preview(r.Context(), req.Title, req.Description, req.Category, req.ImageBase64)
	middleware.RecordEnrichment(service.IsFallback(result.Suggestions), time.Since(start))

	WriteJSON(w, http.StatusOK, previewResponse{
		ProblemID:   service.NewProblemID(),
		Suggestions: result.Suggestions,
		Timestamp:   time.Now().UTC(),
		Severity:    result.Severity,
	})
}
