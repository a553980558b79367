package handler

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/civicfix/api/internal/config"
	"github.com/civicfix/api/internal/middleware"
	"github.com/civicfix/api/internal/model"
	"github.com/civicfix/api/internal/service"
)

// ProblemHandler handles the problem lifecycle routes
type ProblemHandler struct {
	problemService *service.ProblemService
	upload         config.UploadConfig
	logger         *slog.Logger
}

// ProblemHandlerConfig holds configuration for the problem handler
type ProblemHandlerConfig struct {
	ProblemService *service.ProblemService
	Upload         config.UploadConfig
	Logger         *slog.Logger
}

// NewProblemHandler creates a new problem handler
func NewProblemHandler(cfg ProblemHandlerConfig) *ProblemHandler {
	return &ProblemHandler{
		problemService: cfg.ProblemService,
		upload:         cfg.Upload,
		logger:         cfg.Logger,
	}
}

// submitResponse is the submission body: the full problem plus a confirmation
type submitResponse struct {
	*model.Problem
	Message string `json:"message"`
}

// Submit handles POST /api/problems. The body is multipart form data with an
// optional image part; the response returns immediately while enrichment and
// notification continue in the background.
func (h *ProblemHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.upload.MaxSizeBytes+1<<20)
	if err := r.ParseMultipartForm(h.upload.MaxSizeBytes); err != nil {
		WriteError(w, model.NewBadRequestError("invalid form data or file too large"))
		return
	}

	req := service.SubmitRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Severity:    r.FormValue("severity"),
		Location:    parseLocation(r),
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		path, err := h.saveImage(file, header)
		if err != nil {
			WriteError(w, model.NewBadRequestError(err.Error()))
			return
		}
		req.ImagePath = &path
	}

	userID := middleware.GetUserID(r.Context())
	problem, err := h.problemService.Submit(r.Context(), userID, req)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	h.logger.Info("problem submitted",
		slog.String("problem_id", problem.ProblemID),
		slog.String("user_id", userID))

	problem.ApplyDisplayDefaults()
	WriteJSON(w, http.StatusCreated, submitResponse{
		Problem: problem,
		Message: "Problem submitted successfully",
	})
}

// List handles GET /api/problems with an optional problemId filter
func (h *ProblemHandler) List(w http.ResponseWriter, r *http.Request) {
	problems, err := h.problemService.List(r.Context(), r.URL.Query().Get("problemId"))
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteJSON(w, http.StatusOK, problems)
}

// Get handles GET /api/problems/{id}
func (h *ProblemHandler) Get(w http.ResponseWriter, r *http.Request) {
	problem, err := h.problemService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteJSON(w, http.StatusOK, problem)
}

type voteRequest struct {
	Vote int `json:"vote"`
}

// Vote handles POST /api/problems/{id}/vote. Any integer delta is accepted
// and no authentication is required on this path.
func (h *ProblemHandler) Vote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	problem, err := h.problemService.Vote(r.Context(), r.PathValue("id"), req.Vote)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteJSON(w, http.StatusOK, problem)
}

type commentRequest struct {
	Text string `json:"text"`
}

// AddComment handles POST /api/problems/{id}/comments
func (h *ProblemHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	user := middleware.GetUser(r.Context())
	comment, err := h.problemService.Comment(r.Context(), r.PathValue("id"), user, req.Text)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteJSON(w, http.StatusCreated, comment)
}

// GetComments handles GET /api/problems/{id}/comments
func (h *ProblemHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.problemService.GetComments(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteJSON(w, http.StatusOK, comments)
}

type solutionRequest struct {
	Description string `json:"description"`
}

// AddSolution handles POST /api/problems/{id}/solutions
func (h *ProblemHandler) AddSolution(w http.ResponseWriter, r *http.Request) {
	var req solutionRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	userID := middleware.GetUserID(r.Context())
	problem, err := h.problemService.AddSolution(r.Context(), r.PathValue("id"), userID, req.Description)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteJSON(w, http.StatusOK, problem)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/problems/{id}/status
func (h *ProblemHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	userID := middleware.GetUserID(r.Context())
	problem, err := h.problemService.UpdateStatus(r.Context(), r.PathValue("id"), userID, req.Status)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteJSON(w, http.StatusOK, problem)
}

type editRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

// Edit handles PATCH /api/problems/{id}. Only title, description, and
// category are editable; other fields in the body are ignored.
func (h *ProblemHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	userID := middleware.GetUserID(r.Context())
	problem, err := h.problemService.EditDetails(r.Context(), r.PathValue("id"), userID, service.EditRequest{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteJSON(w, http.StatusOK, problem)
}

// Delete handles DELETE /api/problems/{id}
func (h *ProblemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.problemService.Delete(r.Context(), r.PathValue("id")); err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteMessage(w, http.StatusOK, "Problem deleted successfully")
}

// DeleteMostRecent handles DELETE /api/problems/delete/most-recent
func (h *ProblemHandler) DeleteMostRecent(w http.ResponseWriter, r *http.Request) {
	if err := h.problemService.DeleteMostRecent(r.Context()); err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteMessage(w, http.StatusOK, "Most recent problem deleted successfully")
}

// DeleteByProblemID handles DELETE /api/problems/delete/by-id/{problemId}
func (h *ProblemHandler) DeleteByProblemID(w http.ResponseWriter, r *http.Request) {
	problemID := r.PathValue("problemId")
	if err := h.problemService.DeleteByProblemID(r.Context(), problemID); err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteMessage(w, http.StatusOK, fmt.Sprintf("Problem %s deleted successfully", problemID))
}

type deleteManyRequest struct {
	ProblemIDs []string `json:"problemIds"`
}

type deleteManyResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deletedCount"`
}

// DeleteMany handles DELETE /api/problems/delete/multiple
func (h *ProblemHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var req deleteManyRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	count, err := h.problemService.DeleteMany(r.Context(), req.ProblemIDs)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteJSON(w, http.StatusOK, deleteManyResponse{
		Message:      fmt.Sprintf("Successfully deleted %d problems", count),
		DeletedCount: count,
	})
}

// saveImage stores an uploaded image under the upload directory using a
// timestamped filename and returns its public path.
func (h *ProblemHandler) saveImage(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > h.upload.MaxSizeBytes {
		return "", fmt.Errorf("image exceeds %d byte limit", h.upload.MaxSizeBytes)
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("only image uploads are allowed")
	}

	if err := os.MkdirAll(h.upload.Dir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeFilename(header.Filename))
	dst, err := os.Create(filepath.Join(h.upload.Dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, h.upload.MaxSizeBytes)); err != nil {
		return "", err
	}

	return "/uploads/" + name, nil
}

// sanitizeFilename strips path separators and keeps the base name
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == string(filepath.Separator) {
		return "upload"
	}
	return name
}

// parseLocation builds a location from optional form fields
func parseLocation(r *http.Request) *model.Location {
	latStr := r.FormValue("latitude")
	lngStr := r.FormValue("longitude")
	address := r.FormValue("address")

	if latStr == "" && lngStr == "" && address == "" {
		return nil
	}

	loc := &model.Location{Address: address}
	if lat, err := strconv.ParseFloat(latStr, 64); err == nil {
		loc.Latitude = &lat
	}
	if lng, err := strconv.ParseFloat(lngStr, 64); err == nil {
		loc.Longitude = &lng
	}
	return loc
}
