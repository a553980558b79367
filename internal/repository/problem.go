package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/civicfix/api/internal/database"
	"github.com/civicfix/api/internal/model"
)

// ProblemRepository handles problem data access
type ProblemRepository struct {
	db database.Database
}

// NewProblemRepository creates a new problem repository
func NewProblemRepository(db database.Database) *ProblemRepository {
	return &ProblemRepository{db: db}
}

// problemProjection pulls the author's current username alongside every
// problem field so responses can show who reported the issue.
const problemProjection = `*, user_id.username AS username`

// Create persists a new problem and fills in the store-assigned fields.
func (r *ProblemRepository) Create(ctx context.Context, p *model.Problem) error {
	query := `
		CREATE problem CONTENT {
			problem_id: $problem_id,
			title: $title,
			description: $description,
			category: $category,
			status: $status,
			severity: $severity,
			votes: $votes,
			location: $location,
			image: $image,
			ai_suggestions: $ai_suggestions,
			user_id: IF $user_id != NONE THEN type::record($user_id) ELSE NONE END,
			created_at: time::now(),
			comments: [],
			solutions: []
		}
	`

	vars := map[string]interface{}{
		"problem_id":     p.ProblemID,
		"title":          p.Title,
		"description":    p.Description,
		"category":       p.Category,
		"status":         string(p.Status),
		"severity":       p.Severity,
		"votes":          p.Votes,
		"location":       locationVars(p.Location),
		"image":          p.Image,
		"ai_suggestions": p.AISuggestions,
		"user_id":        nilIfEmpty(p.UserID),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	results := extractQueryResults(result)
	if len(results) == 0 {
		return errors.New("no result returned")
	}

	data, ok := results[0].(map[string]interface{})
	if !ok {
		return errors.New("unexpected result format")
	}

	p.ID = convertSurrealID(data["id"])
	p.CreatedAt = parseTime(data["created_at"])
	return nil
}

// GetByID retrieves a problem by its record ID. Returns (nil, nil) when not found.
func (r *ProblemRepository) GetByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT ` + problemProjection + ` FROM type::record($id)`
	vars := map[string]interface{}{"id": id}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseProblemResult(result)
}

// GetByProblemID retrieves a problem by its human-facing identifier.
// Returns (nil, nil) when not found.
func (r *ProblemRepository) GetByProblemID(ctx context.Context, problemID string) (*model.Problem, error) {
	query := `SELECT ` + problemProjection + ` FROM problem WHERE problem_id = $problem_id LIMIT 1`
	vars := map[string]interface{}{"problem_id": problemID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseProblemResult(result)
}

// List returns problems newest first. When problemID is non-empty the list is
// filtered to that single identifier.
func (r *ProblemRepository) List(ctx context.Context, problemID string) ([]*model.Problem, error) {
	query := `SELECT ` + problemProjection + ` FROM problem ORDER BY created_at DESC`
	vars := map[string]interface{}{}

	if problemID != "" {
		query = `SELECT ` + problemProjection + ` FROM problem WHERE problem_id = $problem_id ORDER BY created_at DESC`
		vars["problem_id"] = problemID
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	results := extractQueryResults(result)
	problems := make([]*model.Problem, 0, len(results))
	for _, item := range results {
		p, err := parseProblemResult(item)
		if err != nil {
			return nil, err
		}
		if p != nil {
			problems = append(problems, p)
		}
	}
	return problems, nil
}

// AddVote applies an arbitrary delta to a problem's vote count and returns the
// updated record. The count may go negative.
func (r *ProblemRepository) AddVote(ctx context.Context, id string, delta int) (*model.Problem, error) {
	query := `UPDATE type::record($id) SET votes += $delta RETURN AFTER`
	vars := map[string]interface{}{
		"id":    id,
		"delta": delta,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseProblemResult(result)
}

// AppendComment appends a comment to a problem and returns the updated record.
func (r *ProblemRepository) AppendComment(ctx context.Context, id string, c model.Comment) (*model.Problem, error) {
	query := `
		UPDATE type::record($id) SET comments += [{
			text: $text,
			user_id: $user_id,
			username: $username,
			created_at: time::now()
		}] RETURN AFTER
	`
	vars := map[string]interface{}{
		"id":       id,
		"text":     c.Text,
		"user_id":  c.UserID,
		"username": c.Username,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseProblemResult(result)
}

// AppendSolution appends a proposed solution to a problem and returns the
// updated record.
func (r *ProblemRepository) AppendSolution(ctx context.Context, id string, s model.Solution) (*model.Problem, error) {
	query := `
		UPDATE type::record($id) SET solutions += [{
			description: $description,
			user_id: $user_id,
			votes: 0,
			created_at: time::now()
		}] RETURN AFTER
	`
	vars := map[string]interface{}{
		"id":          id,
		"description": s.Description,
		"user_id":     s.UserID,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseProblemResult(result)
}

// SetStatus updates a problem's status and returns the updated record.
func (r *ProblemRepository) SetStatus(ctx context.Context, id string, status model.ProblemStatus) (*model.Problem, error) {
	query := `UPDATE type::record($id) SET status = $status RETURN AFTER`
	vars := map[string]interface{}{
		"id":     id,
		"status": string(status),
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseProblemResult(result)
}

// UpdateDetails rewrites a problem's editable fields after an owner edit and
// returns the updated record. Enrichment is cleared so the background worker
// re-derives it from the new text.
func (r *ProblemRepository) UpdateDetails(ctx context.Context, id, title, description, category string) (*model.Problem, error) {
	query := `
		UPDATE type::record($id) SET
			title = $title,
			description = $description,
			category = $category,
			ai_suggestions = NONE
		RETURN AFTER
	`
	vars := map[string]interface{}{
		"id":          id,
		"title":       title,
		"description": description,
		"category":    category,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseProblemResult(result)
}

// SetEnrichment writes the enrichment outcome produced by the background worker.
func (r *ProblemRepository) SetEnrichment(ctx context.Context, id, suggestions, severity string) error {
	query := `UPDATE type::record($id) SET ai_suggestions = $suggestions, severity = $severity`
	vars := map[string]interface{}{
		"id":          id,
		"suggestions": suggestions,
		"severity":    severity,
	}

	return r.db.Execute(ctx, query, vars)
}

// Delete removes a problem by its record ID.
func (r *ProblemRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return database.ErrNotFound
	}

	query := `DELETE type::record($id)`
	vars := map[string]interface{}{"id": id}
	return r.db.Execute(ctx, query, vars)
}

// DeleteByProblemID removes a problem by its human-facing identifier.
func (r *ProblemRepository) DeleteByProblemID(ctx context.Context, problemID string) error {
	existing, err := r.GetByProblemID(ctx, problemID)
	if err != nil {
		return err
	}
	if existing == nil {
		return database.ErrNotFound
	}

	query := `DELETE problem WHERE problem_id = $problem_id`
	vars := map[string]interface{}{"problem_id": problemID}
	return r.db.Execute(ctx, query, vars)
}

// GetMostRecent returns the newest problem, or (nil, nil) when the store is empty.
func (r *ProblemRepository) GetMostRecent(ctx context.Context) (*model.Problem, error) {
	query := `SELECT ` + problemProjection + ` FROM problem ORDER BY created_at DESC LIMIT 1`

	result, err := r.db.QueryOne(ctx, query, nil)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseProblemResult(result)
}

// DeleteManyByProblemIDs removes every problem whose identifier appears in
// ids and returns how many records matched before deletion.
func (r *ProblemRepository) DeleteManyByProblemIDs(ctx context.Context, ids []string) (int, error) {
	countQuery := `SELECT count() FROM problem WHERE problem_id IN $ids GROUP ALL`
	vars := map[string]interface{}{"ids": ids}

	result, err := r.db.QueryOne(ctx, countQuery, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	count := extractCount(result)
	if count == 0 {
		return 0, nil
	}

	query := `DELETE problem WHERE problem_id IN $ids`
	if err := r.db.Execute(ctx, query, vars); err != nil {
		return 0, err
	}
	return count, nil
}

// nilIfEmpty converts an empty string to a NONE query variable
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// locationVars converts an optional location to query variables
func locationVars(loc *model.Location) interface{} {
	if loc == nil {
		return nil
	}
	return map[string]interface{}{
		"latitude":  loc.Latitude,
		"longitude": loc.Longitude,
		"address":   loc.Address,
	}
}

func parseProblemResult(result interface{}) (*model.Problem, error) {
	data, err := unwrapRecord(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	p := &model.Problem{
		ID:            convertSurrealID(data["id"]),
		ProblemID:     getString(data, "problem_id"),
		Title:         getString(data, "title"),
		Description:   getString(data, "description"),
		Category:      getString(data, "category"),
		Status:        model.ProblemStatus(getString(data, "status")),
		Severity:      getString(data, "severity"),
		Votes:         getInt(data, "votes"),
		Image:         getStringPtr(data, "image"),
		AISuggestions: getStringPtr(data, "ai_suggestions"),
		Username:      getString(data, "username"),
		CreatedAt:     parseTime(data["created_at"]),
	}

	if data["user_id"] != nil {
		p.UserID = convertSurrealID(data["user_id"])
	}

	if locData, ok := data["location"].(map[string]interface{}); ok {
		p.Location = &model.Location{
			Latitude:  getFloatPtr(locData, "latitude"),
			Longitude: getFloatPtr(locData, "longitude"),
			Address:   getString(locData, "address"),
		}
	}

	if comments, ok := data["comments"].([]interface{}); ok {
		p.Comments = make([]model.Comment, 0, len(comments))
		for _, item := range comments {
			c, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			p.Comments = append(p.Comments, model.Comment{
				Text:      getString(c, "text"),
				UserID:    getString(c, "user_id"),
				Username:  getString(c, "username"),
				CreatedAt: parseTime(c["created_at"]),
			})
		}
	}

	if solutions, ok := data["solutions"].([]interface{}); ok {
		p.Solutions = make([]model.Solution, 0, len(solutions))
		for _, item := range solutions {
			s, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			p.Solutions = append(p.Solutions, model.Solution{
				Description: getString(s, "description"),
				UserID:      getString(s, "user_id"),
				Votes:       getInt(s, "votes"),
				CreatedAt:   parseTime(s["created_at"]),
			})
		}
	}

	if p.ID == "" {
		return nil, fmt.Errorf("problem record missing id")
	}
	return p, nil
}
