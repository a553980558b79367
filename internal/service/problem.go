package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/civicfix/api/internal/database"
	"github.com/civicfix/api/internal/model"
)

const (
	problemIDPrefix  = "PROB-"
	problemIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	problemIDLength  = 9
)

// NewProblemID returns a fresh human-facing problem identifier of the form
// PROB-XXXXXXXXX. Uniqueness is probabilistic, not enforced.
func NewProblemID() string {
	var sb strings.Builder
	sb.WriteString(problemIDPrefix)
	max := big.NewInt(int64(len(problemIDCharset)))
	for i := 0; i < problemIDLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			sb.WriteByte(problemIDCharset[time.Now().Nanosecond()%len(problemIDCharset)])
			continue
		}
		sb.WriteByte(problemIDCharset[n.Int64()])
	}
	return sb.String()
}

// ProblemRepository defines the interface for problem storage
type ProblemRepository interface {
	Create(ctx context.Context, p *model.Problem) error
	GetByID(ctx context.Context, id string) (*model.Problem, error)
	GetByProblemID(ctx context.Context, problemID string) (*model.Problem, error)
	List(ctx context.Context, problemID string) ([]*model.Problem, error)
	AddVote(ctx context.Context, id string, delta int) (*model.Problem, error)
	AppendComment(ctx context.Context, id string, c model.Comment) (*model.Problem, error)
	AppendSolution(ctx context.Context, id string, s model.Solution) (*model.Problem, error)
	SetStatus(ctx context.Context, id string, status model.ProblemStatus) (*model.Problem, error)
	UpdateDetails(ctx context.Context, id, title, description, category string) (*model.Problem, error)
	Delete(ctx context.Context, id string) error
	DeleteByProblemID(ctx context.Context, problemID string) error
	GetMostRecent(ctx context.Context) (*model.Problem, error)
	DeleteManyByProblemIDs(ctx context.Context, ids []string) (int, error)
}

// EnrichmentQueue hands a problem to the background enricher. Enqueue returns
// false when the worker cannot accept more work; the problem then keeps its
// current suggestions until something re-triggers enrichment.
type EnrichmentQueue interface {
	Enqueue(recordID string) bool
}

// Notifier delivers best-effort alerts about new problems
type Notifier interface {
	NotifyNewProblem(ctx context.Context, p *model.Problem)
}

// ProblemService orchestrates the problem lifecycle: submission, voting,
// comments, solutions, status changes, edits, and deletion. Enrichment and
// notification both run off the request path; a submission succeeds even when
// the AI provider or SMS gateway is down.
type ProblemService struct {
	repo     ProblemRepository
	queue    EnrichmentQueue
	notifier Notifier
	logger   *slog.Logger
}

// ProblemServiceConfig holds configuration for the problem service
type ProblemServiceConfig struct {
	Repo     ProblemRepository
	Queue    EnrichmentQueue
	Notifier Notifier
	Logger   *slog.Logger
}

// NewProblemService creates a new problem service
func NewProblemService(cfg ProblemServiceConfig) *ProblemService {
	return &ProblemService{
		repo:     cfg.Repo,
		queue:    cfg.Queue,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}
}

// SubmitRequest represents a new problem submission
type SubmitRequest struct {
	Title       string
	Description string
	Category    string
	Severity    string
	Location    *model.Location
	ImagePath   *string
}

// Submit persists a new problem and responds immediately. The AI suggestions
// arrive later through the background enricher, and the authority SMS goes
// out on its own goroutine.
func (s *ProblemService) Submit(ctx context.Context, userID string, req SubmitRequest) (*model.Problem, error) {
	severity := strings.ToUpper(strings.TrimSpace(req.Severity))
	if severity == "" {
		severity = model.SeverityMedium
	}

	p := &model.Problem{
		ProblemID:   NewProblemID(),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      model.StatusPending,
		Severity:    severity,
		Location:    req.Location,
		Image:       req.ImagePath,
		UserID:      userID,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	if !s.queue.Enqueue(p.ID) {
		s.logger.Warn("enrichment queue full, skipping",
			slog.String("problem_id", p.ProblemID))
	}

	if s.notifier != nil {
		notifyCopy := *p
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			s.notifier.NotifyNewProblem(ctx, &notifyCopy)
		}()
	}

	return p, nil
}

// Get returns a single problem by record ID with display defaults applied.
func (s *ProblemService) Get(ctx context.Context, id string) (*model.Problem, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProblemNotFound
	}
	p.ApplyDisplayDefaults()
	return p, nil
}

// List returns all problems newest first, optionally filtered to a single
// problem identifier. An empty result is an error; callers surface it as 404.
func (s *ProblemService) List(ctx context.Context, problemID string) ([]*model.Problem, error) {
	problems, err := s.repo.List(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if len(problems) == 0 {
		return nil, ErrNoProblems
	}
	for _, p := range problems {
		p.ApplyDisplayDefaults()
	}
	return problems, nil
}

// Vote applies a caller-supplied delta to a problem's vote count. Any integer
// is accepted and the counter has no floor.
func (s *ProblemService) Vote(ctx context.Context, id string, delta int) (*model.Problem, error) {
	p, err := s.repo.AddVote(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProblemNotFound
	}
	return p, nil
}

// Comment appends a comment carrying a snapshot of the author's username and
// returns the stored comment.
func (s *ProblemService) Comment(ctx context.Context, id string, user *model.User, text string) (*model.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrCommentTextRequired
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrProblemNotFound
	}

	p, err := s.repo.AppendComment(ctx, id, model.Comment{
		Text:     text,
		UserID:   user.ID,
		Username: user.Username,
	})
	if err != nil {
		return nil, err
	}
	if p == nil || len(p.Comments) == 0 {
		return nil, ErrProblemNotFound
	}
	return &p.Comments[len(p.Comments)-1], nil
}

// GetComments returns a problem's comments.
func (s *ProblemService) GetComments(ctx context.Context, id string) ([]model.Comment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProblemNotFound
	}
	if p.Comments == nil {
		return []model.Comment{}, nil
	}
	return p.Comments, nil
}

// AddSolution appends a proposed solution and returns the updated problem.
func (s *ProblemService) AddSolution(ctx context.Context, id, userID, description string) (*model.Problem, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrSolutionTextRequired
	}

	p, err := s.repo.AppendSolution(ctx, id, model.Solution{
		Description: description,
		UserID:      userID,
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProblemNotFound
	}
	return p, nil
}

// UpdateStatus changes a problem's status. Only the owner may do this, and
// only to one of the accepted status values.
func (s *ProblemService) UpdateStatus(ctx context.Context, id, callerID, status string) (*model.Problem, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrProblemNotFound
	}
	if existing.UserID != callerID {
		return nil, ErrNotProblemOwner
	}
	if !model.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	p, err := s.repo.SetStatus(ctx, id, model.ProblemStatus(status))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProblemNotFound
	}
	return p, nil
}

// EditRequest is a partial update; nil fields are left unchanged. Only title,
// description, and category are editable.
type EditRequest struct {
	Title       *string
	Description *string
	Category    *string
}

// EditDetails applies an owner's edit and queues the problem for
// re-enrichment so the suggestions reflect the new text.
func (s *ProblemService) EditDetails(ctx context.Context, id, callerID string, req EditRequest) (*model.Problem, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrProblemNotFound
	}
	if existing.UserID != callerID {
		return nil, ErrNotProblemOwner
	}

	title := existing.Title
	description := existing.Description
	category := existing.Category
	if req.Title != nil {
		title = *req.Title
	}
	if req.Description != nil {
		description = *req.Description
	}
	if req.Category != nil {
		category = *req.Category
	}

	p, err := s.repo.UpdateDetails(ctx, id, title, description, category)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProblemNotFound
	}

	if !s.queue.Enqueue(p.ID) {
		s.logger.Warn("enrichment queue full, skipping",
			slog.String("problem_id", p.ProblemID))
	}

	return p, nil
}

// Delete removes a problem by record ID.
func (s *ProblemService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	return nil
}

// DeleteByProblemID removes a problem by its human-facing identifier.
func (s *ProblemService) DeleteByProblemID(ctx context.Context, problemID string) error {
	if err := s.repo.DeleteByProblemID(ctx, problemID); err != nil {
		return mapNotFound(err)
	}
	return nil
}

// DeleteMostRecent removes the newest problem.
func (s *ProblemService) DeleteMostRecent(ctx context.Context) error {
	p, err := s.repo.GetMostRecent(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrNoProblems
	}
	return s.repo.Delete(ctx, p.ID)
}

// DeleteMany removes every problem whose identifier appears in problemIDs and
// returns the number deleted. Zero matches is an error.
func (s *ProblemService) DeleteMany(ctx context.Context, problemIDs []string) (int, error) {
	if len(problemIDs) == 0 {
		return 0, ErrProblemIDsRequired
	}

	count, err := s.repo.DeleteManyByProblemIDs(ctx, problemIDs)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, ErrNoProblems
	}
	return count, nil
}

// mapNotFound converts storage not-found errors to the service sentinel
func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrProblemNotFound
	}
	return err
}
