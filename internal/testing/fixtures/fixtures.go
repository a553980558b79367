package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/civicfix/api/internal/database"
	"github.com/civicfix/api/internal/model"
	"github.com/civicfix/api/internal/repository"
	"github.com/civicfix/api/internal/service"

	"golang.org/x/crypto/bcrypt"
)

// Factory creates test entities in the database
type Factory struct {
	users    *repository.UserRepository
	problems *repository.ProblemRepository
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{
		users:    repository.NewUserRepository(db),
		problems: repository.NewProblemRepository(db),
	}
}

// randomID generates a random hex suffix for unique fixture names
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ctx returns a context with timeout
func ctx() context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = cancel
	return c
}

// ===== User Fixtures =====

// UserOpts customizes user creation
type UserOpts struct {
	Username string
	Email    string
	Password string
}

// CreateUser creates a user with optional customizations. The password is
// hashed with bcrypt.MinCost to keep fixture creation fast.
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	id := randomID()
	o := &UserOpts{
		Username: "user_" + id,
		Email:    fmt.Sprintf("user_%s@test.local", id),
		Password: "testpass123",
	}
	for _, fn := range opts {
		fn(o)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("fixtures: failed to hash password: %v", err)
	}

	user := &model.User{
		Username: o.Username,
		Email:    o.Email,
		Hash:     string(hash),
	}
	if err := f.users.Create(ctx(), user); err != nil {
		t.Fatalf("fixtures: failed to create user: %v", err)
	}
	return user
}

// ===== Problem Fixtures =====

// ProblemOpts customizes problem creation
type ProblemOpts struct {
	Title       string
	Description string
	Category    string
	Status      model.ProblemStatus
	Severity    string
	Votes       int
	Location    *model.Location
	Image       *string
}

// WithStatus sets the initial problem status
func WithStatus(status model.ProblemStatus) func(*ProblemOpts) {
	return func(o *ProblemOpts) {
		o.Status = status
	}
}

// WithVotes sets the initial vote count
func WithVotes(votes int) func(*ProblemOpts) {
	return func(o *ProblemOpts) {
		o.Votes = votes
	}
}

// CreateProblem creates a problem owned by the given user. Pass nil for an
// unowned record, matching what the seeder produces.
func (f *Factory) CreateProblem(t *testing.T, owner *model.User, opts ...func(*ProblemOpts)) *model.Problem {
	t.Helper()

	o := &ProblemOpts{
		Title:       "Problem " + randomID(),
		Description: "Test problem description",
		Category:    "INFRASTRUCTURE",
		Status:      model.StatusPending,
		Severity:    model.SeverityMedium,
	}
	for _, fn := range opts {
		fn(o)
	}

	p := &model.Problem{
		ProblemID:   service.NewProblemID(),
		Title:       o.Title,
		Description: o.Description,
		Category:    o.Category,
		Status:      o.Status,
		Severity:    o.Severity,
		Votes:       o.Votes,
		Location:    o.Location,
		Image:       o.Image,
	}
	if owner != nil {
		p.UserID = owner.ID
	}

	if err := f.problems.Create(ctx(), p); err != nil {
		t.Fatalf("fixtures: failed to create problem: %v", err)
	}
	return p
}

// AddComment appends a comment to a problem on behalf of a user
func (f *Factory) AddComment(t *testing.T, problem *model.Problem, user *model.User, text string) {
	t.Helper()

	if _, err := f.problems.AppendComment(ctx(), problem.ID, model.Comment{
		Text:     text,
		UserID:   user.ID,
		Username: user.Username,
	}); err != nil {
		t.Fatalf("fixtures: failed to add comment: %v", err)
	}
}

// SetEnrichment attaches AI suggestions to a problem, simulating a completed
// background enrichment.
func (f *Factory) SetEnrichment(t *testing.T, problem *model.Problem, suggestions, severity string) {
	t.Helper()

	if err := f.problems.SetEnrichment(ctx(), problem.ID, suggestions, severity); err != nil {
		t.Fatalf("fixtures: failed to set enrichment: %v", err)
	}
}
