package service

import (
	"context"
	"fmt"
	"log/slog"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/civicfix/api/internal/database"
	"github.com/civicfix/api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations

type mockProblemRepo struct {
	mu       sync.Mutex
	problems map[string]*model.Problem
	order    []string
	counter  int
}

func newMockProblemRepo() *mockProblemRepo {
	return &mockProblemRepo{problems: make(map[string]*model.Problem)}
}

func (m *mockProblemRepo) Create(ctx context.Context, p *model.Problem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	p.ID = fmt.Sprintf("problem:%d", m.counter)
	p.CreatedAt = time.Now()
	clone := *p
	m.problems[p.ID] = &clone
	m.order = append(m.order, p.ID)
	return nil
}

func (m *mockProblemRepo) GetByID(ctx context.Context, id string) (*model.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (m *mockProblemRepo) GetByProblemID(ctx context.Context, problemID string) (*model.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.problems {
		if p.ProblemID == problemID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *mockProblemRepo) List(ctx context.Context, problemID string) ([]*model.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Problem
	for i := len(m.order) - 1; i >= 0; i-- {
		p, ok := m.problems[m.order[i]]
		if !ok {
			continue
		}
		if problemID != "" && p.ProblemID != problemID {
			continue
		}
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

func (m *mockProblemRepo) AddVote(ctx context.Context, id string, delta int) (*model.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok {
		return nil, nil
	}
	p.Votes += delta
	clone := *p
	return &clone, nil
}

func (m *mockProblemRepo) AppendComment(ctx context.Context, id string, c model.Comment) (*model.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok {
		return nil, nil
	}
	c.CreatedAt = time.Now()
	p.Comments = append(p.Comments, c)
	clone := *p
	return &clone, nil
}

func (m *mockProblemRepo) AppendSolution(ctx context.Context, id string, s model.Solution) (*model.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok {
		return nil, nil
	}
	s.CreatedAt = time.Now()
	p.Solutions = append(p.Solutions, s)
	clone := *p
	return &clone, nil
}

func (m *mockProblemRepo) SetStatus(ctx context.Context, id string, status model.ProblemStatus) (*model.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok {
		return nil, nil
	}
	p.Status = status
	clone := *p
	return &clone, nil
}

func (m *mockProblemRepo) UpdateDetails(ctx context.Context, id, title, description, category string) (*model.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.problems[id]
	if !ok {
		return nil, nil
	}
	p.Title = title
	p.Description = description
	p.Category = category
	p.AISuggestions = nil
	clone := *p
	return &clone, nil
}

func (m *mockProblemRepo) SetEnrichment(ctx context.Context, id, suggestions, severity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.problems[id]; ok {
		p.AISuggestions = &suggestions
		p.Severity = severity
	}
	return nil
}

func (m *mockProblemRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.problems[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.problems, id)
	return nil
}

func (m *mockProblemRepo) DeleteByProblemID(ctx context.Context, problemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.problems {
		if p.ProblemID == problemID {
			delete(m.problems, id)
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *mockProblemRepo) GetMostRecent(ctx context.Context) (*model.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		if p, ok := m.problems[m.order[i]]; ok {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *mockProblemRepo) DeleteManyByProblemIDs(ctx context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, p := range m.problems {
		for _, want := range ids {
			if p.ProblemID == want {
				delete(m.problems, id)
				count++
				break
			}
		}
	}
	return count, nil
}

type mockQueue struct {
	mu      sync.Mutex
	ids     []string
	full    bool
	blockCh chan struct{}
}

func (q *mockQueue) Enqueue(recordID string) bool {
	if q.blockCh != nil {
		// Simulates a hung enrichment backend. Enqueue must still not block.
		select {
		case <-q.blockCh:
		default:
		}
	}
	if q.full {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, recordID)
	return true
}

type mockNotifier struct {
	mu    sync.Mutex
	calls []*model.Problem
	done  chan struct{}
}

func (n *mockNotifier) NotifyNewProblem(ctx context.Context, p *model.Problem) {
	n.mu.Lock()
	n.calls = append(n.calls, p)
	n.mu.Unlock()
	if n.done != nil {
		close(n.done)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProblemService() (*ProblemService, *mockProblemRepo, *mockQueue, *mockNotifier) {
	repo := newMockProblemRepo()
	queue := &mockQueue{}
	notifier := &mockNotifier{}
	svc := NewProblemService(ProblemServiceConfig{
		Repo:     repo,
		Queue:    queue,
		Notifier: notifier,
		Logger:   testLogger(),
	})
	return svc, repo, queue, notifier
}

// Identifier tests

func TestNewProblemID_Format(t *testing.T) {
	t.Parallel()
	pattern := regexp.MustCompile(`^PROB-[A-Z0-9]{9}$`)

	for i := 0; i < 100; i++ {
		id := NewProblemID()
		assert.Regexp(t, pattern, id)
	}
}

func TestNewProblemID_Unique(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewProblemID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

// Submit tests

func TestSubmit_ReturnsImmediately(t *testing.T) {
	t.Parallel()
	svc, _, queue, _ := newTestProblemService()
	queue.blockCh = make(chan struct{}) // never signalled

	start := time.Now()
	p, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{
		Title:       "Broken bench",
		Description: "Bench in the park is broken",
		Category:    "INFRASTRUCTURE",
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second,
		"submission must not wait on enrichment")

	assert.Regexp(t, `^PROB-[A-Z0-9]{9}$`, p.ProblemID)
	assert.Equal(t, model.StatusPending, p.Status)
	assert.Equal(t, model.SeverityMedium, p.Severity)
	assert.Nil(t, p.AISuggestions, "suggestions arrive later via the worker")
}

func TestSubmit_EnqueuesForEnrichment(t *testing.T) {
	t.Parallel()
	svc, _, queue, _ := newTestProblemService()

	p, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{Title: "t"})
	require.NoError(t, err)

	queue.mu.Lock()
	defer queue.mu.Unlock()
	require.Len(t, queue.ids, 1)
	assert.Equal(t, p.ID, queue.ids[0])
}

func TestSubmit_SucceedsWhenQueueFull(t *testing.T) {
	t.Parallel()
	svc, _, queue, _ := newTestProblemService()
	queue.full = true

	_, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{Title: "t"})
	assert.NoError(t, err, "a full enrichment queue must not fail the submission")
}

func TestSubmit_NotifiesInBackground(t *testing.T) {
	t.Parallel()
	svc, _, _, notifier := newTestProblemService()
	notifier.done = make(chan struct{})

	p, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{
		Title:    "Leaking pipe",
		Severity: "high",
	})
	require.NoError(t, err)

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never fired")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, p.ProblemID, notifier.calls[0].ProblemID)
	assert.Equal(t, "HIGH", notifier.calls[0].Severity, "severity hint is uppercased")
}

// Vote tests

func TestVote_AppliesArbitraryDelta(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	p, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{Title: "t"})
	require.NoError(t, err)

	updated, err := svc.Vote(context.Background(), p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Votes)

	updated, err = svc.Vote(context.Background(), p.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, -4, updated.Votes, "vote counter has no floor")
}

func TestVote_UnknownProblem(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	_, err := svc.Vote(context.Background(), "problem:missing", 1)
	assert.ErrorIs(t, err, ErrProblemNotFound)
}

// Comment tests

func TestComment_SnapshotsUsername(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	p, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{Title: "t"})
	require.NoError(t, err)

	user := &model.User{ID: "user:bob", Username: "bob"}
	comment, err := svc.Comment(context.Background(), p.ID, user, "agreed, this needs fixing")
	require.NoError(t, err)

	assert.Equal(t, "bob", comment.Username)
	assert.Equal(t, "user:bob", comment.UserID)
	assert.Equal(t, "agreed, this needs fixing", comment.Text)
}

func TestComment_EmptyText(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	p, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{Title: "t"})
	require.NoError(t, err)

	_, err = svc.Comment(context.Background(), p.ID, &model.User{ID: "u", Username: "u"}, "   ")
	assert.ErrorIs(t, err, ErrCommentTextRequired)
}

// Status tests

func TestUpdateStatus_OwnerOnly(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	p, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{Title: "t"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), p.ID, "user:mallory", "Solved")
	assert.ErrorIs(t, err, ErrNotProblemOwner)

	updated, err := svc.UpdateStatus(context.Background(), p.ID, "user:alice", "Solved")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSolved, updated.Status)
}

func TestUpdateStatus_RejectsUnknownValue(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	p, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{Title: "t"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), p.ID, "user:alice", "Archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

// Edit tests

func TestEditDetails_OwnerOnly(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	p, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{Title: "t"})
	require.NoError(t, err)

	title := "new title"
	_, err = svc.EditDetails(context.Background(), p.ID, "user:mallory", EditRequest{Title: &title})
	assert.ErrorIs(t, err, ErrNotProblemOwner)
}

func TestEditDetails_PartialPatchAndRequeue(t *testing.T) {
	t.Parallel()
	svc, repo, queue, _ := newTestProblemService()

	p, err := svc.Submit(context.Background(), "user:alice", SubmitRequest{
		Title:       "old title",
		Description: "old description",
		Category:    "ROADS",
	})
	require.NoError(t, err)

	// Simulate an earlier enrichment having landed
	require.NoError(t, repo.SetEnrichment(context.Background(), p.ID, "analysis", "LOW"))

	title := "new title"
	updated, err := svc.EditDetails(context.Background(), p.ID, "user:alice", EditRequest{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, "new title", updated.Title)
	assert.Equal(t, "old description", updated.Description, "untouched fields survive")
	assert.Equal(t, "ROADS", updated.Category)
	assert.Nil(t, updated.AISuggestions, "stale suggestions cleared until re-enrichment")

	queue.mu.Lock()
	defer queue.mu.Unlock()
	assert.Len(t, queue.ids, 2, "submit and edit both queue enrichment")
}

// List and get tests

func TestList_NewestFirst(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	first, err := svc.Submit(context.Background(), "u", SubmitRequest{Title: "first"})
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), "u", SubmitRequest{Title: "second"})
	require.NoError(t, err)

	problems, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, problems, 2)
	assert.Equal(t, second.ID, problems[0].ID)
	assert.Equal(t, first.ID, problems[1].ID)
}

func TestList_EmptyIsNotFound(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	_, err := svc.List(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoProblems)
}

func TestList_FilterByProblemID(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	p, err := svc.Submit(context.Background(), "u", SubmitRequest{Title: "wanted"})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), "u", SubmitRequest{Title: "other"})
	require.NoError(t, err)

	problems, err := svc.List(context.Background(), p.ProblemID)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "wanted", problems[0].Title)
}

func TestGet_AppliesDisplayDefaults(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	p, err := svc.Submit(context.Background(), "u", SubmitRequest{})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Untitled Problem", got.Title)
	assert.Equal(t, "No description provided", got.Description)
	assert.Equal(t, "Uncategorized", got.Category)
	assert.NotNil(t, got.Comments)
	assert.NotNil(t, got.Solutions)
}

// Delete tests

func TestDeleteMany_CountsMatches(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	a, err := svc.Submit(context.Background(), "u", SubmitRequest{Title: "a"})
	require.NoError(t, err)
	b, err := svc.Submit(context.Background(), "u", SubmitRequest{Title: "b"})
	require.NoError(t, err)

	count, err := svc.DeleteMany(context.Background(), []string{a.ProblemID, b.ProblemID, "PROB-MISSING01"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDeleteMany_NoIDs(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	_, err := svc.DeleteMany(context.Background(), nil)
	assert.ErrorIs(t, err, ErrProblemIDsRequired)
}

func TestDeleteMany_NoMatches(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	_, err := svc.DeleteMany(context.Background(), []string{"PROB-MISSING01"})
	assert.ErrorIs(t, err, ErrNoProblems)
}

func TestDeleteMostRecent(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	_, err := svc.Submit(context.Background(), "u", SubmitRequest{Title: "old"})
	require.NoError(t, err)
	latest, err := svc.Submit(context.Background(), "u", SubmitRequest{Title: "new"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMostRecent(context.Background()))

	problems, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.NotEqual(t, latest.ID, problems[0].ID)
}

func TestDeleteMostRecent_Empty(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestProblemService()

	err := svc.DeleteMostRecent(context.Background())
	assert.ErrorIs(t, err, ErrNoProblems)
}
