package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/civicfix/api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu       sync.Mutex
	problems map[string]*model.Problem
	saved    map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{
		problems: make(map[string]*model.Problem),
		saved:    make(map[string]string),
	}
}

func (m *mockStore) GetByID(ctx context.Context, id string) (*model.Problem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.problems[id], nil
}

func (m *mockStore) SetEnrichment(ctx context.Context, id, suggestions, severity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[id] = suggestions
	if p, ok := m.problems[id]; ok {
		p.AISuggestions = &suggestions
		p.Severity = severity
	}
	return nil
}

func (m *mockStore) savedSuggestions(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.saved[id]
	return s, ok
}

type stubSuggester struct {
	suggestions string
	severity    string
}

func (s *stubSuggester) Suggest(ctx context.Context, p *model.Problem) (string, string) {
	return s.suggestions, s.severity
}

func newTestEnricher(store ProblemStore, suggester Suggester) *Enricher {
	return NewEnricher(EnricherConfig{
		Store:     store,
		Suggester: suggester,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		QueueSize: 4,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestEnricher_ProcessesQueuedProblem(t *testing.T) {
	store := newMockStore()
	store.problems["problem:1"] = &model.Problem{ID: "problem:1", ProblemID: "PROB-AAAAAAAAA"}

	enricher := newTestEnricher(store, &stubSuggester{suggestions: "analysis", severity: model.SeverityHigh})
	enricher.Start()
	defer enricher.Stop()

	require.True(t, enricher.Enqueue("problem:1"))

	waitFor(t, func() bool {
		_, ok := store.savedSuggestions("problem:1")
		return ok
	})

	saved, _ := store.savedSuggestions("problem:1")
	assert.Equal(t, "analysis", saved)
}

func TestEnricher_SkipsDeletedProblem(t *testing.T) {
	store := newMockStore()
	enricher := newTestEnricher(store, &stubSuggester{suggestions: "analysis", severity: model.SeverityLow})
	enricher.Start()
	defer enricher.Stop()

	require.True(t, enricher.Enqueue("problem:gone"))

	// Give the worker a moment; nothing should have been written
	time.Sleep(100 * time.Millisecond)
	_, ok := store.savedSuggestions("problem:gone")
	assert.False(t, ok)
}

func TestEnricher_EnqueueFullQueue(t *testing.T) {
	store := newMockStore()
	// Never started, so the queue only drains by capacity
	enricher := NewEnricher(EnricherConfig{
		Store:     store,
		Suggester: &stubSuggester{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		QueueSize: 2,
	})

	assert.True(t, enricher.Enqueue("problem:1"))
	assert.True(t, enricher.Enqueue("problem:2"))
	assert.False(t, enricher.Enqueue("problem:3"), "full queue reports false instead of blocking")
}

func TestEnricher_StartStopIdempotent(t *testing.T) {
	store := newMockStore()
	enricher := newTestEnricher(store, &stubSuggester{})

	enricher.Start()
	enricher.Start()
	enricher.Stop()
	enricher.Stop()
}
