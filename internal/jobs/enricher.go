// Package jobs contains background workers that run alongside the HTTP
// server. The enricher attaches AI analysis to problems after the submit or
// edit request has already returned.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/civicfix/api/internal/middleware"
	"github.com/civicfix/api/internal/model"
	"github.com/civicfix/api/internal/service"
)

// ProblemStore is the slice of problem storage the enricher needs
type ProblemStore interface {
	GetByID(ctx context.Context, id string) (*model.Problem, error)
	SetEnrichment(ctx context.Context, id, suggestions, severity string) error
}

// Suggester produces analysis text and a severity label for a problem
type Suggester interface {
	Suggest(ctx context.Context, p *model.Problem) (suggestions, severity string)
}

// Enricher consumes queued problem record IDs and writes AI suggestions back
// to the store. Both submission and edits feed the same queue, so every
// record converges on enriched state through one path.
type Enricher struct {
	store     ProblemStore
	suggester Suggester
	logger    *slog.Logger

	queue   chan string
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// EnricherConfig holds configuration for the enricher
type EnricherConfig struct {
	Store     ProblemStore
	Suggester Suggester
	Logger    *slog.Logger
	QueueSize int
}

// NewEnricher creates a new enricher worker
func NewEnricher(cfg EnricherConfig) *Enricher {
	size := cfg.QueueSize
	if size <= 0 {
		size = 64
	}
	return &Enricher{
		store:     cfg.Store,
		suggester: cfg.Suggester,
		logger:    cfg.Logger,
		queue:     make(chan string, size),
		stopCh:    make(chan struct{}),
	}
}

// Enqueue hands a problem record ID to the worker. It returns false when the
// queue is full; the record then keeps whatever suggestions it already has.
func (e *Enricher) Enqueue(recordID string) bool {
	select {
	case e.queue <- recordID:
		return true
	default:
		return false
	}
}

// Start begins consuming the queue
func (e *Enricher) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run()
	e.logger.Info("enricher started")
}

// Stop drains in-flight work and shuts the worker down
func (e *Enricher) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	close(e.stopCh)
	e.wg.Wait()
	e.logger.Info("enricher stopped")
}

func (e *Enricher) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case recordID := <-e.queue:
			e.process(recordID)
		}
	}
}

func (e *Enricher) process(recordID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := e.store.GetByID(ctx, recordID)
	if err != nil {
		e.logger.Error("enricher failed to load problem",
			slog.String("record_id", recordID),
			slog.String("error", err.Error()))
		return
	}
	if p == nil {
		// Deleted before we got to it
		return
	}

	start := time.Now()
	suggestions, severity := e.suggester.Suggest(ctx, p)
	middleware.RecordEnrichment(service.IsFallback(suggestions), time.Since(start))

	if err := e.store.SetEnrichment(ctx, recordID, suggestions, severity); err != nil {
		e.logger.Error("enricher failed to save suggestions",
			slog.String("record_id", recordID),
			slog.String("error", err.Error()))
		return
	}

	e.logger.Info("problem enriched",
		slog.String("problem_id", p.ProblemID),
		slog.String("severity", severity))
}
