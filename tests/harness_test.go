package tests

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/civicfix/api/internal/config"
	"github.com/civicfix/api/internal/handler"
	"github.com/civicfix/api/internal/jobs"
	"github.com/civicfix/api/internal/middleware"
	"github.com/civicfix/api/internal/model"
	"github.com/civicfix/api/internal/repository"
	"github.com/civicfix/api/internal/service"
	"github.com/civicfix/api/internal/testing/fixtures"
	"github.com/civicfix/api/internal/testing/helpers"
	"github.com/civicfix/api/internal/testing/testdb"
)

// testAPI wires the full HTTP stack over an isolated test database, mirroring
// the production composition in cmd/server.
type testAPI struct {
	handler  http.Handler
	tdb      *testdb.TestDB
	fixtures *fixtures.Factory
	auth     *service.AuthService
	problems *service.ProblemService
	enricher *jobs.Enricher
}

// stubSuggester keeps enrichment deterministic and offline in the e2e suite
type stubSuggester struct {
	suggestions string
	severity    string
}

func (s stubSuggester) Suggest(ctx context.Context, p *model.Problem) (string, string) {
	return s.suggestions, s.severity
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	tdb := testdb.New(t)
	t.Cleanup(tdb.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repository.NewUserRepository(tdb.DB)
	problemRepo := repository.NewProblemRepository(tdb.DB)

	sessions := service.NewMemorySessionStore(time.Hour)
	authService := service.NewAuthService(service.AuthServiceConfig{
		UserRepo: userRepo,
		Sessions: sessions,
	})

	enricher := jobs.NewEnricher(jobs.EnricherConfig{
		Store:     problemRepo,
		Suggester: stubSuggester{suggestions: "Stubbed analysis", severity: model.SeverityMedium},
		Logger:    logger,
	})
	enricher.Start()
	t.Cleanup(enricher.Stop)

	problemService := service.NewProblemService(service.ProblemServiceConfig{
		Repo:   problemRepo,
		Queue:  enricher,
		Logger: logger,
	})

	sessionCfg := config.SessionConfig{
		CookieName: helpers.SessionCookieName,
		TTL:        time.Hour,
	}

	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
		AuthService: authService,
		Session:     sessionCfg,
		Logger:      logger,
	})
	problemHandler := handler.NewProblemHandler(handler.ProblemHandlerConfig{
		ProblemService: problemService,
		Upload: config.UploadConfig{
			Dir:          t.TempDir(),
			MaxSizeBytes: 1 << 20,
		},
		Logger: logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)

	authMiddleware := middleware.Auth(authService, sessionCfg.CookieName)
	mux.Handle("GET /api/auth/user", authMiddleware(http.HandlerFunc(authHandler.CurrentUser)))

	mux.HandleFunc("GET /api/problems", problemHandler.List)
	mux.Handle("POST /api/problems", authMiddleware(http.HandlerFunc(problemHandler.Submit)))
	mux.HandleFunc("GET /api/problems/{id}", problemHandler.Get)
	mux.HandleFunc("POST /api/problems/{id}/vote", problemHandler.Vote)
	mux.Handle("POST /api/problems/{id}/comments", authMiddleware(http.HandlerFunc(problemHandler.AddComment)))
	mux.HandleFunc("GET /api/problems/{id}/comments", problemHandler.GetComments)
	mux.Handle("POST /api/problems/{id}/solutions", authMiddleware(http.HandlerFunc(problemHandler.AddSolution)))
	mux.Handle("PATCH /api/problems/{id}/status", authMiddleware(http.HandlerFunc(problemHandler.UpdateStatus)))
	mux.Handle("PATCH /api/problems/{id}", authMiddleware(http.HandlerFunc(problemHandler.Edit)))
	mux.Handle("DELETE /api/problems/{id}", authMiddleware(http.HandlerFunc(problemHandler.Delete)))
	mux.Handle("DELETE /api/problems/delete/most-recent", authMiddleware(http.HandlerFunc(problemHandler.DeleteMostRecent)))
	mux.HandleFunc("DELETE /api/problems/delete/by-id/{problemId}", problemHandler.DeleteByProblemID)
	mux.HandleFunc("DELETE /api/problems/delete/multiple", problemHandler.DeleteMany)

	return &testAPI{
		handler:  mux,
		tdb:      tdb,
		fixtures: fixtures.New(tdb.DB),
		auth:     authService,
		problems: problemService,
		enricher: enricher,
	}
}

// do serves a request through the full router and returns the recorder
func (api *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)
	return rr
}

// registerUser creates an account through the service layer and returns the
// user with a valid session token.
func (api *testAPI) registerUser(t *testing.T, username string) (*model.User, string) {
	t.Helper()
	result, err := api.auth.Register(context.Background(), service.RegisterRequest{
		Username: username,
		Email:    username + "@test.local",
		Password: "testpass123",
	})
	if err != nil {
		t.Fatalf("harness: failed to register user: %v", err)
	}
	return result.User, result.Token
}
