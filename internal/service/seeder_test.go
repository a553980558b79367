package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedProblems_EmptyStore(t *testing.T) {
	t.Parallel()
	repo := newMockProblemRepo()
	seeder := NewSeederService(repo)

	created, err := seeder.SeedProblems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	problems, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, problems, 3)

	ids := make(map[string]bool)
	for _, p := range problems {
		ids[p.ProblemID] = true
		assert.NotNil(t, p.Location)
		assert.NotNil(t, p.Image)
		assert.Positive(t, p.Votes)
	}
	assert.True(t, ids["PROB-LIGHT001"])
	assert.True(t, ids["PROB-WATER001"])
	assert.True(t, ids["PROB-GARB001"])
}

func TestSeedProblems_SkipsNonEmptyStore(t *testing.T) {
	t.Parallel()
	repo := newMockProblemRepo()
	seeder := NewSeederService(repo)

	svc := NewProblemService(ProblemServiceConfig{
		Repo:   repo,
		Queue:  &mockQueue{},
		Logger: testLogger(),
	})
	_, err := svc.Submit(context.Background(), "user:x", SubmitRequest{Title: "existing"})
	require.NoError(t, err)

	created, err := seeder.SeedProblems(context.Background())
	require.NoError(t, err)
	assert.Zero(t, created, "seeding must not touch a populated store")
}

func TestSeedProblems_Idempotent(t *testing.T) {
	t.Parallel()
	repo := newMockProblemRepo()
	seeder := NewSeederService(repo)

	_, err := seeder.SeedProblems(context.Background())
	require.NoError(t, err)

	created, err := seeder.SeedProblems(context.Background())
	require.NoError(t, err)
	assert.Zero(t, created)
}
