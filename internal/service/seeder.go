package service

import (
	"context"

	"github.com/civicfix/api/internal/model"
)

// SeederService populates the store with sample problems for development.
type SeederService struct {
	repo ProblemRepository
}

// NewSeederService creates a new seeder service
func NewSeederService(repo ProblemRepository) *SeederService {
	return &SeederService{repo: repo}
}

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

var sampleProblems = []model.Problem{
	{
		ProblemID:   "PROB-LIGHT001",
		Title:       "Broken Street Light",
		Description: "Street light at the main intersection has been non-functional for several days, creating safety concerns for pedestrians and drivers during night time.",
		Category:    "INFRASTRUCTURE",
		Status:      model.StatusPending,
		Severity:    model.SeverityMedium,
		Votes:       15,
		Image:       strPtr("/uploads/streetlight.jpg"),
		Location: &model.Location{
			Latitude:  floatPtr(28.6139),
			Longitude: floatPtr(77.2090),
			Address:   "Main Street Intersection",
		},
	},
	{
		ProblemID:   "PROB-WATER001",
		Title:       "Water Pipeline Leakage",
		Description: "Major water pipeline leakage causing water wastage and creating puddles on the road. Needs immediate attention to prevent water loss and road damage.",
		Category:    "UTILITIES",
		Status:      model.StatusInProgress,
		Severity:    model.SeverityHigh,
		Votes:       28,
		Image:       strPtr("/uploads/pipeline.jpg"),
		Location: &model.Location{
			Latitude:  floatPtr(28.6129),
			Longitude: floatPtr(77.2295),
			Address:   "Park Road Junction",
		},
	},
	{
		ProblemID:   "PROB-GARB001",
		Title:       "Garbage Dump Overflow",
		Description: "Community garbage dump is overflowing, causing hygiene issues and foul smell in the area. Regular cleanup needed.",
		Category:    "ENVIRONMENT",
		Status:      model.StatusPending,
		Severity:    model.SeverityHigh,
		Votes:       22,
		Image:       strPtr("/uploads/garbage.jpg"),
		Location: &model.Location{
			Latitude:  floatPtr(28.6219),
			Longitude: floatPtr(77.2190),
			Address:   "Community Park Area",
		},
	},
}

// SeedProblems inserts the sample problems when the store is empty. It
// returns the number of records created.
func (s *SeederService) SeedProblems(ctx context.Context) (int, error) {
	existing, err := s.repo.List(ctx, "")
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for i := range sampleProblems {
		p := sampleProblems[i]
		if err := s.repo.Create(ctx, &p); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
