package model

import "time"

// ProblemStatus represents the lifecycle state of a reported problem
type ProblemStatus string

const (
	StatusPending    ProblemStatus = "Pending"
	StatusInProgress ProblemStatus = "In Progress"
	StatusSolved     ProblemStatus = "Solved"
)

// ValidStatus reports whether s is one of the accepted problem statuses.
func ValidStatus(s string) bool {
	switch ProblemStatus(s) {
	case StatusPending, StatusInProgress, StatusSolved:
		return true
	}
	return false
}

// Severity labels derived from enrichment text
const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// Location is an optional geolocation attached to a problem
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
}

// Comment is an append-only entry on a problem. Username is a snapshot of the
// author's display name at write time; later account changes do not rewrite it.
type Comment struct {
	Text      string    `json:"text"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Solution is a proposed fix appended to a problem
type Solution struct {
	Description string    `json:"description"`
	UserID      string    `json:"userId"`
	Votes       int       `json:"votes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Problem represents a reported community issue.
//
// ID is the store-assigned record identifier; ProblemID is the separate
// human-facing identifier (PROB-XXXXXXXXX) used for user-facing lookups and
// deletion. AISuggestions starts empty and is attached asynchronously by the
// background enricher. Votes has no floor and may go negative.
type Problem struct {
	ID            string        `json:"id"`
	ProblemID     string        `json:"problemId"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Category      string        `json:"category"`
	Status        ProblemStatus `json:"status"`
	Severity      string        `json:"severity"`
	Votes         int           `json:"votes"`
	Location      *Location     `json:"location,omitempty"`
	Image         *string       `json:"image"`
	AISuggestions *string       `json:"aiSuggestions"`
	UserID        string        `json:"userId"`
	Username      string        `json:"username,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	Comments      []Comment     `json:"comments"`
	Solutions     []Solution    `json:"solutions"`
}

// ApplyDisplayDefaults fills the presentation defaults used by list and get
// responses for records persisted with missing fields.
func (p *Problem) ApplyDisplayDefaults() {
	if p.Title == "" {
		p.Title = "Untitled Problem"
	}
	if p.Description == "" {
		p.Description = "No description provided"
	}
	if p.Category == "" {
		p.Category = "Uncategorized"
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.Severity == "" {
		p.Severity = SeverityMedium
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	if p.Solutions == nil {
		p.Solutions = []Solution{}
	}
}
