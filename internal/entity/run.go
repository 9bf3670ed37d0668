package entity

import (
	"time"
)

// Counters tally document outcomes of a run.
type Counters struct {
	Total    int `json:"total"`
	Success  int `json:"success"`
	Fallback int `json:"fallback"`
	Failed   int `json:"failed"`
}

// Run is one batch over the inbox. EndedAt is set exactly once.
type Run struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	DryRun    bool       `json:"dry_run"`
	Counters
}
