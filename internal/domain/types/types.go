// Package types contains read shapes shared by the board, the service and
// the query surface.
package types

import "time"

// Entry is one ship on the readiness board. Rank 1 is the least ready ship.
type Entry struct {
	Rank       int       `json:"rank"`
	ShipID     string    `json:"ship_id"`
	Score      float64   `json:"score"`
	ComputedAt time.Time `json:"computed_at"`
}

// ShipStatus answers GET /status.
type ShipStatus struct {
	ShipID       string      `json:"ship_id"`
	Name         string      `json:"name,omitempty"`
	Class        string      `json:"class,omitempty"`
	Rank         int         `json:"rank,omitempty"`
	Score        *Score      `json:"score,omitempty"`
	RecentEvents []EventView `json:"recent_events"`
	OpenIssues   []IssueView `json:"open_issues"`
}

// Score is the public view of a ComplianceScore.
type Score struct {
	ID             string    `json:"id"`
	Value          float64   `json:"value"`
	FormulaVersion string    `json:"formula_version"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	OverduePenalty float64   `json:"overdue_penalty"`
	MTTRHours      float64   `json:"mttr_hours"`
	MTTRPenalty    float64   `json:"mttr_penalty"`
	EventCount     int       `json:"event_count"`
	InputDigest    string    `json:"input_digest"`
	ComputedAt     time.Time `json:"computed_at"`
	Supersedes     string    `json:"supersedes,omitempty"`
}

// EventView is the public view of a MaintenanceEvent.
type EventView struct {
	ID         string     `json:"id"`
	EventType  string     `json:"event_type"`
	OccurredAt time.Time  `json:"occurred_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	WorkOrder  string     `json:"work_order,omitempty"`
	Status     string     `json:"status,omitempty"`
	Parts      []string   `json:"parts,omitempty"`
	Sources    int        `json:"sources"`
	Revision   int        `json:"revision"`
}

// IssueView is one open compliance issue.
type IssueView struct {
	ShipID      string    `json:"ship_id"`
	EventType   string    `json:"event_type"`
	DueAt       time.Time `json:"due_at"`
	DaysOverdue float64   `json:"days_overdue"`
	Severity    string    `json:"severity"`
}

// FleetSummary answers GET /fleet/summary.
type FleetSummary struct {
	Ships       int       `json:"ships"`
	ScoredShips int       `json:"scored_ships"`
	Events      int64     `json:"events"`
	MeanScore   float64   `json:"mean_score"`
	OpenIssues  int       `json:"open_issues"`
	Ranking     []Entry   `json:"ranking"`
	GeneratedAt time.Time `json:"generated_at"`
}
