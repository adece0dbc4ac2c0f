// Package model contains domain models passed between layers.
package model

import (
	"time"
)

// Format tags a raw record's encoding.
type Format string

// Supported source formats.
const (
	FormatCSV  Format = "csv"  // delimited text
	FormatXML  Format = "xml"  // markup
	FormatJSON Format = "json" // structured text, vendor API payloads
	FormatYAML Format = "yaml" // structured text
)

// Formats lists every supported format tag.
var Formats = []Format{FormatCSV, FormatXML, FormatJSON, FormatYAML}

// Valid reports whether f is a supported format tag.
func (f Format) Valid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// RawRecord is one vendor record as received, before normalization.
type RawRecord struct {
	Source string // feed name, e.g. "vendor-a" or "upload"
	Format Format
	Data   []byte
	// Fields optionally maps canonical field names to gjson paths (json only).
	Fields map[string]string
}

// Record statuses for VendorRecord.
const (
	RecordAccepted    = "accepted"
	RecordRejected    = "rejected"
	RecordDuplicate   = "duplicate"
	RecordQuarantined = "quarantined"
)

// VendorRecord is the immutable audit copy of an ingested raw record.
type VendorRecord struct {
	ID         string
	Source     string
	Format     Format
	Raw        []byte
	BatchID    string
	Sequence   int64
	IngestedAt time.Time
	Status     string
	Reason     string
}

// CanonicalRecord is the normalized, format-independent shape of one
// maintenance event report.
type CanonicalRecord struct {
	RecordID    string     `json:"record_id" validate:"required"`
	Source      string     `json:"source" validate:"required"`
	ShipID      string     `json:"ship_id" validate:"required"`
	ShipName    string     `json:"ship_name,omitempty"`
	ShipClass   string     `json:"ship_class,omitempty"`
	EventType   string     `json:"event_type" validate:"required"`
	OccurredAt  time.Time  `json:"occurred_at" validate:"required"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	WorkOrder   string     `json:"work_order,omitempty"`
	Status      string     `json:"status,omitempty"`
	Description string     `json:"description,omitempty"`
	Parts       []string   `json:"parts,omitempty"`

	// Set at admission; higher means ingested later.
	Sequence   int64     `json:"sequence"`
	IngestedAt time.Time `json:"ingested_at"`
}

// MaintenanceEvent is the authoritative merged view of one real-world event.
type MaintenanceEvent struct {
	ID              string
	ShipID          string
	EventType       string
	OccurredAt      time.Time
	StartedAt       *time.Time
	DueAt           *time.Time
	WorkOrder       string
	Status          string
	Description     string
	Parts           []string
	SourceRecordIDs []string
	// LastSequence and LastRecordID identify the most recently ingested contributor.
	LastSequence int64
	LastRecordID string
	Revision     int
	UpdatedAt    time.Time
}

// Ship identifies a vessel. ID is immutable once assigned.
type Ship struct {
	ID    string
	Name  string
	Class string
}

// PartDependency is a directed edge: PartID depends on DependsOn.
type PartDependency struct {
	PartID    string
	DependsOn string
}

// FieldConflict records a discrepancy resolved by the merge policy.
type FieldConflict struct {
	EventID           string
	Field             string
	KeptValue         string
	DiscardedValue    string
	KeptRecordID      string
	DiscardedRecordID string
	LoggedAt          time.Time
}

// FeedMark is the latest OccurredAt accepted from one source about one ship.
type FeedMark struct {
	Source     string
	ShipID     string
	OccurredAt time.Time
}

// QuarantineEntry is a record held for manual review.
type QuarantineEntry struct {
	RecordID         string
	ShipID           string
	EventType        string
	Reason           string
	CandidateEventID string
	QuarantinedAt    time.Time
	Resolved         bool
}

// ResolveAction is an operator decision on a quarantined record.
type ResolveAction string

const (
	// ResolveDiscard closes the entry and leaves the record out of every event.
	ResolveDiscard ResolveAction = "discard"
	// ResolveApply merges the record into its candidate event; the event
	// keeps its own work order.
	ResolveApply ResolveAction = "apply"
)

// Window is a closed-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Days returns the window length in whole days.
func (w Window) Days() float64 {
	return w.End.Sub(w.Start).Hours() / 24
}

// ComplianceScore is a derived, never-mutated readiness metric.
type ComplianceScore struct {
	ID             string
	ShipID         string
	Window         Window
	FormulaVersion string
	Score          float64
	OverduePenalty float64
	MTTRHours      float64
	MTTRPenalty    float64
	EventCount     int
	InputDigest    string
	ComputedAt     time.Time
	Supersedes     string
}

// Issue severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ComplianceIssue is one overdue service requirement.
type ComplianceIssue struct {
	ShipID      string
	EventType   string
	DueAt       time.Time
	DaysOverdue float64
	Severity    string
}
