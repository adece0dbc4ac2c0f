package repository

import (
	"time"

	"github.com/okian/fleetready/internal/domain/model"
)

type ShipModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null;default:''"`
	Class     string `gorm:"not null;default:''"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ShipModel) TableName() string { return "ships" }

type VendorRecordModel struct {
	ID         string `gorm:"primaryKey"`
	Source     string `gorm:"not null"`
	Format     string `gorm:"not null"`
	Raw        []byte `gorm:"not null"`
	BatchID    string `gorm:"not null;index"`
	Sequence   int64  `gorm:"not null;index"`
	IngestedAt time.Time
	Status     string `gorm:"not null"`
	Reason     string `gorm:"not null;default:''"`
}

func (VendorRecordModel) TableName() string { return "vendor_records" }

type EventModel struct {
	ID           string    `gorm:"primaryKey"`
	ShipID       string    `gorm:"not null;index:idx_events_group"`
	EventType    string    `gorm:"not null;index:idx_events_group"`
	OccurredAt   time.Time `gorm:"not null;index:idx_events_group"`
	StartedAt    *time.Time
	DueAt        *time.Time
	WorkOrder    string   `gorm:"not null;default:''"`
	Status       string   `gorm:"not null;default:''"`
	Description  string   `gorm:"not null;default:''"`
	Parts        []string `gorm:"serializer:json;not null"`
	LastSequence int64    `gorm:"not null"`
	LastRecordID string   `gorm:"not null"`
	Revision     int      `gorm:"not null;default:1"`
	UpdatedAt    time.Time
}

func (EventModel) TableName() string { return "maintenance_events" }

type EventSourceModel struct {
	EventID  string `gorm:"primaryKey"`
	RecordID string `gorm:"primaryKey"`
}

func (EventSourceModel) TableName() string { return "event_sources" }

type ConflictModel struct {
	ID                uint   `gorm:"primaryKey"`
	BatchID           string `gorm:"not null"`
	EventID           string `gorm:"not null;index"`
	Field             string `gorm:"not null"`
	KeptValue         string `gorm:"not null"`
	DiscardedValue    string `gorm:"not null"`
	KeptRecordID      string `gorm:"not null"`
	DiscardedRecordID string `gorm:"not null"`
	LoggedAt          time.Time
}

func (ConflictModel) TableName() string { return "merge_conflicts" }

type QuarantineModel struct {
	RecordID         string `gorm:"primaryKey"`
	ShipID           string `gorm:"not null"`
	EventType        string `gorm:"not null"`
	Reason           string `gorm:"not null"`
	CandidateEventID string `gorm:"not null;default:''"`
	QuarantinedAt    time.Time
	Resolved         bool `gorm:"not null;default:false"`
}

func (QuarantineModel) TableName() string { return "quarantine" }

type FeedMarkModel struct {
	Source     string    `gorm:"primaryKey"`
	ShipID     string    `gorm:"primaryKey"`
	OccurredAt time.Time `gorm:"not null"`
}

func (FeedMarkModel) TableName() string { return "feed_marks" }

type DependencyModel struct {
	PartID    string `gorm:"primaryKey"`
	DependsOn string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (DependencyModel) TableName() string { return "part_dependencies" }

type ScoreModel struct {
	ID             string `gorm:"primaryKey"`
	ShipID         string `gorm:"not null;index"`
	WindowStart    time.Time
	WindowEnd      time.Time
	FormulaVersion string  `gorm:"not null"`
	Score          float64 `gorm:"not null"`
	OverduePenalty float64 `gorm:"not null"`
	MTTRHours      float64 `gorm:"column:mttr_hours;not null"`
	MTTRPenalty    float64 `gorm:"column:mttr_penalty;not null"`
	EventCount     int     `gorm:"not null"`
	InputDigest    string  `gorm:"not null"`
	ComputedAt     time.Time
	Supersedes     *string `gorm:"uniqueIndex"`
}

func (ScoreModel) TableName() string { return "compliance_scores" }

type IssueModel struct {
	ID          uint   `gorm:"primaryKey"`
	ScoreID     string `gorm:"not null;index"`
	ShipID      string `gorm:"not null"`
	EventType   string `gorm:"not null"`
	DueAt       time.Time
	DaysOverdue float64 `gorm:"not null"`
	Severity    string  `gorm:"not null"`
}

func (IssueModel) TableName() string { return "compliance_issues" }

func toShip(m ShipModel) model.Ship {
	return model.Ship{ID: m.ID, Name: m.Name, Class: m.Class}
}

func fromVendorRecord(r model.VendorRecord) VendorRecordModel {
	return VendorRecordModel{
		ID:         r.ID,
		Source:     r.Source,
		Format:     string(r.Format),
		Raw:        r.Raw,
		BatchID:    r.BatchID,
		Sequence:   r.Sequence,
		IngestedAt: r.IngestedAt.UTC(),
		Status:     r.Status,
		Reason:     r.Reason,
	}
}

func toVendorRecord(m VendorRecordModel) model.VendorRecord {
	return model.VendorRecord{
		ID:         m.ID,
		Source:     m.Source,
		Format:     model.Format(m.Format),
		Raw:        m.Raw,
		BatchID:    m.BatchID,
		Sequence:   m.Sequence,
		IngestedAt: m.IngestedAt.UTC(),
		Status:     m.Status,
		Reason:     m.Reason,
	}
}

func fromEvent(ev model.MaintenanceEvent) EventModel {
	parts := ev.Parts
	if parts == nil {
		parts = []string{}
	}
	return EventModel{
		ID:           ev.ID,
		ShipID:       ev.ShipID,
		EventType:    ev.EventType,
		OccurredAt:   ev.OccurredAt.UTC(),
		StartedAt:    utcPtr(ev.StartedAt),
		DueAt:        utcPtr(ev.DueAt),
		WorkOrder:    ev.WorkOrder,
		Status:       ev.Status,
		Description:  ev.Description,
		Parts:        parts,
		LastSequence: ev.LastSequence,
		LastRecordID: ev.LastRecordID,
		Revision:     ev.Revision,
		UpdatedAt:    ev.UpdatedAt.UTC(),
	}
}

func toEvent(m EventModel, sources []string) model.MaintenanceEvent {
	var parts []string
	if len(m.Parts) > 0 {
		parts = m.Parts
	}
	return model.MaintenanceEvent{
		ID:              m.ID,
		ShipID:          m.ShipID,
		EventType:       m.EventType,
		OccurredAt:      m.OccurredAt.UTC(),
		StartedAt:       utcPtr(m.StartedAt),
		DueAt:           utcPtr(m.DueAt),
		WorkOrder:       m.WorkOrder,
		Status:          m.Status,
		Description:     m.Description,
		Parts:           parts,
		SourceRecordIDs: sources,
		LastSequence:    m.LastSequence,
		LastRecordID:    m.LastRecordID,
		Revision:        m.Revision,
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

func fromScore(s model.ComplianceScore) ScoreModel {
	m := ScoreModel{
		ID:             s.ID,
		ShipID:         s.ShipID,
		WindowStart:    s.Window.Start.UTC(),
		WindowEnd:      s.Window.End.UTC(),
		FormulaVersion: s.FormulaVersion,
		Score:          s.Score,
		OverduePenalty: s.OverduePenalty,
		MTTRHours:      s.MTTRHours,
		MTTRPenalty:    s.MTTRPenalty,
		EventCount:     s.EventCount,
		InputDigest:    s.InputDigest,
		ComputedAt:     s.ComputedAt.UTC(),
	}
	if s.Supersedes != "" {
		prev := s.Supersedes
		m.Supersedes = &prev
	}
	return m
}

func toScore(m ScoreModel) model.ComplianceScore {
	s := model.ComplianceScore{
		ID:             m.ID,
		ShipID:         m.ShipID,
		Window:         model.Window{Start: m.WindowStart.UTC(), End: m.WindowEnd.UTC()},
		FormulaVersion: m.FormulaVersion,
		Score:          m.Score,
		OverduePenalty: m.OverduePenalty,
		MTTRHours:      m.MTTRHours,
		MTTRPenalty:    m.MTTRPenalty,
		EventCount:     m.EventCount,
		InputDigest:    m.InputDigest,
		ComputedAt:     m.ComputedAt.UTC(),
	}
	if m.Supersedes != nil {
		s.Supersedes = *m.Supersedes
	}
	return s
}

func toIssue(m IssueModel) model.ComplianceIssue {
	return model.ComplianceIssue{
		ShipID:      m.ShipID,
		EventType:   m.EventType,
		DueAt:       m.DueAt.UTC(),
		DaysOverdue: m.DaysOverdue,
		Severity:    m.Severity,
	}
}

func toQuarantine(m QuarantineModel) model.QuarantineEntry {
	return model.QuarantineEntry{
		RecordID:         m.RecordID,
		ShipID:           m.ShipID,
		EventType:        m.EventType,
		Reason:           m.Reason,
		CandidateEventID: m.CandidateEventID,
		QuarantinedAt:    m.QuarantinedAt.UTC(),
		Resolved:         m.Resolved,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
