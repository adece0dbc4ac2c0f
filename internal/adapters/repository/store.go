package repository

import (
	"context"
	"time"

	"github.com/okian/fleetready/internal/domain/model"
)

// GroupRange selects the stored events of one identity group within a time range.
type GroupRange struct {
	ShipID    string
	EventType string
	From      time.Time
	To        time.Time
}

// BatchWrite is everything one ingested batch persists. ApplyBatch writes it
// in a single transaction.
type BatchWrite struct {
	BatchID    string
	Records    []model.VendorRecord
	Ships      []model.Ship
	Events     []model.MaintenanceEvent
	Conflicts  []model.FieldConflict
	Quarantine []model.QuarantineEntry
	// Marks advance the per-feed high-water marks; a mark never moves back.
	Marks []model.FeedMark
	// Resolved closes open quarantine entries and marks their VendorRecords
	// accepted. An entry that is missing or already closed aborts the write.
	Resolved []string
}

// Store is the canonical relational store.
type Store interface {
	// SeenRecords returns the subset of ids already stored as VendorRecords.
	SeenRecords(ctx context.Context, ids []string) (map[string]bool, error)
	// MaxSequence returns the highest VendorRecord sequence, or 0.
	MaxSequence(ctx context.Context) (int64, error)
	EventsForGroups(ctx context.Context, groups []GroupRange) ([]model.MaintenanceEvent, error)
	// FeedMarks returns the stored marks of every feed reporting on shipIDs.
	FeedMarks(ctx context.Context, shipIDs []string) ([]model.FeedMark, error)
	// ApplyBatch persists w atomically. On failure nothing is written and the
	// error is a *PersistenceError.
	ApplyBatch(ctx context.Context, w BatchWrite) error

	Ship(ctx context.Context, id string) (model.Ship, error)
	ShipIDs(ctx context.Context) ([]string, error)
	CountShips(ctx context.Context) (int, error)
	CountEvents(ctx context.Context) (int64, error)
	// EventsForShip returns every event of ship that occurred before until.
	EventsForShip(ctx context.Context, shipID string, until time.Time) ([]model.MaintenanceEvent, error)
	RecentEvents(ctx context.Context, shipID string, limit int) ([]model.MaintenanceEvent, error)
	Conflicts(ctx context.Context, eventID string) ([]model.FieldConflict, error)
	VendorRecords(ctx context.Context, batchID string) ([]model.VendorRecord, error)
	VendorRecord(ctx context.Context, id string) (model.VendorRecord, error)
	Event(ctx context.Context, id string) (model.MaintenanceEvent, error)

	// SaveScore stores score unless its digest matches the latest score of
	// the same ship, window and formula. It returns the stored score and
	// whether a new row was inserted.
	SaveScore(ctx context.Context, score model.ComplianceScore, issues []model.ComplianceIssue) (model.ComplianceScore, bool, error)
	LatestScore(ctx context.Context, shipID string) (model.ComplianceScore, error)
	LatestScores(ctx context.Context) ([]model.ComplianceScore, error)
	ScoreHistory(ctx context.Context, shipID string) ([]model.ComplianceScore, error)
	// OpenIssues returns the issues of the latest scores; an empty shipID means the whole fleet.
	OpenIssues(ctx context.Context, shipID string) ([]model.ComplianceIssue, error)

	Quarantine(ctx context.Context) ([]model.QuarantineEntry, error)
	// QuarantineEntry returns the entry of recordID, open or resolved.
	QuarantineEntry(ctx context.Context, recordID string) (model.QuarantineEntry, error)
	ResolveQuarantine(ctx context.Context, recordID string) error

	AddDependency(ctx context.Context, dep model.PartDependency) error
	// AddDependencyChecked inserts dep only if check accepts every stored
	// edge read in the same transaction. check errors are returned as is.
	AddDependencyChecked(ctx context.Context, dep model.PartDependency, check func([]model.PartDependency) error) error
	Dependencies(ctx context.Context) ([]model.PartDependency, error)

	Close() error
}
