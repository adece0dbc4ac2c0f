package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

const (
	// chunkSize bounds IN lists and multi-row inserts.
	chunkSize = 500

	headScores = "NOT EXISTS (SELECT 1 FROM compliance_scores n WHERE n.supersedes = cs.id)"
)

// SQLStore implements Store with gorm over SQLite or PostgreSQL.
type SQLStore struct {
	db  *gorm.DB
	log logger.Logger
	now func() time.Time
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps a migrated database handle.
func NewSQLStore(db *gorm.DB, opts ...StoreOption) *SQLStore {
	s := &SQLStore{db: db, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func observe(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
}

func (s *SQLStore) SeenRecords(ctx context.Context, ids []string) (map[string]bool, error) {
	defer observe(time.Now())
	seen := make(map[string]bool)
	for start := 0; start < len(ids); start += chunkSize {
		end := min(start+chunkSize, len(ids))
		var found []string
		if err := s.db.WithContext(ctx).Model(&VendorRecordModel{}).
			Where("id IN ?", ids[start:end]).Pluck("id", &found).Error; err != nil {
			return nil, persistErr("seen records", err)
		}
		for _, id := range found {
			seen[id] = true
		}
	}
	return seen, nil
}

func (s *SQLStore) MaxSequence(ctx context.Context) (int64, error) {
	var seq int64
	row := s.db.WithContext(ctx).Model(&VendorRecordModel{}).Select("COALESCE(MAX(sequence), 0)").Row()
	if err := row.Scan(&seq); err != nil {
		return 0, persistErr("max sequence", err)
	}
	return seq, nil
}

func (s *SQLStore) EventsForGroups(ctx context.Context, groups []GroupRange) ([]model.MaintenanceEvent, error) {
	defer observe(time.Now())
	db := s.db.WithContext(ctx)
	var rows []EventModel
	for _, g := range groups {
		var part []EventModel
		err := db.Where("ship_id = ? AND event_type = ? AND occurred_at >= ? AND occurred_at <= ?",
			g.ShipID, g.EventType, g.From.UTC(), g.To.UTC()).
			Order("occurred_at, id").Find(&part).Error
		if err != nil {
			return nil, persistErr("events for groups", err)
		}
		rows = append(rows, part...)
	}
	return s.withSources(db, rows)
}

// withSources attaches contributing record IDs to rows.
func (s *SQLStore) withSources(db *gorm.DB, rows []EventModel) ([]model.MaintenanceEvent, error) {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	sources := make(map[string][]string, len(rows))
	for start := 0; start < len(ids); start += chunkSize {
		end := min(start+chunkSize, len(ids))
		var links []EventSourceModel
		if err := db.Where("event_id IN ?", ids[start:end]).Find(&links).Error; err != nil {
			return nil, persistErr("event sources", err)
		}
		for _, l := range links {
			sources[l.EventID] = append(sources[l.EventID], l.RecordID)
		}
	}
	out := make([]model.MaintenanceEvent, 0, len(rows))
	for _, r := range rows {
		src := sources[r.ID]
		sort.Strings(src)
		out = append(out, toEvent(r, src))
	}
	return out, nil
}

func (s *SQLStore) ApplyBatch(ctx context.Context, w BatchWrite) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryTxLatency(float64(time.Since(start).Milliseconds()))
	}()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertRecords(tx, w.Records); err != nil {
			return fmt.Errorf("vendor records: %w", err)
		}
		if err := s.upsertShips(tx, w.Ships); err != nil {
			return fmt.Errorf("ships: %w", err)
		}
		if err := upsertEvents(tx, w.Events); err != nil {
			return fmt.Errorf("events: %w", err)
		}
		if err := insertConflicts(tx, w.BatchID, w.Conflicts); err != nil {
			return fmt.Errorf("merge conflicts: %w", err)
		}
		if err := insertQuarantine(tx, w.Quarantine); err != nil {
			return fmt.Errorf("quarantine: %w", err)
		}
		if err := upsertMarks(tx, w.Marks); err != nil {
			return fmt.Errorf("feed marks: %w", err)
		}
		if err := resolveEntries(tx, w.Resolved); err != nil {
			return fmt.Errorf("resolve quarantine: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordPersistenceError()
		s.log.Error(ctx, "batch transaction rolled back",
			logger.String("batch_id", w.BatchID),
			logger.Int("records", len(w.Records)),
			logger.Error(err))
		return persistErr("apply batch "+w.BatchID, err)
	}
	s.log.Debug(ctx, "batch persisted",
		logger.String("batch_id", w.BatchID),
		logger.Int("records", len(w.Records)),
		logger.Int("events", len(w.Events)),
		logger.Duration("took", time.Since(start)))
	return nil
}

// insertRecords never overwrites: VendorRecords are immutable.
func insertRecords(tx *gorm.DB, records []model.VendorRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]VendorRecordModel, 0, len(records))
	for _, r := range records {
		rows = append(rows, fromVendorRecord(r))
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, chunkSize).Error
}

// upsertShips creates unknown ships and fills or updates name and class of
// known ones. IDs never change.
func (s *SQLStore) upsertShips(tx *gorm.DB, ships []model.Ship) error {
	if len(ships) == 0 {
		return nil
	}
	incoming := make(map[string]model.Ship, len(ships))
	ids := make([]string, 0, len(ships))
	for _, sh := range ships {
		cur, ok := incoming[sh.ID]
		if !ok {
			ids = append(ids, sh.ID)
		}
		if sh.Name != "" {
			cur.Name = sh.Name
		}
		if sh.Class != "" {
			cur.Class = sh.Class
		}
		cur.ID = sh.ID
		incoming[sh.ID] = cur
	}
	sort.Strings(ids)

	existing := make(map[string]ShipModel, len(ids))
	for start := 0; start < len(ids); start += chunkSize {
		end := min(start+chunkSize, len(ids))
		var rows []ShipModel
		if err := tx.Where("id IN ?", ids[start:end]).Find(&rows).Error; err != nil {
			return err
		}
		for _, r := range rows {
			existing[r.ID] = r
		}
	}

	now := s.now().UTC()
	var created []ShipModel
	for _, id := range ids {
		sh := incoming[id]
		cur, ok := existing[id]
		if !ok {
			created = append(created, ShipModel{ID: id, Name: sh.Name, Class: sh.Class, CreatedAt: now, UpdatedAt: now})
			continue
		}
		updates := make(map[string]any, 3)
		if sh.Name != "" && sh.Name != cur.Name {
			updates["name"] = sh.Name
		}
		if sh.Class != "" && sh.Class != cur.Class {
			updates["class"] = sh.Class
		}
		if len(updates) == 0 {
			continue
		}
		updates["updated_at"] = now
		if err := tx.Model(&ShipModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
	}
	if len(created) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&created, chunkSize).Error
}

func upsertEvents(tx *gorm.DB, events []model.MaintenanceEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]EventModel, 0, len(events))
	var links []EventSourceModel
	for _, ev := range events {
		rows = append(rows, fromEvent(ev))
		for _, rid := range ev.SourceRecordIDs {
			links = append(links, EventSourceModel{EventID: ev.ID, RecordID: rid})
		}
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(&rows, chunkSize).Error
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&links, chunkSize).Error
}

func insertConflicts(tx *gorm.DB, batchID string, conflicts []model.FieldConflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	rows := make([]ConflictModel, 0, len(conflicts))
	for _, c := range conflicts {
		rows = append(rows, ConflictModel{
			BatchID:           batchID,
			EventID:           c.EventID,
			Field:             c.Field,
			KeptValue:         c.KeptValue,
			DiscardedValue:    c.DiscardedValue,
			KeptRecordID:      c.KeptRecordID,
			DiscardedRecordID: c.DiscardedRecordID,
			LoggedAt:          c.LoggedAt.UTC(),
		})
	}
	return tx.CreateInBatches(&rows, chunkSize).Error
}

func insertQuarantine(tx *gorm.DB, entries []model.QuarantineEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]QuarantineModel, 0, len(entries))
	for _, q := range entries {
		rows = append(rows, QuarantineModel{
			RecordID:         q.RecordID,
			ShipID:           q.ShipID,
			EventType:        q.EventType,
			Reason:           q.Reason,
			CandidateEventID: q.CandidateEventID,
			QuarantinedAt:    q.QuarantinedAt.UTC(),
			Resolved:         q.Resolved,
		})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, chunkSize).Error
}

// upsertMarks keeps the later of the stored and incoming OccurredAt.
func upsertMarks(tx *gorm.DB, marks []model.FeedMark) error {
	if len(marks) == 0 {
		return nil
	}
	rows := make([]FeedMarkModel, 0, len(marks))
	for _, m := range marks {
		rows = append(rows, FeedMarkModel{Source: m.Source, ShipID: m.ShipID, OccurredAt: m.OccurredAt.UTC()})
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}, {Name: "ship_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"occurred_at": gorm.Expr("CASE WHEN excluded.occurred_at > feed_marks.occurred_at " +
				"THEN excluded.occurred_at ELSE feed_marks.occurred_at END"),
		}),
	}).CreateInBatches(&rows, chunkSize).Error
}

func resolveEntries(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	res := tx.Model(&QuarantineModel{}).Where("record_id IN ? AND resolved = ?", ids, false).Update("resolved", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(ids)) {
		return fmt.Errorf("open quarantine entries %v: %w", ids, ErrNotFound)
	}
	return tx.Model(&VendorRecordModel{}).Where("id IN ?", ids).
		Updates(map[string]any{"status": model.RecordAccepted, "reason": ""}).Error
}

func (s *SQLStore) FeedMarks(ctx context.Context, shipIDs []string) ([]model.FeedMark, error) {
	defer observe(time.Now())
	var out []model.FeedMark
	for start := 0; start < len(shipIDs); start += chunkSize {
		end := min(start+chunkSize, len(shipIDs))
		var rows []FeedMarkModel
		if err := s.db.WithContext(ctx).Where("ship_id IN ?", shipIDs[start:end]).
			Order("source, ship_id").Find(&rows).Error; err != nil {
			return nil, persistErr("feed marks", err)
		}
		for _, r := range rows {
			out = append(out, model.FeedMark{Source: r.Source, ShipID: r.ShipID, OccurredAt: r.OccurredAt.UTC()})
		}
	}
	return out, nil
}

func (s *SQLStore) Ship(ctx context.Context, id string) (model.Ship, error) {
	defer observe(time.Now())
	var m ShipModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Ship{}, fmt.Errorf("ship %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Ship{}, persistErr("ship", err)
	}
	return toShip(m), nil
}

func (s *SQLStore) ShipIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&ShipModel{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, persistErr("ship ids", err)
	}
	return ids, nil
}

func (s *SQLStore) CountShips(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ShipModel{}).Count(&n).Error; err != nil {
		return 0, persistErr("count ships", err)
	}
	return int(n), nil
}

func (s *SQLStore) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&EventModel{}).Count(&n).Error; err != nil {
		return 0, persistErr("count events", err)
	}
	return n, nil
}

func (s *SQLStore) EventsForShip(ctx context.Context, shipID string, until time.Time) ([]model.MaintenanceEvent, error) {
	defer observe(time.Now())
	db := s.db.WithContext(ctx)
	var rows []EventModel
	err := db.Where("ship_id = ? AND occurred_at < ?", shipID, until.UTC()).
		Order("occurred_at, id").Find(&rows).Error
	if err != nil {
		return nil, persistErr("events for ship", err)
	}
	return s.withSources(db, rows)
}

func (s *SQLStore) RecentEvents(ctx context.Context, shipID string, limit int) ([]model.MaintenanceEvent, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	defer observe(time.Now())
	db := s.db.WithContext(ctx)
	var rows []EventModel
	err := db.Where("ship_id = ?", shipID).Order("occurred_at DESC, id").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, persistErr("recent events", err)
	}
	return s.withSources(db, rows)
}

func (s *SQLStore) Conflicts(ctx context.Context, eventID string) ([]model.FieldConflict, error) {
	var rows []ConflictModel
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&rows).Error; err != nil {
		return nil, persistErr("conflicts", err)
	}
	out := make([]model.FieldConflict, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.FieldConflict{
			EventID:           r.EventID,
			Field:             r.Field,
			KeptValue:         r.KeptValue,
			DiscardedValue:    r.DiscardedValue,
			KeptRecordID:      r.KeptRecordID,
			DiscardedRecordID: r.DiscardedRecordID,
			LoggedAt:          r.LoggedAt.UTC(),
		})
	}
	return out, nil
}

func (s *SQLStore) VendorRecords(ctx context.Context, batchID string) ([]model.VendorRecord, error) {
	var rows []VendorRecordModel
	if err := s.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("sequence").Find(&rows).Error; err != nil {
		return nil, persistErr("vendor records", err)
	}
	out := make([]model.VendorRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, toVendorRecord(r))
	}
	return out, nil
}

func (s *SQLStore) VendorRecord(ctx context.Context, id string) (model.VendorRecord, error) {
	var m VendorRecordModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.VendorRecord{}, fmt.Errorf("vendor record %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.VendorRecord{}, persistErr("vendor record", err)
	}
	return toVendorRecord(m), nil
}

func (s *SQLStore) Event(ctx context.Context, id string) (model.MaintenanceEvent, error) {
	defer observe(time.Now())
	db := s.db.WithContext(ctx)
	var rows []EventModel
	if err := db.Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return model.MaintenanceEvent{}, persistErr("event", err)
	}
	if len(rows) == 0 {
		return model.MaintenanceEvent{}, fmt.Errorf("event %q: %w", id, ErrNotFound)
	}
	events, err := s.withSources(db, rows)
	if err != nil {
		return model.MaintenanceEvent{}, err
	}
	return events[0], nil
}

func (s *SQLStore) SaveScore(ctx context.Context, score model.ComplianceScore, issues []model.ComplianceIssue) (model.ComplianceScore, bool, error) {
	defer observe(time.Now())
	var (
		stored   model.ComplianceScore
		inserted bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var heads []ScoreModel
		if err := tx.Table("compliance_scores AS cs").Where(headScores).
			Where("cs.ship_id = ?", score.ShipID).Find(&heads).Error; err != nil {
			return err
		}
		if head, ok := newest(heads)[score.ShipID]; ok {
			if head.InputDigest == score.InputDigest &&
				head.FormulaVersion == score.FormulaVersion &&
				head.WindowStart.Equal(score.Window.Start) &&
				head.WindowEnd.Equal(score.Window.End) {
				stored = toScore(head)
				return nil
			}
			score.Supersedes = head.ID
		}

		m := fromScore(score)
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		if len(issues) > 0 {
			rows := make([]IssueModel, 0, len(issues))
			for _, is := range issues {
				rows = append(rows, IssueModel{
					ScoreID:     score.ID,
					ShipID:      is.ShipID,
					EventType:   is.EventType,
					DueAt:       is.DueAt.UTC(),
					DaysOverdue: is.DaysOverdue,
					Severity:    is.Severity,
				})
			}
			if err := tx.CreateInBatches(&rows, chunkSize).Error; err != nil {
				return err
			}
		}
		stored, inserted = toScore(m), true
		return nil
	})
	if err != nil {
		return model.ComplianceScore{}, false, persistErr("save score", err)
	}
	return stored, inserted, nil
}

// newest keeps the most recent head per ship. Heads fork only if two
// recomputes of one ship raced.
func newest(rows []ScoreModel) map[string]ScoreModel {
	out := make(map[string]ScoreModel, len(rows))
	for _, r := range rows {
		cur, ok := out[r.ShipID]
		if !ok || r.ComputedAt.After(cur.ComputedAt) || (r.ComputedAt.Equal(cur.ComputedAt) && r.ID > cur.ID) {
			out[r.ShipID] = r
		}
	}
	return out
}

func (s *SQLStore) LatestScore(ctx context.Context, shipID string) (model.ComplianceScore, error) {
	defer observe(time.Now())
	var heads []ScoreModel
	if err := s.db.WithContext(ctx).Table("compliance_scores AS cs").Where(headScores).
		Where("cs.ship_id = ?", shipID).Find(&heads).Error; err != nil {
		return model.ComplianceScore{}, persistErr("latest score", err)
	}
	head, ok := newest(heads)[shipID]
	if !ok {
		return model.ComplianceScore{}, fmt.Errorf("score for %q: %w", shipID, ErrNotFound)
	}
	return toScore(head), nil
}

func (s *SQLStore) LatestScores(ctx context.Context) ([]model.ComplianceScore, error) {
	defer observe(time.Now())
	var heads []ScoreModel
	if err := s.db.WithContext(ctx).Table("compliance_scores AS cs").Where(headScores).Find(&heads).Error; err != nil {
		return nil, persistErr("latest scores", err)
	}
	byShip := newest(heads)
	out := make([]model.ComplianceScore, 0, len(byShip))
	for _, h := range byShip {
		out = append(out, toScore(h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShipID < out[j].ShipID })
	return out, nil
}

func (s *SQLStore) ScoreHistory(ctx context.Context, shipID string) ([]model.ComplianceScore, error) {
	var rows []ScoreModel
	if err := s.db.WithContext(ctx).Where("ship_id = ?", shipID).
		Order("computed_at DESC, id").Find(&rows).Error; err != nil {
		return nil, persistErr("score history", err)
	}
	out := make([]model.ComplianceScore, 0, len(rows))
	for _, r := range rows {
		out = append(out, toScore(r))
	}
	return out, nil
}

func (s *SQLStore) OpenIssues(ctx context.Context, shipID string) ([]model.ComplianceIssue, error) {
	defer observe(time.Now())
	q := s.db.WithContext(ctx).Table("compliance_issues AS ci").
		Select("ci.*").
		Joins("JOIN compliance_scores cs ON cs.id = ci.score_id").
		Where(headScores)
	if shipID != "" {
		q = q.Where("ci.ship_id = ?", shipID)
	}
	var rows []IssueModel
	if err := q.Order("ci.days_overdue DESC, ci.ship_id, ci.event_type").Find(&rows).Error; err != nil {
		return nil, persistErr("open issues", err)
	}
	out := make([]model.ComplianceIssue, 0, len(rows))
	for _, r := range rows {
		out = append(out, toIssue(r))
	}
	return out, nil
}

func (s *SQLStore) Quarantine(ctx context.Context) ([]model.QuarantineEntry, error) {
	var rows []QuarantineModel
	if err := s.db.WithContext(ctx).Where("resolved = ?", false).
		Order("quarantined_at, record_id").Find(&rows).Error; err != nil {
		return nil, persistErr("quarantine", err)
	}
	out := make([]model.QuarantineEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, toQuarantine(r))
	}
	return out, nil
}

func (s *SQLStore) QuarantineEntry(ctx context.Context, recordID string) (model.QuarantineEntry, error) {
	var m QuarantineModel
	err := s.db.WithContext(ctx).Where("record_id = ?", recordID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.QuarantineEntry{}, fmt.Errorf("quarantine entry %q: %w", recordID, ErrNotFound)
	}
	if err != nil {
		return model.QuarantineEntry{}, persistErr("quarantine entry", err)
	}
	return toQuarantine(m), nil
}

func (s *SQLStore) ResolveQuarantine(ctx context.Context, recordID string) error {
	res := s.db.WithContext(ctx).Model(&QuarantineModel{}).
		Where("record_id = ? AND resolved = ?", recordID, false).
		Update("resolved", true)
	if res.Error != nil {
		return persistErr("resolve quarantine", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("quarantine entry %q: %w", recordID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) AddDependency(ctx context.Context, dep model.PartDependency) error {
	m := DependencyModel{PartID: dep.PartID, DependsOn: dep.DependsOn, CreatedAt: s.now().UTC()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
		return persistErr("add dependency", err)
	}
	return nil
}

func (s *SQLStore) AddDependencyChecked(ctx context.Context, dep model.PartDependency, check func([]model.PartDependency) error) error {
	var checkErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == DriverPostgres {
			// Writers on other replicas wait here until this edge is in.
			if err := tx.Exec("LOCK TABLE part_dependencies IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
				return err
			}
		}
		var rows []DependencyModel
		if err := tx.Order("part_id, depends_on").Find(&rows).Error; err != nil {
			return err
		}
		stored := make([]model.PartDependency, 0, len(rows))
		for _, r := range rows {
			stored = append(stored, model.PartDependency{PartID: r.PartID, DependsOn: r.DependsOn})
		}
		if checkErr = check(stored); checkErr != nil {
			return checkErr
		}
		m := DependencyModel{PartID: dep.PartID, DependsOn: dep.DependsOn, CreatedAt: s.now().UTC()}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
	})
	switch {
	case checkErr != nil:
		return checkErr
	case err != nil:
		return persistErr("add dependency", err)
	}
	return nil
}

func (s *SQLStore) Dependencies(ctx context.Context) ([]model.PartDependency, error) {
	var rows []DependencyModel
	if err := s.db.WithContext(ctx).Order("part_id, depends_on").Find(&rows).Error; err != nil {
		return nil, persistErr("dependencies", err)
	}
	out := make([]model.PartDependency, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.PartDependency{PartID: r.PartID, DependsOn: r.DependsOn})
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
