// Package merge reconciles canonical records that describe the same
// real-world maintenance event into one authoritative MaintenanceEvent.
//
// Records are grouped by similarity key: ship ID, event type and an
// OccurredAt within the configured tolerance of an existing event. Field
// conflicts resolve in favour of the most recently ingested record (the
// higher Sequence) and are reported, never dropped. A disagreeing work
// order cannot be overridden and sends the record to quarantine.
package merge

import (
	"context"
	"sort"
	"time"

	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/pkg/logger"
)

// Engine merges canonical records into maintenance events.
// It holds no state between calls and is safe for concurrent use.
type Engine struct {
	tolerance time.Duration
	log       logger.Logger
	now       func() time.Time
}

// New creates an Engine with a 72h tolerance.
func New(opts ...Option) *Engine {
	e := &Engine{
		tolerance: 72 * time.Hour,
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tolerance returns the configured similarity window.
func (e *Engine) Tolerance() time.Duration { return e.tolerance }

// Result is the outcome of one Merge call.
type Result struct {
	// Events holds every created or changed event, ordered by ID.
	Events      []model.MaintenanceEvent
	Created     int
	Merged      int
	Conflicts   []model.FieldConflict
	Quarantined []model.QuarantineEntry
	// OutOfOrder lists record IDs whose OccurredAt regressed within their feed,
	// measured against earlier batches too when marks are supplied.
	OutOfOrder []string
	// Marks holds the feeds whose latest OccurredAt advanced, ordered by
	// source then ship.
	Marks []model.FeedMark
	// Rejected maps quarantined record IDs to their merge error.
	Rejected map[string]error
}

// GroupKey identifies a serialization group: one ship and event type.
func GroupKey(shipID, eventType string) string {
	return shipID + "|" + eventType
}

// FeedKey identifies one feed: the records of one source about one ship.
func FeedKey(source, shipID string) string {
	return source + "|" + shipID
}

// Merge folds records into existing. Records are applied in Sequence order.
// existing must contain every stored event of the groups touched by records
// within the tolerance-expanded time range; it is not modified.
func (e *Engine) Merge(ctx context.Context, existing []model.MaintenanceEvent, records []model.CanonicalRecord) Result {
	return e.MergeAfter(ctx, existing, nil, records)
}

// MergeAfter is Merge with the feed marks left by earlier batches. A record
// older than its feed's mark is reported as out of order.
func (e *Engine) MergeAfter(
	ctx context.Context,
	existing []model.MaintenanceEvent,
	marks []model.FeedMark,
	records []model.CanonicalRecord,
) Result {
	now := e.now().UTC()
	res := Result{Rejected: make(map[string]error)}

	groups := make(map[string][]*model.MaintenanceEvent)
	for i := range existing {
		ev := cloneEvent(existing[i])
		k := GroupKey(ev.ShipID, ev.EventType)
		groups[k] = append(groups[k], &ev)
	}

	ordered := append([]model.CanonicalRecord(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	touched := make(map[string]*model.MaintenanceEvent)
	lastSeen := make(map[string]time.Time, len(marks))
	for _, m := range marks {
		lastSeen[FeedKey(m.Source, m.ShipID)] = m.OccurredAt
	}
	advanced := make(map[string]model.FeedMark)

	for _, rec := range ordered {
		feed := FeedKey(rec.Source, rec.ShipID)
		if prev, ok := lastSeen[feed]; ok && rec.OccurredAt.Before(prev) {
			res.OutOfOrder = append(res.OutOfOrder, rec.RecordID)
			e.log.Warn(ctx, "out-of-order record within feed",
				logger.String("record_id", rec.RecordID),
				logger.String("source", rec.Source),
				logger.String("ship_id", rec.ShipID),
				logger.Time("occurred_at", rec.OccurredAt),
				logger.Time("previous", prev))
		} else {
			lastSeen[feed] = rec.OccurredAt
			advanced[feed] = model.FeedMark{Source: rec.Source, ShipID: rec.ShipID, OccurredAt: rec.OccurredAt}
		}

		k := GroupKey(rec.ShipID, rec.EventType)
		target := e.closest(groups[k], rec.OccurredAt)
		if target == nil {
			ev := newEvent(rec, now)
			groups[k] = append(groups[k], &ev)
			touched[ev.ID] = &ev
			res.Created++
			continue
		}

		if target.WorkOrder != "" && rec.WorkOrder != "" && target.WorkOrder != rec.WorkOrder {
			err := &MergeConflictError{
				RecordID: rec.RecordID,
				EventID:  target.ID,
				Field:    "work_order",
				Existing: target.WorkOrder,
				Incoming: rec.WorkOrder,
			}
			res.Rejected[rec.RecordID] = err
			res.Quarantined = append(res.Quarantined, model.QuarantineEntry{
				RecordID:         rec.RecordID,
				ShipID:           rec.ShipID,
				EventType:        rec.EventType,
				Reason:           err.Error(),
				CandidateEventID: target.ID,
				QuarantinedAt:    now,
			})
			e.log.Warn(ctx, "record quarantined", logger.Error(err))
			continue
		}

		conflicts := e.apply(target, rec, now)
		for _, c := range conflicts {
			e.log.Info(ctx, "field conflict resolved",
				logger.String("event_id", c.EventID),
				logger.String("field", c.Field),
				logger.String("kept", c.KeptValue),
				logger.String("discarded", c.DiscardedValue),
				logger.String("kept_record_id", c.KeptRecordID),
				logger.String("discarded_record_id", c.DiscardedRecordID))
		}
		res.Conflicts = append(res.Conflicts, conflicts...)
		touched[target.ID] = target
		res.Merged++
	}

	res.Events = make([]model.MaintenanceEvent, 0, len(touched))
	for _, ev := range touched {
		res.Events = append(res.Events, *ev)
	}
	sort.Slice(res.Events, func(i, j int) bool { return res.Events[i].ID < res.Events[j].ID })

	res.Marks = make([]model.FeedMark, 0, len(advanced))
	for _, m := range advanced {
		res.Marks = append(res.Marks, m)
	}
	sort.Slice(res.Marks, func(i, j int) bool {
		return FeedKey(res.Marks[i].Source, res.Marks[i].ShipID) < FeedKey(res.Marks[j].Source, res.Marks[j].ShipID)
	})
	return res
}

// Override merges rec into ev after an operator accepted a work order
// mismatch. ev keeps its work order and the discarded one is reported as a
// field conflict; the other fields follow the usual Sequence policy.
func (e *Engine) Override(ctx context.Context, ev model.MaintenanceEvent, rec model.CanonicalRecord) (model.MaintenanceEvent, []model.FieldConflict) {
	now := e.now().UTC()
	out := cloneEvent(ev)

	var conflicts []model.FieldConflict
	if out.WorkOrder != "" && rec.WorkOrder != "" && out.WorkOrder != rec.WorkOrder {
		conflicts = append(conflicts, model.FieldConflict{
			EventID:           out.ID,
			Field:             "work_order",
			KeptValue:         out.WorkOrder,
			DiscardedValue:    rec.WorkOrder,
			KeptRecordID:      out.LastRecordID,
			DiscardedRecordID: rec.RecordID,
			LoggedAt:          now,
		})
	}
	conflicts = append(conflicts, e.apply(&out, rec, now)...)

	e.log.Info(ctx, "quarantined record applied",
		logger.String("record_id", rec.RecordID),
		logger.String("event_id", out.ID),
		logger.Int("conflicts", len(conflicts)))
	return out, conflicts
}

// closest returns the candidate nearest to at within tolerance.
// Ties go to the earlier event, then the lower ID.
func (e *Engine) closest(candidates []*model.MaintenanceEvent, at time.Time) *model.MaintenanceEvent {
	var (
		best     *model.MaintenanceEvent
		bestDist time.Duration
	)
	for _, ev := range candidates {
		d := absDuration(ev.OccurredAt.Sub(at))
		if d > e.tolerance {
			continue
		}
		switch {
		case best == nil, d < bestDist:
		case d == bestDist && ev.OccurredAt.Before(best.OccurredAt):
		case d == bestDist && ev.OccurredAt.Equal(best.OccurredAt) && ev.ID < best.ID:
		default:
			continue
		}
		best, bestDist = ev, d
	}
	return best
}

// apply merges rec into ev and returns the field conflicts it resolved.
func (e *Engine) apply(ev *model.MaintenanceEvent, rec model.CanonicalRecord, now time.Time) []model.FieldConflict {
	incomingWins := rec.Sequence >= ev.LastSequence
	var conflicts []model.FieldConflict

	resolve := func(field, current, incoming string, set func()) {
		switch {
		case incoming == "" || incoming == current:
			return
		case current == "":
			set()
			return
		}
		c := model.FieldConflict{EventID: ev.ID, Field: field, LoggedAt: now}
		if incomingWins {
			c.KeptValue, c.KeptRecordID = incoming, rec.RecordID
			c.DiscardedValue, c.DiscardedRecordID = current, ev.LastRecordID
			set()
		} else {
			c.KeptValue, c.KeptRecordID = current, ev.LastRecordID
			c.DiscardedValue, c.DiscardedRecordID = incoming, rec.RecordID
		}
		conflicts = append(conflicts, c)
	}

	resolve("occurred_at", formatTime(ev.OccurredAt), formatTime(rec.OccurredAt), func() { ev.OccurredAt = rec.OccurredAt })
	resolve("started_at", formatTimePtr(ev.StartedAt), formatTimePtr(rec.StartedAt), func() { ev.StartedAt = copyTime(rec.StartedAt) })
	resolve("due_at", formatTimePtr(ev.DueAt), formatTimePtr(rec.DueAt), func() { ev.DueAt = copyTime(rec.DueAt) })
	resolve("status", ev.Status, rec.Status, func() { ev.Status = rec.Status })
	resolve("description", ev.Description, rec.Description, func() { ev.Description = rec.Description })
	if ev.WorkOrder == "" {
		ev.WorkOrder = rec.WorkOrder
	}

	ev.Parts = union(ev.Parts, rec.Parts)
	ev.SourceRecordIDs = union(ev.SourceRecordIDs, []string{rec.RecordID})
	if incomingWins {
		ev.LastSequence = rec.Sequence
		ev.LastRecordID = rec.RecordID
	}
	ev.Revision++
	ev.UpdatedAt = now
	return conflicts
}

func newEvent(rec model.CanonicalRecord, now time.Time) model.MaintenanceEvent {
	return model.MaintenanceEvent{
		ID:              model.EventID(rec.ShipID, rec.EventType, rec.RecordID),
		ShipID:          rec.ShipID,
		EventType:       rec.EventType,
		OccurredAt:      rec.OccurredAt,
		StartedAt:       copyTime(rec.StartedAt),
		DueAt:           copyTime(rec.DueAt),
		WorkOrder:       rec.WorkOrder,
		Status:          rec.Status,
		Description:     rec.Description,
		Parts:           union(nil, rec.Parts),
		SourceRecordIDs: []string{rec.RecordID},
		LastSequence:    rec.Sequence,
		LastRecordID:    rec.RecordID,
		Revision:        1,
		UpdatedAt:       now,
	}
}

func cloneEvent(ev model.MaintenanceEvent) model.MaintenanceEvent {
	ev.StartedAt = copyTime(ev.StartedAt)
	ev.DueAt = copyTime(ev.DueAt)
	ev.Parts = append([]string(nil), ev.Parts...)
	ev.SourceRecordIDs = append([]string(nil), ev.SourceRecordIDs...)
	return ev
}

// union returns the sorted set of a and b.
func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
