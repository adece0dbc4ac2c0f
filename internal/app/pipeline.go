package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/fleetready/internal/adapters/mq/queue"
	"github.com/okian/fleetready/internal/adapters/repository"
	"github.com/okian/fleetready/internal/domain/merge"
	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/internal/domain/normalize"
	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

// Submit queues b for asynchronous ingestion and returns its batch ID.
// A full queue yields ErrBackpressure.
func (s *Service) Submit(ctx context.Context, b model.Batch) (string, error) { //nolint:gocritic // batches travel by value
	if !s.isStarted() {
		return "", ErrNotStarted
	}
	if len(b.Records) == 0 {
		return "", fmt.Errorf("%w: no records", ErrInvalidBatch)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.ReceivedAt.IsZero() {
		b.ReceivedAt = s.now().UTC()
	}
	if err := s.queue.Enqueue(ctx, b); err != nil {
		if errors.Is(err, eventqueue.ErrFull) {
			return "", fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return "", err
	}
	return b.ID, nil
}

// admitted is one VendorRecord of the batch that passed admission.
type admitted struct {
	vendor model.VendorRecord
	record *model.CanonicalRecord // nil when normalization failed
}

// IngestBatch runs one batch through normalize, admit, merge, persist and
// score. Persistence is atomic: on failure nothing of the batch is stored
// and its records are released for a retry.
func (s *Service) IngestBatch(ctx context.Context, b model.Batch) (model.BatchReport, error) { //nolint:gocritic,funlen // batches travel by value; one place for the pipeline
	start := time.Now()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	report := model.BatchReport{BatchID: b.ID, Received: len(b.Records)}
	if !s.isStarted() {
		return report, ErrNotStarted
	}
	log := s.logger.With(logger.String("batch_id", b.ID))
	defer func() {
		report.Duration = time.Since(start)
		metrics.RecordBatchLatency(float64(report.Duration.Milliseconds()))
	}()

	normStart := time.Now()
	results, err := s.normalizer.NormalizeBatch(ctx, b.Records, s.parallelism)
	metrics.RecordNormalizeLatency(float64(time.Since(normStart).Milliseconds()))
	if err != nil {
		metrics.RecordBatchProcessed("cancelled")
		return report, fmt.Errorf("normalize: %w", err)
	}

	admittedRecs, release, err := s.admit(ctx, b, results, &report, log)
	if err != nil {
		metrics.RecordBatchProcessed("failed")
		return report, err
	}

	var (
		canon  []model.CanonicalRecord
		groups = make(map[string]*repository.GroupRange)
		ships  = make(map[string]model.Ship)
		feeds  = make(map[string]struct{})
	)
	for _, a := range admittedRecs {
		if a.record == nil {
			continue
		}
		rec := *a.record
		canon = append(canon, rec)
		feeds[merge.FeedKey(rec.Source, rec.ShipID)] = struct{}{}
		key := merge.GroupKey(rec.ShipID, rec.EventType)
		g, ok := groups[key]
		if !ok {
			g = &repository.GroupRange{ShipID: rec.ShipID, EventType: rec.EventType, From: rec.OccurredAt, To: rec.OccurredAt}
			groups[key] = g
		}
		if rec.OccurredAt.Before(g.From) {
			g.From = rec.OccurredAt
		}
		if rec.OccurredAt.After(g.To) {
			g.To = rec.OccurredAt
		}
		sh := ships[rec.ShipID]
		sh.ID = rec.ShipID
		if rec.ShipName != "" {
			sh.Name = rec.ShipName
		}
		if rec.ShipClass != "" {
			sh.Class = rec.ShipClass
		}
		ships[rec.ShipID] = sh
	}

	keys := make([]string, 0, len(groups))
	ranges := make([]repository.GroupRange, 0, len(groups))
	tol := s.engine.Tolerance()
	for k, g := range groups {
		keys = append(keys, k)
		ranges = append(ranges, repository.GroupRange{
			ShipID: g.ShipID, EventType: g.EventType,
			From: g.From.Add(-tol), To: g.To.Add(tol),
		})
	}
	for k := range feeds {
		keys = append(keys, "feed:"+k)
	}
	sort.Strings(keys)
	sort.Slice(ranges, func(i, j int) bool {
		return merge.GroupKey(ranges[i].ShipID, ranges[i].EventType) < merge.GroupKey(ranges[j].ShipID, ranges[j].EventType)
	})

	res, err := s.mergeAndPersist(ctx, b.ID, keys, ranges, canon, admittedRecs, ships)
	if err != nil {
		release()
		metrics.RecordBatchProcessed("failed")
		log.Error(ctx, "batch not persisted; admission released", logger.Error(err))
		return report, err
	}
	s.lastAt.Store(s.now().UnixNano())

	report.Created = res.Created
	report.Merged = res.Merged
	report.Quarantined = len(res.Quarantined)
	report.Conflicts = len(res.Conflicts)
	report.OutOfOrder = len(res.OutOfOrder)
	report.Accepted -= report.Quarantined
	for i := 0; i < res.Created; i++ {
		metrics.RecordEventCreated()
	}
	for i := 0; i < res.Merged; i++ {
		metrics.RecordEventMerged()
	}
	for _, c := range res.Conflicts {
		metrics.RecordFieldConflict(c.Field)
	}
	for range res.Quarantined {
		metrics.RecordQuarantined()
	}
	for range res.OutOfOrder {
		metrics.RecordRecordOutOfOrder()
	}

	affected := make(map[string]struct{})
	for _, ev := range res.Events {
		affected[ev.ShipID] = struct{}{}
	}
	shipIDs := make([]string, 0, len(affected))
	for id := range affected {
		shipIDs = append(shipIDs, id)
	}
	sort.Strings(shipIDs)
	for _, id := range shipIDs {
		if _, _, err := s.scoreShip(ctx, id); err != nil {
			log.Error(ctx, "scoring after merge failed", logger.String("ship_id", id), logger.Error(err))
			continue
		}
		report.ShipsScored++
	}
	s.invalidateSummary()

	metrics.RecordBatchProcessed("ok")
	log.Info(ctx, "batch processed",
		logger.Int("received", report.Received),
		logger.Int("accepted", report.Accepted),
		logger.Int("rejected", report.Rejected),
		logger.Int("duplicates", report.Duplicates),
		logger.Int("created", report.Created),
		logger.Int("merged", report.Merged),
		logger.Int("quarantined", report.Quarantined),
		logger.Int("conflicts", report.Conflicts),
		logger.Int("out_of_order", report.OutOfOrder),
		logger.Int("ships_scored", report.ShipsScored))
	return report, nil
}

// admit assigns sequences and filters records already ingested. The
// returned release func forgets every admitted ID again.
func (s *Service) admit(ctx context.Context, b model.Batch, results []normalize.Result, report *model.BatchReport, log logger.Logger) ([]admitted, func(), error) { //nolint:gocritic // see IngestBatch
	ids := make([]string, len(results))
	for i, r := range results {
		if r.Err == nil {
			ids[i] = r.Record.RecordID
		} else {
			ids[i] = model.RecordID(r.Raw.Source, r.Raw.Format, r.Raw.Data)
		}
	}
	stored, err := s.store.SeenRecords(ctx, ids)
	if err != nil {
		return nil, func() {}, err
	}

	now := s.now().UTC()
	var (
		out      []admitted
		recorded []string
	)
	release := func() {
		for _, id := range recorded {
			if err := s.deduper.Unrecord(context.WithoutCancel(ctx), id); err != nil {
				log.Warn(ctx, "failed to release admission", logger.String("record_id", id), logger.Error(err))
			}
		}
	}

	for i, r := range results {
		id := ids[i]
		if stored[id] {
			report.Duplicates++
			metrics.RecordRecordDuplicate()
			continue
		}
		seen, err := s.deduper.SeenAndRecord(ctx, id)
		if err != nil {
			release()
			return nil, func() {}, fmt.Errorf("admission: %w", err)
		}
		if seen {
			report.Duplicates++
			metrics.RecordRecordDuplicate()
			continue
		}
		recorded = append(recorded, id)

		seq := s.seq.Add(1)
		vr := model.VendorRecord{
			ID:         id,
			Source:     r.Raw.Source,
			Format:     r.Raw.Format,
			Raw:        r.Raw.Data,
			BatchID:    b.ID,
			Sequence:   seq,
			IngestedAt: now,
			Status:     model.RecordAccepted,
		}
		if r.Err != nil {
			vr.Status = model.RecordRejected
			vr.Reason = r.Err.Error()
			report.Rejected++
			metrics.RecordRecordRejected(normalize.Reason(r.Err))
			log.Warn(ctx, "record rejected",
				logger.String("record_id", id),
				logger.String("source", r.Raw.Source),
				logger.String("format", string(r.Raw.Format)),
				logger.Error(r.Err))
			out = append(out, admitted{vendor: vr})
			continue
		}
		rec := r.Record
		rec.Sequence = seq
		rec.IngestedAt = now
		report.Accepted++
		metrics.RecordRecordIngested(r.Raw.Source, string(r.Raw.Format))
		out = append(out, admitted{vendor: vr, record: &rec})
	}
	return out, release, nil
}

// mergeAndPersist holds the identity-group locks across load, merge and the
// batch transaction.
func (s *Service) mergeAndPersist(
	ctx context.Context,
	batchID string,
	keys []string,
	ranges []repository.GroupRange,
	canon []model.CanonicalRecord,
	recs []admitted,
	ships map[string]model.Ship,
) (merge.Result, error) {
	unlock := s.locks.Lock(keys...)
	defer unlock()

	var existing []model.MaintenanceEvent
	if len(ranges) > 0 {
		var err error
		if existing, err = s.store.EventsForGroups(ctx, ranges); err != nil {
			return merge.Result{}, err
		}
	}
	shipIDs := make([]string, 0, len(ships))
	for id := range ships {
		shipIDs = append(shipIDs, id)
	}
	sort.Strings(shipIDs)

	var marks []model.FeedMark
	if len(shipIDs) > 0 {
		var err error
		if marks, err = s.store.FeedMarks(ctx, shipIDs); err != nil {
			return merge.Result{}, err
		}
	}
	res := s.engine.MergeAfter(ctx, existing, marks, canon)

	w := repository.BatchWrite{
		BatchID:    batchID,
		Records:    make([]model.VendorRecord, 0, len(recs)),
		Events:     res.Events,
		Conflicts:  res.Conflicts,
		Quarantine: res.Quarantined,
		Marks:      res.Marks,
	}
	for _, a := range recs {
		vr := a.vendor
		if err, ok := res.Rejected[vr.ID]; ok {
			vr.Status = model.RecordQuarantined
			vr.Reason = err.Error()
		}
		w.Records = append(w.Records, vr)
	}
	for _, id := range shipIDs {
		w.Ships = append(w.Ships, ships[id])
	}

	if err := s.store.ApplyBatch(ctx, w); err != nil {
		return merge.Result{}, err
	}
	return res, nil
}
