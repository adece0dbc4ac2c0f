package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/fleetready/internal/adapters/repository"
	"github.com/okian/fleetready/internal/domain/merge"
	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

// Quarantine lists unresolved quarantine entries.
func (s *Service) Quarantine(ctx context.Context) ([]model.QuarantineEntry, error) {
	return s.store.Quarantine(ctx)
}

// ResolveQuarantine closes the entry of recordID. An empty action discards.
func (s *Service) ResolveQuarantine(ctx context.Context, recordID string, action model.ResolveAction) error {
	switch action {
	case model.ResolveDiscard, "":
		if err := s.store.ResolveQuarantine(ctx, recordID); err != nil {
			return err
		}
		s.logger.Info(ctx, "quarantined record discarded", logger.String("record_id", recordID))
		return nil
	case model.ResolveApply:
		return s.applyQuarantined(ctx, recordID)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
}

// applyQuarantined re-normalizes the stored VendorRecord and merges it into
// the candidate event in one transaction, then rescores the ship.
func (s *Service) applyQuarantined(ctx context.Context, recordID string) error {
	if !s.isStarted() {
		return ErrNotStarted
	}
	entry, err := s.store.QuarantineEntry(ctx, recordID)
	if err != nil {
		return err
	}
	if entry.Resolved {
		return fmt.Errorf("quarantine entry %q already resolved: %w", recordID, repository.ErrNotFound)
	}
	vr, err := s.store.VendorRecord(ctx, recordID)
	if err != nil {
		return err
	}
	rec, err := s.normalizer.Normalize(model.RawRecord{Source: vr.Source, Format: vr.Format, Data: vr.Raw})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotApplicable, err)
	}
	rec.Sequence = vr.Sequence
	rec.IngestedAt = vr.IngestedAt

	ev, conflicts, err := s.overrideAndPersist(ctx, entry, vr.BatchID, rec)
	if err != nil {
		return err
	}
	metrics.RecordEventMerged()
	for _, c := range conflicts {
		metrics.RecordFieldConflict(c.Field)
	}
	if _, _, err := s.scoreShip(ctx, ev.ShipID); err != nil {
		s.logger.Error(ctx, "scoring after quarantine apply failed", logger.String("ship_id", ev.ShipID), logger.Error(err))
	}
	s.invalidateSummary()
	s.logger.Info(ctx, "quarantined record applied",
		logger.String("record_id", recordID),
		logger.String("event_id", ev.ID),
		logger.Int("conflicts", len(conflicts)))
	return nil
}

func (s *Service) overrideAndPersist(
	ctx context.Context,
	entry model.QuarantineEntry,
	batchID string,
	rec model.CanonicalRecord,
) (model.MaintenanceEvent, []model.FieldConflict, error) {
	unlock := s.locks.Lock(merge.GroupKey(entry.ShipID, entry.EventType))
	defer unlock()

	target, err := s.store.Event(ctx, entry.CandidateEventID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.MaintenanceEvent{}, nil, fmt.Errorf("%w: %w", ErrNotApplicable, err)
	}
	if err != nil {
		return model.MaintenanceEvent{}, nil, err
	}
	ev, conflicts := s.engine.Override(ctx, target, rec)
	err = s.store.ApplyBatch(ctx, repository.BatchWrite{
		BatchID:   batchID,
		Events:    []model.MaintenanceEvent{ev},
		Conflicts: conflicts,
		Resolved:  []string{entry.RecordID},
	})
	if err != nil {
		return model.MaintenanceEvent{}, nil, err
	}
	return ev, conflicts, nil
}
