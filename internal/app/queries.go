package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/fleetready/internal/adapters/repository"
	"github.com/okian/fleetready/internal/domain/dependency"
	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/internal/domain/scoring"
	"github.com/okian/fleetready/internal/domain/types"
	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

// Window returns the rolling scoring window ending at the start of the
// current UTC day. Recomputes on the same day share a window.
func (s *Service) Window() model.Window {
	now := s.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return model.Window{Start: end.AddDate(0, 0, -s.windowDays), End: end}
}

// scoreShip recomputes and stores the score of one ship, then updates the
// board. Unchanged inputs store nothing and return the existing score.
func (s *Service) scoreShip(ctx context.Context, shipID string) (model.ComplianceScore, bool, error) {
	unlock := s.locks.Lock("score|" + shipID)
	defer unlock()

	start := time.Now()
	window := s.Window()
	events, err := s.store.EventsForShip(ctx, shipID, window.End)
	if err != nil {
		metrics.RecordScoringError()
		return model.ComplianceScore{}, false, err
	}
	score, issues, err := s.scorer.Score(ctx, shipID, window, events)
	if err != nil {
		metrics.RecordScoringError()
		return model.ComplianceScore{}, false, err
	}
	stored, inserted, err := s.store.SaveScore(ctx, score, issues)
	metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordScoringError()
		return model.ComplianceScore{}, false, err
	}
	if inserted {
		metrics.RecordScoreComputed()
	} else {
		metrics.RecordScoreUnchanged()
	}
	s.board.Set(ctx, shipID, stored.Score, stored.ComputedAt)
	return stored, inserted, nil
}

// Recompute scores one ship on demand.
func (s *Service) Recompute(ctx context.Context, shipID string) (types.Score, bool, error) {
	if !s.isStarted() {
		return types.Score{}, false, ErrNotStarted
	}
	if _, err := s.store.Ship(ctx, shipID); err != nil {
		return types.Score{}, false, err
	}
	stored, inserted, err := s.scoreShip(ctx, shipID)
	if err != nil {
		return types.Score{}, false, err
	}
	if inserted {
		s.invalidateSummary()
	}
	return scoreView(stored), inserted, nil
}

// RecomputeAll rescores every known ship. It returns how many scores
// changed; per-ship failures are joined into the error.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	if !s.isStarted() {
		return 0, ErrNotStarted
	}
	ids, err := s.store.ShipIDs(ctx)
	if err != nil {
		return 0, err
	}
	var (
		changed int
		errs    []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, inserted, err := s.scoreShip(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("ship %s: %w", id, err))
			continue
		}
		if inserted {
			changed++
		}
	}
	s.invalidateSummary()
	s.logger.Info(ctx, "fleet rescored", logger.Int("ships", len(ids)), logger.Int("changed", changed))
	return changed, errors.Join(errs...)
}

// Status returns one ship's latest score, rank, recent events and open issues.
func (s *Service) Status(ctx context.Context, shipID string) (types.ShipStatus, error) {
	if !s.isStarted() {
		return types.ShipStatus{}, ErrNotStarted
	}
	ship, err := s.store.Ship(ctx, shipID)
	if err != nil {
		return types.ShipStatus{}, err
	}
	st := types.ShipStatus{
		ShipID:       ship.ID,
		Name:         ship.Name,
		Class:        ship.Class,
		RecentEvents: []types.EventView{},
		OpenIssues:   []types.IssueView{},
	}

	score, err := s.store.LatestScore(ctx, shipID)
	switch {
	case err == nil:
		v := scoreView(score)
		st.Score = &v
	case !errors.Is(err, repository.ErrNotFound):
		return types.ShipStatus{}, err
	}
	if entry, err := s.board.Rank(ctx, shipID); err == nil {
		st.Rank = entry.Rank
	}

	events, err := s.store.RecentEvents(ctx, shipID, s.recentEvents)
	if err != nil {
		return types.ShipStatus{}, err
	}
	for _, ev := range events {
		st.RecentEvents = append(st.RecentEvents, eventView(ev))
	}
	issues, err := s.store.OpenIssues(ctx, shipID)
	if err != nil {
		return types.ShipStatus{}, err
	}
	for _, is := range issues {
		st.OpenIssues = append(st.OpenIssues, issueView(is))
	}
	return st, nil
}

// FleetSummary returns fleet-wide counts and the least ready ships first.
// limit < 1 ranks every ship. Results are cached until the next batch.
func (s *Service) FleetSummary(ctx context.Context, limit int) (types.FleetSummary, error) {
	if !s.isStarted() {
		return types.FleetSummary{}, ErrNotStarted
	}
	key := "summary:" + strconv.Itoa(limit)
	if cached, ok := s.summaries.Get(key); ok {
		return cached, nil
	}

	ships, err := s.store.CountShips(ctx)
	if err != nil {
		return types.FleetSummary{}, err
	}
	events, err := s.store.CountEvents(ctx)
	if err != nil {
		return types.FleetSummary{}, err
	}
	issues, err := s.store.OpenIssues(ctx, "")
	if err != nil {
		return types.FleetSummary{}, err
	}
	ranked := s.board.Count(ctx)
	n := limit
	if n < 1 {
		n = max(ranked, 1)
	}
	ranking, err := s.board.Bottom(ctx, n)
	if err != nil {
		return types.FleetSummary{}, err
	}

	sum := types.FleetSummary{
		Ships:       ships,
		ScoredShips: ranked,
		Events:      events,
		MeanScore:   s.board.Mean(ctx),
		OpenIssues:  len(issues),
		Ranking:     ranking,
		GeneratedAt: s.now().UTC(),
	}
	metrics.UpdateOpenIssues(len(issues))
	s.summaries.Add(key, sum)
	return sum, nil
}

func (s *Service) invalidateSummary() {
	if s.summaries != nil {
		s.summaries.Purge()
	}
}

// Issues returns open issues across the fleet at or above minSeverity.
// An empty minSeverity returns every issue.
func (s *Service) Issues(ctx context.Context, minSeverity string) ([]types.IssueView, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	floor := 0
	if minSeverity != "" {
		if floor = scoring.SeverityRank(minSeverity); floor == 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSeverity, minSeverity)
		}
	}
	issues, err := s.store.OpenIssues(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]types.IssueView, 0, len(issues))
	for _, is := range issues {
		if scoring.SeverityRank(is.Severity) >= floor {
			out = append(out, issueView(is))
		}
	}
	return out, nil
}

// AddDependency records part -> dependsOn, refusing edges that close a cycle.
func (s *Service) AddDependency(ctx context.Context, part, dependsOn string) error {
	part, dependsOn = strings.TrimSpace(part), strings.TrimSpace(dependsOn)
	if part == "" || dependsOn == "" {
		return dependency.ErrInvalidPart
	}
	s.depMu.Lock()
	defer s.depMu.Unlock()

	// Other writers sharing the store may have added edges since Start.
	dep := model.PartDependency{PartID: part, DependsOn: dependsOn}
	err := s.store.AddDependencyChecked(ctx, dep, func(stored []model.PartDependency) error {
		if err := s.graph.Load(stored); err != nil {
			return err
		}
		return s.graph.Check(part, dependsOn)
	})
	if err != nil {
		return err
	}
	return s.graph.Add(part, dependsOn)
}

// Dependencies traces what part depends on, up to depth hops.
func (s *Service) Dependencies(_ context.Context, part string, depth int) []dependency.Hop {
	return s.graph.Trace(strings.TrimSpace(part), depth)
}

func scoreView(sc model.ComplianceScore) types.Score {
	return types.Score{
		ID:             sc.ID,
		Value:          sc.Score,
		FormulaVersion: sc.FormulaVersion,
		WindowStart:    sc.Window.Start,
		WindowEnd:      sc.Window.End,
		OverduePenalty: sc.OverduePenalty,
		MTTRHours:      sc.MTTRHours,
		MTTRPenalty:    sc.MTTRPenalty,
		EventCount:     sc.EventCount,
		InputDigest:    sc.InputDigest,
		ComputedAt:     sc.ComputedAt,
		Supersedes:     sc.Supersedes,
	}
}

func eventView(ev model.MaintenanceEvent) types.EventView {
	return types.EventView{
		ID:         ev.ID,
		EventType:  ev.EventType,
		OccurredAt: ev.OccurredAt,
		StartedAt:  ev.StartedAt,
		DueAt:      ev.DueAt,
		WorkOrder:  ev.WorkOrder,
		Status:     ev.Status,
		Parts:      ev.Parts,
		Sources:    len(ev.SourceRecordIDs),
		Revision:   ev.Revision,
	}
}

func issueView(is model.ComplianceIssue) types.IssueView {
	return types.IssueView{
		ShipID:      is.ShipID,
		EventType:   is.EventType,
		DueAt:       is.DueAt,
		DaysOverdue: is.DaysOverdue,
		Severity:    is.Severity,
	}
}
