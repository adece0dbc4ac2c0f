// Package scoring computes versioned compliance scores for a ship over a
// time window.
//
// Formula v1:
//
//	overdue(type) = clip(days(windowEnd - due(type)), 0, windowDays)
//	due(type)     = DueAt of the last event of type at or before windowEnd,
//	                else its OccurredAt + service interval;
//	                a type with no event is overdue for the whole window
//	mttr          = mean(OccurredAt - StartedAt) over repairs in the window
//	score         = clamp(100 - Σ weight(type)·overdue(type)
//	                      - mttrWeight·max(0, mttr - mttrTarget), 0, 100)
//
// Scores are rounded to two decimals. Every score carries a digest of its
// inputs so recomputing unchanged inputs can be detected and skipped.
package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/fleetready/internal/domain/model"
)

// FormulaVersion tags scores produced by this package.
const FormulaVersion = "v1"

const (
	maxScore = 100
	hoursDay = 24
)

// Scorer computes compliance scores. It is safe for concurrent use once
// constructed.
type Scorer struct {
	intervals     map[string]int
	weights       map[string]float64
	defaultWeight float64
	mttrTarget    float64
	mttrWeight    float64
	now           func() time.Time
}

// New creates a Scorer. Without service intervals nothing can be overdue.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		intervals:     make(map[string]int),
		weights:       make(map[string]float64),
		defaultWeight: 0.25,
		mttrTarget:    48,
		mttrWeight:    0.1,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the v1 score of ship over window from events.
// events may include history before the window; it sets the last service
// date of each type.
func (s *Scorer) Score(ctx context.Context, shipID string, window model.Window, events []model.MaintenanceEvent) (model.ComplianceScore, []model.ComplianceIssue, error) {
	if err := ctx.Err(); err != nil {
		return model.ComplianceScore{}, nil, fmt.Errorf("context cancelled: %w", err)
	}
	if !window.End.After(window.Start) {
		return model.ComplianceScore{}, nil, fmt.Errorf("%w: %s..%s", ErrInvalidWindow, window.Start, window.End)
	}

	inScope := make([]model.MaintenanceEvent, 0, len(events))
	for _, ev := range events {
		if ev.ShipID == shipID && !ev.OccurredAt.After(window.End) {
			inScope = append(inScope, ev)
		}
	}
	sort.Slice(inScope, func(i, j int) bool { return inScope[i].ID < inScope[j].ID })

	issues, overdue := s.overdue(shipID, window, inScope)
	mttr, mttrPenalty := s.mttr(window, inScope)

	total := overdue.Add(mttrPenalty)
	score := decimal.NewFromInt(maxScore).Sub(total)
	if score.IsNegative() {
		score = decimal.Zero
	}
	if score.GreaterThan(decimal.NewFromInt(maxScore)) {
		score = decimal.NewFromInt(maxScore)
	}

	count := 0
	for _, ev := range inScope {
		if window.Contains(ev.OccurredAt) {
			count++
		}
	}

	return model.ComplianceScore{
		ID:             uuid.NewString(),
		ShipID:         shipID,
		Window:         window,
		FormulaVersion: FormulaVersion,
		Score:          score.Round(2).InexactFloat64(),
		OverduePenalty: overdue.Round(2).InexactFloat64(),
		MTTRHours:      mttr.Round(2).InexactFloat64(),
		MTTRPenalty:    mttrPenalty.Round(2).InexactFloat64(),
		EventCount:     count,
		InputDigest:    s.digest(shipID, window, inScope),
		ComputedAt:     s.now().UTC(),
	}, issues, nil
}

// overdue returns one issue per overdue service type and the weighted penalty.
func (s *Scorer) overdue(shipID string, window model.Window, events []model.MaintenanceEvent) ([]model.ComplianceIssue, decimal.Decimal) {
	last := make(map[string]model.MaintenanceEvent)
	for _, ev := range events {
		if cur, ok := last[ev.EventType]; !ok || ev.OccurredAt.After(cur.OccurredAt) {
			last[ev.EventType] = ev
		}
	}

	windowDays := decimal.NewFromFloat(window.Days())
	penalty := decimal.Zero
	var issues []model.ComplianceIssue
	for _, typ := range sortedKeys(s.intervals) {
		due := window.Start
		if ev, ok := last[typ]; ok {
			if ev.DueAt != nil {
				due = ev.DueAt.UTC()
			} else {
				due = ev.OccurredAt.AddDate(0, 0, s.intervals[typ])
			}
		}
		days := decimal.NewFromFloat(window.End.Sub(due).Hours() / hoursDay)
		if days.GreaterThan(windowDays) {
			days = windowDays
		}
		if !days.IsPositive() {
			continue
		}
		penalty = penalty.Add(days.Mul(decimal.NewFromFloat(s.weight(typ))))
		d := days.Round(2).InexactFloat64()
		issues = append(issues, model.ComplianceIssue{
			ShipID:      shipID,
			EventType:   typ,
			DueAt:       due,
			DaysOverdue: d,
			Severity:    Severity(d),
		})
	}
	return issues, penalty
}

// mttr returns the mean repair time in hours and its penalty.
func (s *Scorer) mttr(window model.Window, events []model.MaintenanceEvent) (decimal.Decimal, decimal.Decimal) {
	sum := decimal.Zero
	n := int64(0)
	for _, ev := range events {
		if ev.StartedAt == nil || !window.Contains(ev.OccurredAt) || !ev.OccurredAt.After(*ev.StartedAt) {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(ev.OccurredAt.Sub(*ev.StartedAt).Hours()))
		n++
	}
	if n == 0 {
		return decimal.Zero, decimal.Zero
	}
	mean := sum.Div(decimal.NewFromInt(n))
	excess := mean.Sub(decimal.NewFromFloat(s.mttrTarget))
	if !excess.IsPositive() {
		return mean, decimal.Zero
	}
	return mean, excess.Mul(decimal.NewFromFloat(s.mttrWeight))
}

func (s *Scorer) weight(eventType string) float64 {
	if w, ok := s.weights[eventType]; ok {
		return w
	}
	return s.defaultWeight
}

// digest fingerprints everything the score depends on: formula, parameters,
// window and event content.
func (s *Scorer) digest(shipID string, window model.Window, events []model.MaintenanceEvent) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s\n", FormulaVersion, shipID,
		window.Start.UTC().Format(time.RFC3339Nano), window.End.UTC().Format(time.RFC3339Nano))
	for _, typ := range sortedKeys(s.intervals) {
		fmt.Fprintf(h, "i:%s=%d|w=%g\n", typ, s.intervals[typ], s.weight(typ))
	}
	fmt.Fprintf(h, "d=%g|mt=%g|mw=%g\n", s.defaultWeight, s.mttrTarget, s.mttrWeight)
	for _, ev := range events {
		fmt.Fprintf(h, "e:%s|%s|%s|%s|%s\n", ev.ID, ev.EventType,
			ev.OccurredAt.UTC().Format(time.RFC3339Nano), timeKey(ev.StartedAt), timeKey(ev.DueAt))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Severity grades days overdue: low under a week, medium under 30 days,
// high otherwise.
func Severity(daysOverdue float64) string {
	switch {
	case daysOverdue < 7:
		return model.SeverityLow
	case daysOverdue < 30:
		return model.SeverityMedium
	default:
		return model.SeverityHigh
	}
}

// SeverityRank orders severities for filtering; unknown values rank 0.
func SeverityRank(severity string) int {
	switch strings.ToLower(severity) {
	case model.SeverityLow:
		return 1
	case model.SeverityMedium:
		return 2
	case model.SeverityHigh:
		return 3
	default:
		return 0
	}
}

func timeKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
