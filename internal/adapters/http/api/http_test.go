package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fleetready/internal/adapters/auth"
	"github.com/okian/fleetready/internal/adapters/http/api"
	"github.com/okian/fleetready/internal/adapters/repository"
	service "github.com/okian/fleetready/internal/app"
	"github.com/okian/fleetready/internal/domain/dependency"
	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/internal/domain/types"
)

// mockDependencies implements api.Dependencies.
type mockDependencies struct {
	status     types.ShipStatus
	statusErr  error
	summary    types.FleetSummary
	limits     []int
	issues     []types.IssueView
	issuesErr  error
	submitted  []model.Batch
	submitErr  error
	score      types.Score
	inserted   bool
	changed    int
	quarantine []model.QuarantineEntry
	resolveErr error
	resolved   []string
	actions    []model.ResolveAction
	addErr     error
	edges      [][2]string
	hops       []dependency.Hop
	depths     []int
}

func (m *mockDependencies) Status(_ context.Context, shipID string) (types.ShipStatus, error) {
	if m.statusErr != nil {
		return types.ShipStatus{}, m.statusErr
	}
	st := m.status
	st.ShipID = shipID
	return st, nil
}

func (m *mockDependencies) FleetSummary(_ context.Context, limit int) (types.FleetSummary, error) {
	m.limits = append(m.limits, limit)
	return m.summary, nil
}

func (m *mockDependencies) Issues(_ context.Context, minSeverity string) ([]types.IssueView, error) {
	if m.issuesErr != nil {
		return nil, m.issuesErr
	}
	return m.issues, nil
}

func (m *mockDependencies) Submit(_ context.Context, b model.Batch) (string, error) {
	if m.submitErr != nil {
		return "", m.submitErr
	}
	m.submitted = append(m.submitted, b)
	return fmt.Sprintf("batch-%d", len(m.submitted)), nil
}

func (m *mockDependencies) Recompute(_ context.Context, shipID string) (types.Score, bool, error) {
	if shipID == "FFG-7" {
		return types.Score{}, false, fmt.Errorf("ship %s: %w", shipID, repository.ErrNotFound)
	}
	return m.score, m.inserted, nil
}

func (m *mockDependencies) RecomputeAll(context.Context) (int, error) { return m.changed, nil }

func (m *mockDependencies) Quarantine(context.Context) ([]model.QuarantineEntry, error) {
	return m.quarantine, nil
}

func (m *mockDependencies) ResolveQuarantine(_ context.Context, id string, action model.ResolveAction) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	m.resolved = append(m.resolved, id)
	m.actions = append(m.actions, action)
	return nil
}

func (m *mockDependencies) AddDependency(_ context.Context, part, dependsOn string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.edges = append(m.edges, [2]string{part, dependsOn})
	return nil
}

func (m *mockDependencies) Dependencies(_ context.Context, _ string, depth int) []dependency.Hop {
	m.depths = append(m.depths, depth)
	return m.hops
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats(context.Context) map[string]any { return m.stats }

func newRouter(deps *mockDependencies, opts ...api.Option) http.Handler {
	srv := api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}}, opts...)
	return srv.NewRouter(context.Background())
}

func do(h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) (code, message string) {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code, body.Message
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API router", t, func() {
		deps := &mockDependencies{}
		h := newRouter(deps)

		Convey("Then health serves Prometheus metrics", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats are served as JSON", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then unknown routes are not found", func() {
			w := do(h, http.MethodGet, "/ships/DDG-51", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are refused", func() {
			w := do(h, http.MethodPost, "/status?ship_id=DDG-51", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestStatusHandler(t *testing.T) {
	Convey("Given the status endpoint", t, func() {
		deps := &mockDependencies{status: types.ShipStatus{Name: "Arleigh Burke", Rank: 2}}
		h := newRouter(deps)

		Convey("When a known ship is requested", func() {
			w := do(h, http.MethodGet, "/status?ship_id=DDG-51", "")

			Convey("Then its status is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var st types.ShipStatus
				So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
				So(st.ShipID, ShouldEqual, "DDG-51")
				So(st.Rank, ShouldEqual, 2)
			})
		})

		Convey("When ship_id is missing", func() {
			w := do(h, http.MethodGet, "/status", "")
			code, _ := decodeError(w)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(code, ShouldEqual, "bad_request")
		})

		Convey("When the ship is unknown", func() {
			deps.statusErr = fmt.Errorf("ship FFG-7: %w", repository.ErrNotFound)
			w := do(h, http.MethodGet, "/status?ship_id=FFG-7", "")
			code, _ := decodeError(w)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(code, ShouldEqual, "not_found")
		})

		Convey("When the store fails", func() {
			deps.statusErr = &repository.PersistenceError{Op: "ship", Err: errors.New("disk I/O error")}
			w := do(h, http.MethodGet, "/status?ship_id=DDG-51", "")
			code, msg := decodeError(w)

			Convey("Then the detail is not exposed", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(code, ShouldEqual, "internal_error")
				So(msg, ShouldNotContainSubstring, "disk")
			})
		})

		Convey("When the service is not started", func() {
			deps.statusErr = service.ErrNotStarted
			w := do(h, http.MethodGet, "/status?ship_id=DDG-51", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestFleetHandler(t *testing.T) {
	Convey("Given the fleet summary endpoint", t, func() {
		deps := &mockDependencies{summary: types.FleetSummary{
			Ships: 2, ScoredShips: 2, MeanScore: 80,
			Ranking: []types.Entry{{Rank: 1, ShipID: "DDG-52", Score: 70}, {Rank: 2, ShipID: "DDG-51", Score: 90}},
		}}
		h := newRouter(deps, api.WithMaxLimit(10))

		Convey("When requested without a limit", func() {
			w := do(h, http.MethodGet, "/fleet/summary", "")

			Convey("Then every ship is ranked least ready first", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var sum types.FleetSummary
				So(json.Unmarshal(w.Body.Bytes(), &sum), ShouldBeNil)
				So(sum.Ranking[0].ShipID, ShouldEqual, "DDG-52")
				So(deps.limits, ShouldResemble, []int{0})
			})
		})

		Convey("When the limit is passed through", func() {
			w := do(h, http.MethodGet, "/fleet/summary?limit=5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.limits, ShouldResemble, []int{5})
		})

		Convey("When the limit is invalid or too large", func() {
			So(do(h, http.MethodGet, "/fleet/summary?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/fleet/summary?limit=-1", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/fleet/summary?limit=11", "").Code, ShouldEqual, http.StatusBadRequest)
			So(deps.limits, ShouldBeEmpty)
		})
	})
}

func TestIssuesHandler(t *testing.T) {
	Convey("Given the compliance issues endpoint", t, func() {
		deps := &mockDependencies{issues: []types.IssueView{{ShipID: "DDG-51", EventType: "hull_inspection", Severity: "high"}}}
		h := newRouter(deps)

		Convey("Then issues are listed with a count", func() {
			w := do(h, http.MethodGet, "/compliance/issues?severity=high", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"count":1`)
		})

		Convey("Then an empty list is an empty array", func() {
			deps.issues = nil
			w := do(h, http.MethodGet, "/compliance/issues", "")
			So(w.Body.String(), ShouldContainSubstring, `"issues":[]`)
		})

		Convey("Then an unknown severity is a bad request", func() {
			deps.issuesErr = fmt.Errorf("%w: %q", service.ErrInvalidSeverity, "urgent")
			w := do(h, http.MethodGet, "/compliance/issues?severity=urgent", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestIngestHandler(t *testing.T) {
	Convey("Given the ingest endpoint", t, func() {
		deps := &mockDependencies{}
		h := newRouter(deps)
		csv := "hull,type,date\nDDG-51,hull inspection,2025-01-01\nDDG-52,hull inspection,2025-01-02\n"

		Convey("When a multi-row CSV file is uploaded", func() {
			w := do(h, http.MethodPost, "/ingest?source=vendor-a&format=csv", csv)

			Convey("Then one batch with a record per row is queued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"batch_id":"batch-1"`)
				So(len(deps.submitted), ShouldEqual, 1)
				b := deps.submitted[0]
				So(len(b.Records), ShouldEqual, 2)
				So(b.Records[0].Source, ShouldEqual, "vendor-a")
				So(b.Records[0].Format, ShouldEqual, model.FormatCSV)
			})
		})

		Convey("When the format is unknown", func() {
			w := do(h, http.MethodPost, "/ingest?format=pdf", csv)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.submitted, ShouldBeEmpty)
		})

		Convey("When the file cannot be parsed", func() {
			w := do(h, http.MethodPost, "/ingest?format=json", "{not json")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the queue is full", func() {
			deps.submitErr = fmt.Errorf("%w: queue full", service.ErrBackpressure)
			w := do(h, http.MethodPost, "/ingest?format=csv", csv)
			code, _ := decodeError(w)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(code, ShouldEqual, "backpressure")
		})

		Convey("When the body exceeds the limit", func() {
			small := newRouter(deps, api.WithMaxBodyBytes(16))
			w := do(small, http.MethodPost, "/ingest?format=csv", csv)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestScoresHandler(t *testing.T) {
	Convey("Given the recompute endpoint", t, func() {
		deps := &mockDependencies{score: types.Score{ID: "s-1", Value: 91.5}, inserted: true, changed: 3}
		h := newRouter(deps)

		Convey("Then one ship can be rescored", func() {
			w := do(h, http.MethodPost, "/scores/recompute?ship_id=DDG-51", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"changed":1`)
			So(w.Body.String(), ShouldContainSubstring, `"value":91.5`)
		})

		Convey("Then the fleet can be rescored", func() {
			w := do(h, http.MethodPost, "/scores/recompute", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"changed":3`)
		})

		Convey("Then an unknown ship is not found", func() {
			w := do(h, http.MethodPost, "/scores/recompute?ship_id=FFG-7", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestQuarantineHandler(t *testing.T) {
	Convey("Given the quarantine endpoints", t, func() {
		at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		deps := &mockDependencies{quarantine: []model.QuarantineEntry{{
			RecordID: "r-1", ShipID: "DDG-51", EventType: "engine_overhaul", Reason: "work order mismatch", QuarantinedAt: at,
		}}}
		h := newRouter(deps)

		Convey("Then entries are listed", func() {
			w := do(h, http.MethodGet, "/quarantine", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"record_id":"r-1"`)
		})

		Convey("Then an entry can be resolved", func() {
			w := do(h, http.MethodPost, "/quarantine/r-1/resolve", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(deps.resolved, ShouldResemble, []string{"r-1"})
			So(deps.actions, ShouldResemble, []model.ResolveAction{""})
		})

		Convey("Then the apply action is passed through", func() {
			w := do(h, http.MethodPost, "/quarantine/r-1/resolve?action=apply", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(deps.actions, ShouldResemble, []model.ResolveAction{model.ResolveApply})
		})

		Convey("Then an unknown action is a bad request", func() {
			deps.resolveErr = fmt.Errorf("%w: %q", service.ErrInvalidAction, "merge")
			w := do(h, http.MethodPost, "/quarantine/r-1/resolve?action=merge", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then a record whose candidate is gone is a conflict", func() {
			deps.resolveErr = service.ErrNotApplicable
			w := do(h, http.MethodPost, "/quarantine/r-1/resolve?action=apply", "")
			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Then resolving an unknown entry is not found", func() {
			deps.resolveErr = repository.ErrNotFound
			w := do(h, http.MethodPost, "/quarantine/r-9/resolve", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPartsHandler(t *testing.T) {
	Convey("Given the part dependency endpoints", t, func() {
		deps := &mockDependencies{hops: []dependency.Hop{{From: "turbine", To: "gearbox", Depth: 1, Path: []string{"turbine", "gearbox"}}}}
		h := newRouter(deps)

		Convey("Then a trace is returned with the requested depth", func() {
			w := do(h, http.MethodGet, "/parts/turbine/dependencies?depth=2", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"to":"gearbox"`)
			So(deps.depths, ShouldResemble, []int{2})
		})

		Convey("Then a bad depth is refused", func() {
			w := do(h, http.MethodGet, "/parts/turbine/dependencies?depth=x", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then an edge can be added", func() {
			w := do(h, http.MethodPost, "/parts/turbine/dependencies", `{"depends_on":"gearbox"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(deps.edges, ShouldResemble, [][2]string{{"turbine", "gearbox"}})
		})

		Convey("Then a cycle is a conflict", func() {
			deps.addErr = fmt.Errorf("%w: gearbox -> turbine", dependency.ErrCycle)
			w := do(h, http.MethodPost, "/parts/gearbox/dependencies", `{"depends_on":"turbine"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Then a request without depends_on is refused", func() {
			w := do(h, http.MethodPost, "/parts/gearbox/dependencies", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestBearerAuth(t *testing.T) {
	Convey("Given a router protected by API keys", t, func() {
		deps := &mockDependencies{}
		h := newRouter(deps, api.WithValidator(auth.NewAPIKeys(map[string]string{"k-1": "ops"})))
		csv := "hull,type,date\nDDG-51,hull inspection,2025-01-01\n"

		Convey("Then writes without a token are unauthorized", func() {
			w := do(h, http.MethodPost, "/ingest?format=csv", csv)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(deps.submitted, ShouldBeEmpty)
		})

		Convey("Then writes with a bad token are unauthorized", func() {
			w := do(h, http.MethodPost, "/ingest?format=csv", csv, "Authorization", "Bearer k-2")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then writes with a valid token pass", func() {
			w := do(h, http.MethodPost, "/ingest?format=csv", csv, "Authorization", "Bearer k-1")
			So(w.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("Then reads stay open", func() {
			w := do(h, http.MethodGet, "/status?ship_id=DDG-51", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then they match their kind and cause", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: boom")
		})

		Convey("Then Wrap classifies lower-layer errors", func() {
			So(errors.Is(api.Wrap("op", repository.ErrNotFound), api.ErrNotFound), ShouldBeTrue)
			So(errors.Is(api.Wrap("op", service.ErrBackpressure), api.ErrBackpressure), ShouldBeTrue)
			So(errors.Is(api.Wrap("op", dependency.ErrCycle), api.ErrConflict), ShouldBeTrue)
			So(errors.Is(api.Wrap("op", cause), api.ErrInternal), ShouldBeTrue)
			So(errors.Is(api.Wrap("outer", err), api.ErrBadRequest), ShouldBeTrue)
		})

		Convey("Then NewKind reports the kind", func() {
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
		})
	})
}
