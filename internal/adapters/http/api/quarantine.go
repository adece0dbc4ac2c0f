package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/pkg/logger"
)

// QuarantineHandler handles quarantine review requests.
type QuarantineHandler struct {
	deps QuarantineDependencies
	log  logger.Logger
}

// NewQuarantineHandler creates a new quarantine handler.
func NewQuarantineHandler(deps QuarantineDependencies, log logger.Logger) *QuarantineHandler {
	return &QuarantineHandler{deps: deps, log: log}
}

type quarantineView struct {
	RecordID         string    `json:"record_id"`
	ShipID           string    `json:"ship_id"`
	EventType        string    `json:"event_type"`
	Reason           string    `json:"reason"`
	CandidateEventID string    `json:"candidate_event_id,omitempty"`
	QuarantinedAt    time.Time `json:"quarantined_at"`
}

// HandleList handles GET /quarantine requests.
func (h *QuarantineHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Quarantine(r.Context())
	if err != nil {
		writeError(r.Context(), h.log, w, Wrap("api.list_quarantine", err))
		return
	}
	out := make([]quarantineView, 0, len(entries))
	for _, e := range entries {
		out = append(out, quarantineView{
			RecordID:         e.RecordID,
			ShipID:           e.ShipID,
			EventType:        e.EventType,
			Reason:           e.Reason,
			CandidateEventID: e.CandidateEventID,
			QuarantinedAt:    e.QuarantinedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleResolve handles POST /quarantine/{record_id}/resolve?action=
// requests. action is "discard" (default) or "apply".
func (h *QuarantineHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve_quarantine"
	id := chi.URLParam(r, "record_id")
	action := model.ResolveAction(r.URL.Query().Get("action"))
	if err := h.deps.ResolveQuarantine(r.Context(), id, action); err != nil {
		writeError(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
