package api

import (
	"net/http"
	"strings"

	"github.com/okian/fleetready/pkg/logger"
)

// StatusHandler handles ship status requests.
type StatusHandler struct {
	deps StatusDependencies
	log  logger.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps StatusDependencies, log logger.Logger) *StatusHandler {
	return &StatusHandler{deps: deps, log: log}
}

// HandleGetStatus handles GET /status?ship_id= requests.
func (h *StatusHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_status"
	shipID := strings.TrimSpace(r.URL.Query().Get("ship_id"))
	if shipID == "" {
		writeError(r.Context(), h.log, w, NewKind(op, ErrBadRequest))
		return
	}
	st, err := h.deps.Status(r.Context(), shipID)
	if err != nil {
		writeError(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
