package api

import (
	"errors"
	"net/http"

	"github.com/okian/fleetready/pkg/logger"
)

// FleetHandler handles fleet summary requests.
type FleetHandler struct {
	deps     FleetDependencies
	maxLimit int
	log      logger.Logger
}

// NewFleetHandler creates a new fleet handler.
func NewFleetHandler(deps FleetDependencies, maxLimit int, log logger.Logger) *FleetHandler {
	return &FleetHandler{deps: deps, maxLimit: maxLimit, log: log}
}

// HandleGetSummary handles GET /fleet/summary?limit=N requests. Without a
// limit every ranked ship is returned, least ready first.
func (h *FleetHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_fleet_summary"
	n, ok := intParam(r, "limit", 0)
	if !ok {
		writeError(r.Context(), h.log, w, WrapKind(op, ErrBadRequest, errors.New("limit must be a non-negative integer")))
		return
	}
	if n > h.maxLimit {
		writeError(r.Context(), h.log, w, WrapKind(op, ErrBadRequest, errors.New("limit exceeds maximum")))
		return
	}
	sum, err := h.deps.FleetSummary(r.Context(), n)
	if err != nil {
		writeError(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
