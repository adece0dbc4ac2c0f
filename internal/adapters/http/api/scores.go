package api

import (
	"net/http"
	"strings"

	"github.com/okian/fleetready/internal/domain/types"
	"github.com/okian/fleetready/pkg/logger"
)

// ScoresHandler handles on-demand recompute requests.
type ScoresHandler struct {
	deps ScoresDependencies
	log  logger.Logger
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoresDependencies, log logger.Logger) *ScoresHandler {
	return &ScoresHandler{deps: deps, log: log}
}

type recomputeResponse struct {
	ShipID  string       `json:"ship_id,omitempty"`
	Changed int          `json:"changed"`
	Score   *types.Score `json:"score,omitempty"`
}

// HandleRecompute handles POST /scores/recompute?ship_id= requests.
// Without ship_id the whole fleet is rescored.
func (h *ScoresHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.recompute"
	ctx := r.Context()
	shipID := strings.TrimSpace(r.URL.Query().Get("ship_id"))
	if shipID == "" {
		changed, err := h.deps.RecomputeAll(ctx)
		if err != nil {
			writeError(ctx, h.log, w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, recomputeResponse{Changed: changed})
		return
	}

	score, inserted, err := h.deps.Recompute(ctx, shipID)
	if err != nil {
		writeError(ctx, h.log, w, Wrap(op, err))
		return
	}
	resp := recomputeResponse{ShipID: shipID, Score: &score}
	if inserted {
		resp.Changed = 1
	}
	writeJSON(w, http.StatusOK, resp)
}
