package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/fleetready/internal/domain/dependency"
	"github.com/okian/fleetready/pkg/logger"
)

// PartsHandler handles part dependency requests.
type PartsHandler struct {
	deps PartsDependencies
	log  logger.Logger
}

// NewPartsHandler creates a new parts handler.
func NewPartsHandler(deps PartsDependencies, log logger.Logger) *PartsHandler {
	return &PartsHandler{deps: deps, log: log}
}

type dependenciesResponse struct {
	Part string           `json:"part"`
	Hops []dependency.Hop `json:"hops"`
}

type addDependencyRequest struct {
	DependsOn string `json:"depends_on"`
}

// HandleGetDependencies handles GET /parts/{part}/dependencies?depth= requests.
func (h *PartsHandler) HandleGetDependencies(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_dependencies"
	part := chi.URLParam(r, "part")
	depth, ok := intParam(r, "depth", 0)
	if !ok {
		writeError(r.Context(), h.log, w, WrapKind(op, ErrBadRequest, errors.New("depth must be a non-negative integer")))
		return
	}
	hops := h.deps.Dependencies(r.Context(), part, depth)
	if hops == nil {
		hops = []dependency.Hop{}
	}
	writeJSON(w, http.StatusOK, dependenciesResponse{Part: part, Hops: hops})
}

// HandleAddDependency handles POST /parts/{part}/dependencies requests.
// An edge that would close a cycle is refused with 409.
func (h *PartsHandler) HandleAddDependency(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_dependency"
	part := chi.URLParam(r, "part")
	var req addDependencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), h.log, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.DependsOn) == "" {
		writeError(r.Context(), h.log, w, WrapKind(op, ErrBadRequest, errors.New("missing depends_on")))
		return
	}
	if err := h.deps.AddDependency(r.Context(), part, req.DependsOn); err != nil {
		writeError(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"part": part, "depends_on": req.DependsOn})
}
