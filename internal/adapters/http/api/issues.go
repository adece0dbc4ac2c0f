package api

import (
	"net/http"

	"github.com/okian/fleetready/internal/domain/types"
	"github.com/okian/fleetready/pkg/logger"
)

// IssuesHandler handles compliance issue requests.
type IssuesHandler struct {
	deps IssuesDependencies
	log  logger.Logger
}

// NewIssuesHandler creates a new issues handler.
func NewIssuesHandler(deps IssuesDependencies, log logger.Logger) *IssuesHandler {
	return &IssuesHandler{deps: deps, log: log}
}

type issuesResponse struct {
	Count  int               `json:"count"`
	Issues []types.IssueView `json:"issues"`
}

// HandleGetIssues handles GET /compliance/issues?severity= requests.
// severity is a minimum: "medium" returns medium and high issues.
func (h *IssuesHandler) HandleGetIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.deps.Issues(r.Context(), r.URL.Query().Get("severity"))
	if err != nil {
		writeError(r.Context(), h.log, w, Wrap("api.get_issues", err))
		return
	}
	if issues == nil {
		issues = []types.IssueView{}
	}
	writeJSON(w, http.StatusOK, issuesResponse{Count: len(issues), Issues: issues})
}
