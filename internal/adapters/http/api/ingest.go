package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/internal/domain/normalize"
	"github.com/okian/fleetready/pkg/logger"
)

// IngestHandler handles manual file uploads.
type IngestHandler struct {
	deps    IngestDependencies
	maxBody int64
	log     logger.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps IngestDependencies, maxBody int64, log logger.Logger) *IngestHandler {
	return &IngestHandler{deps: deps, maxBody: maxBody, log: log}
}

type ingestResponse struct {
	Status  string `json:"status"`
	BatchID string `json:"batch_id"`
	Records int    `json:"records"`
}

// HandlePostIngest handles POST /ingest?source=&format= requests. The body
// is one vendor file; it is split into records and queued as one batch.
func (h *IngestHandler) HandlePostIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_ingest"
	ctx := r.Context()
	q := r.URL.Query()

	source := strings.TrimSpace(q.Get("source"))
	if source == "" {
		source = "upload"
	}
	format := model.Format(strings.ToLower(strings.TrimSpace(q.Get("format"))))
	if !format.Valid() {
		writeError(ctx, h.log, w, WrapKind(op, ErrBadRequest, fmt.Errorf("unknown format %q", format)))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(ctx, h.log, w, WrapKind(op, ErrBadRequest, fmt.Errorf("body exceeds %d bytes", tooLarge.Limit)))
			return
		}
		writeError(ctx, h.log, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	parts, err := normalize.Split(format, data)
	if err != nil {
		writeError(ctx, h.log, w, WrapKind(op, ErrBadRequest, err))
		return
	}

	b := model.Batch{Source: source, Records: make([]model.RawRecord, 0, len(parts))}
	for _, p := range parts {
		b.Records = append(b.Records, model.RawRecord{Source: source, Format: format, Data: p})
	}
	id, err := h.deps.Submit(ctx, b)
	if err != nil {
		writeError(ctx, h.log, w, Wrap(op, err))
		return
	}
	h.log.Info(ctx, "upload queued",
		logger.String("batch_id", id),
		logger.String("source", source),
		logger.String("format", string(format)),
		logger.Int("records", len(b.Records)))
	writeJSON(w, http.StatusAccepted, ingestResponse{Status: "accepted", BatchID: id, Records: len(b.Records)})
}
