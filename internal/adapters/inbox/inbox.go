// Package inbox ingests vendor files dropped into a directory.
//
// Each scan picks up regular files whose extension names a supported
// format, ingests each file as one batch and moves it to processed/ or
// failed/. A file whose batch could not be persisted stays in place for
// the next scan.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/internal/domain/normalize"
	"github.com/okian/fleetready/pkg/logger"
)

// Subdirectories that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Sink ingests one batch synchronously.
type Sink interface {
	IngestBatch(ctx context.Context, b model.Batch) (model.BatchReport, error)
}

// Result summarizes one scan.
type Result struct {
	Processed []string
	Failed    []string
	Deferred  []string
}

// Inbox scans one directory.
type Inbox struct {
	dir    string
	source string
	sink   Sink
	log    logger.Logger
	now    func() time.Time
}

// New creates an Inbox over dir feeding sink.
func New(dir string, sink Sink, opts ...Option) *Inbox {
	in := &Inbox{dir: dir, source: "inbox", sink: sink, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// FormatFor maps a file extension to its format tag.
func FormatFor(path string) (model.Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return model.FormatCSV, true
	case ".json":
		return model.FormatJSON, true
	case ".xml":
		return model.FormatXML, true
	case ".yaml", ".yml":
		return model.FormatYAML, true
	}
	return "", false
}

// Scan ingests every eligible file in name order. It returns the first
// ingestion error after moving on through the remaining files.
func (in *Inbox) Scan(ctx context.Context) (Result, error) {
	var res Result
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return res, fmt.Errorf("read inbox: %w", err)
	}
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(in.dir, sub), 0o755); err != nil {
			return res, fmt.Errorf("prepare inbox: %w", err)
		}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, ok := FormatFor(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		path := filepath.Join(in.dir, name)
		err := in.ingestFile(ctx, path)
		switch {
		case err == nil:
			res.Processed = append(res.Processed, name)
			in.move(ctx, path, ProcessedDir)
		case isFileFault(err):
			res.Failed = append(res.Failed, name)
			in.log.Warn(ctx, "inbox file rejected", logger.String("file", name), logger.Error(err))
			in.move(ctx, path, FailedDir)
		default:
			res.Deferred = append(res.Deferred, name)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return res, errors.Join(errs...)
}

// IngestFile ingests one file of the given format under source.
func IngestFile(ctx context.Context, sink Sink, path, source string, format model.Format) (model.BatchReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.BatchReport{}, fmt.Errorf("read %s: %w", path, err)
	}
	parts, err := normalize.Split(format, data)
	if err != nil {
		return model.BatchReport{}, err
	}
	b := model.Batch{ID: uuid.NewString(), Source: source, ReceivedAt: time.Now().UTC()}
	for _, p := range parts {
		b.Records = append(b.Records, model.RawRecord{Source: source, Format: format, Data: p})
	}
	return sink.IngestBatch(ctx, b)
}

func (in *Inbox) ingestFile(ctx context.Context, path string) error {
	format, _ := FormatFor(path)
	rep, err := IngestFile(ctx, in.sink, path, in.source, format)
	if err != nil {
		return err
	}
	in.log.Info(ctx, "inbox file ingested",
		logger.String("file", filepath.Base(path)),
		logger.String("batch_id", rep.BatchID),
		logger.Int("accepted", rep.Accepted),
		logger.Int("rejected", rep.Rejected),
		logger.Int("duplicates", rep.Duplicates))
	return nil
}

func (in *Inbox) move(ctx context.Context, path, sub string) {
	stamp := in.now().UTC().Format("20060102T150405")
	dst := filepath.Join(in.dir, sub, stamp+"-"+filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		in.log.Error(ctx, "failed to move inbox file", logger.String("file", path), logger.String("to", dst), logger.Error(err))
	}
}

// isFileFault reports errors caused by the file itself.
func isFileFault(err error) bool {
	return errors.Is(err, normalize.ErrFormat) || errors.Is(err, normalize.ErrSchemaMismatch)
}
