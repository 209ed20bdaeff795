package transfer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/service"
)

type Exporter struct {
	svc *service.Service
	now func() time.Time
}

func NewExporter(svc *service.Service) *Exporter {
	return &Exporter{svc: svc, now: time.Now}
}

// Export writes tasks to w and returns how many were written. With no ids
// every task is exported; otherwise only the listed ids that exist, in the
// order given.
func (e *Exporter) Export(ctx context.Context, w io.Writer, format Format, ids []domain.TaskID) (int, error) {
	tasks, err := e.collect(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("transfer.Export: %w", err)
	}

	records := make([]record, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, recordFromTask(t))
	}

	switch format {
	case FormatJSON:
		err = e.writeJSON(w, records)
	case FormatCSV:
		err = writeCSV(w, records)
	default:
		return 0, fmt.Errorf("transfer.Export: unsupported format %q: %w", format, domain.ErrValidation)
	}
	if err != nil {
		return 0, fmt.Errorf("transfer.Export: %w", err)
	}

	log.Debug().Str("format", string(format)).Int("count", len(records)).Str("backend", e.svc.Backend()).Msg("tasks exported")

	return len(records), nil
}

func (e *Exporter) collect(ctx context.Context, ids []domain.TaskID) ([]*domain.Task, error) {
	if len(ids) == 0 {
		return e.svc.List(ctx, service.ListFilter{})
	}

	tasks := make([]*domain.Task, 0, len(ids))
	for _, id := range ids {
		t, err := e.svc.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (e *Exporter) writeJSON(w io.Writer, records []record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope{
		Version:    Version,
		ExportDate: e.now().UTC().Format(time.RFC3339),
		Backend:    e.svc.Backend(),
		Tasks:      records,
	})
}

func writeCSV(w io.Writer, records []record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fields); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
