package v1

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/transfer"
)

type ExportInput struct {
	Format string `query:"format" default:"json" doc:"json or csv"`
	IDs    string `query:"ids" doc:"Comma-separated task IDs; all tasks when empty"`
}

type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Count              string `header:"X-Task-Count"`
	Body               []byte
}

type ImportInput struct {
	Format      string `query:"format" doc:"json or csv; inferred from Content-Type when empty"`
	Strategy    string `query:"strategy" doc:"skip, overwrite or create_new (default)"`
	ContentType string `header:"Content-Type"`
	RawBody     []byte
}

type ImportOutput struct {
	Body struct {
		Report *transfer.Report `json:"report"`
		Counts transfer.Counts  `json:"counts"`
	}
}

func RegisterTransferRoutes(api huma.API, exp Exporter, imp Importer) {
	huma.Register(api, huma.Operation{
		OperationID: "export-tasks",
		Method:      http.MethodGet,
		Path:        "/export",
		Summary:     "Export tasks as JSON or CSV",
		Tags:        []string{"Transfer"},
	}, func(ctx context.Context, input *ExportInput) (*ExportOutput, error) {
		format, err := transfer.ParseFormat(input.Format)
		if err != nil {
			return nil, httpError(err, "invalid format")
		}

		var ids []domain.TaskID
		for id := range strings.SplitSeq(input.IDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, domain.TaskID(id))
			}
		}

		var buf bytes.Buffer
		n, err := exp.Export(ctx, &buf, format, ids)
		if err != nil {
			return nil, httpError(err, "failed to export tasks")
		}

		contentType := "application/json"
		if format == transfer.FormatCSV {
			contentType = "text/csv; charset=utf-8"
		}
		name := fmt.Sprintf("vibe_todo_%s.%s", time.Now().UTC().Format("20060102_150405"), format)

		return &ExportOutput{
			ContentType:        contentType,
			ContentDisposition: fmt.Sprintf("attachment; filename=%q", name),
			Count:              strconv.Itoa(n),
			Body:               buf.Bytes(),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-tasks",
		Method:      http.MethodPost,
		Path:        "/import",
		Summary:     "Import tasks from a JSON or CSV export",
		Description: "Invalid records are reported as rejected without failing the request.",
		Tags:        []string{"Transfer"},
	}, func(ctx context.Context, input *ImportInput) (*ImportOutput, error) {
		raw := input.Format
		if raw == "" {
			raw = formatFromContentType(input.ContentType)
		}
		format, err := transfer.ParseFormat(raw)
		if err != nil {
			return nil, httpError(err, "invalid format")
		}
		strategy, err := transfer.ParseStrategy(input.Strategy)
		if err != nil {
			return nil, httpError(err, "invalid strategy")
		}

		rep, err := imp.Import(ctx, bytes.NewReader(input.RawBody), format, strategy)
		if err != nil {
			return nil, httpError(err, "import failed")
		}

		out := &ImportOutput{}
		out.Body.Report = rep
		out.Body.Counts = rep.Counts()
		return out, nil
	})
}

func formatFromContentType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "json"
	}
	if mt == "text/csv" {
		return "csv"
	}
	return "json"
}
