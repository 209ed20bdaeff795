package transfer

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/service"
)

type Importer struct {
	svc *service.Service
}

func NewImporter(svc *service.Service) *Importer {
	return &Importer{svc: svc}
}

// Import reads records from r and stores them one at a time according to
// strategy. Records that fail validation are reported as rejected and the
// import continues. A malformed file, or any storage error other than a
// validation failure, stops the import; the report then holds the results
// reached so far.
func (im *Importer) Import(ctx context.Context, r io.Reader, format Format, strategy Strategy) (*Report, error) {
	if strategy == "" {
		strategy = StrategyCreateNew
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, fmt.Errorf("transfer.Import: %w", err)
	}

	rep := &Report{ID: uuid.NewString(), Format: format, Strategy: strategy}

	var err error
	switch format {
	case FormatJSON:
		err = im.importJSON(ctx, r, rep)
	case FormatCSV:
		err = im.importCSV(ctx, r, rep)
	default:
		return nil, fmt.Errorf("transfer.Import: unsupported format %q: %w", format, domain.ErrValidation)
	}

	c := rep.Counts()
	log.Info().
		Str("import_id", rep.ID).
		Str("format", string(format)).
		Str("strategy", string(strategy)).
		Int("created", c.Created).
		Int("skipped", c.Skipped).
		Int("overwritten", c.Overwritten).
		Int("rejected", c.Rejected).
		Err(err).
		Msg("import finished")

	if err != nil {
		return rep, fmt.Errorf("transfer.Import: %w", err)
	}
	return rep, nil
}

func (im *Importer) importJSON(ctx context.Context, r io.Reader, rep *Report) error {
	sc, err := loadSchemas()
	if err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	doc, err := decodeJSON(data)
	if err != nil {
		return fmt.Errorf("malformed JSON: %w: %w", domain.ErrValidation, err)
	}
	if err := sc.envelope.Validate(doc); err != nil {
		return fmt.Errorf("invalid export envelope: %s: %w", schemaProblems(err), domain.ErrValidation)
	}

	var env struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("malformed JSON: %w: %w", domain.ErrValidation, err)
	}

	for i, raw := range env.Tasks {
		n := i + 1

		v, err := decodeJSON(raw)
		if err != nil {
			rep.add(RecordResult{Record: n, Outcome: OutcomeRejected, Reason: err.Error()})
			continue
		}
		if err := sc.task.Validate(v); err != nil {
			rep.add(RecordResult{Record: n, Outcome: OutcomeRejected, Reason: schemaProblems(err)})
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			rep.add(RecordResult{Record: n, Outcome: OutcomeRejected, Reason: err.Error()})
			continue
		}

		if err := im.apply(ctx, rep, n, rec); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
	}
	return nil
}

func (im *Importer) importCSV(ctx context.Context, r io.Reader, rep *Report) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("empty CSV input, want a header row: %w", domain.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("read CSV header: %w: %w", domain.ErrValidation, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["title"]; !ok {
		return fmt.Errorf("CSV header has no title column: %w", domain.ErrValidation)
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				rep.add(RecordResult{Record: pe.Line, Outcome: OutcomeRejected, Reason: pe.Err.Error()})
				continue
			}
			return fmt.Errorf("read CSV: %w", err)
		}

		line, _ := cr.FieldPos(0)
		rec, err := recordFromRow(cols, row)
		if err != nil {
			rep.add(RecordResult{Record: line, Outcome: OutcomeRejected, Reason: reason(err)})
			continue
		}

		if err := im.apply(ctx, rep, line, rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func recordFromRow(cols map[string]int, row []string) (record, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := record{
		ID:          recordID(get("id")),
		Title:       get("title"),
		Description: get("description"),
		Status:      get("status"),
		Priority:    get("priority"),
		Project:     get("project"),
	}
	if due := get("due_date"); due != "" {
		rec.DueDate = &due
	}
	if tags := get("tags"); tags != "" {
		rec.Tags = strings.Split(tags, tagSeparator)
	}
	if spent := get("time_spent_minutes"); spent != "" {
		n, err := strconv.Atoi(spent)
		if err != nil {
			return record{}, fmt.Errorf("time_spent_minutes %q is not an integer: %w", spent, domain.ErrValidation)
		}
		rec.TimeSpentMinutes = n
	}
	return rec, nil
}

// apply stores one record. Validation failures are recorded as rejections;
// any other error is returned and stops the import.
func (im *Importer) apply(ctx context.Context, rep *Report, n int, rec record) error {
	res := RecordResult{Record: n, SourceID: strings.TrimSpace(string(rec.ID))}

	t, err := rec.toTask()
	if err != nil {
		res.Outcome, res.Reason = OutcomeRejected, reason(err)
		rep.add(res)
		return nil
	}

	outcome, id, err := im.store(ctx, rep.Strategy, res.SourceID, t)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			res.Outcome, res.Reason = OutcomeRejected, reason(err)
			rep.add(res)
			return nil
		}
		return err
	}

	res.Outcome, res.TaskID = outcome, id
	rep.add(res)
	return nil
}

func (im *Importer) store(ctx context.Context, strategy Strategy, sourceID string, t *domain.Task) (Outcome, domain.TaskID, error) {
	if strategy == StrategyCreateNew || sourceID == "" {
		return im.create(ctx, t)
	}

	existing, err := im.svc.Get(ctx, domain.TaskID(sourceID))
	if err != nil {
		return "", "", err
	}
	if existing == nil {
		return im.create(ctx, t)
	}

	if strategy == StrategySkip {
		return OutcomeSkipped, existing.ID, nil
	}

	saved, err := im.svc.Replace(ctx, existing.ID, t)
	if err != nil {
		return "", "", err
	}
	return OutcomeOverwritten, saved.ID, nil
}

func (im *Importer) create(ctx context.Context, t *domain.Task) (Outcome, domain.TaskID, error) {
	saved, err := im.svc.CreateTask(ctx, t)
	if err != nil {
		return "", "", err
	}
	return OutcomeCreated, saved.ID, nil
}

// decodeJSON decodes data for schema validation, keeping numbers exact.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after the top-level value")
	}
	return v, nil
}

// reason renders a rejection without the sentinel suffix.
func reason(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+domain.ErrValidation.Error())
}
