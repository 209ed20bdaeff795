package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/transfer"
)

func (a *App) cmdExport(ctx context.Context, args []string) error {
	fs := newFlagSet(a, "export")
	format := fs.String("f", "", "Format (json|csv); inferred from -o when omitted")
	out := fs.String("o", "", "Output file (default stdout)")
	ids := fs.String("ids", "", "Only these task ids, comma separated")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := wantArgs(pos, 0, "export [flags]"); err != nil {
		return err
	}

	f, err := pickFormat(*format, *out)
	if err != nil {
		return err
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}

	var selected []domain.TaskID
	for _, id := range splitList(*ids) {
		selected = append(selected, domain.TaskID(id))
	}

	if *out == "" {
		_, err := transfer.NewExporter(svc).Export(ctx, a.stdout, f, selected)
		return err
	}

	n, err := exportFile(ctx, transfer.NewExporter(svc), *out, f, selected)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, a.styles.success("exported %d task(s) to %s", n, *out))
	return nil
}

// exportFile writes to a temporary file next to path and renames it into
// place, so a failed export never leaves a truncated file behind.
func exportFile(ctx context.Context, exp *transfer.Exporter, path string, f transfer.Format, ids []domain.TaskID) (int, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vibe-export-*")
	if err != nil {
		return 0, fmt.Errorf("cli.exportFile: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	n, err := exp.Export(ctx, tmp, f, ids)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("cli.exportFile: %w", err)
	}
	return n, nil
}

func (a *App) cmdImport(ctx context.Context, args []string) error {
	fs := newFlagSet(a, "import")
	format := fs.String("f", "", "Format (json|csv); inferred from the file name when omitted")
	strategy := fs.String("strategy", string(transfer.StrategyCreateNew), "Conflict strategy (skip|overwrite|create_new)")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := wantArgs(pos, 1, "import FILE [flags]"); err != nil {
		return err
	}
	path := pos[0]

	f, err := pickFormat(*format, path)
	if err != nil {
		return err
	}
	st, err := transfer.ParseStrategy(*strategy)
	if err != nil {
		return err
	}

	var r io.Reader
	if path == "-" {
		r = a.stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("cli.import: %w", err)
		}
		defer file.Close()
		r = file
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	rep, err := transfer.NewImporter(svc).Import(ctx, r, f, st)
	if rep != nil {
		fmt.Fprint(a.stdout, a.styles.importSummary(rep))
	}
	return err
}

// pickFormat uses the explicit format, else the file extension, else JSON
// for stdout.
func pickFormat(explicit, path string) (transfer.Format, error) {
	if explicit != "" {
		return transfer.ParseFormat(explicit)
	}
	if path == "" || path == "-" {
		return transfer.FormatJSON, nil
	}
	return transfer.FormatFromPath(path)
}

func (a *App) cmdBatch(ctx context.Context, args []string) error {
	const usage = "batch status|priority|project|tags VALUE ID... | batch delete [-y] ID..."
	if len(args) == 0 {
		return wantArgs(args, 1, usage)
	}
	op, rest := args[0], args[1:]

	if op == "delete" {
		fs := newFlagSet(a, "batch delete")
		yes := fs.Bool("y", false, "Do not ask for confirmation")
		pos, err := parseArgs(fs, rest)
		if err != nil {
			return err
		}
		if len(pos) == 0 {
			return wantArgs(pos, 1, usage)
		}
		if !*yes && !a.confirm(fmt.Sprintf("Delete %d task(s)?", len(pos))) {
			fmt.Fprintln(a.stdout, a.styles.dim.Render("cancelled"))
			return nil
		}
		return a.runBatch(ctx, "deleted", pos, func(svc batchService, ids []domain.TaskID) (int, error) {
			return svc.BatchDelete(ctx, ids)
		})
	}

	if len(rest) < 2 {
		return wantArgs(rest, 2, usage)
	}
	value, idArgs := rest[0], rest[1:]

	switch op {
	case "status":
		st, err := domain.ParseStatus(value)
		if err != nil {
			return err
		}
		return a.runBatch(ctx, "updated", idArgs, func(svc batchService, ids []domain.TaskID) (int, error) {
			return svc.BatchSetStatus(ctx, ids, st)
		})
	case "priority":
		p, err := domain.ParsePriority(value)
		if err != nil {
			return err
		}
		return a.runBatch(ctx, "updated", idArgs, func(svc batchService, ids []domain.TaskID) (int, error) {
			return svc.BatchSetPriority(ctx, ids, p)
		})
	case "project":
		return a.runBatch(ctx, "updated", idArgs, func(svc batchService, ids []domain.TaskID) (int, error) {
			return svc.BatchSetProject(ctx, ids, value)
		})
	case "tags":
		tags := splitList(value)
		return a.runBatch(ctx, "tagged", idArgs, func(svc batchService, ids []domain.TaskID) (int, error) {
			return svc.BatchAddTags(ctx, ids, tags)
		})
	default:
		return fmt.Errorf("unknown batch operation %q: %w", op, domain.ErrValidation)
	}
}

type batchService interface {
	BatchSetStatus(ctx context.Context, ids []domain.TaskID, status domain.TaskStatus) (int, error)
	BatchSetPriority(ctx context.Context, ids []domain.TaskID, priority domain.TaskPriority) (int, error)
	BatchSetProject(ctx context.Context, ids []domain.TaskID, project string) (int, error)
	BatchAddTags(ctx context.Context, ids []domain.TaskID, tags []string) (int, error)
	BatchDelete(ctx context.Context, ids []domain.TaskID) (int, error)
}

func (a *App) runBatch(ctx context.Context, verb string, idArgs []string, fn func(batchService, []domain.TaskID) (int, error)) error {
	ids := make([]domain.TaskID, 0, len(idArgs))
	for _, id := range idArgs {
		ids = append(ids, domain.TaskID(id))
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	n, err := fn(svc, ids)
	if err != nil && !errors.Is(err, domain.ErrValidation) {
		fmt.Fprintln(a.stdout, a.styles.warn.Render(fmt.Sprintf("%s %d of %d task(s) before failing", verb, n, len(ids))))
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, a.styles.success("%s %d of %d task(s)", verb, n, len(ids)))
	return nil
}
