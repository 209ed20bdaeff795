package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/service"
)

func (a *App) cmdAdd(ctx context.Context, args []string) error {
	fs := newFlagSet(a, "add")
	desc := fs.String("d", "", "Description")
	prio := fs.String("p", string(domain.TaskPriorityMedium), "Priority (low|medium|high|urgent)")
	status := fs.String("s", string(domain.TaskStatusTodo), "Status (todo|in_progress|done)")
	due := fs.String("due", "", "Due date (YYYY-MM-DD or ISO-8601)")
	tags := fs.String("t", "", "Tags, comma separated")
	project := fs.String("project", "", "Project name")
	spent := fs.String("time", "", "Time already spent (90, 45m, 1.5h)")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) == 0 {
		return wantArgs(pos, 1, "add TITLE [flags]")
	}

	p := service.CreateParams{
		Title:       strings.Join(pos, " "),
		Description: *desc,
		Tags:        splitList(*tags),
		Project:     strings.TrimSpace(*project),
	}
	if p.Priority, err = domain.ParsePriority(*prio); err != nil {
		return err
	}
	if p.Status, err = domain.ParseStatus(*status); err != nil {
		return err
	}
	if *due != "" {
		d, err := domain.ParseDate(*due)
		if err != nil {
			return err
		}
		p.DueDate = &d
	}
	if *spent != "" {
		if p.TimeSpentMinutes, err = ParseTimeInput(*spent); err != nil {
			return err
		}
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	t, err := svc.Create(ctx, p)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, a.styles.success("created #%s %s", t.ID, t.Title))
	return nil
}

func (a *App) cmdList(ctx context.Context, args []string) error {
	fs := newFlagSet(a, "list")
	status := fs.String("s", "", "Filter by status")
	project := fs.String("p", "", "Filter by project")
	tag := fs.String("tag", "", "Filter by tag")
	overdue := fs.Bool("overdue", false, "Only overdue tasks")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := wantArgs(pos, 0, "list [flags]"); err != nil {
		return err
	}

	f := service.ListFilter{Project: *project, Tag: *tag, Overdue: *overdue}
	if *status != "" {
		st, err := domain.ParseStatus(*status)
		if err != nil {
			return err
		}
		f.Status = &st
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	tasks, err := svc.List(ctx, f)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Fprintln(a.stdout, a.styles.dim.Render("no tasks"))
		return nil
	}
	fmt.Fprintln(a.stdout, a.styles.taskTable(tasks, a.now()))
	return nil
}

func (a *App) cmdShow(ctx context.Context, args []string) error {
	if err := wantArgs(args, 1, "show ID"); err != nil {
		return err
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	id := domain.TaskID(args[0])
	t, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return notFound(id)
	}

	fmt.Fprintln(a.stdout, a.styles.taskDetail(t, a.now()))
	return nil
}

func (a *App) cmdStart(ctx context.Context, args []string) error {
	return a.transition(ctx, args, "start", "started", (*service.Service).Start)
}

func (a *App) cmdDone(ctx context.Context, args []string) error {
	return a.transition(ctx, args, "done", "completed", (*service.Service).Complete)
}

func (a *App) cmdPause(ctx context.Context, args []string) error {
	return a.transition(ctx, args, "pause", "paused", (*service.Service).Pause)
}

func (a *App) transition(ctx context.Context, args []string, name, verb string,
	fn func(*service.Service, context.Context, domain.TaskID) (*domain.Task, error),
) error {
	if err := wantArgs(args, 1, name+" ID"); err != nil {
		return err
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	id := domain.TaskID(args[0])
	t, err := fn(svc, ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return notFound(id)
	}

	fmt.Fprintln(a.stdout, a.styles.success("%s #%s %s", verb, t.ID, t.Title))
	return nil
}

func (a *App) cmdTime(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return wantArgs(args, 2, "time ID DURATION")
	}
	minutes, err := ParseTimeInput(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	id := domain.TaskID(args[0])
	t, err := svc.AddTime(ctx, id, minutes)
	if err != nil {
		return err
	}
	if t == nil {
		return notFound(id)
	}

	fmt.Fprintln(a.stdout, a.styles.success("added %s to #%s", domain.FormatMinutes(minutes), t.ID))
	fmt.Fprintln(a.stdout, "  total: "+t.FormatTimeSpent())
	return nil
}

func (a *App) cmdUpdate(ctx context.Context, args []string) error {
	fs := newFlagSet(a, "update")
	title := fs.String("title", "", "New title")
	desc := fs.String("d", "", "New description")
	prio := fs.String("p", "", "New priority")
	due := fs.String("due", "", "New due date")
	clearDue := fs.Bool("clear-due", false, "Remove the due date")
	tags := fs.String("t", "", "Replace tags, comma separated")
	project := fs.String("project", "", "New project")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := wantArgs(pos, 1, "update ID [flags]"); err != nil {
		return err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if len(set) == 0 {
		return fmt.Errorf("nothing to update: %w", domain.ErrValidation)
	}

	var p service.UpdateParams
	if set["title"] {
		p.Title = title
	}
	if set["d"] {
		p.Description = desc
	}
	if set["p"] {
		v, err := domain.ParsePriority(*prio)
		if err != nil {
			return err
		}
		p.Priority = &v
	}
	if set["due"] {
		if *clearDue {
			return fmt.Errorf("--due and --clear-due are exclusive: %w", domain.ErrValidation)
		}
		d, err := domain.ParseDate(*due)
		if err != nil {
			return err
		}
		p.DueDate = &d
	}
	p.ClearDueDate = *clearDue
	if set["t"] {
		v := splitList(*tags)
		p.Tags = &v
	}
	if set["project"] {
		v := strings.TrimSpace(*project)
		p.Project = &v
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	id := domain.TaskID(pos[0])
	t, err := svc.Update(ctx, id, p)
	if err != nil {
		return err
	}
	if t == nil {
		return notFound(id)
	}

	fmt.Fprintln(a.stdout, a.styles.success("updated #%s %s", t.ID, t.Title))
	return nil
}

func (a *App) cmdDelete(ctx context.Context, args []string) error {
	fs := newFlagSet(a, "delete")
	yes := fs.Bool("y", false, "Do not ask for confirmation")

	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := wantArgs(pos, 1, "delete ID [-y]"); err != nil {
		return err
	}
	id := domain.TaskID(pos[0])

	if !*yes && !a.confirm(fmt.Sprintf("Delete task #%s?", id)) {
		fmt.Fprintln(a.stdout, a.styles.dim.Render("cancelled"))
		return nil
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	ok, err := svc.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(id)
	}

	fmt.Fprintln(a.stdout, a.styles.success("deleted #%s", id))
	return nil
}

func (a *App) cmdStats(ctx context.Context, args []string) error {
	if err := wantArgs(args, 0, "stats"); err != nil {
		return err
	}

	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	st, err := svc.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, a.styles.statsTable(svc.Backend(), st))
	return nil
}

// splitList splits a comma separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
