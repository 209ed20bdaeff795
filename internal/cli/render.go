package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/service"
	"github.com/gosuda/vibetodo/internal/transfer"
)

// styles are bound to the renderer of the output they are written to, so
// colour is dropped automatically when stdout is not a terminal.
type styles struct {
	ok      lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
	label   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	border  lipgloss.Style
	box     lipgloss.Style
	done    lipgloss.Style
	status  map[domain.TaskStatus]lipgloss.Style
	urgency map[domain.TaskPriority]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		ok:     r.NewStyle().Foreground(lipgloss.Color("42")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("196")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("241")),
		label:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("170")).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		border: r.NewStyle().Foreground(lipgloss.Color("240")),
		box: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1),
		done: r.NewStyle().Foreground(lipgloss.Color("241")).Strikethrough(true),
		status: map[domain.TaskStatus]lipgloss.Style{
			domain.TaskStatusTodo:       r.NewStyle().Foreground(lipgloss.Color("39")),
			domain.TaskStatusInProgress: r.NewStyle().Foreground(lipgloss.Color("214")),
			domain.TaskStatusDone:       r.NewStyle().Foreground(lipgloss.Color("42")),
		},
		urgency: map[domain.TaskPriority]lipgloss.Style{
			domain.TaskPriorityLow:    r.NewStyle().Foreground(lipgloss.Color("241")),
			domain.TaskPriorityMedium: r.NewStyle(),
			domain.TaskPriorityHigh:   r.NewStyle().Foreground(lipgloss.Color("214")),
			domain.TaskPriorityUrgent: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		},
	}
}

func (s styles) success(format string, args ...any) string {
	return s.ok.Render("✓ " + fmt.Sprintf(format, args...))
}

// taskTable renders tasks as a bordered table. Done titles are struck
// through; overdue due dates are red and those due within three days yellow.
func (s styles) taskTable(tasks []*domain.Task, now time.Time) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			string(t.ID),
			t.Title,
			string(t.Status),
			string(t.Priority),
			orDash(timeSpent(t)),
			orDash(dueText(t)),
			orDash(strings.Join(t.Tags, ", ")),
		})
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.border).
		Headers("ID", "TITLE", "STATUS", "PRIORITY", "TIME", "DUE", "TAGS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			if row < 0 || row >= len(tasks) {
				return s.cell
			}
			t := tasks[row]
			switch col {
			case 0:
				return s.dim.Padding(0, 1)
			case 1:
				if t.Status == domain.TaskStatusDone {
					return s.done.Padding(0, 1)
				}
			case 2:
				return s.status[t.Status].Padding(0, 1)
			case 3:
				return s.urgency[t.Priority].Padding(0, 1)
			case 5:
				if t.IsOverdue(now) {
					return s.fail.Padding(0, 1)
				}
				if days, ok := t.DaysUntilDue(now); ok && days <= 3 && t.Status != domain.TaskStatusDone {
					return s.warn.Padding(0, 1)
				}
			}
			return s.cell
		})

	return tbl.String()
}

// taskDetail renders every field of one task in a box.
func (s styles) taskDetail(t *domain.Task, now time.Time) string {
	line := func(label, value string) string {
		return s.label.Render(fmt.Sprintf("%-12s", label)) + " " + value
	}

	lines := []string{
		line("Title:", t.Title),
		line("Description:", orNone(t.Description)),
		line("Status:", s.status[t.Status].Render(string(t.Status))),
		line("Priority:", s.urgency[t.Priority].Render(string(t.Priority))),
		line("Time spent:", t.FormatTimeSpent()),
		line("Due:", orNone(dueText(t))),
		line("Tags:", orNone(strings.Join(t.Tags, ", "))),
		line("Project:", orNone(t.Project)),
		line("Created:", stamp(t.CreatedAt)),
		line("Updated:", stamp(t.UpdatedAt)),
	}

	if t.IsOverdue(now) {
		lines = append(lines, "", s.fail.Bold(true).Render("! overdue"))
	} else if days, ok := t.DaysUntilDue(now); ok && days <= 3 && t.Status != domain.TaskStatusDone {
		lines = append(lines, "", s.warn.Render(fmt.Sprintf("due in %d day(s)", days)))
	}

	title := s.label.Render("Task #" + string(t.ID))
	return title + "\n" + s.box.Render(strings.Join(lines, "\n"))
}

func (s styles) statsTable(backend string, st service.Stats) string {
	rows := [][]string{
		{"Backend", backend},
		{"Total", strconv.Itoa(st.Total)},
		{"Todo", strconv.Itoa(st.Todo)},
		{"In progress", strconv.Itoa(st.InProgress)},
		{"Done", strconv.Itoa(st.Done)},
		{"Overdue", strconv.Itoa(st.Overdue)},
		{"Time spent", fmt.Sprintf("%.1f h", st.TotalTimeHours())},
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.border).
		Rows(rows...).
		StyleFunc(func(_, col int) lipgloss.Style {
			if col == 0 {
				return s.label.Padding(0, 1)
			}
			return s.cell.Align(lipgloss.Right)
		}).
		String()
}

func (s styles) importSummary(rep *transfer.Report) string {
	c := rep.Counts()
	var b strings.Builder
	fmt.Fprintf(&b, "%s  created %d, overwritten %d, skipped %d, rejected %d\n",
		s.label.Render("import "+string(rep.Format)), c.Created, c.Overwritten, c.Skipped, c.Rejected)

	rejected := rep.Rejections()
	if len(rejected) == 0 {
		return b.String()
	}

	rows := make([][]string, 0, len(rejected))
	for _, r := range rejected {
		rows = append(rows, []string{strconv.Itoa(r.Record), orDash(r.SourceID), r.Reason})
	}
	b.WriteString(table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.border).
		Headers("RECORD", "SOURCE ID", "REASON").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return s.fail.Padding(0, 1)
		}).
		String())
	b.WriteString("\n")
	return b.String()
}

func timeSpent(t *domain.Task) string {
	if t.TimeSpentMinutes <= 0 {
		return ""
	}
	return t.FormatTimeSpent()
}

func dueText(t *domain.Task) string {
	if t.DueDate == nil {
		return ""
	}
	return domain.FormatDate(*t.DueDate)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
