package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/server/middleware"
	"github.com/gosuda/vibetodo/internal/service"
)

type taskView struct {
	ID          string
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     string
	Tags        []string
	Project     string
	TimeSpent   string
	Overdue     bool
}

type indexPage struct {
	Backend    string
	Tasks      []taskView
	Stats      service.Stats
	Hours      string
	Filter     string
	Error      string
	Protected  bool
	Statuses   []domain.TaskStatus
	Priorities []domain.TaskPriority
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := indexPage{
		Backend:    s.svc.Backend(),
		Error:      r.URL.Query().Get("error"),
		Statuses:   domain.TaskStatuses,
		Priorities: domain.TaskPriorities,
	}
	if method, ok := middleware.AuthMethodFromContext(r.Context()); ok && method != middleware.AuthMethodNone {
		page.Protected = true
	}

	var filter service.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			page.Error = uiMessage(err)
			s.render(w, http.StatusBadRequest, page)
			return
		}
		filter.Status = &st
		page.Filter = string(st)
	}

	tasks, err := s.svc.List(r.Context(), filter)
	if err == nil {
		page.Stats, err = s.svc.Statistics(r.Context())
	}
	if err != nil {
		page.Error = uiMessage(err)
		s.render(w, uiStatus(err), page)
		return
	}

	now := s.now()
	page.Tasks = make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		page.Tasks = append(page.Tasks, viewTask(t, now))
	}
	page.Hours = strconv.FormatFloat(page.Stats.TotalTimeHours(), 'f', 1, 64)

	s.render(w, http.StatusOK, page)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.redirect(w, r, fmt.Errorf("reading form: %w", domain.ErrValidation))
		return
	}

	p := service.CreateParams{
		Title:       r.PostForm.Get("title"),
		Description: strings.TrimSpace(r.PostForm.Get("description")),
		Project:     strings.TrimSpace(r.PostForm.Get("project")),
		Tags:        splitTags(r.PostForm.Get("tags")),
	}
	if raw := r.PostForm.Get("priority"); raw != "" {
		prio, err := domain.ParsePriority(raw)
		if err != nil {
			s.redirect(w, r, err)
			return
		}
		p.Priority = prio
	}
	if raw := strings.TrimSpace(r.PostForm.Get("due_date")); raw != "" {
		due, err := domain.ParseDate(raw)
		if err != nil {
			s.redirect(w, r, err)
			return
		}
		p.DueDate = &due
	}

	_, err := s.svc.Create(r.Context(), p)
	s.redirect(w, r, err)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := domain.ParseStatus(r.FormValue("status"))
	if err != nil {
		s.redirect(w, r, err)
		return
	}
	t, err := s.svc.SetStatus(r.Context(), taskID(r), st)
	s.redirect(w, r, found(t != nil, err))
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	minutes, err := strconv.Atoi(strings.TrimSpace(r.FormValue("minutes")))
	if err != nil || minutes <= 0 {
		s.redirect(w, r, fmt.Errorf("minutes must be a positive number: %w", domain.ErrValidation))
		return
	}
	t, err := s.svc.AddTime(r.Context(), taskID(r), minutes)
	s.redirect(w, r, found(t != nil, err))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ok, err := s.svc.Delete(r.Context(), taskID(r))
	s.redirect(w, r, found(ok, err))
}

func (s *Server) render(w http.ResponseWriter, status int, page indexPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, "index.html", page); err != nil {
		log.Error().Err(err).Msg("ui: rendering index")
	}
}

// redirect sends the browser back to the task list, carrying err as a flash
// message. The current status filter is kept.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, err error) {
	q := url.Values{}
	if f := r.FormValue("filter"); f != "" {
		q.Set("status", f)
	}
	if err != nil {
		q.Set("error", uiMessage(err))
	}
	target := "/"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func taskID(r *http.Request) domain.TaskID {
	return domain.TaskID(chi.URLParam(r, "id"))
}

// found turns a missing task into domain.ErrNotFound.
func found(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task not found: %w", domain.ErrNotFound)
	}
	return nil
}

func uiMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimSuffix(err.Error(), ": "+domain.ErrValidation.Error())
		if _, rest, ok := strings.Cut(msg, ": "); ok && strings.HasPrefix(msg, "service.") {
			msg = rest
		}
		return msg
	case errors.Is(err, domain.ErrNotFound):
		return "task not found"
	case errors.Is(err, domain.ErrBackendUnavailable):
		log.Warn().Err(err).Msg("ui: backend unavailable")
		return "backend unavailable, try again later"
	default:
		log.Error().Err(err).Msg("ui: request failed")
		return "something went wrong"
	}
}

func uiStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func viewTask(t *domain.Task, now time.Time) taskView {
	v := taskView{
		ID:          string(t.ID),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Tags:        t.Tags,
		Project:     t.Project,
		TimeSpent:   t.FormatTimeSpent(),
		Overdue:     t.IsOverdue(now),
	}
	if t.DueDate != nil {
		v.DueDate = domain.FormatDate(*t.DueDate)
	}
	return v
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
