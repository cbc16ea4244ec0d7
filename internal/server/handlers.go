package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kairon/backend"
	"kairon/internal/app"
	"kairon/internal/store"
	"kairon/internal/views"
)

type taskRequest struct {
	Title      *string             `json:"title"`
	Category   *string             `json:"category"`
	Priority   *backend.Priority   `json:"priority"`
	Due        *time.Time          `json:"dueDateTime"`
	Recurrence *backend.Recurrence `json:"recurrence"`
	Tags       *[]string           `json:"tags"`
	Notes      *string             `json:"notes"`
	Subtasks   *[]backend.Subtask  `json:"subtasks"`
	// ReminderMinutes is the lead before due; omitted uses the configured default.
	ReminderMinutes *int `json:"reminderMinutes"`
}

func (req taskRequest) draft() store.Draft {
	var d store.Draft
	if req.Title != nil {
		d.Title = *req.Title
	}
	if req.Category != nil {
		d.Category = *req.Category
	}
	if req.Priority != nil {
		d.Priority = *req.Priority
	}
	if req.Due != nil {
		d.Due = *req.Due
	}
	if req.Recurrence != nil {
		d.Recurrence = *req.Recurrence
	}
	if req.Tags != nil {
		d.Tags = *req.Tags
	}
	if req.Notes != nil {
		d.Notes = *req.Notes
	}
	if req.Subtasks != nil {
		d.Subtasks = *req.Subtasks
	}
	return d
}

func (req taskRequest) patch() store.Patch {
	return store.Patch{
		Title:      req.Title,
		Category:   req.Category,
		Priority:   req.Priority,
		Due:        req.Due,
		Recurrence: req.Recurrence,
		Tags:       req.Tags,
		Notes:      req.Notes,
		Subtasks:   req.Subtasks,
	}
}

func (req taskRequest) lead() int {
	if req.ReminderMinutes == nil {
		return app.DefaultLead
	}
	return *req.ReminderMinutes
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := views.Criteria{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Priority: q.Get("priority"),
		Tag:      q.Get("tag"),
		Window:   views.Window(q.Get("window")),
		Sort:     views.SortKey(q.Get("sort")),
	}
	writeJSON(w, http.StatusOK, nonNil(views.Filter(s.app.Tasks.All(), c, s.app.Now())))
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "%v", err)
		return
	}
	t, err := s.app.CreateTask(r.Context(), req.draft(), req.lead())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	t, ok := s.app.Tasks.Get(id)
	if !ok {
		writeError(w, backend.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	var req taskRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "%v", err)
		return
	}
	t, err := s.app.UpdateTask(r.Context(), id, req.patch(), req.lead())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	t, err := s.app.CompleteTask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) toggleSubtask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		badRequest(w, "invalid subtask index %q", chi.URLParam(r, "index"))
		return
	}
	t, err := s.app.ToggleSubtask(r.Context(), id, index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	if err := s.app.DeleteTask(r.Context(), id, confirmed(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reorderTasks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "%v", err)
		return
	}
	if err := s.app.Reorder(r.Context(), req.IDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Tasks.Active())
}

func (s *Server) today(w http.ResponseWriter, r *http.Request) {
	v := s.app.Today(s.app.Now())
	v.Overdue, v.DueToday, v.Active = nonNil(v.Overdue), nonNil(v.DueToday), nonNil(v.Active)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) listInterests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.app.Interests.All()))
}

func (s *Server) createInterest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decode(r, &req); err != nil {
		badRequest(w, "%v", err)
		return
	}
	in, err := s.app.AddInterest(r.Context(), req.Title, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) deleteInterest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	if !confirmed(r) {
		writeError(w, app.ErrConfirmationRequired)
		return
	}
	if err := s.app.DeleteInterest(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Settings.Get())
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	// Fields absent from the body keep their current values.
	req := s.app.Settings.Get()
	if err := decode(r, &req); err != nil {
		badRequest(w, "%v", err)
		return
	}
	saved, err := s.app.SaveSettings(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Analytics())
}

func (s *Server) calendar(w http.ResponseWriter, r *http.Request) {
	day := s.app.Now()
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := time.ParseInLocation("2006-01", m, day.Location())
		if err != nil {
			badRequest(w, "invalid month %q (want YYYY-MM)", m)
			return
		}
		day = parsed
	}
	writeJSON(w, http.StatusOK, nonNil(s.app.Calendar(day)))
}

func (s *Server) exportICS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="kairon.ics"`)
	if err := s.app.ExportICS(w); err != nil {
		writeError(w, err)
	}
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Quote(r.Context()))
}

func (s *Server) weather(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Weather(r.Context()))
}

func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.app.Inbox.List()))
}
