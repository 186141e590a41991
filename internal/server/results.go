package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"chaszcze-site/internal/auth"
	"chaszcze-site/internal/grid"
	"chaszcze-site/internal/models"
	"chaszcze-site/internal/util"
)

type rowView struct {
	Index         int
	Team          string
	PenaltyPoints int
	Persisted     bool
}

type gridCategoryView struct {
	Name     string
	Declared bool
	Rows     []rowView
}

type resultsView struct {
	Events     []models.Event
	Selected   *models.Event
	State      string
	Dirty      bool
	LastErr    string
	Categories []gridCategoryView
	ListError  string
}

func (h *handlers) resultsPage(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	ed := h.Grids.Get(sess)

	var v resultsView
	list, err := h.Events.List(r.Context(), sess)
	if err != nil {
		h.Log.WithError(err).Error("failed to list events")
		v.ListError = "Nie udało się pobrać listy wydarzeń."
	}
	v.Events = list

	if raw := r.URL.Query().Get("event"); raw != "" {
		id, _ := strconv.Atoi(raw)
		switch {
		case id == ed.SelectedEventID() && r.URL.Query().Get("reload") != "":
			_ = ed.Reload(r.Context(), sess)
		case id != ed.SelectedEventID():
			if ev, ok := findEvent(list, id); ok {
				_ = ed.SelectEvent(r.Context(), sess, ev)
			}
		}
	}

	snap := ed.Snapshot()
	v.Selected = snap.Event
	v.State = snap.State.String()
	v.Dirty = snap.Dirty
	if snap.LastErr != nil {
		v.LastErr = "Ostatnia operacja nie powiodła się."
	}
	if snap.Event != nil {
		v.Categories = gridCategories(*snap.Event, snap.Grid)
	}
	h.render(w, http.StatusOK, "results.html", h.newView(r, "Wyniki", v))
}

// gridCategories lists declared categories first, including empty ones so a
// first row can be added, then whatever else the grid carries.
func gridCategories(ev models.Event, g models.ResultsGrid) []gridCategoryView {
	var out []gridCategoryView
	seen := map[string]bool{}
	add := func(name string, declared bool) {
		cv := gridCategoryView{Name: name, Declared: declared}
		for i, row := range g[name] {
			cv.Rows = append(cv.Rows, rowView{
				Index:         i,
				Team:          row.Team,
				PenaltyPoints: row.PenaltyPoints,
				Persisted:     row.Persisted(),
			})
		}
		out = append(out, cv)
		seen[name] = true
	}
	for _, c := range ev.Categories {
		if !seen[c] {
			add(c, true)
		}
	}
	for _, c := range g.Categories(ev.Categories) {
		if !seen[c] {
			add(c, false)
		}
	}
	return out
}

// resultsEdit applies every posted cell, then the requested action.
//
// Cells are named cell.<row>.<field>.<category>; the action is one of save,
// add_row:<category> or remove_row:<row>:<category>.
func (h *handlers) resultsEdit(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	ed := h.Grids.Get(sess)
	selected := ed.SelectedEventID()
	if selected == 0 {
		redirectResults(w, r, 0, "no_event")
		return
	}
	if posted, _ := strconv.Atoi(r.PostForm.Get("event_id")); posted != selected {
		redirectResults(w, r, selected, "stale")
		return
	}

	for key, vals := range r.PostForm {
		if !strings.HasPrefix(key, "cell.") || len(vals) == 0 {
			continue
		}
		parts := strings.SplitN(key, ".", 4)
		if len(parts) != 4 {
			continue
		}
		row, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		ed.UpdateCell(parts[3], row, grid.Field(parts[2]), vals[0])
	}

	action := r.PostForm.Get("action")
	msg := ""
	switch {
	case action == "save":
		switch err := ed.SaveAll(r.Context(), sess); {
		case err == nil:
			msg = "saved"
		case errors.Is(err, grid.ErrRefetchFailed):
			msg = "saved_reload_failed"
		default:
			msg = "save_failed"
		}
	case strings.HasPrefix(action, "add_row:"):
		ed.AddRow(strings.TrimPrefix(action, "add_row:"))
	case strings.HasPrefix(action, "remove_row:"):
		parts := strings.SplitN(strings.TrimPrefix(action, "remove_row:"), ":", 2)
		if len(parts) == 2 {
			row, err := strconv.Atoi(parts[0])
			if err == nil {
				if err := ed.RemoveRow(r.Context(), sess, parts[1], row); err != nil {
					msg = "remove_failed"
				}
			}
		}
	}
	redirectResults(w, r, selected, msg)
}

func (h *handlers) resultsAdd(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	ed := h.Grids.Get(sess)
	res := models.Result{
		Category:      r.PostForm.Get("category"),
		Team:          r.PostForm.Get("team"),
		PenaltyPoints: util.AtoiOrZero(r.PostForm.Get("penalty_points")),
	}

	msg := "added"
	switch err := ed.AddStandaloneResult(r.Context(), sess, res); {
	case err == nil:
	case errors.Is(err, grid.ErrNoEventSelected):
		msg = "no_event"
	case errors.Is(err, grid.ErrTeamRequired):
		msg = "team_required"
	case errors.Is(err, grid.ErrUnknownCategory):
		msg = "unknown_category"
	default:
		msg = "add_failed"
	}
	redirectResults(w, r, ed.SelectedEventID(), msg)
}

func redirectResults(w http.ResponseWriter, r *http.Request, eventID int, msg string) {
	q := url.Values{}
	if eventID != 0 {
		q.Set("event", strconv.Itoa(eventID))
	}
	if msg != "" {
		q.Set("msg", msg)
	}
	target := "/dashboard/results"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func findEvent(list []models.Event, id int) (models.Event, bool) {
	for _, e := range list {
		if e.ID == id {
			return e, true
		}
	}
	return models.Event{}, false
}
