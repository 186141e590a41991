package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chaszcze-site/internal/api"
	"chaszcze-site/internal/auth"
	"chaszcze-site/internal/events"
	"chaszcze-site/internal/models"
)

type eventsListView struct {
	Events []models.Event
	Error  string
}

type eventFormView struct {
	ID     int
	Action string
	Form   events.Form
	Errors events.FieldErrors
	Error  string
}

func (h *handlers) eventsList(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	var v eventsListView
	list, err := h.Events.List(r.Context(), sess)
	if err != nil {
		h.Log.WithError(err).Error("failed to list events")
		v.Error = "Nie udało się pobrać listy wydarzeń."
	}
	v.Events = list
	h.render(w, http.StatusOK, "events.html", h.newView(r, "Wydarzenia", v))
}

func (h *handlers) eventNewForm(w http.ResponseWriter, r *http.Request) {
	v := eventFormView{Action: "/dashboard/events/new", Form: events.Form{RegisteredParticipants: "0"}}
	h.render(w, http.StatusOK, "event_form.html", h.newView(r, "Nowe wydarzenie", v))
}

func (h *handlers) eventCreate(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	f := events.Parse(r.PostForm)
	if _, err := h.Events.Create(r.Context(), sess, f); err != nil {
		h.formFailed(w, r, eventFormView{Action: "/dashboard/events/new", Form: f}, "Nowe wydarzenie", err)
		return
	}
	http.Redirect(w, r, "/dashboard/events?msg=created", http.StatusSeeOther)
}

func (h *handlers) eventEditForm(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	ev, err := h.Events.Get(r.Context(), sess, id)
	if err != nil {
		h.eventLookupFailed(w, r, id, err)
		return
	}
	v := eventFormView{ID: id, Action: editPath(id), Form: events.FromEvent(ev)}
	h.render(w, http.StatusOK, "event_form.html", h.newView(r, "Edycja wydarzenia", v))
}

func (h *handlers) eventUpdate(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	f := events.Parse(r.PostForm)
	if _, err := h.Events.Update(r.Context(), sess, id, f); err != nil {
		h.formFailed(w, r, eventFormView{ID: id, Action: editPath(id), Form: f}, "Edycja wydarzenia", err)
		return
	}
	http.Redirect(w, r, "/dashboard/events?msg=updated", http.StatusSeeOther)
}

func (h *handlers) eventDelete(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	ev, err := h.Events.Get(r.Context(), sess, id)
	if err != nil {
		h.eventLookupFailed(w, r, id, err)
		return
	}
	if err := h.Events.Delete(r.Context(), sess, ev); err != nil {
		code := "delete_failed"
		if api.IsStatus(err, http.StatusForbidden) || api.IsStatus(err, http.StatusUnauthorized) {
			code = "forbidden"
		}
		http.Redirect(w, r, "/dashboard/events?msg="+code, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard/events?msg=deleted", http.StatusSeeOther)
}

// formFailed re-renders the form with what the operator typed.
func (h *handlers) formFailed(w http.ResponseWriter, r *http.Request, v eventFormView, title string, err error) {
	var fe events.FieldErrors
	switch {
	case errors.As(err, &fe):
		v.Errors = fe
		h.render(w, http.StatusUnprocessableEntity, "event_form.html", h.newView(r, title, v))
	case api.IsStatus(err, http.StatusForbidden), api.IsStatus(err, http.StatusUnauthorized):
		v.Error = flashes["forbidden"].text
		h.render(w, http.StatusForbidden, "event_form.html", h.newView(r, title, v))
	default:
		v.Error = "Nie udało się zapisać wydarzenia. Spróbuj ponownie."
		h.render(w, http.StatusBadGateway, "event_form.html", h.newView(r, title, v))
	}
}

func (h *handlers) eventLookupFailed(w http.ResponseWriter, r *http.Request, id int, err error) {
	if errors.Is(err, events.ErrNotFound) {
		h.notFound(w, r)
		return
	}
	h.Log.WithField("event_id", id).WithError(err).Error("failed to load event")
	http.Redirect(w, r, "/dashboard/events?msg=load_failed", http.StatusSeeOther)
}

func editPath(id int) string {
	return fmt.Sprintf("/dashboard/events/%d/edit", id)
}
