package server

import (
	"encoding/json"
	"html/template"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chaszcze-site/internal/archive"
	"chaszcze-site/internal/auth"
	"chaszcze-site/internal/content"
	"chaszcze-site/internal/landing"
	"chaszcze-site/internal/models"
	"chaszcze-site/internal/util"
)

type categoryResults struct {
	Name string
	Rows []models.Result
}

type eventResults struct {
	Event      models.Event
	Categories []categoryResults
}

type indexView struct {
	Featured        models.Event
	Events          []eventResults
	Fallback        bool
	RegistrationURL string

	About        template.HTML
	Registration template.HTML
	Rules        template.HTML

	Archive     archive.Carousel
	ArchivePrev int
	ArchiveNext int
	Totals      archive.Totals
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	page := h.Landing.Load(r.Context())

	v := indexView{
		Featured:        page.Featured,
		Fallback:        page.EventsFallback,
		RegistrationURL: h.RegistrationURL,
		About:           h.Content.Get(content.About),
		Registration:    h.Content.Get(content.Registration),
		Rules:           h.Content.Get(content.Rules),
	}
	for _, ev := range page.Events {
		v.Events = append(v.Events, eventResults{Event: ev, Categories: orderedResults(ev, page.ResultsFor(ev.ID))})
	}

	entries := archive.Entries()
	idx, _ := strconv.Atoi(r.URL.Query().Get("archiwum"))
	v.Archive = archive.NewCarousel(entries, archive.DefaultPerView, idx)
	v.ArchivePrev = v.Archive.Prev().Index
	v.ArchiveNext = v.Archive.Next().Index
	v.Totals = archive.Sum(entries)

	h.render(w, http.StatusOK, "index.html", h.newView(r, "INO Chaszcze", v))
}

func orderedResults(ev models.Event, g models.ResultsGrid) []categoryResults {
	var out []categoryResults
	for _, cat := range g.Categories(ev.Categories) {
		if len(g[cat]) == 0 {
			continue
		}
		out = append(out, categoryResults{Name: cat, Rows: g[cat]})
	}
	return out
}

// resultsCSV serves the same results the public page shows.
func (h *handlers) resultsCSV(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	page := h.Landing.Load(r.Context())
	ev, ok := page.Event(id)
	if !ok {
		h.notFound(w, r)
		return
	}
	body := landing.BuildResultsCSV(ev, page.ResultsFor(id))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": landing.CSVFilename(ev)}))
	_, _ = w.Write([]byte(body))
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok": true,
		"ts": util.NowISO(),
	})
}

type loginView struct {
	Error string
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Auth.SessionFromRequest(r); err == nil {
		http.Redirect(w, r, auth.AfterLogin, http.StatusFound)
		return
	}
	var lv loginView
	if f, ok := flashes[r.URL.Query().Get("error")]; ok {
		lv.Error = f.text
	}
	h.render(w, http.StatusOK, "login.html", h.newView(r, "Logowanie", lv))
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "dashboard.html", h.newView(r, "Panel organizatora", nil))
}

func (h *handlers) notFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusNotFound, "notfound.html", h.newView(r, "Nie znaleziono", nil))
}
