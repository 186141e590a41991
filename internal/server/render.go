package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"

	"github.com/gorilla/csrf"

	"chaszcze-site/internal/auth"
	"chaszcze-site/internal/models"
	"chaszcze-site/internal/util"
)

//go:embed templates/*.html
var templatesFS embed.FS

var funcs = template.FuncMap{
	"date": util.FormatDatePL,
	"place": func(i int) int {
		return i + 1
	},
	"medal": func(i int) string {
		switch i {
		case 0:
			return "🥇"
		case 1:
			return "🥈"
		case 2:
			return "🥉"
		}
		return ""
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"fee": func(f *float64) string {
		if f == nil {
			return ""
		}
		return strconv.FormatFloat(*f, 'f', -1, 64) + " zł"
	},
}

// pages holds one parsed template set per page, each combined with the layout.
type pages struct {
	byName map[string]*template.Template
}

func loadPages() (*pages, error) {
	names, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	p := &pages{byName: map[string]*template.Template{}}
	for _, name := range names {
		base := path.Base(name)
		if base == "layout.html" {
			continue
		}
		tpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", base, err)
		}
		p.byName[base] = tpl
	}
	return p, nil
}

// view is what every page template receives.
type view struct {
	Title    string
	Session  *models.Session
	IsAdmin  bool
	DevMode  bool
	CSRF     template.HTML
	Flash    string
	FlashErr bool
	Data     interface{}
}

func (h *handlers) newView(r *http.Request, title string, data interface{}) view {
	v := view{
		Title:   title,
		DevMode: h.Auth.DevMode(),
		CSRF:    csrf.TemplateField(r),
		Data:    data,
	}
	if sess, ok := auth.FromContext(r.Context()); ok {
		v.Session = &sess
		v.IsAdmin = sess.HasRole("admin")
	}
	if code := r.URL.Query().Get("msg"); code != "" {
		if f, ok := flashes[code]; ok {
			v.Flash, v.FlashErr = f.text, f.isErr
		}
	}
	return v
}

// render buffers the page so a template error never leaves a half-written
// response.
func (h *handlers) render(w http.ResponseWriter, status int, page string, v view) {
	tpl, ok := h.pages.byName[page]
	if !ok {
		h.Log.WithField("page", page).Error("unknown template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, v); err != nil {
		h.Log.WithField("page", page).WithError(err).Error("render failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type flash struct {
	text  string
	isErr bool
}

var flashes = map[string]flash{
	"saved":               {"Wyniki zapisane.", false},
	"saved_reload_failed": {"Wyniki zapisane, ale nie udało się ich ponownie pobrać. Odśwież z API przed dalszą edycją.", true},
	"save_failed":         {"Nie udało się zapisać wyników. Zmiany nadal są w edytorze.", true},
	"added":               {"Wynik dodany.", false},
	"add_failed":          {"Nie udało się dodać wyniku.", true},
	"removed":             {"Wynik usunięty.", false},
	"remove_failed":       {"Nie udało się usunąć wyniku.", true},
	"team_required":       {"Podaj nazwę drużyny.", true},
	"unknown_category":    {"Wybierz kategorię z listy wydarzenia.", true},
	"no_event":            {"Najpierw wybierz wydarzenie.", true},
	"stale":               {"Edytor pokazuje już inne wydarzenie, odśwież stronę.", true},
	"load_failed":         {"Nie udało się pobrać danych z API.", true},
	"created":             {"Wydarzenie utworzone.", false},
	"updated":             {"Wydarzenie zaktualizowane.", false},
	"deleted":             {"Wydarzenie usunięte.", false},
	"delete_failed":       {"Nie udało się usunąć wydarzenia.", true},
	"forbidden":           {"Brak uprawnień do tej operacji.", true},
	"provider":            {"Logowanie zostało przerwane przez dostawcę tożsamości.", true},
	"exchange":            {"Nie udało się dokończyć logowania.", true},
}
