// Package events handles the events-admin form: parsing posted values,
// validating them and turning them into an API request body.
package events

import (
	"errors"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"chaszcze-site/internal/models"
	"chaszcze-site/internal/util"
)

// Form mirrors the posted fields as typed by the operator so the page can be
// re-rendered with the same input after a validation error.
type Form struct {
	Name                   string
	Date                   string
	StartTime              string
	Location               string
	StartPointURL          string
	Categories             string
	Fee                    string
	RegistrationDeadline   string
	RegisteredParticipants string
	GoogleMapsURL          string
	GoogleDriveURL         string
}

// FieldErrors maps a form field name to a message shown next to it.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for k, v := range fe {
		parts = append(parts, k+": "+v)
	}
	return "invalid event form: " + strings.Join(parts, "; ")
}

// eventRules carries the validation tags; form tags name the fields as posted.
type eventRules struct {
	Name                   string   `form:"name" validate:"required,max=200"`
	Date                   string   `form:"date" validate:"required,datetime=2006-01-02"`
	StartTime              string   `form:"start_time" validate:"required,datetime=15:04"`
	Location               string   `form:"location" validate:"required,max=200"`
	StartPointURL          string   `form:"start_point_url" validate:"omitempty,url"`
	Categories             []string `form:"categories" validate:"min=1,unique,dive,max=32"`
	Fee                    *float64 `form:"fee" validate:"omitempty,gte=0"`
	RegistrationDeadline   *string  `form:"registration_deadline" validate:"omitempty,datetime=2006-01-02"`
	RegisteredParticipants int      `form:"registered_participants" validate:"gte=0"`
	GoogleMapsURL          *string  `form:"google_maps_url" validate:"omitempty,url"`
	GoogleDriveURL         *string  `form:"google_drive_url" validate:"omitempty,url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("form")
	})
	return v
}

// Parse reads the form from posted values.
func Parse(v url.Values) Form {
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }
	return Form{
		Name:                   get("name"),
		Date:                   get("date"),
		StartTime:              get("start_time"),
		Location:               get("location"),
		StartPointURL:          get("start_point_url"),
		Categories:             get("categories"),
		Fee:                    get("fee"),
		RegistrationDeadline:   get("registration_deadline"),
		RegisteredParticipants: get("registered_participants"),
		GoogleMapsURL:          get("google_maps_url"),
		GoogleDriveURL:         get("google_drive_url"),
	}
}

// FromEvent pre-fills the form for editing.
func FromEvent(e models.Event) Form {
	f := Form{
		Name:                   e.Name,
		Date:                   e.Date,
		StartTime:              e.StartTime,
		Location:               e.Location,
		StartPointURL:          e.StartPointURL,
		Categories:             strings.Join(e.Categories, ", "),
		RegisteredParticipants: strconv.Itoa(e.RegisteredParticipants),
	}
	if e.Fee != nil {
		f.Fee = strconv.FormatFloat(*e.Fee, 'f', -1, 64)
	}
	f.RegistrationDeadline = deref(e.RegistrationDeadline)
	f.GoogleMapsURL = deref(e.GoogleMapsURL)
	f.GoogleDriveURL = deref(e.GoogleDriveURL)
	return f
}

// Input validates the form and builds the API body. A non-nil error is always
// a FieldErrors.
func (f Form) Input() (models.EventInput, error) {
	errs := FieldErrors{}
	r := eventRules{
		Name:                 f.Name,
		Date:                 f.Date,
		StartTime:            f.StartTime,
		Location:             f.Location,
		StartPointURL:        f.StartPointURL,
		Categories:           rawCategories(f.Categories),
		RegistrationDeadline: optional(f.RegistrationDeadline),
		GoogleMapsURL:        optional(f.GoogleMapsURL),
		GoogleDriveURL:       optional(f.GoogleDriveURL),
	}

	if f.Fee != "" {
		fee, err := strconv.ParseFloat(strings.Replace(f.Fee, ",", ".", 1), 64)
		if err != nil {
			errs["fee"] = "Podaj kwotę liczbą"
		} else {
			r.Fee = &fee
		}
	}
	if f.RegisteredParticipants != "" {
		n, err := strconv.Atoi(f.RegisteredParticipants)
		if err != nil {
			errs["registered_participants"] = "Podaj liczbę całkowitą"
		} else {
			r.RegisteredParticipants = n
		}
	}

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return models.EventInput{}, err
		}
		for _, fe := range verrs {
			field := fieldName(fe)
			if _, ok := errs[field]; !ok {
				errs[field] = message(fe)
			}
		}
	}
	if len(errs) > 0 {
		return models.EventInput{}, errs
	}

	return models.EventInput{
		Name:                   r.Name,
		Date:                   r.Date,
		StartTime:              r.StartTime,
		Location:               r.Location,
		StartPointURL:          r.StartPointURL,
		Categories:             util.SplitList(f.Categories),
		Fee:                    r.Fee,
		RegistrationDeadline:   r.RegistrationDeadline,
		RegisteredParticipants: r.RegisteredParticipants,
		GoogleMapsURL:          r.GoogleMapsURL,
		GoogleDriveURL:         r.GoogleDriveURL,
	}, nil
}

// rawCategories splits without de-duplicating so repeats are reported.
func rawCategories(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fieldName strips the element index validator adds for dive errors.
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Pole jest wymagane"
	case "datetime":
		if fe.Param() == "15:04" {
			return "Podaj godzinę w formacie GG:MM"
		}
		return "Podaj datę w formacie RRRR-MM-DD"
	case "url":
		return "Podaj poprawny adres URL"
	case "min":
		return "Podaj co najmniej jedną kategorię"
	case "unique":
		return "Kategorie nie mogą się powtarzać"
	case "gte":
		return "Wartość nie może być ujemna"
	case "max":
		return "Wartość jest za długa"
	default:
		return "Niepoprawna wartość"
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
