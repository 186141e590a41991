package models

import (
	"sort"
	"strings"
	"time"
)

// Event mirrors the API's event resource.
type Event struct {
	ID                     int      `json:"id"`
	Name                   string   `json:"name"`
	Date                   string   `json:"date"`       // 2006-01-02
	StartTime              string   `json:"start_time"` // 15:04
	Location               string   `json:"location"`
	StartPointURL          string   `json:"start_point_url"`
	Categories             []string `json:"categories"`
	Fee                    *float64 `json:"fee,omitempty"`
	RegistrationDeadline   *string  `json:"registration_deadline,omitempty"`
	RegisteredParticipants int      `json:"registered_participants"`
	GoogleMapsURL          *string  `json:"google_maps_url,omitempty"`
	GoogleDriveURL         *string  `json:"google_drive_url,omitempty"`
	Deleted                bool     `json:"deleted"`
	CreatedAt              string   `json:"created_at,omitempty"`
	UpdatedAt              string   `json:"updated_at,omitempty"`
}

// EventInput is the create/update body: an Event without server-owned fields.
type EventInput struct {
	Name                   string   `json:"name"`
	Date                   string   `json:"date"`
	StartTime              string   `json:"start_time"`
	Location               string   `json:"location"`
	StartPointURL          string   `json:"start_point_url"`
	Categories             []string `json:"categories"`
	Fee                    *float64 `json:"fee,omitempty"`
	RegistrationDeadline   *string  `json:"registration_deadline,omitempty"`
	RegisteredParticipants int      `json:"registered_participants"`
	GoogleMapsURL          *string  `json:"google_maps_url,omitempty"`
	GoogleDriveURL         *string  `json:"google_drive_url,omitempty"`
}

// Input strips the server-owned fields.
func (e Event) Input() EventInput {
	return EventInput{
		Name:                   e.Name,
		Date:                   e.Date,
		StartTime:              e.StartTime,
		Location:               e.Location,
		StartPointURL:          e.StartPointURL,
		Categories:             append([]string(nil), e.Categories...),
		Fee:                    e.Fee,
		RegistrationDeadline:   e.RegistrationDeadline,
		RegisteredParticipants: e.RegisteredParticipants,
		GoogleMapsURL:          e.GoogleMapsURL,
		GoogleDriveURL:         e.GoogleDriveURL,
	}
}

// HasCategory reports whether c is one of the event's declared categories.
func (e Event) HasCategory(c string) bool {
	for _, declared := range e.Categories {
		if declared == c {
			return true
		}
	}
	return false
}

// Result is one team's score in one category. ID is nil until the API has
// persisted the row.
type Result struct {
	ID            *int   `json:"id,omitempty"`
	EventID       int    `json:"event_id"`
	Category      string `json:"category"`
	Team          string `json:"team"`
	PenaltyPoints int    `json:"penalty_points"`
	Deleted       bool   `json:"deleted,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// Persisted reports whether the row exists on the API side.
func (r Result) Persisted() bool { return r.ID != nil }

// ResultsGrid maps a category label to its rows in ranking order.
type ResultsGrid map[string][]Result

// Clone returns a deep copy; row order is kept.
func (g ResultsGrid) Clone() ResultsGrid {
	out := make(ResultsGrid, len(g))
	for cat, rows := range g {
		cp := make([]Result, len(rows))
		for i, r := range rows {
			if r.ID != nil {
				id := *r.ID
				r.ID = &id
			}
			cp[i] = r
		}
		out[cat] = cp
	}
	return out
}

// Categories lists the grid's categories for display: declared ones first in
// their declared order, then any extra categories the grid carries, sorted.
func (g ResultsGrid) Categories(declared []string) []string {
	seen := make(map[string]bool, len(g))
	out := make([]string, 0, len(g))
	for _, c := range declared {
		if _, ok := g[c]; ok && !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	var extra []string
	for c := range g {
		if !seen[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Rows counts all rows across categories.
func (g ResultsGrid) Rows() int {
	n := 0
	for _, rows := range g {
		n += len(rows)
	}
	return n
}

// Session is what the site remembers about a logged-in operator.
type Session struct {
	ID          string
	AccessToken string
	Name        string
	Email       string
	Roles       []string
	Expiry      time.Time
}

// HasToken reports whether API calls should carry a bearer header.
func (s Session) HasToken() bool { return strings.TrimSpace(s.AccessToken) != "" }

func (s Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// ArchiveEntry is one past edition shown in the archive carousel.
type ArchiveEntry struct {
	ID           int
	Title        string
	Date         string
	Participants int
	Image        string
	DriveURL     string
	Description  string
}
