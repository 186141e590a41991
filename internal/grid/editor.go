// Package grid holds the results-grid editor used by the dashboard: an
// in-memory copy of one event's results that operators edit and then push to
// the API as a single replace.
package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"chaszcze-site/internal/models"
	"chaszcze-site/internal/util"
)

var (
	ErrNoEventSelected = errors.New("no event selected")
	ErrTeamRequired    = errors.New("team name is required")
	ErrUnknownCategory = errors.New("category is not declared on the event")

	// ErrRefetchFailed means the bulk save went through but the grid could not
	// be read back afterwards.
	ErrRefetchFailed = errors.New("results saved but reload failed")
)

// State of an editor. There is no terminal state.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	default:
		return "uninitialized"
	}
}

// Field names a cell column.
type Field string

const (
	FieldTeam          Field = "team"
	FieldPenaltyPoints Field = "penalty_points"
)

// ResultsAPI is the slice of the API client the editor needs.
type ResultsAPI interface {
	GetResults(ctx context.Context, sess models.Session, eventID int) (models.ResultsGrid, error)
	ReplaceResults(ctx context.Context, sess models.Session, eventID int, grid models.ResultsGrid) error
	CreateResult(ctx context.Context, sess models.Session, r models.Result) (models.Result, error)
	DeleteResult(ctx context.Context, sess models.Session, id int) error
}

// Announcer is told about every successful bulk save.
type Announcer interface {
	ResultsSaved(ctx context.Context, event models.Event, grid models.ResultsGrid)
}

// Editor is safe for concurrent use; operations are serialised.
type Editor struct {
	mu sync.Mutex

	api      ResultsAPI
	announce Announcer
	log      logrus.FieldLogger

	state   State
	event   *models.Event
	grid    models.ResultsGrid
	dirty   bool
	lastErr error
}

func NewEditor(api ResultsAPI, announce Announcer, log logrus.FieldLogger) *Editor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Editor{
		api:      api,
		announce: announce,
		log:      log,
		grid:     models.ResultsGrid{},
	}
}

// Snapshot is a read-only copy of the editor for rendering.
type Snapshot struct {
	State   State
	Event   *models.Event
	Grid    models.ResultsGrid
	Dirty   bool
	LastErr error
}

func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		State:   e.state,
		Grid:    e.grid.Clone(),
		Dirty:   e.dirty,
		LastErr: e.lastErr,
	}
	if e.event != nil {
		ev := *e.event
		s.Event = &ev
	}
	return s
}

// SelectedEventID returns 0 when nothing is selected.
func (e *Editor) SelectedEventID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.event == nil {
		return 0
	}
	return e.event.ID
}

// SelectEvent switches to event and refetches its grid. Unsaved edits are
// dropped. If the fetch fails the grid is left empty and the error is kept.
func (e *Editor) SelectEvent(ctx context.Context, sess models.Session, event models.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dirty {
		e.log.WithField("event_id", event.ID).Info("discarding unsaved results edits")
	}
	ev := event
	e.event = &ev
	e.grid = models.ResultsGrid{}
	e.dirty = false
	return e.reloadLocked(ctx, sess)
}

// Reload refetches the selected event's grid.
func (e *Editor) Reload(ctx context.Context, sess models.Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.event == nil {
		return ErrNoEventSelected
	}
	return e.reloadLocked(ctx, sess)
}

func (e *Editor) reloadLocked(ctx context.Context, sess models.Session) error {
	e.state = StateLoading
	fresh, err := e.api.GetResults(ctx, sess, e.event.ID)
	e.state = StateReady
	if err != nil {
		e.lastErr = err
		e.log.WithField("event_id", e.event.ID).WithError(err).Error("failed to fetch results")
		return err
	}
	e.grid = fresh
	e.dirty = false
	e.lastErr = nil
	return nil
}

// UpdateCell sets one field of one row. Unknown categories, rows or fields are
// ignored; the return value tells whether anything changed.
func (e *Editor) UpdateCell(category string, row int, field Field, value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, ok := e.grid[category]
	if !ok || row < 0 || row >= len(rows) {
		return false
	}
	updated := rows[row]
	switch field {
	case FieldTeam:
		updated.Team = value
	case FieldPenaltyPoints:
		updated.PenaltyPoints = util.AtoiOrZero(value)
	default:
		return false
	}
	if updated == rows[row] {
		return false
	}

	cp := make([]models.Result, len(rows))
	copy(cp, rows)
	cp[row] = updated
	e.grid[category] = cp
	e.dirty = true
	return true
}

// AddRow appends an empty, unpersisted row to category, creating it if needed.
func (e *Editor) AddRow(category string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	row := models.Result{Category: category}
	if e.event != nil {
		row.EventID = e.event.ID
	}
	rows := e.grid[category]
	cp := make([]models.Result, len(rows), len(rows)+1)
	copy(cp, rows)
	e.grid[category] = append(cp, row)
	e.dirty = true
}

// RemoveRow deletes a persisted row through the API and refetches, or splices
// an unpersisted row out locally without any network call.
func (e *Editor) RemoveRow(ctx context.Context, sess models.Session, category string, row int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, ok := e.grid[category]
	if !ok || row < 0 || row >= len(rows) {
		return nil
	}

	target := rows[row]
	if !target.Persisted() {
		cp := make([]models.Result, 0, len(rows)-1)
		cp = append(cp, rows[:row]...)
		cp = append(cp, rows[row+1:]...)
		e.grid[category] = cp
		e.dirty = true
		return nil
	}

	if err := e.api.DeleteResult(ctx, sess, *target.ID); err != nil {
		e.lastErr = err
		e.log.WithFields(logrus.Fields{"result_id": *target.ID, "category": category}).
			WithError(err).Error("failed to delete result")
		return err
	}
	if e.event == nil {
		return nil
	}
	return e.reloadLocked(ctx, sess)
}

// SaveAll sends the cleaned grid as one bulk replace and refetches on success.
// On failure the local grid is untouched. A failed refetch after a successful
// replace is reported as ErrRefetchFailed.
func (e *Editor) SaveAll(ctx context.Context, sess models.Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.event == nil {
		return ErrNoEventSelected
	}

	cleaned := Clean(e.grid)
	e.state = StateSaving
	err := e.api.ReplaceResults(ctx, sess, e.event.ID, cleaned)
	e.state = StateReady
	if err != nil {
		e.lastErr = err
		e.log.WithField("event_id", e.event.ID).WithError(err).Error("failed to save results")
		return err
	}
	e.dirty = false

	e.log.WithFields(logrus.Fields{
		"event_id":   e.event.ID,
		"categories": len(cleaned),
		"rows":       cleaned.Rows(),
	}).Info("results saved")
	if e.announce != nil {
		e.announce.ResultsSaved(ctx, *e.event, cleaned)
	}
	if err := e.reloadLocked(ctx, sess); err != nil {
		return fmt.Errorf("%w: %v", ErrRefetchFailed, err)
	}
	return nil
}

// AddStandaloneResult creates a single result for the selected event.
func (e *Editor) AddStandaloneResult(ctx context.Context, sess models.Session, r models.Result) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.event == nil {
		return ErrNoEventSelected
	}
	r.Team = strings.TrimSpace(r.Team)
	if r.Team == "" {
		return ErrTeamRequired
	}
	if !e.event.HasCategory(r.Category) {
		return ErrUnknownCategory
	}
	r.ID = nil
	r.EventID = e.event.ID

	if _, err := e.api.CreateResult(ctx, sess, r); err != nil {
		e.lastErr = err
		e.log.WithFields(logrus.Fields{"event_id": e.event.ID, "category": r.Category}).
			WithError(err).Error("failed to create result")
		return err
	}
	return e.reloadLocked(ctx, sess)
}

// Clean drops rows whose team is blank and categories left empty. The input is
// not modified.
func Clean(g models.ResultsGrid) models.ResultsGrid {
	out := models.ResultsGrid{}
	for cat, rows := range g {
		var kept []models.Result
		for _, r := range rows {
			if strings.TrimSpace(r.Team) != "" {
				kept = append(kept, r)
			}
		}
		if len(kept) > 0 {
			out[cat] = kept
		}
	}
	return out
}
