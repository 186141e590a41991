// Package landing assembles the public page: the latest events with their
// results, falling back to fixed placeholder data whenever the API is
// unavailable.
package landing

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"chaszcze-site/internal/models"
)

// FallbackEventName is shown when no event could be loaded.
const FallbackEventName = "Przykładowe wydarzenie"

func strPtr(s string) *string { return &s }

// FallbackEvent is a fresh copy of the placeholder event.
func FallbackEvent() models.Event {
	fee := 20.0
	return models.Event{
		ID:                     1,
		Name:                   FallbackEventName,
		Date:                   "2024-01-01",
		StartTime:              "10:00",
		Location:               "Las miejski",
		StartPointURL:          "#",
		Categories:             []string{"Open", "Junior"},
		Fee:                    &fee,
		RegistrationDeadline:   strPtr("2023-12-31"),
		RegisteredParticipants: 50,
		GoogleMapsURL:          strPtr("#"),
		GoogleDriveURL:         strPtr("#"),
		CreatedAt:              "2024-01-01",
		UpdatedAt:              "2024-01-01",
	}
}

// FallbackResults is a fresh copy of the placeholder grid.
func FallbackResults() models.ResultsGrid {
	id := 1
	return models.ResultsGrid{
		"Open": {{
			ID:            &id,
			EventID:       1,
			Category:      "Open",
			Team:          "Przykładowy zespół",
			PenaltyPoints: 0,
			CreatedAt:     "2024-01-01 10:00:00",
			UpdatedAt:     "2024-01-01 10:00:00",
		}},
	}
}

type EventsAPI interface {
	ListLatestEvents(ctx context.Context) ([]models.Event, error)
	GetResults(ctx context.Context, sess models.Session, eventID int) (models.ResultsGrid, error)
}

// RegistrationCounter reports live sign-ups for the upcoming event.
type RegistrationCounter interface {
	RegistrationCount(ctx context.Context) (int, error)
}

// Page is everything the public page renders.
type Page struct {
	Featured       models.Event
	Events         []models.Event
	Results        map[int]models.ResultsGrid
	EventsFallback bool
}

// ResultsFor returns the grid loaded for eventID, nil when the event is unknown.
func (p Page) ResultsFor(eventID int) models.ResultsGrid {
	return p.Results[eventID]
}

// Event looks up a loaded event by id.
func (p Page) Event(id int) (models.Event, bool) {
	for _, e := range p.Events {
		if e.ID == id {
			return e, true
		}
	}
	return models.Event{}, false
}

type Loader struct {
	api     EventsAPI
	counter RegistrationCounter
	log     logrus.FieldLogger
}

// NewLoader builds a loader; counter may be nil.
func NewLoader(api EventsAPI, counter RegistrationCounter, log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{api: api, counter: counter, log: log}
}

// Load never fails: every failed fetch is logged and replaced by placeholder
// data.
func (l *Loader) Load(ctx context.Context) Page {
	var p Page

	events, err := l.api.ListLatestEvents(ctx)
	switch {
	case err != nil:
		l.log.WithError(err).Warn("using fallback data for events")
		events = nil
	case len(events) == 0:
		l.log.Info("no events returned, using fallback data")
	}
	if len(events) == 0 {
		events = []models.Event{FallbackEvent()}
		p.EventsFallback = true
	}

	if !p.EventsFallback && l.counter != nil {
		if n, err := l.counter.RegistrationCount(ctx); err != nil {
			l.log.WithError(err).Warn("registration count unavailable")
		} else if n > 0 {
			events[0].RegisteredParticipants = n
		}
	}

	p.Events = events
	p.Featured = events[0]
	p.Results = l.loadResults(ctx, events)
	return p
}

func (l *Loader) loadResults(ctx context.Context, events []models.Event) map[int]models.ResultsGrid {
	out := make(map[int]models.ResultsGrid, len(events))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, ev := range events {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			grid, err := l.api.GetResults(ctx, models.Session{}, id)
			if err != nil {
				l.log.WithField("event_id", id).WithError(err).Warn("using fallback data for results")
				grid = FallbackResults()
			}
			mu.Lock()
			out[id] = grid
			mu.Unlock()
		}(ev.ID)
	}
	wg.Wait()
	return out
}
