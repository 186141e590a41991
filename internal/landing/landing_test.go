package landing

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"chaszcze-site/internal/models"
)

type fakeAPI struct {
	events    []models.Event
	eventsErr error
	grids     map[int]models.ResultsGrid
	failFor   map[int]bool

	mu      sync.Mutex
	fetched []int
}

func (f *fakeAPI) ListLatestEvents(context.Context) ([]models.Event, error) {
	return f.events, f.eventsErr
}

func (f *fakeAPI) GetResults(_ context.Context, sess models.Session, id int) (models.ResultsGrid, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()
	if sess.HasToken() {
		return nil, errors.New("public page must not send a token")
	}
	if f.failFor[id] {
		return nil, errors.New("HTTP 500")
	}
	return f.grids[id], nil
}

type fakeCounter struct {
	n   int
	err error
}

func (c fakeCounter) RegistrationCount(context.Context) (int, error) { return c.n, c.err }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func intPtr(v int) *int { return &v }

func TestLoadFallsBackWhenEventsFail(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{"transport error", &fakeAPI{eventsErr: errors.New("connection refused"), failFor: map[int]bool{1: true}}},
		{"empty list", &fakeAPI{events: []models.Event{}, failFor: map[int]bool{1: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewLoader(tt.api, nil, quietLogger()).Load(context.Background())

			if p.Featured.Name != "Przykładowe wydarzenie" {
				t.Errorf("featured name = %q", p.Featured.Name)
			}
			if !p.EventsFallback || len(p.Events) != 1 {
				t.Errorf("events = %+v fallback=%v", p.Events, p.EventsFallback)
			}
			if !reflect.DeepEqual(p.ResultsFor(1), FallbackResults()) {
				t.Errorf("results = %+v", p.ResultsFor(1))
			}
		})
	}
}

func TestLoadFetchesResultsPerEvent(t *testing.T) {
	api := &fakeAPI{
		events: []models.Event{
			{ID: 5, Name: "Chaszcze 2025", Categories: []string{"TSZ"}},
			{ID: 4, Name: "Chaszcze 2024", Categories: []string{"TJ"}},
			{ID: 3, Name: "Chaszcze 2023"},
		},
		grids: map[int]models.ResultsGrid{
			5: {"TSZ": {{ID: intPtr(1), EventID: 5, Category: "TSZ", Team: "Wilki"}}},
			4: {},
		},
		failFor: map[int]bool{3: true},
	}
	p := NewLoader(api, nil, quietLogger()).Load(context.Background())

	if p.EventsFallback || p.Featured.ID != 5 {
		t.Fatalf("featured = %+v fallback=%v", p.Featured, p.EventsFallback)
	}
	if len(api.fetched) != 3 {
		t.Errorf("fetched results for %v", api.fetched)
	}
	if got := p.ResultsFor(5)["TSZ"]; len(got) != 1 || got[0].Team != "Wilki" {
		t.Errorf("results for 5 = %+v", p.ResultsFor(5))
	}
	if got := p.ResultsFor(4); got == nil || len(got) != 0 {
		t.Errorf("results for 4 = %+v", got)
	}
	if !reflect.DeepEqual(p.ResultsFor(3), FallbackResults()) {
		t.Errorf("failed fetch should fall back, got %+v", p.ResultsFor(3))
	}
	if ev, ok := p.Event(4); !ok || ev.Name != "Chaszcze 2024" {
		t.Errorf("Event(4) = %+v, %v", ev, ok)
	}
	if _, ok := p.Event(99); ok {
		t.Error("Event(99) should be missing")
	}
}

func TestLoadRegistrationCount(t *testing.T) {
	events := func() []models.Event {
		return []models.Event{{ID: 5, RegisteredParticipants: 12}, {ID: 4, RegisteredParticipants: 30}}
	}
	tests := []struct {
		name    string
		counter RegistrationCounter
		want    int
	}{
		{"no counter", nil, 12},
		{"live count", fakeCounter{n: 41}, 41},
		{"zero keeps api value", fakeCounter{n: 0}, 12},
		{"error keeps api value", fakeCounter{err: errors.New("quota")}, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{events: events()}
			p := NewLoader(api, tt.counter, quietLogger()).Load(context.Background())
			if p.Featured.RegisteredParticipants != tt.want {
				t.Errorf("registered = %d, want %d", p.Featured.RegisteredParticipants, tt.want)
			}
			if p.Events[1].RegisteredParticipants != 30 {
				t.Error("only the featured event takes the live count")
			}
		})
	}
}

func TestFallbackCountNotOverridden(t *testing.T) {
	api := &fakeAPI{eventsErr: errors.New("down")}
	p := NewLoader(api, fakeCounter{n: 7}, quietLogger()).Load(context.Background())
	if p.Featured.RegisteredParticipants != 50 {
		t.Errorf("placeholder count = %d, want 50", p.Featured.RegisteredParticipants)
	}
}

func TestFallbackCopiesAreIndependent(t *testing.T) {
	a := FallbackEvent()
	a.Categories[0] = "changed"
	*a.Fee = 99
	b := FallbackEvent()
	if b.Categories[0] != "Open" || *b.Fee != 20 {
		t.Errorf("fallback event shared state: %+v", b)
	}
}
