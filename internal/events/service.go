package events

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"chaszcze-site/internal/models"
)

var ErrNotFound = errors.New("event not found")

type API interface {
	ListAllEvents(ctx context.Context, sess models.Session) ([]models.Event, error)
	CreateEvent(ctx context.Context, sess models.Session, in models.EventInput) (models.Event, error)
	UpdateEvent(ctx context.Context, sess models.Session, id int, in models.EventInput) (models.Event, error)
	DeleteEvent(ctx context.Context, sess models.Session, id int) error
}

// Announcer hears about every successful change.
type Announcer interface {
	EventChanged(ctx context.Context, action string, event models.Event)
}

const (
	actionCreated = "created"
	actionUpdated = "updated"
	actionDeleted = "deleted"
)

// Service is the events-admin workflow on top of the API.
type Service struct {
	api      API
	announce Announcer
	log      logrus.FieldLogger
}

func NewService(api API, announce Announcer, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{api: api, announce: announce, log: log}
}

// List returns active events; soft-deleted ones are filtered out in case the
// API sends them.
func (s *Service) List(ctx context.Context, sess models.Session) ([]models.Event, error) {
	all, err := s.api.ListAllEvents(ctx, sess)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, e := range all {
		if !e.Deleted {
			out = append(out, e)
		}
	}
	return out, nil
}

// Get looks the event up in the full list; the API has no single-event read.
func (s *Service) Get(ctx context.Context, sess models.Session, id int) (models.Event, error) {
	list, err := s.List(ctx, sess)
	if err != nil {
		return models.Event{}, err
	}
	for _, e := range list {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Event{}, ErrNotFound
}

func (s *Service) Create(ctx context.Context, sess models.Session, f Form) (models.Event, error) {
	in, err := f.Input()
	if err != nil {
		return models.Event{}, err
	}
	ev, err := s.api.CreateEvent(ctx, sess, in)
	if err != nil {
		s.log.WithField("name", in.Name).WithError(err).Error("failed to create event")
		return models.Event{}, err
	}
	s.log.WithField("event_id", ev.ID).Info("event created")
	s.notify(ctx, actionCreated, ev)
	return ev, nil
}

func (s *Service) Update(ctx context.Context, sess models.Session, id int, f Form) (models.Event, error) {
	in, err := f.Input()
	if err != nil {
		return models.Event{}, err
	}
	ev, err := s.api.UpdateEvent(ctx, sess, id, in)
	if err != nil {
		s.log.WithField("event_id", id).WithError(err).Error("failed to update event")
		return models.Event{}, err
	}
	s.log.WithField("event_id", id).Info("event updated")
	s.notify(ctx, actionUpdated, ev)
	return ev, nil
}

// Delete soft-deletes the event. The API decides who may do this.
func (s *Service) Delete(ctx context.Context, sess models.Session, ev models.Event) error {
	if err := s.api.DeleteEvent(ctx, sess, ev.ID); err != nil {
		s.log.WithField("event_id", ev.ID).WithError(err).Error("failed to delete event")
		return err
	}
	s.log.WithField("event_id", ev.ID).Info("event deleted")
	s.notify(ctx, actionDeleted, ev)
	return nil
}

func (s *Service) notify(ctx context.Context, action string, ev models.Event) {
	if s.announce != nil {
		s.announce.EventChanged(ctx, action, ev)
	}
}
