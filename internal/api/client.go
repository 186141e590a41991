package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"chaszcze-site/internal/models"
)

var (
	// ErrTransport means the request never produced an HTTP response.
	ErrTransport = errors.New("api: transport failure")
	// ErrMalformedBody means the response body could not be decoded.
	ErrMalformedBody = errors.New("api: malformed response body")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api: %s %s: HTTP %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("api: %s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// Client talks to the events/results API. The session is passed to every call
// that may need a bearer credential.
type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

func New(baseURL string, timeout time.Duration, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// ---------- Events ----------

// ListLatestEvents returns the few most recent events shown on the public page.
func (c *Client) ListLatestEvents(ctx context.Context) ([]models.Event, error) {
	var out []models.Event
	if err := c.do(ctx, models.Session{}, http.MethodGet, "/events", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAllEvents returns every active event.
func (c *Client) ListAllEvents(ctx context.Context, sess models.Session) ([]models.Event, error) {
	var out []models.Event
	if err := c.do(ctx, sess, http.MethodGet, "/events/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateEvent(ctx context.Context, sess models.Session, in models.EventInput) (models.Event, error) {
	var out models.Event
	err := c.do(ctx, sess, http.MethodPost, "/events", in, &out)
	return out, err
}

func (c *Client) UpdateEvent(ctx context.Context, sess models.Session, id int, in models.EventInput) (models.Event, error) {
	var out models.Event
	err := c.do(ctx, sess, http.MethodPut, fmt.Sprintf("/events/%d", id), in, &out)
	return out, err
}

// DeleteEvent soft-deletes an event; the API owns the semantics.
func (c *Client) DeleteEvent(ctx context.Context, sess models.Session, id int) error {
	return c.do(ctx, sess, http.MethodDelete, fmt.Sprintf("/events/%d", id), nil, nil)
}

// ---------- Results ----------

func (c *Client) GetResults(ctx context.Context, sess models.Session, eventID int) (models.ResultsGrid, error) {
	out := models.ResultsGrid{}
	if err := c.do(ctx, sess, http.MethodGet, fmt.Sprintf("/results/%d", eventID), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = models.ResultsGrid{}
	}
	return out, nil
}

// ReplaceResults overwrites every result of the event with grid.
func (c *Client) ReplaceResults(ctx context.Context, sess models.Session, eventID int, grid models.ResultsGrid) error {
	return c.do(ctx, sess, http.MethodPut, fmt.Sprintf("/results/%d", eventID), grid, nil)
}

func (c *Client) CreateResult(ctx context.Context, sess models.Session, r models.Result) (models.Result, error) {
	var out models.Result
	err := c.do(ctx, sess, http.MethodPost, "/results", r, &out)
	return out, err
}

func (c *Client) DeleteResult(ctx context.Context, sess models.Session, id int) error {
	return c.do(ctx, sess, http.MethodDelete, fmt.Sprintf("/results/%d", id), nil, nil)
}

// ---------- helpers ----------

func (c *Client) do(ctx context.Context, sess models.Session, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if sess.HasToken() {
		req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"method": method, "path": path}).WithError(err).Warn("api request failed")
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedBody, method, path, err)
	}
	return nil
}
