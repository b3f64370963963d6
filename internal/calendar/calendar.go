// Package calendar wraps the Google Calendar API for the sync engine.
// Authentication and transport live behind the http.Client handed to
// NewClient; nothing above this package ever sees credentials.
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/akrasniqi/calpush/internal/event"
)

// defaultCalendar is the calendar all operations target.
const defaultCalendar = "primary"

// EventService is the gateway surface the sync engine depends on. The real
// implementation talks to Google Calendar; tests substitute a fake.
type EventService interface {
	// List returns events on the primary calendar between timeMin and
	// timeMax (either zero means unbounded on that side). When onlyManaged
	// is set, only events carrying this tool's marker property are returned.
	List(timeMin, timeMax time.Time, onlyManaged bool) ([]*gcal.Event, error)
	// Insert creates an event and returns it with its server-assigned ID.
	Insert(ev *gcal.Event) (*gcal.Event, error)
	// Patch applies a sparse update; only fields set on patch are changed.
	Patch(eventID string, patch *gcal.Event) (*gcal.Event, error)
	// Delete removes an event by ID.
	Delete(eventID string) error
}

// Client is the Google Calendar implementation of EventService.
type Client struct {
	service *gcal.Service
}

// NewClient creates a calendar client from an authenticated HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	service, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Client{service: service}, nil
}

// MarkerFilter is the privateExtendedProperty query that selects events
// created by this tool.
func MarkerFilter() string {
	return fmt.Sprintf("%s=%s", event.MarkerProperty, event.MarkerValue)
}

// List implements EventService. Results are paginated transparently, so
// duplicate detection holds even when the remote fetch is chunked across
// pages.
func (c *Client) List(timeMin, timeMax time.Time, onlyManaged bool) ([]*gcal.Event, error) {
	call := c.service.Events.List(defaultCalendar).
		SingleEvents(true).
		OrderBy("startTime")

	if !timeMin.IsZero() {
		call = call.TimeMin(timeMin.Format(time.RFC3339))
	}
	if !timeMax.IsZero() {
		call = call.TimeMax(timeMax.Format(time.RFC3339))
	}
	if onlyManaged {
		call = call.PrivateExtendedProperty(MarkerFilter())
	}

	var all []*gcal.Event
	err := call.Pages(context.Background(), func(page *gcal.Events) error {
		all = append(all, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return all, nil
}

// Insert implements EventService. SendUpdates("none") keeps the tool from
// spamming notifications.
func (c *Client) Insert(ev *gcal.Event) (*gcal.Event, error) {
	created, err := c.service.Events.Insert(defaultCalendar, ev).
		SendUpdates("none").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return created, nil
}

// Patch implements EventService.
func (c *Client) Patch(eventID string, patch *gcal.Event) (*gcal.Event, error) {
	updated, err := c.service.Events.Patch(defaultCalendar, eventID, patch).
		SendUpdates("none").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to patch event %s: %w", eventID, err)
	}
	return updated, nil
}

// Delete implements EventService.
func (c *Client) Delete(eventID string) error {
	err := c.service.Events.Delete(defaultCalendar, eventID).
		SendUpdates("none").
		Do()
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	return nil
}
