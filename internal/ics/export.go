// Package ics renders mapped schedule events as an iCalendar document, for
// inspecting or importing the schedule without touching the remote calendar.
package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/akrasniqi/calpush/internal/event"
)

// Write encodes the events as a single VCALENDAR. The Google color ID and the
// source key are carried as X- properties so a round trip keeps the tool's
// metadata.
func Write(w io.Writer, events []*gcal.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//calpush//EN")

	now := time.Now()
	for _, ev := range events {
		vevent, err := toComponent(ev, now)
		if err != nil {
			return err
		}
		cal.Children = append(cal.Children, vevent)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func toComponent(ev *gcal.Event, now time.Time) (*ical.Component, error) {
	vevent := ical.NewComponent(ical.CompEvent)

	key := event.RemoteSourceKey(ev)
	if key != "" {
		vevent.Props.SetText(ical.PropUID, key+"@calpush")
		setRaw(vevent, "X-CALPUSH-SOURCE-KEY", key)
	} else {
		vevent.Props.SetText(ical.PropUID, fmt.Sprintf("%s@calpush", now.Format(time.RFC3339Nano)))
	}

	if ev.Summary != "" {
		vevent.Props.SetText(ical.PropSummary, ev.Summary)
	}
	if ev.Description != "" {
		vevent.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.ColorId != "" {
		setRaw(vevent, "X-CALPUSH-COLOR", ev.ColorId)
	}

	if ev.Start == nil || ev.Start.DateTime == "" || ev.End == nil || ev.End.DateTime == "" {
		return nil, fmt.Errorf("event %q has no start/end time", ev.Summary)
	}
	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return nil, fmt.Errorf("event %q: bad start time: %w", ev.Summary, err)
	}
	end, err := time.Parse(time.RFC3339, ev.End.DateTime)
	if err != nil {
		return nil, fmt.Errorf("event %q: bad end time: %w", ev.Summary, err)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStart, start)
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, end)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

	return vevent, nil
}

// setRaw sets an X- property without a VALUE parameter; SetText would tag
// unregistered names with VALUE=TEXT.
func setRaw(c *ical.Component, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	c.Props.Set(prop)
}
