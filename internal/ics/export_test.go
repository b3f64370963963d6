package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/akrasniqi/calpush/internal/config"
	"github.com/akrasniqi/calpush/internal/event"
	"github.com/akrasniqi/calpush/internal/schedule"
)

func TestWrite(t *testing.T) {
	scheme := config.ColorScheme{
		Rules:   []config.ColorRule{{Match: "Deep Work", Color: "9"}},
		Default: "1",
	}
	entry := schedule.Entry{
		Name: "Deep Work", Year: 2025, Month: 7, Day: 7,
		StartHour: 9, EndHour: 11,
	}
	ev, err := event.Map(entry, scheme, time.UTC)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, []*gcal.Event{ev}); err != nil {
		t.Fatalf("Write() returned an error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"SUMMARY:Deep Work",
		"DTSTART:20250707T090000Z",
		"DTEND:20250707T110000Z",
		"X-CALPUSH-COLOR:9",
		"X-CALPUSH-SOURCE-KEY:" + event.SourceKey(entry),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	// The X- properties carry no parameters, and DTSTAMP is emitted in UTC.
	for _, bad := range []string{"X-CALPUSH-COLOR;", "X-CALPUSH-SOURCE-KEY;", "TZID=Local"} {
		if strings.Contains(out, bad) {
			t.Errorf("Expected output not to contain %q, got:\n%s", bad, out)
		}
	}
}

func TestWrite_MissingTimes(t *testing.T) {
	ev := &gcal.Event{Summary: "No Times"}

	var buf bytes.Buffer
	if err := Write(&buf, []*gcal.Event{ev}); err == nil {
		t.Error("Expected an error for an event without start/end times")
	}
}
