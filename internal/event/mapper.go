// Package event maps schedule entries to Google Calendar event payloads:
// category color resolution, timestamp localization, and the source-key
// fingerprint that makes duplicate detection possible.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/akrasniqi/calpush/internal/config"
	"github.com/akrasniqi/calpush/internal/schedule"
)

// Private extended property keys stamped onto every event this tool creates.
// MarkerProperty identifies the event as ours (and is what List filters on);
// SourceKeyProperty carries the fingerprint of the schedule entry it came from.
const (
	MarkerProperty    = "managedBy"
	MarkerValue       = "calpush"
	SourceKeyProperty = "sourceKey"
)

// DonePrefix is prepended to titles by the title_prefix completion strategy.
const DonePrefix = "✓ "

// SourceKey derives the duplicate-detection fingerprint for an entry: a
// SHA-256 of the normalized (name, date, start, end) tuple truncated to
// 16 bytes. Equal entries always produce equal keys, across runs and
// restarts; that determinism is what makes re-running the sync idempotent.
func SourceKey(e schedule.Entry) string {
	normalized := fmt.Sprintf("%s|%s|%d|%d",
		strings.ToLower(strings.TrimSpace(e.Name)),
		e.Date(),
		e.StartMinuteOfDay(),
		e.EndMinuteOfDay(),
	)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// ResolveColor finds the color for an event name: an exact (case-insensitive)
// rule match wins, then the first containment match in rule order, then the
// scheme default. Rule order is the tie-break, which is why ColorScheme is an
// ordered sequence.
func ResolveColor(name string, scheme config.ColorScheme) string {
	for _, r := range scheme.Rules {
		if strings.EqualFold(r.Match, name) {
			return r.Color
		}
	}
	lower := strings.ToLower(name)
	for _, r := range scheme.Rules {
		if strings.Contains(lower, strings.ToLower(r.Match)) {
			return r.Color
		}
	}
	return scheme.Default
}

// Map converts a schedule entry into the calendar event payload to insert.
// The entry must be valid; end ≤ start fails with schedule.ErrInvalidTime.
func Map(e schedule.Entry, scheme config.ColorScheme, loc *time.Location) (*calendar.Event, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	start := e.Start(loc)
	end := e.End(loc)

	return &calendar.Event{
		Summary: e.Name,
		ColorId: ResolveColor(e.Name, scheme),
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		Description: fmt.Sprintf("Created by calpush\nCategory: %s", e.Name),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				MarkerProperty:    MarkerValue,
				SourceKeyProperty: SourceKey(e),
			},
		},
	}, nil
}

// IsManaged reports whether a remote event carries this tool's marker
// property. Events without it were created by someone else and are never
// touched.
func IsManaged(ev *calendar.Event) bool {
	if ev.ExtendedProperties == nil || ev.ExtendedProperties.Private == nil {
		return false
	}
	return ev.ExtendedProperties.Private[MarkerProperty] == MarkerValue
}

// RemoteSourceKey extracts the source key from a remote event, or "" if the
// event has none.
func RemoteSourceKey(ev *calendar.Event) string {
	if ev.ExtendedProperties == nil || ev.ExtendedProperties.Private == nil {
		return ""
	}
	return ev.ExtendedProperties.Private[SourceKeyProperty]
}
