// Package sync reconciles a desired schedule against the remote calendar:
// it plans the minimal set of creates, skips and recolors, applies the plan
// in batches, and implements the clear and mark-done modes.
package sync

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	calclient "github.com/akrasniqi/calpush/internal/calendar"
	"github.com/akrasniqi/calpush/internal/config"
	"github.com/akrasniqi/calpush/internal/event"
	"github.com/akrasniqi/calpush/internal/schedule"
)

// DoneColorID is the color applied by the color_change completion strategy
// (Graphite).
const DoneColorID = "8"

var (
	// ErrNotFound means mark-done found no active event matching the name.
	ErrNotFound = errors.New("no matching event found")
	// ErrAmbiguousTarget means mark-done matched more than one active event.
	ErrAmbiguousTarget = errors.New("more than one event matches")
	// ErrCompletionDisabled means completion strategies are switched off in
	// the config.
	ErrCompletionDisabled = errors.New("completion strategies are disabled in config")
)

// Failure records one schedule entry or event that could not be processed.
// Failures never abort the run; they are collected and reported.
type Failure struct {
	Title string
	Err   error
}

// Recolor is a planned color fix for an existing event whose color no longer
// matches the scheme.
type Recolor struct {
	EventID string
	ColorID string
}

// Plan is the reconciliation result for one run: what to create, what is
// already present (by source key), and what needs its color fixed. Plans are
// computed fresh each run and never persisted.
type Plan struct {
	ToCreate  []*gcal.Event
	ToSkip    []string
	ToRecolor []Recolor
	Invalid   []Failure
}

// Result aggregates what actually happened during the apply phase.
type Result struct {
	Created   int
	Skipped   int
	Recolored int
	Deleted   int
	Failed    []Failure
}

// Engine drives all four modes. It is constructed once per invocation and
// holds only read-only state.
type Engine struct {
	svc     calclient.EventService
	cfg     *config.Config
	loc     *time.Location
	verbose bool

	now func() time.Time // stubbed in tests
}

// NewEngine creates a sync engine over the given gateway and settings.
func NewEngine(svc calclient.EventService, cfg *config.Config, loc *time.Location, verbose bool) *Engine {
	return &Engine{
		svc:     svc,
		cfg:     cfg,
		loc:     loc,
		verbose: verbose,
		now:     time.Now,
	}
}

func (e *Engine) debugf(format string, args ...any) {
	if e.verbose {
		log.Printf("DEBUG: "+format, args...)
	}
}

// BuildPlan is the pure planning phase shared by normal and dry-run modes:
// given the desired schedule and a snapshot of remote managed events, decide
// what to create, skip and recolor. Both modes run exactly this function, so
// a dry-run plan is identical to what a normal run would apply.
func (e *Engine) BuildPlan(entries []schedule.Entry, remote []*gcal.Event) Plan {
	byKey := make(map[string]*gcal.Event)
	for _, ev := range remote {
		if !event.IsManaged(ev) {
			continue
		}
		key := event.RemoteSourceKey(ev)
		if key == "" {
			continue
		}
		if _, dup := byKey[key]; dup {
			e.debugf("remote has duplicate events for source key %s", key)
			continue
		}
		byKey[key] = ev
	}

	var plan Plan
	planned := make(map[string]bool)
	for _, entry := range entries {
		mapped, err := event.Map(entry, e.cfg.ColorScheme, e.loc)
		if err != nil {
			plan.Invalid = append(plan.Invalid, Failure{Title: entry.Name, Err: err})
			continue
		}
		key := event.RemoteSourceKey(mapped)

		if existing, ok := byKey[key]; ok {
			plan.ToSkip = append(plan.ToSkip, key)
			if fix, ok := e.colorFix(existing, mapped.ColorId); ok {
				plan.ToRecolor = append(plan.ToRecolor, fix)
			}
			continue
		}
		if planned[key] {
			// Same (name, date, start, end) appears twice in the schedule;
			// one create covers both.
			plan.ToSkip = append(plan.ToSkip, key)
			continue
		}
		planned[key] = true
		plan.ToCreate = append(plan.ToCreate, mapped)
	}
	return plan
}

// colorFix decides whether an existing event's color should be repaired to
// match the current scheme. Completed events are left alone: a title-prefixed
// event is visibly done, and under the color_change strategy the done color
// is indistinguishable from drift, so it is never "fixed" back.
func (e *Engine) colorFix(existing *gcal.Event, want string) (Recolor, bool) {
	if existing.ColorId == want {
		return Recolor{}, false
	}
	if strings.HasPrefix(existing.Summary, event.DonePrefix) {
		return Recolor{}, false
	}
	if e.cfg.Completion.Method == config.MethodColorChange && existing.ColorId == DoneColorID {
		return Recolor{}, false
	}
	return Recolor{EventID: existing.Id, ColorID: want}, true
}

// Sync runs normal or dry-run mode over the schedule. The returned plan is
// what was (or would be) applied; the result reflects actual writes, so in
// dry-run mode it only carries the skip count and invalid entries.
// Fetch and setup errors abort before any write; per-item write failures are
// recorded and the batch continues.
func (e *Engine) Sync(entries []schedule.Entry, dryRun bool) (Plan, Result, error) {
	var result Result

	timeMin, timeMax, ok := schedule.Range(entries, e.loc)
	if !ok {
		log.Println("Schedule is empty, nothing to sync")
		return Plan{}, result, nil
	}
	log.Printf("Schedule range: %s to %s", timeMin.Format("2006-01-02"), timeMax.Format("2006-01-02"))

	remote, err := e.svc.List(timeMin, timeMax, true)
	if err != nil {
		return Plan{}, result, fmt.Errorf("failed to fetch existing events: %w", err)
	}
	log.Printf("%d managed events already on calendar", len(remote))

	plan := e.BuildPlan(entries, remote)
	result.Skipped = len(plan.ToSkip)
	result.Failed = append(result.Failed, plan.Invalid...)
	for _, f := range plan.Invalid {
		log.Printf("Skipping invalid entry %q: %v", f.Title, f.Err)
	}

	log.Printf("Plan: %d to create, %d already present, %d to recolor",
		len(plan.ToCreate), len(plan.ToSkip), len(plan.ToRecolor))

	if dryRun {
		e.reportDryRun(plan)
		return plan, result, nil
	}

	e.applyCreates(plan.ToCreate, &result)
	e.applyRecolors(plan.ToRecolor, &result)

	log.Printf("Done: created %d, skipped %d, recolored %d, failed %d",
		result.Created, result.Skipped, result.Recolored, len(result.Failed))
	return plan, result, nil
}

// reportDryRun prints what a normal run would do, without touching the
// gateway.
func (e *Engine) reportDryRun(plan Plan) {
	log.Printf("Dry run: would create %d event(s)", len(plan.ToCreate))
	for _, ev := range plan.ToCreate {
		log.Printf("  + %s at %s [color %s]", ev.Summary, ev.Start.DateTime, ev.ColorId)
	}
	log.Printf("Dry run: would skip %d duplicate(s)", len(plan.ToSkip))
	log.Printf("Dry run: would recolor %d event(s)", len(plan.ToRecolor))
	for _, r := range plan.ToRecolor {
		log.Printf("  ~ %s -> color %s", r.EventID, r.ColorID)
	}
}

func (e *Engine) applyCreates(toCreate []*gcal.Event, result *Result) {
	if len(toCreate) == 0 {
		log.Println("No new events to add")
		return
	}

	batchSize := e.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	total := (len(toCreate) + batchSize - 1) / batchSize
	for i := 0; i < len(toCreate); i += batchSize {
		end := i + batchSize
		if end > len(toCreate) {
			end = len(toCreate)
		}
		batch := toCreate[i:end]
		log.Printf("Uploading batch %d/%d (%d events)...", i/batchSize+1, total, len(batch))

		for _, ev := range batch {
			if _, err := e.svc.Insert(ev); err != nil {
				log.Printf("Warning: failed to insert %q: %v", ev.Summary, err)
				result.Failed = append(result.Failed, Failure{Title: ev.Summary, Err: err})
				continue
			}
			result.Created++
			e.debugf("inserted %q at %s", ev.Summary, ev.Start.DateTime)
		}
	}
}

func (e *Engine) applyRecolors(toRecolor []Recolor, result *Result) {
	for _, r := range toRecolor {
		if _, err := e.svc.Patch(r.EventID, &gcal.Event{ColorId: r.ColorID}); err != nil {
			log.Printf("Warning: failed to recolor event %s: %v", r.EventID, err)
			result.Failed = append(result.Failed, Failure{Title: r.EventID, Err: err})
			continue
		}
		result.Recolored++
	}
}

// Clear deletes every event carrying this tool's marker property, regardless
// of the current schedule. Events without the marker are never deleted, even
// inside the same date range.
func (e *Engine) Clear(dryRun bool) (Result, error) {
	var result Result

	events, err := e.svc.List(time.Time{}, time.Time{}, true)
	if err != nil {
		return result, fmt.Errorf("failed to fetch managed events: %w", err)
	}

	log.Printf("Found %d managed event(s) to remove", len(events))
	for _, ev := range events {
		// The list call already filters on the marker; re-check anyway so a
		// misbehaving gateway can never get a foreign event deleted.
		if !event.IsManaged(ev) {
			e.debugf("skipping unmanaged event %s (%s)", ev.Id, ev.Summary)
			continue
		}
		if dryRun {
			log.Printf("Dry run: would delete %s (%s)", ev.Summary, ev.Id)
			continue
		}
		if err := e.svc.Delete(ev.Id); err != nil {
			log.Printf("Warning: failed to delete event %s: %v", ev.Id, err)
			result.Failed = append(result.Failed, Failure{Title: ev.Summary, Err: err})
			continue
		}
		result.Deleted++
	}

	if !dryRun {
		log.Printf("Deleted %d event(s), %d failed", result.Deleted, len(result.Failed))
	}
	return result, nil
}

// MarkDone finds today's single active event matching name and applies the
// configured completion transform: recolor to the done color, or prefix the
// title, never both. Zero matches fail with ErrNotFound, several with
// ErrAmbiguousTarget; both are fatal for the invocation.
func (e *Engine) MarkDone(name string) (*gcal.Event, error) {
	if !e.cfg.Completion.Enabled {
		return nil, ErrCompletionDisabled
	}

	target, err := e.findTarget(name, false)
	if err != nil {
		return nil, err
	}

	var patch *gcal.Event
	switch e.cfg.Completion.Method {
	case config.MethodColorChange:
		patch = &gcal.Event{ColorId: DoneColorID}
	case config.MethodTitlePrefix:
		patch = &gcal.Event{Summary: event.DonePrefix + target.Summary}
	default:
		return nil, fmt.Errorf("unknown completion method %q", e.cfg.Completion.Method)
	}

	updated, err := e.svc.Patch(target.Id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to mark %q done: %w", target.Summary, err)
	}
	log.Printf("Marked done: %s", target.Summary)
	return updated, nil
}

// UndoDone reverses the completion transform on today's single completed
// event matching name: the title prefix is stripped, or the category color is
// re-resolved through the scheme and restored.
func (e *Engine) UndoDone(name string) (*gcal.Event, error) {
	if !e.cfg.Completion.Enabled {
		return nil, ErrCompletionDisabled
	}

	target, err := e.findTarget(name, true)
	if err != nil {
		return nil, err
	}

	var patch *gcal.Event
	switch e.cfg.Completion.Method {
	case config.MethodColorChange:
		patch = &gcal.Event{ColorId: event.ResolveColor(target.Summary, e.cfg.ColorScheme)}
	case config.MethodTitlePrefix:
		patch = &gcal.Event{Summary: strings.TrimPrefix(target.Summary, event.DonePrefix)}
	default:
		return nil, fmt.Errorf("unknown completion method %q", e.cfg.Completion.Method)
	}

	updated, err := e.svc.Patch(target.Id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen %q: %w", target.Summary, err)
	}
	log.Printf("Reopened: %s", target.Summary)
	return updated, nil
}

// findTarget searches today's managed events for the single event matching
// name. Exact (case-insensitive) title matches are preferred; containment is
// the fallback, so "Deep Work" targets "Deep Work" even when "Deep Work 2"
// also exists. completed selects between active events (mark-done) and
// already-completed ones (undo).
func (e *Engine) findTarget(name string, completed bool) (*gcal.Event, error) {
	today := e.now().In(e.loc)
	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, e.loc)
	dayEnd := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 0, e.loc)

	events, err := e.svc.List(dayStart, dayEnd, true)
	if err != nil {
		return nil, fmt.Errorf("failed to search today's events: %w", err)
	}

	var exact, partial []*gcal.Event
	for _, ev := range events {
		if e.isCompleted(ev) != completed {
			continue
		}
		title := strings.TrimPrefix(ev.Summary, event.DonePrefix)
		if strings.EqualFold(title, name) {
			exact = append(exact, ev)
		} else if strings.Contains(strings.ToLower(title), strings.ToLower(name)) {
			partial = append(partial, ev)
		}
	}

	matches := exact
	if len(matches) == 0 {
		matches = partial
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	case 1:
		return matches[0], nil
	default:
		titles := make([]string, len(matches))
		for i, ev := range matches {
			titles[i] = ev.Summary
		}
		return nil, fmt.Errorf("%w: %q matches %s", ErrAmbiguousTarget, name, strings.Join(titles, ", "))
	}
}

// isCompleted reports whether an event already carries the completion
// transform for the configured method.
func (e *Engine) isCompleted(ev *gcal.Event) bool {
	switch e.cfg.Completion.Method {
	case config.MethodColorChange:
		return ev.ColorId == DoneColorID
	default:
		return strings.HasPrefix(ev.Summary, event.DonePrefix)
	}
}
