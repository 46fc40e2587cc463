package model

import (
	"sort"
	"time"
)

// Timeline is the merged, start-ordered union of every account's events.
// It is not safe for concurrent use; its owner serializes access.
type Timeline struct {
	events []Event
}

// NewTimeline returns an empty Timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// ReplaceAccount drops every event owned by accountID and inserts events in
// their place. Events are deduplicated by ID, last one wins. Other accounts'
// events are untouched.
func (t *Timeline) ReplaceAccount(accountID string, events []Event) {
	kept := t.events[:0:0]
	for _, e := range t.events {
		if e.AccountID != accountID {
			kept = append(kept, e)
		}
	}

	seen := make(map[string]int, len(events))
	for _, e := range events {
		e.AccountID = accountID
		if idx, ok := seen[e.ID]; ok {
			kept[idx] = e
			continue
		}
		seen[e.ID] = len(kept)
		kept = append(kept, e)
	}

	sortEvents(kept)
	t.events = kept
}

// RemoveAccount drops every event owned by accountID.
func (t *Timeline) RemoveAccount(accountID string) {
	kept := t.events[:0:0]
	for _, e := range t.events {
		if e.AccountID != accountID {
			kept = append(kept, e)
		}
	}
	t.events = kept
}

// Len returns the number of events.
func (t *Timeline) Len() int {
	return len(t.events)
}

// Events returns a copy of all events in start order.
func (t *Timeline) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// ForAccount returns a copy of the events owned by accountID.
func (t *Timeline) ForAccount(accountID string) []Event {
	var out []Event
	for _, e := range t.events {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out
}

// StartingBetween returns events whose start lies in [from, to].
func (t *Timeline) StartingBetween(from, to time.Time) []Event {
	var out []Event
	for _, e := range t.events {
		if e.Start.Before(from) {
			continue
		}
		if e.Start.After(to) {
			break
		}
		out = append(out, e)
	}
	return out
}

// Overlapping returns events that intersect [from, to). Zero-length events
// are included when their start lies in the range.
func (t *Timeline) Overlapping(from, to time.Time) []Event {
	var out []Event
	for _, e := range t.events {
		if !e.Start.Before(to) {
			break
		}
		if e.End.After(from) || (!e.Start.Before(from) && !e.End.After(e.Start)) {
			out = append(out, e)
		}
	}
	return out
}

// OnDay returns the timed and all-day events intersecting the calendar day
// containing day in loc.
func (t *Timeline) OnDay(day time.Time, loc *time.Location) (timed, allDay []Event) {
	start := StartOfDay(day, loc)
	end := start.AddDate(0, 0, 1)
	for _, e := range t.Overlapping(start, end) {
		if e.IsAllDay(loc) {
			allDay = append(allDay, e)
			continue
		}
		timed = append(timed, e)
	}
	return timed, allDay
}

// StartOfDay returns local midnight of the day containing t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
}
