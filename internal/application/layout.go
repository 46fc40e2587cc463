package application

import (
	"sort"
	"time"

	"github.com/ericfisherdev/calsync/internal/domain/model"
)

// DefaultMinEventDuration is the visual length given to events whose end is
// not after their start.
const DefaultMinEventDuration = 30 * time.Minute

// LayoutDay assigns side-by-side columns to the timed events of one day so
// that no two intersecting events share a column.
//
// Events are scanned in start order. Each goes into the first column whose
// current occupant has ended by the event's start, or a new column if none
// has. An overlap group ends when an event starts at or after the latest end
// seen in the group; every event in the group shares the group's column
// count. Events with zero or negative duration are treated as lasting
// minDuration.
func LayoutDay(events []model.Event, minDuration time.Duration) []model.LayoutSlot {
	if len(events) == 0 {
		return []model.LayoutSlot{}
	}
	if minDuration <= 0 {
		minDuration = DefaultMinEventDuration
	}

	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	slots := make([]model.LayoutSlot, 0, len(sorted))

	var (
		columnEnds []time.Time
		groupStart int
		groupEnd   time.Time
	)

	flush := func() {
		for i := groupStart; i < len(slots); i++ {
			slots[i].ColumnsInGroup = len(columnEnds)
		}
		groupStart = len(slots)
		columnEnds = columnEnds[:0]
	}

	for _, e := range sorted {
		end := visualEnd(e, minDuration)

		if len(columnEnds) > 0 && !e.Start.Before(groupEnd) {
			flush()
		}

		col := -1
		for i, colEnd := range columnEnds {
			if !colEnd.After(e.Start) {
				col = i
				break
			}
		}
		if col == -1 {
			col = len(columnEnds)
			columnEnds = append(columnEnds, end)
		} else {
			columnEnds[col] = end
		}

		if len(slots) == groupStart || end.After(groupEnd) {
			groupEnd = end
		}

		slots = append(slots, model.LayoutSlot{Event: e, ColumnIndex: col})
	}
	flush()

	return slots
}

func visualEnd(e model.Event, minDuration time.Duration) time.Time {
	if e.Duration() <= 0 {
		return e.Start.Add(minDuration)
	}
	return e.End
}
