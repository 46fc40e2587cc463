package model

import "strings"

// SelfResponse is the authenticated user's attendance status for an event.
type SelfResponse string

const (
	SelfResponseAccepted    SelfResponse = "accepted"
	SelfResponseDeclined    SelfResponse = "declined"
	SelfResponseTentative   SelfResponse = "tentative"
	SelfResponseNeedsAction SelfResponse = "needsAction"
	SelfResponseUnknown     SelfResponse = "unknown"
	// SelfResponseAbsent means the user does not appear among the attendees.
	SelfResponseAbsent SelfResponse = ""
)

// ParseSelfResponse maps a provider response status onto a SelfResponse.
// Matching is case-insensitive; unrecognised values map to SelfResponseUnknown.
func ParseSelfResponse(raw string) SelfResponse {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "accepted":
		return SelfResponseAccepted
	case "declined":
		return SelfResponseDeclined
	case "tentative":
		return SelfResponseTentative
	case "needsaction":
		return SelfResponseNeedsAction
	default:
		return SelfResponseUnknown
	}
}

// ViewMode selects the calendar view.
type ViewMode string

const (
	ViewModeWeek  ViewMode = "week"
	ViewModeMonth ViewMode = "month"
)

// WeekStyle selects how the week view is drawn.
type WeekStyle string

const (
	WeekStyleList WeekStyle = "list"
	WeekStyleGrid WeekStyle = "grid"
)
