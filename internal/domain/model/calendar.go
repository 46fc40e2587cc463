package model

// DefaultCalendarColor is used when neither the user nor the provider
// supplies a color for a calendar.
const DefaultCalendarColor = "#4285F4"

// CalendarRef is one calendar of an account together with the user's
// visibility and color overrides.
type CalendarRef struct {
	ID            string  `json:"id"`
	Summary       string  `json:"summary"`
	ProviderColor string  `json:"provider_color,omitempty"`
	IsVisible     bool    `json:"is_visible"`
	CustomColor   *string `json:"custom_color,omitempty"`
}

// DisplayColor returns the custom color, then the provider color, then
// DefaultCalendarColor.
func (c CalendarRef) DisplayColor() string {
	if c.CustomColor != nil && *c.CustomColor != "" {
		return *c.CustomColor
	}
	if c.ProviderColor != "" {
		return c.ProviderColor
	}
	return DefaultCalendarColor
}

// MergeCalendarOverrides applies stored user overrides onto a fresh provider
// listing. Overrides are matched by calendar id; calendars without a stored
// entry are visible with no custom color. Provider fields always come from
// the fresh listing. Calendars that no longer exist upstream are dropped.
func MergeCalendarOverrides(fresh, stored []CalendarRef) []CalendarRef {
	byID := make(map[string]CalendarRef, len(stored))
	for _, s := range stored {
		byID[s.ID] = s
	}

	merged := make([]CalendarRef, 0, len(fresh))
	for _, f := range fresh {
		out := CalendarRef{
			ID:            f.ID,
			Summary:       f.Summary,
			ProviderColor: f.ProviderColor,
			IsVisible:     true,
		}
		if s, ok := byID[f.ID]; ok {
			out.IsVisible = s.IsVisible
			if s.CustomColor != nil {
				color := *s.CustomColor
				out.CustomColor = &color
			}
		}
		merged = append(merged, out)
	}
	return merged
}
