package model

// Account is a connected calendar account. ID is the account's email address.
type Account struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	ColorHex        string `json:"color_hex"`
	AutoJoinEnabled bool   `json:"auto_join_enabled"`
}

// accountPalette is handed out in order to new accounts.
var accountPalette = []string{
	"#4285F4",
	"#DB4437",
	"#F4B400",
	"#0F9D58",
	"#AB47BC",
	"#00ACC1",
}

// FallbackAccountColor is used when an account carries no color.
const FallbackAccountColor = "#5E6AD2"

// NextAccountColor returns the first palette color not already used by
// existing, or FallbackAccountColor once the palette is exhausted.
func NextAccountColor(existing []Account) string {
	used := make(map[string]bool, len(existing))
	for _, a := range existing {
		used[a.ColorHex] = true
	}
	for _, c := range accountPalette {
		if !used[c] {
			return c
		}
	}
	return FallbackAccountColor
}

// ResolvedColor returns the account color, or FallbackAccountColor if unset.
func (a Account) ResolvedColor() string {
	if a.ColorHex == "" {
		return FallbackAccountColor
	}
	return a.ColorHex
}
