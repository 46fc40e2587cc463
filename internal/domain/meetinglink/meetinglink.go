// Package meetinglink finds joinable video-meeting URLs in free text.
package meetinglink

import (
	"net/url"
	"regexp"
)

// Link is a detected meeting URL and the service it belongs to.
type Link struct {
	URL      string
	Provider string
}

type pattern struct {
	provider string
	re       *regexp.Regexp
}

// patterns are tried in order and the first valid match wins.
var patterns = []pattern{
	{"Google Meet", regexp.MustCompile(`(?i)https?://meet\.google\.com/[A-Za-z0-9\-]+`)},
	{"Zoom", regexp.MustCompile(`(?i)https?://(www\.)?zoom\.us/j/[A-Za-z0-9\?&=\-]+`)},
	{"Zoom", regexp.MustCompile(`(?i)https?://([a-zA-Z0-9\-]+)\.zoom\.us/j/[A-Za-z0-9\?&=\-]+`)},
	{"Microsoft Teams", regexp.MustCompile(`(?i)https?://teams\.microsoft\.com/l/meetup-join/[A-Za-z0-9/_\-\?&=\.%]+`)},
	{"Webex", regexp.MustCompile(`(?i)https?://([a-zA-Z0-9\-]+)\.webex\.com/[A-Za-z0-9/_\-\?&=\.]+`)},
	{"BlueJeans", regexp.MustCompile(`(?i)https?://(www\.)?bluejeans\.com/[A-Za-z0-9\-]+`)},
}

// Find returns the first meeting link in text. It is deterministic: the same
// text always yields the same link.
func Find(text string) (Link, bool) {
	if text == "" {
		return Link{}, false
	}
	for _, p := range patterns {
		match := p.re.FindString(text)
		if match == "" || !isValidURL(match) {
			continue
		}
		return Link{URL: match, Provider: p.provider}, true
	}
	return Link{}, false
}

// FindURL is Find without the provider name.
func FindURL(text string) string {
	link, ok := Find(text)
	if !ok {
		return ""
	}
	return link.URL
}

// ProviderOf names the meeting service for a URL that is already known to be
// a meeting link, or returns "" when no pattern matches it.
func ProviderOf(rawURL string) string {
	link, ok := Find(rawURL)
	if !ok {
		return ""
	}
	return link.Provider
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
