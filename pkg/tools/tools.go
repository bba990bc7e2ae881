// Package tools provides the built-in tool collaborators: scrape_website and
// fetch_calendar_events.
package tools

import (
	"fmt"
	"math"
	"net/http"

	"google.golang.org/api/option"

	"github.com/harun/taskgate/pkg/gate"
	"github.com/harun/taskgate/pkg/params"
)

const (
	ScrapeWebsite       = "scrape_website"
	FetchCalendarEvents = "fetch_calendar_events"
)

// Options configure the built-in tools
type Options struct {
	HTTPClient              *http.Client
	CalendarCredentialsFile string
	CalendarOptions         []option.ClientOption
}

// Register adds the built-in tools to registry
func Register(registry *gate.Registry, opts Options) error {
	scraper := NewScraper(opts.HTTPClient)
	cal := NewCalendar(opts.CalendarCredentialsFile, opts.CalendarOptions...)

	builtins := []gate.Tool{
		{
			Name:        ScrapeWebsite,
			Description: "Scrape the title, paragraph text and links of a web page",
			Handler:     scraper.Handle,
		},
		{
			Name:        FetchCalendarEvents,
			Description: "Fetch upcoming events from a Google Calendar",
			Handler:     cal.Handle,
		},
	}

	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("failed to register %s: %w", t.Name, err)
		}
	}
	return nil
}

func requiredString(p params.Value, key string) (string, error) {
	v, ok := p.Get(key)
	if !ok || v.IsNull() {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := v.AsString()
	if !ok || s == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return s, nil
}

func optionalString(p params.Value, key, def string) (string, error) {
	v, ok := p.Get(key)
	if !ok || v.IsNull() {
		return def, nil
	}
	s, ok := v.AsString()
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %s", key, v.Kind())
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

func optionalInt(p params.Value, key string, def int) (int, error) {
	v, ok := p.Get(key)
	if !ok || v.IsNull() {
		return def, nil
	}
	if i, ok := v.AsInt(); ok {
		return int(i), nil
	}
	if f, ok := v.AsFloat(); ok && f == math.Trunc(f) {
		return int(f), nil
	}
	return 0, fmt.Errorf("%s must be an integer, got %s", key, v.Kind())
}
