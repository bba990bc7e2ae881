package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harun/taskgate/pkg/params"
)

const (
	defaultCalendarID = "primary"
	defaultMaxEvents  = 5
)

// CalendarEvent is one upcoming event
type CalendarEvent struct {
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// CalendarResult holds the upcoming events of one calendar
type CalendarResult struct {
	Events   []CalendarEvent  `json:"events"`
	Metadata CalendarMetadata `json:"metadata"`
}

// CalendarMetadata describes the fetch
type CalendarMetadata struct {
	CalendarID string `json:"calendar_id"`
	Timestamp  string `json:"timestamp"`
	EventCount int    `json:"event_count"`
}

// Calendar reads upcoming events from Google Calendar. The service is built
// on first use; a failed build is retried on the next call.
type Calendar struct {
	credentialsFile string
	opts            []option.ClientOption

	mu      sync.Mutex
	service *calendar.Service
}

// NewCalendar creates a calendar tool. credentialsFile may be empty when
// opts carry their own credentials or HTTP client.
func NewCalendar(credentialsFile string, opts ...option.ClientOption) *Calendar {
	return &Calendar{
		credentialsFile: credentialsFile,
		opts:            opts,
	}
}

func (c *Calendar) ensureService(ctx context.Context) (*calendar.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.service != nil {
		return c.service, nil
	}

	opts := []option.ClientOption{option.WithScopes(calendar.CalendarReadonlyScope)}
	if c.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.credentialsFile))
	}
	opts = append(opts, c.opts...)

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		log.Error().Err(err).Msg("Error initializing calendar service")
		return nil, fmt.Errorf("failed to initialize calendar service: %w", err)
	}
	c.service = svc
	return svc, nil
}

// Handle implements gate.Handler for fetch_calendar_events
func (c *Calendar) Handle(ctx context.Context, p params.Value) (interface{}, error) {
	calendarID, err := optionalString(p, "calendar_id", defaultCalendarID)
	if err != nil {
		return nil, err
	}
	maxEvents, err := optionalInt(p, "max_events", defaultMaxEvents)
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx, calendarID, maxEvents)
}

// Fetch lists the next maxEvents events of calendarID, ordered by start time
func (c *Calendar) Fetch(ctx context.Context, calendarID string, maxEvents int) (*CalendarResult, error) {
	if maxEvents <= 0 {
		return nil, fmt.Errorf("max_events must be positive")
	}

	svc, err := c.ensureService(ctx)
	if err != nil {
		return nil, err
	}

	events, err := svc.Events.List(calendarID).
		TimeMin(time.Now().UTC().Format(time.RFC3339)).
		MaxResults(int64(maxEvents)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar events: %w", err)
	}

	result := &CalendarResult{Events: make([]CalendarEvent, 0, len(events.Items))}
	for _, item := range events.Items {
		ev := CalendarEvent{
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
		}
		if ev.Summary == "" {
			ev.Summary = "No title"
		}
		if item.Start != nil {
			ev.Start = item.Start.DateTime
			if ev.Start == "" {
				ev.Start = item.Start.Date
			}
		}
		result.Events = append(result.Events, ev)
	}

	result.Metadata = CalendarMetadata{
		CalendarID: calendarID,
		Timestamp:  time.Now().Format(time.RFC3339),
		EventCount: len(result.Events),
	}

	log.Debug().Str("calendar_id", calendarID).Int("events", len(result.Events)).Msg("Calendar events fetched")
	return result, nil
}
