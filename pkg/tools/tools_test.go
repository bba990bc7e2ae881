package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/harun/taskgate/pkg/gate"
	"github.com/harun/taskgate/pkg/params"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Example Domain</title></head>
<body>
  <p>First   paragraph.</p>
  <div><p>Second <b>bold</b> paragraph.</p></div>
  %s
</body>
</html>`

func newPageServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrape(t *testing.T) {
	var links strings.Builder
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&links, `<a href="/page/%d">link %d</a>`, i, i)
	}
	links.WriteString(`<a name="anchor">no href</a>`)

	srv := newPageServer(t, fmt.Sprintf(samplePage, links.String()), http.StatusOK)

	result, err := NewScraper(srv.Client()).Scrape(context.Background(), srv.URL, 1)
	require.NoError(t, err)

	assert.Equal(t, "Example Domain", result.Title)
	assert.Equal(t, "First paragraph. Second bold paragraph.", result.Text)
	require.Len(t, result.Links, maxLinks)
	assert.Equal(t, "/page/0", result.Links[0])
	assert.Equal(t, "/page/9", result.Links[9])
	assert.Equal(t, srv.URL, result.Metadata.URL)
	assert.Equal(t, http.StatusOK, result.Metadata.StatusCode)
	assert.Equal(t, 1, result.Metadata.MaxDepth)
	assert.NotEmpty(t, result.Metadata.Timestamp)
}

func TestScrapeHTTPError(t *testing.T) {
	srv := newPageServer(t, "gone", http.StatusNotFound)

	_, err := NewScraper(srv.Client()).Scrape(context.Background(), srv.URL, 2)
	assert.ErrorContains(t, err, "status 404")
}

func TestScraperHandle(t *testing.T) {
	srv := newPageServer(t, fmt.Sprintf(samplePage, ""), http.StatusOK)
	scraper := NewScraper(srv.Client())

	out, err := scraper.Handle(context.Background(), params.Object(map[string]params.Value{
		"url": params.String(srv.URL),
	}))
	require.NoError(t, err)
	result := out.(*ScrapeResult)
	assert.Equal(t, defaultMaxDepth, result.Metadata.MaxDepth)
	assert.Empty(t, result.Links)

	_, err = scraper.Handle(context.Background(), params.Object(nil))
	assert.ErrorContains(t, err, "url is required")

	_, err = scraper.Handle(context.Background(), params.Object(map[string]params.Value{
		"url":       params.String(srv.URL),
		"max_depth": params.String("deep"),
	}))
	assert.ErrorContains(t, err, "max_depth must be an integer")
}

func newCalendarServer(t *testing.T, wantMax string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/calendars/team@example.com/events") {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		assert.Equal(t, wantMax, q.Get("maxResults"))
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))
		assert.NotEmpty(t, q.Get("timeMin"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{
				{
					"summary":  "Standup",
					"start":    map[string]string{"dateTime": "2026-10-17T09:00:00Z"},
					"location": "Room 1",
				},
				{
					"start":       map[string]string{"date": "2026-10-18"},
					"description": "all day",
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCalendarFetch(t *testing.T) {
	srv := newCalendarServer(t, "3")
	cal := NewCalendar("", option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))

	result, err := cal.Fetch(context.Background(), "team@example.com", 3)
	require.NoError(t, err)

	require.Len(t, result.Events, 2)
	assert.Equal(t, CalendarEvent{Summary: "Standup", Start: "2026-10-17T09:00:00Z", Location: "Room 1"}, result.Events[0])
	assert.Equal(t, CalendarEvent{Summary: "No title", Start: "2026-10-18", Description: "all day"}, result.Events[1])
	assert.Equal(t, "team@example.com", result.Metadata.CalendarID)
	assert.Equal(t, 2, result.Metadata.EventCount)
}

func TestCalendarHandleDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/calendars/primary/events"))
		assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	cal := NewCalendar("", option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	out, err := cal.Handle(context.Background(), params.Object(nil))
	require.NoError(t, err)
	assert.Empty(t, out.(*CalendarResult).Events)
}

func TestCalendarRejectsNonPositiveMax(t *testing.T) {
	cal := NewCalendar("")
	_, err := cal.Fetch(context.Background(), "primary", 0)
	assert.ErrorContains(t, err, "max_events must be positive")
}

func TestRegister(t *testing.T) {
	registry := gate.NewRegistry()
	require.NoError(t, Register(registry, Options{}))
	assert.Equal(t, []string{FetchCalendarEvents, ScrapeWebsite}, registry.Names())
}

func TestOptionalInt(t *testing.T) {
	p := params.Object(map[string]params.Value{
		"a": params.Int(4),
		"b": params.Float(3),
		"c": params.Float(2.5),
	})

	n, err := optionalInt(p, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = optionalInt(p, "b", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = optionalInt(p, "c", 1)
	assert.Error(t, err)

	n, err = optionalInt(p, "missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
