package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/harun/taskgate/pkg/params"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultMaxDepth  = 2
	maxLinks         = 10
	maxBodyBytes     = 5 << 20
)

// ScrapeResult is the content extracted from one page
type ScrapeResult struct {
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Links    []string       `json:"links"`
	Metadata ScrapeMetadata `json:"metadata"`
}

// ScrapeMetadata describes the fetch
type ScrapeMetadata struct {
	URL        string `json:"url"`
	Timestamp  string `json:"timestamp"`
	StatusCode int    `json:"status_code"`
	MaxDepth   int    `json:"max_depth"`
}

// Scraper fetches a page and extracts its title, paragraph text and links.
// Only the requested page is fetched; max_depth is recorded but links are not
// followed.
type Scraper struct {
	client    *http.Client
	userAgent string
}

// NewScraper creates a scraper. A nil client means a client with a 30s timeout.
func NewScraper(client *http.Client) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scraper{
		client:    client,
		userAgent: defaultUserAgent,
	}
}

// Handle implements gate.Handler for scrape_website
func (s *Scraper) Handle(ctx context.Context, p params.Value) (interface{}, error) {
	url, err := requiredString(p, "url")
	if err != nil {
		return nil, err
	}
	depth, err := optionalInt(p, "max_depth", defaultMaxDepth)
	if err != nil {
		return nil, err
	}
	return s.Scrape(ctx, url, depth)
}

// Scrape fetches url and extracts its content
func (s *Scraper) Scrape(ctx context.Context, url string, maxDepth int) (*ScrapeResult, error) {
	log.Info().Str("url", url).Int("max_depth", maxDepth).Msg("Starting scrape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", url, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	result := &ScrapeResult{
		Links: []string{},
		Metadata: ScrapeMetadata{
			URL:        url,
			Timestamp:  time.Now().Format(time.RFC3339),
			StatusCode: resp.StatusCode,
			MaxDepth:   maxDepth,
		},
	}

	var paragraphs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" {
					result.Title = nodeText(n)
				}
			case "p":
				paragraphs = append(paragraphs, nodeText(n))
			case "a":
				if href, ok := attr(n, "href"); ok && len(result.Links) < maxLinks {
					result.Links = append(result.Links, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result.Text = strings.Join(paragraphs, " ")
	return result, nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(x *html.Node) {
		if x.Type == html.TextNode {
			b.WriteString(x.Data)
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
