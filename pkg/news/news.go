package news

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// Feed is a named RSS/Atom feed URL.
type Feed struct {
	Name string
	URL  string
}

// Item is one news entry kept after filtering.
type Item struct {
	Feed        string    `json:"feed"`
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
}

// Reader collects anime news from RSS/Atom feeds and keeps the entries that
// mention ranked shows.
type Reader struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []Feed
	filter *Filter
}

// NewReader creates a news reader. A nil filter keeps everything.
func NewReader(feeds []Feed, filter *Filter) *Reader {
	return &Reader{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
		filter: filter,
	}
}

// Collect walks all feeds. A failing feed is reported and skipped; the
// others still deliver.
func (r *Reader) Collect(ctx context.Context) ([]Item, error) {
	var allItems []Item

	for _, feed := range r.feeds {
		items, err := r.collectFeed(ctx, feed)
		if err != nil {
			fmt.Printf("  news feed %s error: %v\n", feed.Name, err)
			continue
		}
		allItems = append(allItems, items...)
	}

	return allItems, nil
}

func (r *Reader) collectFeed(ctx context.Context, feed Feed) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create news request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "truerank/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch news %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse news %s: %w", feed.Name, err)
	}

	var items []Item
	cutoff := time.Now().Add(-48 * time.Hour) // Only last two days

	for _, entry := range parsed.Items {
		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		// Skip old items.
		if published.Before(cutoff) {
			continue
		}

		text := entry.Title + " " + entry.Description
		if r.filter != nil && !r.filter.Matches(text) {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}

		items = append(items, Item{
			Feed:        feed.Name,
			GUID:        entry.GUID,
			Title:       entry.Title,
			URL:         link,
			Description: truncate(entry.Description, 500),
			Author:      author,
			PublishedAt: published,
		})
	}

	return items, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
