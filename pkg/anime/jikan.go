package anime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultJikanURL = "https://api.jikan.moe/v4"

// jikanPageDelay paces page requests under the public Jikan rate limit.
const jikanPageDelay = time.Second

// Jikan fetches the MyAnimeList top-anime list through the Jikan REST API.
type Jikan struct {
	client  *http.Client
	baseURL string
	pages   int
}

// NewJikan creates a MAL provider. pages is how many 25-entry pages of the
// top list to walk.
func NewJikan(baseURL string, pages int) *Jikan {
	if baseURL == "" {
		baseURL = defaultJikanURL
	}
	if pages <= 0 {
		pages = 20
	}
	return &Jikan{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		pages:   pages,
	}
}

func (j *Jikan) Name() ProviderType { return ProviderMAL }

// FetchTop walks the top list page by page, pausing between pages. It stops
// early when the API reports no further pages.
func (j *Jikan) FetchTop(ctx context.Context) ([]Anime, error) {
	var all []Anime
	for page := 1; page <= j.pages; page++ {
		items, hasNext, err := j.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !hasNext || page == j.pages {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jikanPageDelay):
		}
	}
	return all, nil
}

type jikanAnime struct {
	MalID        int64   `json:"mal_id"`
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	TitleEnglish string  `json:"title_english"`
	Score        float64 `json:"score"`
	ScoredBy     int     `json:"scored_by"`
	Rank         int     `json:"rank"`
	Members      int     `json:"members"`
	Episodes     int     `json:"episodes"`
	Year         int     `json:"year"`
	Aired        struct {
		Prop struct {
			From struct {
				Year int `json:"year"`
			} `json:"from"`
		} `json:"prop"`
	} `json:"aired"`
}

type jikanPage struct {
	Pagination struct {
		HasNextPage bool `json:"has_next_page"`
	} `json:"pagination"`
	Data []jikanAnime `json:"data"`
}

func (j *Jikan) fetchPage(ctx context.Context, page int) ([]Anime, bool, error) {
	url := fmt.Sprintf("%s/top/anime?page=%d", j.baseURL, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create jikan request: %w", err)
	}
	req.Header.Set("User-Agent", "truerank/1.0")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetch jikan page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("jikan page %d: status %d", page, resp.StatusCode)
	}

	var body jikanPage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("decode jikan page %d: %w", page, err)
	}

	now := time.Now().UTC()
	items := make([]Anime, 0, len(body.Data))
	for _, e := range body.Data {
		// The top list occasionally carries entries with no score yet.
		if e.Score <= 0 {
			continue
		}

		year := e.Year
		if year == 0 {
			year = e.Aired.Prop.From.Year
		}

		items = append(items, Anime{
			ID:        e.MalID,
			Provider:  ProviderMAL,
			Title:     e.Title,
			TitleEN:   e.TitleEnglish,
			URL:       e.URL,
			Score:     e.Score,
			ScoredBy:  e.ScoredBy,
			Rank:      e.Rank,
			Members:   e.Members,
			Episodes:  e.Episodes,
			Year:      year,
			HasYear:   year > 0,
			FetchedAt: now,
		})
	}
	return items, body.Pagination.HasNextPage, nil
}
