package anime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultAniListURL = "https://graphql.anilist.co"

const anilistPageDelay = time.Second

// anilistQuery pulls one page of the score-ordered chart. averageScore is a
// 0-100 integer; popularity is the list-membership count, the closest thing
// AniList exposes to a rater count.
const anilistQuery = `
query ($page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { hasNextPage }
    media(type: ANIME, sort: SCORE_DESC) {
      id
      title { romaji english }
      siteUrl
      averageScore
      popularity
      episodes
      seasonYear
      startDate { year }
    }
  }
}`

// AniList fetches the AniList top chart through its GraphQL API.
type AniList struct {
	client  *http.Client
	baseURL string
	pages   int
	perPage int
}

// NewAniList creates an AniList provider.
func NewAniList(baseURL string, pages, perPage int) *AniList {
	if baseURL == "" {
		baseURL = defaultAniListURL
	}
	if pages <= 0 {
		pages = 10
	}
	if perPage <= 0 || perPage > 50 {
		perPage = 50
	}
	return &AniList{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		pages:   pages,
		perPage: perPage,
	}
}

func (a *AniList) Name() ProviderType { return ProviderAniList }

// FetchTop walks the score-ordered chart page by page. Chart position is
// not part of the payload, so rank is assigned from walk order.
func (a *AniList) FetchTop(ctx context.Context) ([]Anime, error) {
	var all []Anime
	for page := 1; page <= a.pages; page++ {
		items, hasNext, err := a.fetchPage(ctx, page, len(all))
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !hasNext || page == a.pages {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(anilistPageDelay):
		}
	}
	return all, nil
}

type anilistMedia struct {
	ID    int64 `json:"id"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
	} `json:"title"`
	SiteURL      string `json:"siteUrl"`
	AverageScore int    `json:"averageScore"`
	Popularity   int    `json:"popularity"`
	Episodes     int    `json:"episodes"`
	SeasonYear   int    `json:"seasonYear"`
	StartDate    struct {
		Year int `json:"year"`
	} `json:"startDate"`
}

type anilistResponse struct {
	Data struct {
		Page struct {
			PageInfo struct {
				HasNextPage bool `json:"hasNextPage"`
			} `json:"pageInfo"`
			Media []anilistMedia `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *AniList) fetchPage(ctx context.Context, page, offset int) ([]Anime, bool, error) {
	payload, err := json.Marshal(map[string]any{
		"query": anilistQuery,
		"variables": map[string]any{
			"page":    page,
			"perPage": a.perPage,
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("marshal anilist query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("create anilist request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "truerank/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetch anilist page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("anilist page %d: status %d", page, resp.StatusCode)
	}

	var body anilistResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("decode anilist page %d: %w", page, err)
	}
	if len(body.Errors) > 0 {
		return nil, false, fmt.Errorf("anilist page %d: %s", page, body.Errors[0].Message)
	}

	now := time.Now().UTC()
	items := make([]Anime, 0, len(body.Data.Page.Media))
	for _, m := range body.Data.Page.Media {
		if m.AverageScore <= 0 {
			continue
		}

		year := m.SeasonYear
		if year == 0 {
			year = m.StartDate.Year
		}

		items = append(items, Anime{
			ID:        m.ID,
			Provider:  ProviderAniList,
			Title:     m.Title.Romaji,
			TitleEN:   m.Title.English,
			URL:       m.SiteURL,
			Score:     float64(m.AverageScore) / 10,
			ScoredBy:  m.Popularity,
			Rank:      offset + len(items) + 1,
			Members:   m.Popularity,
			Episodes:  m.Episodes,
			Year:      year,
			HasYear:   year > 0,
			FetchedAt: now,
		})
	}
	return items, body.Data.Page.PageInfo.HasNextPage, nil
}
