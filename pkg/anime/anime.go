package anime

import (
	"context"
	"fmt"
	"time"
)

// ProviderType identifies which rating site an entry came from.
type ProviderType string

const (
	ProviderMAL     ProviderType = "mal"
	ProviderAniList ProviderType = "anilist"
)

// Anime is the standardized record for a ranked show, whichever provider
// supplied it. Score is on the 0-10 scale; providers with other scales
// convert on fetch. Year is the release year used for cohort grouping and
// may be absent (HasYear false) for entries the provider has no date for.
type Anime struct {
	ID        int64        `json:"id" db:"id"`
	Provider  ProviderType `json:"provider" db:"provider"`
	Title     string       `json:"title" db:"title"`
	TitleEN   string       `json:"title_english,omitempty" db:"title_english"`
	URL       string       `json:"url" db:"url"`
	Score     float64      `json:"score" db:"score"`
	ScoredBy  int          `json:"scored_by" db:"scored_by"`
	Rank      int          `json:"rank" db:"site_rank"`
	Members   int          `json:"members" db:"members"`
	Episodes  int          `json:"episodes" db:"episodes"`
	Year      int          `json:"year" db:"year"`
	HasYear   bool         `json:"has_year" db:"has_year"`
	FetchedAt time.Time    `json:"fetched_at" db:"fetched_at"`
}

// Key returns the storage key, unique across providers.
func (a Anime) Key() string {
	return fmt.Sprintf("%s:%d", a.Provider, a.ID)
}

// Provider is the interface every rating-site client must implement.
type Provider interface {
	Name() ProviderType
	// FetchTop pulls the site's top-ranked anime, page by page, honoring the
	// site's rate limits. The returned slice is in site rank order.
	FetchTop(ctx context.Context) ([]Anime, error)
}

// AllProviderTypes returns all known provider types.
func AllProviderTypes() []ProviderType {
	return []ProviderType{ProviderMAL, ProviderAniList}
}
