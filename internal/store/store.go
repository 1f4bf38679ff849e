package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/harukimoto/truerank/pkg/anime"
	"github.com/harukimoto/truerank/pkg/normalize"
)

// ErrNotFound reports a lookup that matched nothing.
var ErrNotFound = errors.New("not found")

// Run records one normalization pass and the baseline it ran against.
type Run struct {
	ID             string    `db:"id" json:"id"`
	Algorithm      string    `db:"algorithm" json:"algorithm"`
	BaselineStart  int       `db:"baseline_start" json:"baseline_start"`
	BaselineEnd    int       `db:"baseline_end" json:"baseline_end"`
	BaselineCount  int       `db:"baseline_count" json:"baseline_count"`
	BaselineMedian float64   `db:"baseline_median" json:"baseline_median"`
	Degenerate     bool      `db:"degenerate" json:"degenerate"`
	MinSampleSize  int       `db:"min_sample_size" json:"min_sample_size"`
	ItemCount      int       `db:"item_count" json:"item_count"`
	EstimatedCount int       `db:"estimated_count" json:"estimated_count"`
	DroppedCount   int       `db:"dropped_count" json:"dropped_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// BaselineLabel describes the run's baseline years.
func (r *Run) BaselineLabel() string {
	if r.BaselineStart == r.BaselineEnd {
		return strconv.Itoa(r.BaselineStart)
	}
	return fmt.Sprintf("%d-%d", r.BaselineStart, r.BaselineEnd)
}

// Ranking is one show's standing inside a run.
type Ranking struct {
	ID            int64   `db:"id" json:"-"`
	RunID         string  `db:"run_id" json:"-"`
	AnimeKey      string  `db:"anime_key" json:"anime_key"`
	OriginalScore float64 `db:"original_score" json:"original_score"`
	OriginalRank  int     `db:"original_rank" json:"original_rank"`
	AdjustedScore float64 `db:"adjusted_score" json:"adjusted_score"`
	AdjustedRank  int     `db:"adjusted_rank" json:"adjusted_rank"`
	Delta         float64 `db:"delta" json:"delta"`
	Percentile    float64 `db:"percentile" json:"percentile"`
	Estimated     bool    `db:"estimated" json:"estimated"`
}

// RankingDetail is a Ranking joined with the show it belongs to.
type RankingDetail struct {
	Ranking
	Provider anime.ProviderType `db:"provider" json:"provider"`
	Title    string             `db:"title" json:"title"`
	TitleEN  string             `db:"title_english" json:"title_english,omitempty"`
	URL      string             `db:"url" json:"url"`
	Year     int                `db:"year" json:"year"`
	HasYear  bool               `db:"has_year" json:"has_year"`
}

// Cohort is a persisted per-run summary of one release-year cohort.
type Cohort struct {
	ID              int64           `db:"id" json:"-"`
	RunID           string          `db:"run_id" json:"-"`
	Year            int             `db:"year" json:"year"`
	Members         int             `db:"members" json:"members"`
	Median          float64         `db:"median" json:"median"`
	PercentilesJSON string          `db:"percentiles" json:"-"`
	Percentiles     map[int]float64 `db:"-" json:"percentiles"`
}

// ListOpts controls anime listing.
type ListOpts struct {
	Provider anime.ProviderType
	Year     int
	Limit    int
}

// Store is the persistence interface.
type Store interface {
	UpsertAnime(ctx context.Context, a *anime.Anime) error
	UpsertAll(ctx context.Context, items []anime.Anime) error
	GetAnime(ctx context.Context, key string) (*anime.Anime, error)
	ListAnime(ctx context.Context, opts ListOpts) ([]anime.Anime, error)
	CountByProvider(ctx context.Context) (map[anime.ProviderType]int, error)

	SaveRun(ctx context.Context, run *Run, rankings []Ranking, cohorts []Cohort) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListRankings(ctx context.Context, runID string, limit int) ([]RankingDetail, error)
	ListCohorts(ctx context.Context, runID string) ([]Cohort, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const animeColumns = "id, provider, title, title_english, url, score, scored_by, site_rank, members, episodes, year, has_year, fetched_at"

func (s *SQLiteStore) UpsertAnime(ctx context.Context, a *anime.Anime) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anime (key, id, provider, title, title_english, url, score, scored_by, site_rank, members, episodes, year, has_year, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			title_english = excluded.title_english,
			url = excluded.url,
			score = excluded.score,
			scored_by = excluded.scored_by,
			site_rank = excluded.site_rank,
			members = excluded.members,
			episodes = excluded.episodes,
			year = excluded.year,
			has_year = excluded.has_year,
			fetched_at = excluded.fetched_at
	`, a.Key(), a.ID, a.Provider, a.Title, a.TitleEN, a.URL, a.Score,
		a.ScoredBy, a.Rank, a.Members, a.Episodes, a.Year, a.HasYear, a.FetchedAt)
	if err != nil {
		return fmt.Errorf("upsert anime %s: %w", a.Key(), err)
	}
	return nil
}

func (s *SQLiteStore) UpsertAll(ctx context.Context, items []anime.Anime) error {
	for i := range items {
		if err := s.UpsertAnime(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) GetAnime(ctx context.Context, key string) (*anime.Anime, error) {
	var a anime.Anime
	err := s.db.GetContext(ctx, &a,
		"SELECT "+animeColumns+" FROM anime WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("anime %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get anime %s: %w", key, err)
	}
	return &a, nil
}

func (s *SQLiteStore) ListAnime(ctx context.Context, opts ListOpts) ([]anime.Anime, error) {
	query := "SELECT " + animeColumns + " FROM anime WHERE 1=1"
	var args []any

	if opts.Provider != "" {
		query += " AND provider = ?"
		args = append(args, opts.Provider)
	}
	if opts.Year != 0 {
		query += " AND year = ? AND has_year = 1"
		args = append(args, opts.Year)
	}

	// Secondary key keeps tie order identical across runs.
	query += " ORDER BY score DESC, key"

	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var items []anime.Anime
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list anime: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) CountByProvider(ctx context.Context) (map[anime.ProviderType]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT provider, COUNT(*) as cnt FROM anime GROUP BY provider")
	if err != nil {
		return nil, fmt.Errorf("count anime by provider: %w", err)
	}
	defer rows.Close()

	counts := make(map[anime.ProviderType]int)
	for rows.Next() {
		var p string
		var cnt int
		if err := rows.Scan(&p, &cnt); err != nil {
			return nil, err
		}
		counts[anime.ProviderType(p)] = cnt
	}
	return counts, nil
}

// SaveRun persists a run together with its rankings and cohort summaries in
// one transaction. A run is either fully recorded or not recorded at all.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, rankings []Ranking, cohorts []Cohort) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, algorithm, baseline_start, baseline_end, baseline_count, baseline_median, degenerate, min_sample_size, item_count, estimated_count, dropped_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Algorithm, run.BaselineStart, run.BaselineEnd, run.BaselineCount,
		run.BaselineMedian, run.Degenerate, run.MinSampleSize, run.ItemCount,
		run.EstimatedCount, run.DroppedCount, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i := range rankings {
		r := &rankings[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rankings (run_id, anime_key, original_score, original_rank, adjusted_score, adjusted_rank, delta, percentile, estimated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, r.AnimeKey, r.OriginalScore, r.OriginalRank, r.AdjustedScore,
			r.AdjustedRank, r.Delta, r.Percentile, r.Estimated)
		if err != nil {
			return fmt.Errorf("insert ranking %s: %w", r.AnimeKey, err)
		}
	}

	for i := range cohorts {
		c := &cohorts[i]
		percJSON, _ := json.Marshal(c.Percentiles)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cohorts (run_id, year, members, median, percentiles)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, c.Year, c.Members, c.Median, string(percJSON))
		if err != nil {
			return fmt.Errorf("insert cohort %d: %w", c.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs ORDER BY created_at DESC, id LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM runs ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) ListRankings(ctx context.Context, runID string, limit int) ([]RankingDetail, error) {
	if limit <= 0 {
		limit = 1000
	}
	var details []RankingDetail
	err := s.db.SelectContext(ctx, &details, `
		SELECT r.id, r.run_id, r.anime_key, r.original_score, r.original_rank,
		       r.adjusted_score, r.adjusted_rank, r.delta, r.percentile, r.estimated,
		       a.provider, a.title, a.title_english, a.url, a.year, a.has_year
		FROM rankings r
		JOIN anime a ON a.key = r.anime_key
		WHERE r.run_id = ?
		ORDER BY r.adjusted_rank
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("list rankings %s: %w", runID, err)
	}
	return details, nil
}

func (s *SQLiteStore) ListCohorts(ctx context.Context, runID string) ([]Cohort, error) {
	var cohorts []Cohort
	err := s.db.SelectContext(ctx, &cohorts,
		"SELECT * FROM cohorts WHERE run_id = ? ORDER BY year", runID)
	if err != nil {
		return nil, fmt.Errorf("list cohorts %s: %w", runID, err)
	}
	for i := range cohorts {
		json.Unmarshal([]byte(cohorts[i].PercentilesJSON), &cohorts[i].Percentiles)
	}
	return cohorts, nil
}

// RowsFromResult flattens a normalization result into storable rows under a
// fresh run ID.
func RowsFromResult(res *normalize.Result, cfg normalize.Config, at time.Time) (*Run, []Ranking, []Cohort) {
	run := &Run{
		ID:             uuid.NewString(),
		Algorithm:      normalize.Algorithm,
		BaselineStart:  cfg.BaselineStart,
		BaselineEnd:    cfg.BaselineEnd,
		BaselineCount:  res.Baseline.Count,
		BaselineMedian: res.Baseline.Median,
		Degenerate:     res.Baseline.Degenerate,
		MinSampleSize:  cfg.MinSampleSize,
		ItemCount:      len(res.Ranked),
		EstimatedCount: res.EstimatedCount,
		DroppedCount:   res.DroppedCount,
		CreatedAt:      at.UTC(),
	}

	rankings := make([]Ranking, len(res.Ranked))
	for i, r := range res.Ranked {
		rankings[i] = Ranking{
			RunID:         run.ID,
			AnimeKey:      r.Key(),
			OriginalScore: r.Score,
			OriginalRank:  r.Rank,
			AdjustedScore: r.AdjustedScore,
			AdjustedRank:  r.AdjustedRank,
			Delta:         r.Delta,
			Percentile:    r.Percentile,
			Estimated:     r.Estimated,
		}
	}

	cohorts := make([]Cohort, 0, len(res.Cohorts))
	for year, stats := range res.Cohorts {
		cohorts = append(cohorts, Cohort{
			RunID:       run.ID,
			Year:        year,
			Members:     stats.Count,
			Median:      stats.Median,
			Percentiles: stats.Snapshot,
		})
	}
	return run, rankings, cohorts
}
