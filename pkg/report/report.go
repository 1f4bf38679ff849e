// Package report renders the output of a normalization run for people and
// machines: a console table, an identifier-keyed JSON export and a small
// standalone HTML page.
package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/harukimoto/truerank/internal/store"
)

// Entry is one show in the JSON export.
type Entry struct {
	Title         string  `json:"title"`
	URL           string  `json:"url,omitempty"`
	OriginalScore float64 `json:"original_score"`
	OriginalRank  int     `json:"original_rank"`
	AdjustedScore float64 `json:"adjusted_score"`
	AdjustedRank  int     `json:"adjusted_rank"`
	Delta         float64 `json:"delta"`
	Year          int     `json:"year,omitempty"`
	Percentile    float64 `json:"percentile"`
	Estimated     bool    `json:"estimated,omitempty"`
}

// Meta describes the run an export came from.
type Meta struct {
	GeneratedAt    time.Time `json:"generated_at"`
	Count          int       `json:"count"`
	Baseline       string    `json:"baseline"`
	MinSampleSize  int       `json:"min_sample_size"`
	Algorithm      string    `json:"algorithm"`
	RunID          string    `json:"run_id,omitempty"`
	EstimatedCount int       `json:"estimated_count,omitempty"`
	DroppedCount   int       `json:"dropped_count,omitempty"`
	Degenerate     bool      `json:"degenerate,omitempty"`
}

// Export is the lookup-by-identifier JSON document.
type Export struct {
	Meta  Meta             `json:"meta"`
	Items map[string]Entry `json:"items"`
}

// Build assembles the JSON export from a stored run.
func Build(run *store.Run, details []store.RankingDetail) *Export {
	items := make(map[string]Entry, len(details))
	for _, d := range details {
		year := 0
		if d.HasYear {
			year = d.Year
		}
		items[d.AnimeKey] = Entry{
			Title:         d.Title,
			URL:           d.URL,
			OriginalScore: d.OriginalScore,
			OriginalRank:  d.OriginalRank,
			AdjustedScore: d.AdjustedScore,
			AdjustedRank:  d.AdjustedRank,
			Delta:         d.Delta,
			Year:          year,
			Percentile:    d.Percentile,
			Estimated:     d.Estimated,
		}
	}
	return &Export{Meta: buildMeta(run), Items: items}
}

func buildMeta(run *store.Run) Meta {
	return Meta{
		GeneratedAt:    run.CreatedAt,
		Count:          run.ItemCount,
		Baseline:       run.BaselineLabel(),
		MinSampleSize:  run.MinSampleSize,
		Algorithm:      run.Algorithm,
		RunID:          run.ID,
		EstimatedCount: run.EstimatedCount,
		DroppedCount:   run.DroppedCount,
		Degenerate:     run.Degenerate,
	}
}

// WriteJSON writes the export as indented JSON.
func WriteJSON(w io.Writer, exp *Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exp)
}

// Console renders a run as a text table. Styling stays outside the table
// cells so tabwriter's column math is not thrown off by escape codes.
type Console struct {
	colorize bool
}

// NewConsole creates a console renderer.
func NewConsole(colorize bool) *Console {
	return &Console{colorize: colorize}
}

func (c *Console) style(s lipgloss.Style, text string) string {
	if !c.colorize {
		return text
	}
	return s.Render(text)
}

// Render writes the standings table with a summary footer.
func (c *Console) Render(w io.Writer, run *store.Run, details []store.RankingDetail) error {
	header := fmt.Sprintf("True ranking · baseline %s · %s",
		run.BaselineLabel(), run.CreatedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintln(w, c.style(lipgloss.NewStyle().Bold(true), header))

	if run.Degenerate {
		warn := "WARNING: baseline matched no shows; every percentile maps to the fallback score"
		fmt.Fprintln(w, c.style(lipgloss.NewStyle().Foreground(lipgloss.Color("9")), warn))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tMOVE\tTITLE\tYEAR\tSCORE\tADJUSTED\tDELTA\tPCTL")
	for _, d := range details {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%+.2f\t%s\n",
			d.AdjustedRank, movement(d), truncate(d.Title, 48), yearLabel(d),
			d.OriginalScore, d.AdjustedScore, d.Delta, percentileLabel(d))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	footer := fmt.Sprintf("%d shows · %d estimated · %d dropped below %d raters",
		run.ItemCount, run.EstimatedCount, run.DroppedCount, run.MinSampleSize)
	fmt.Fprintln(w, c.style(lipgloss.NewStyle().Foreground(lipgloss.Color("7")), footer))
	if run.EstimatedCount > 0 {
		note := "* percentile estimated (release-year cohort below minimum size)"
		fmt.Fprintln(w, c.style(lipgloss.NewStyle().Foreground(lipgloss.Color("7")), note))
	}
	return nil
}

func movement(d store.RankingDetail) string {
	if d.OriginalRank <= 0 {
		return "-"
	}
	diff := d.OriginalRank - d.AdjustedRank
	if diff == 0 {
		return "="
	}
	return fmt.Sprintf("%+d", diff)
}

func yearLabel(d store.RankingDetail) string {
	if !d.HasYear {
		return "-"
	}
	return strconv.Itoa(d.Year)
}

func percentileLabel(d store.RankingDetail) string {
	s := fmt.Sprintf("%.1f", d.Percentile)
	if d.Estimated {
		s += "*"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

type htmlRow struct {
	Rank       int
	Move       string
	Title      string
	URL        string
	Year       string
	Score      string
	Adjusted   string
	Delta      string
	DeltaClass string
	Percentile string
}

type htmlPage struct {
	Meta Meta
	Rows []htmlRow
}

// WriteHTML writes a self-contained HTML rendering of a run.
func WriteHTML(w io.Writer, run *store.Run, details []store.RankingDetail) error {
	page := htmlPage{Meta: buildMeta(run), Rows: make([]htmlRow, 0, len(details))}
	for _, d := range details {
		class := "flat"
		switch {
		case d.Delta < 0:
			class = "down"
		case d.Delta > 0:
			class = "up"
		}
		page.Rows = append(page.Rows, htmlRow{
			Rank:       d.AdjustedRank,
			Move:       movement(d),
			Title:      d.Title,
			URL:        d.URL,
			Year:       yearLabel(d),
			Score:      fmt.Sprintf("%.2f", d.OriginalScore),
			Adjusted:   fmt.Sprintf("%.2f", d.AdjustedScore),
			Delta:      fmt.Sprintf("%+.2f", d.Delta),
			DeltaClass: class,
			Percentile: percentileLabel(d),
		})
	}
	return htmlTmpl.Execute(w, page)
}

var htmlTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>True ranking · baseline {{.Meta.Baseline}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 64rem; color: #222; }
h1 { font-size: 1.3rem; }
p.meta { color: #777; font-size: 0.85rem; }
p.warn { color: #b00020; font-weight: 600; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 0.35rem 0.6rem; border-bottom: 1px solid #eee; font-size: 0.9rem; }
th { border-bottom: 2px solid #ccc; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
tr td.down { color: #b00020; }
tr td.up { color: #00652e; }
tr td.flat { color: #777; }
</style>
</head>
<body>
<h1>True ranking · baseline {{.Meta.Baseline}}</h1>
<p class="meta">{{.Meta.Count}} shows · generated {{.Meta.GeneratedAt.Format "2006-01-02 15:04 MST"}} · {{.Meta.Algorithm}}</p>
{{if .Meta.Degenerate}}<p class="warn">Baseline matched no shows; every percentile maps to the fallback score.</p>{{end}}
<table>
<tr><th>Rank</th><th>Move</th><th>Title</th><th>Year</th><th>Score</th><th>Adjusted</th><th>Delta</th><th>Pctl</th></tr>
{{range .Rows}}<tr>
<td class="num">{{.Rank}}</td>
<td class="num">{{.Move}}</td>
<td>{{if .URL}}<a href="{{.URL}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}</td>
<td class="num">{{.Year}}</td>
<td class="num">{{.Score}}</td>
<td class="num">{{.Adjusted}}</td>
<td class="num {{.DeltaClass}}">{{.Delta}}</td>
<td class="num">{{.Percentile}}</td>
</tr>{{end}}
</table>
</body>
</html>
`))
