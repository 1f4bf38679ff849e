package news

import "strings"

// Filter matches news text against the titles of ranked shows plus any
// configured extra keywords.
type Filter struct {
	keywords []string
	exclude  []string
}

// NewFilter creates a filter from show titles and keyword lists. Titles
// shorter than four bytes are skipped; matching them by substring would
// catch nearly everything.
func NewFilter(titles, extraKeywords, excludeKeywords []string) *Filter {
	var keywords []string
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if len(t) < 4 {
			continue
		}
		keywords = append(keywords, strings.ToLower(t))
	}
	for _, kw := range extraKeywords {
		keywords = append(keywords, strings.ToLower(kw))
	}

	exclude := make([]string, len(excludeKeywords))
	for i, kw := range excludeKeywords {
		exclude[i] = strings.ToLower(kw)
	}

	return &Filter{keywords: keywords, exclude: exclude}
}

// Matches returns true if text mentions a ranked show or extra keyword and
// no excluded keyword.
func (f *Filter) Matches(text string) bool {
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}

	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
