package normalize

import "errors"

// Sentinel errors surfaced by a normalization run. Callers match them with
// errors.Is.
var (
	// ErrEmptyInput reports an empty item collection, or one the sample-size
	// filter reduced to nothing. Runs fail fast instead of emitting an empty
	// standings list that downstream consumers would mistake for a result.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmptyBaseline reports a baseline year range that matched no items.
	// NewBaseline still hands back a usable degenerate fallback for callers
	// that explicitly opt in, but Run treats this as a configuration error.
	ErrEmptyBaseline = errors.New("baseline range matched no items")
)
