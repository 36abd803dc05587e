package domain

// Record is a single catalogued incident/case entry. The five dimension
// attributes are the only fields the search core interprets; everything
// else rides along in Payload untouched.
//
// Records are owned by the dataset importer and are read-only from the
// search core's perspective.
type Record struct {
	// ID is the unique record identifier. Search results are ordered by
	// ID ascending so pagination is stable across identical queries.
	ID int64 `json:"id"`

	// Offence is the canonical offence type token.
	Offence string `json:"offence"`

	// Area is the canonical geographic area token.
	Area string `json:"area"`

	// Age is the canonical age band token.
	Age string `json:"age"`

	// Gender is the canonical gender token.
	Gender string `json:"gender"`

	// Year is the calendar year of the record.
	Year int `json:"year"`

	// Payload holds opaque additional fields carried through from the
	// source dataset (counts, rates, coordinates...). Not interpreted.
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchResult is an ordered page of records matching a query plan,
// plus the total match count for pagination.
type SearchResult struct {
	// Records is the page of matching records, ordered by ID ascending.
	Records []*Record `json:"records"`

	// Total is the number of records matching the plan's filters,
	// ignoring pagination.
	Total int64 `json:"total"`

	// Plan echoes the executed query plan.
	Plan *QueryPlan `json:"plan"`
}
