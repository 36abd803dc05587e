package domain

import (
	"sort"
	"strconv"
)

// Dimension identifies one of the five filterable record attributes.
// The set of dimensions is closed: any other name in a filter request
// is rejected with ErrUnknownDimension, never silently ignored.
type Dimension string

// The five recognized dimensions.
const (
	DimensionOffence Dimension = "offence"
	DimensionArea    Dimension = "area"
	DimensionAge     Dimension = "age"
	DimensionGender  Dimension = "gender"
	DimensionYear    Dimension = "year"
)

// Dimensions returns the recognized dimensions in canonical order.
func Dimensions() []Dimension {
	return []Dimension{
		DimensionOffence,
		DimensionArea,
		DimensionAge,
		DimensionGender,
		DimensionYear,
	}
}

// KnownDimension reports whether d is one of the five recognized dimensions.
func KnownDimension(d Dimension) bool {
	switch d {
	case DimensionOffence, DimensionArea, DimensionAge, DimensionGender, DimensionYear:
		return true
	}
	return false
}

// FilterRequest is the raw, user-supplied mapping of dimensions to desired
// values, before validation. An absent or empty dimension means "no
// constraint on this dimension"; an empty request matches all records.
type FilterRequest map[Dimension][]string

// Pagination carries the raw offset/limit of a search request.
// The zero value means "use defaults".
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// QueryPlan is the validated, normalized form of a FilterRequest plus
// bounded pagination. It is the only object handed to the search executor.
type QueryPlan struct {
	// Filters maps each constrained dimension to its deduplicated,
	// sorted value set. Values within a dimension combine with OR;
	// dimensions combine with AND.
	Filters map[Dimension][]string `json:"filters"`

	// Offset is the number of matching records to skip.
	Offset int `json:"offset"`

	// Limit is the page size, already clamped to the configured maximum.
	Limit int `json:"limit"`
}

// ConstrainedDimensions returns the plan's filtered dimensions in
// canonical order. Deterministic iteration keeps generated SQL stable
// across identical queries.
func (p *QueryPlan) ConstrainedDimensions() []Dimension {
	dims := make([]Dimension, 0, len(p.Filters))
	for _, d := range Dimensions() {
		if len(p.Filters[d]) > 0 {
			dims = append(dims, d)
		}
	}
	return dims
}

// Matches reports whether a record satisfies every constrained dimension.
// Used by in-memory implementations and tests; SQL backends compile the
// same semantics into a WHERE clause.
func (p *QueryPlan) Matches(r *Record) bool {
	for dim, values := range p.Filters {
		if len(values) == 0 {
			continue
		}
		if !containsString(values, r.DimensionValue(dim)) {
			return false
		}
	}
	return true
}

// DimensionValue returns the record's value for the given dimension as
// its canonical string token.
func (r *Record) DimensionValue(d Dimension) string {
	switch d {
	case DimensionOffence:
		return r.Offence
	case DimensionArea:
		return r.Area
	case DimensionAge:
		return r.Age
	case DimensionGender:
		return r.Gender
	case DimensionYear:
		return strconv.Itoa(r.Year)
	}
	return ""
}

// NormalizeValues returns a sorted copy of values with duplicates removed.
func NormalizeValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
