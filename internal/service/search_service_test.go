package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/vocab"
)

// fixtureRecords is a small catalogue exercising every dimension.
func fixtureRecords() []*domain.Record {
	return []*domain.Record{
		{ID: 1, Offence: "theft", Area: "north", Age: "18-34", Gender: "female", Year: 2020},
		{ID: 2, Offence: "theft", Area: "south", Age: "35-54", Gender: "male", Year: 2021},
		{ID: 3, Offence: "assault", Area: "north", Age: "18-34", Gender: "male", Year: 2020},
		{ID: 4, Offence: "theft", Area: "east", Age: "0-17", Gender: "unknown", Year: 2021},
		{ID: 5, Offence: "burglary", Area: "west", Age: "55+", Gender: "female", Year: 2021},
	}
}

func newTestSearchService(t *testing.T, records []*domain.Record) *SearchService {
	t.Helper()

	registry, err := vocab.New(testVocabulary())
	if err != nil {
		t.Fatalf("failed to build vocabulary registry: %v", err)
	}
	repo := &mockRecordRepo{records: records}
	return NewSearchService(repo, registry, 25, 100, zerolog.Nop())
}

func recordIDs(records []*domain.Record) []int64 {
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func TestSearchService_Search(t *testing.T) {
	tests := []struct {
		name      string
		filter    domain.FilterRequest
		page      domain.Pagination
		wantIDs   []int64
		wantTotal int64
	}{
		{
			name:      "empty filter matches everything",
			filter:    domain.FilterRequest{},
			wantIDs:   []int64{1, 2, 3, 4, 5},
			wantTotal: 5,
		},
		{
			name: "values within a dimension combine with OR, dimensions with AND",
			filter: domain.FilterRequest{
				domain.DimensionOffence: {"theft"},
				domain.DimensionYear:    {"2020", "2021"},
			},
			wantIDs:   []int64{1, 2, 4},
			wantTotal: 3,
		},
		{
			name: "single value single dimension",
			filter: domain.FilterRequest{
				domain.DimensionGender: {"female"},
			},
			wantIDs:   []int64{1, 5},
			wantTotal: 2,
		},
		{
			name: "duplicate values collapse",
			filter: domain.FilterRequest{
				domain.DimensionOffence: {"theft", "theft"},
			},
			wantIDs:   []int64{1, 2, 4},
			wantTotal: 3,
		},
		{
			name: "conjunction with no matches",
			filter: domain.FilterRequest{
				domain.DimensionOffence: {"burglary"},
				domain.DimensionArea:    {"north"},
			},
			wantIDs:   []int64{},
			wantTotal: 0,
		},
		{
			name:      "first page of two",
			filter:    domain.FilterRequest{},
			page:      domain.Pagination{Offset: 0, Limit: 2},
			wantIDs:   []int64{1, 2},
			wantTotal: 5,
		},
		{
			name:      "second page of two",
			filter:    domain.FilterRequest{},
			page:      domain.Pagination{Offset: 2, Limit: 2},
			wantIDs:   []int64{3, 4},
			wantTotal: 5,
		},
		{
			name:      "offset beyond the result set",
			filter:    domain.FilterRequest{},
			page:      domain.Pagination{Offset: 10, Limit: 2},
			wantIDs:   []int64{},
			wantTotal: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestSearchService(t, fixtureRecords())

			result, err := svc.Search(context.Background(), tt.filter, tt.page)
			if err != nil {
				t.Fatalf("Search() failed: %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Search() total = %d, want %d", result.Total, tt.wantTotal)
			}
			got := recordIDs(result.Records)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("Search() returned IDs %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Fatalf("Search() returned IDs %v, want %v", got, tt.wantIDs)
				}
			}
		})
	}
}

func TestSearchService_BuildPlan_Validation(t *testing.T) {
	svc := newTestSearchService(t, nil)

	t.Run("unknown dimension", func(t *testing.T) {
		_, err := svc.BuildPlan(domain.FilterRequest{"colour": {"red"}}, domain.Pagination{})
		if !errors.Is(err, domain.ErrUnknownDimension) {
			t.Fatalf("BuildPlan() error = %v, want ErrUnknownDimension", err)
		}
		if !strings.Contains(err.Error(), "colour") {
			t.Errorf("error %q does not name the offending dimension", err)
		}
	})

	t.Run("value outside the vocabulary", func(t *testing.T) {
		_, err := svc.BuildPlan(domain.FilterRequest{
			domain.DimensionOffence: {"theft", "arson"},
		}, domain.Pagination{})
		if !errors.Is(err, domain.ErrInvalidFilterValue) {
			t.Fatalf("BuildPlan() error = %v, want ErrInvalidFilterValue", err)
		}

		var invalid *domain.InvalidFilterValueError
		if !errors.As(err, &invalid) {
			t.Fatalf("BuildPlan() error %T does not carry value details", err)
		}
		if invalid.Dimension != domain.DimensionOffence || invalid.Value != "arson" {
			t.Errorf("error names %s=%q, want offence=%q", invalid.Dimension, invalid.Value, "arson")
		}
	})

	t.Run("valid value in the wrong dimension", func(t *testing.T) {
		_, err := svc.BuildPlan(domain.FilterRequest{
			domain.DimensionArea: {"theft"},
		}, domain.Pagination{})
		if !errors.Is(err, domain.ErrInvalidFilterValue) {
			t.Fatalf("BuildPlan() error = %v, want ErrInvalidFilterValue", err)
		}
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := svc.BuildPlan(domain.FilterRequest{}, domain.Pagination{Offset: -1})
		if !errors.Is(err, domain.ErrPaginationOutOfRange) {
			t.Fatalf("BuildPlan() error = %v, want ErrPaginationOutOfRange", err)
		}
	})

	t.Run("negative limit", func(t *testing.T) {
		_, err := svc.BuildPlan(domain.FilterRequest{}, domain.Pagination{Limit: -1})
		if !errors.Is(err, domain.ErrPaginationOutOfRange) {
			t.Fatalf("BuildPlan() error = %v, want ErrPaginationOutOfRange", err)
		}
	})

	t.Run("zero limit selects the default", func(t *testing.T) {
		plan, err := svc.BuildPlan(domain.FilterRequest{}, domain.Pagination{})
		if err != nil {
			t.Fatalf("BuildPlan() failed: %v", err)
		}
		if plan.Limit != 25 {
			t.Errorf("plan limit = %d, want 25", plan.Limit)
		}
	})

	t.Run("oversized limit is clamped", func(t *testing.T) {
		plan, err := svc.BuildPlan(domain.FilterRequest{}, domain.Pagination{Limit: 5000})
		if err != nil {
			t.Fatalf("BuildPlan() failed: %v", err)
		}
		if plan.Limit != 100 {
			t.Errorf("plan limit = %d, want 100", plan.Limit)
		}
	})

	t.Run("values are deduplicated and sorted", func(t *testing.T) {
		plan, err := svc.BuildPlan(domain.FilterRequest{
			domain.DimensionYear: {"2021", "2020", "2021"},
		}, domain.Pagination{})
		if err != nil {
			t.Fatalf("BuildPlan() failed: %v", err)
		}
		values := plan.Filters[domain.DimensionYear]
		if len(values) != 2 || values[0] != "2020" || values[1] != "2021" {
			t.Errorf("plan year values = %v, want [2020 2021]", values)
		}
	})
}

func TestSearchService_Execute_StorageFailure(t *testing.T) {
	registry, err := vocab.New(testVocabulary())
	if err != nil {
		t.Fatalf("failed to build vocabulary registry: %v", err)
	}
	repo := &mockRecordRepo{searchErr: errors.New("connection refused")}
	svc := NewSearchService(repo, registry, 25, 100, zerolog.Nop())

	_, err = svc.Search(context.Background(), domain.FilterRequest{}, domain.Pagination{})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("Search() error = %v, want ErrStorageUnavailable", err)
	}
}
