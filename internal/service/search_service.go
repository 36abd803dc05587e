package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/repository"
	"github.com/kesrow/constable/internal/vocab"
)

// Default pagination bounds used when the configuration leaves them unset.
const (
	DefaultSearchLimit = 25
	MaxSearchLimit     = 100
)

// SearchService validates filter requests against the vocabulary registry,
// compiles them into query plans and executes them against the record store.
//
// Values within one dimension combine with OR; distinct dimensions combine
// with AND. An empty filter matches the whole catalogue.
type SearchService struct {
	recordRepo   repository.RecordRepository
	registry     *vocab.Registry
	defaultLimit int
	maxLimit     int
	logger       zerolog.Logger
}

// NewSearchService creates a new SearchService. Non-positive limits fall
// back to the package defaults.
func NewSearchService(recordRepo repository.RecordRepository, registry *vocab.Registry, defaultLimit, maxLimit int, logger zerolog.Logger) *SearchService {
	if maxLimit <= 0 {
		maxLimit = MaxSearchLimit
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = DefaultSearchLimit
		if defaultLimit > maxLimit {
			defaultLimit = maxLimit
		}
	}
	return &SearchService{
		recordRepo:   recordRepo,
		registry:     registry,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger.With().Str("service", "search").Logger(),
	}
}

// BuildPlan validates a raw filter request and pagination and compiles them
// into a QueryPlan. Validation is strict: an unrecognized dimension name or
// a value outside the dimension's vocabulary rejects the whole request, it
// is never silently dropped.
//
// Pagination rules: a negative offset or limit is rejected with
// domain.ErrPaginationOutOfRange, a zero limit selects the default, and a
// limit above the maximum is clamped, not rejected.
func (s *SearchService) BuildPlan(filter domain.FilterRequest, page domain.Pagination) (*domain.QueryPlan, error) {
	// Reject unknown dimensions first. Keys are sorted so the reported
	// offender is deterministic when several are unknown.
	names := make([]string, 0, len(filter))
	for dim := range filter {
		names = append(names, string(dim))
	}
	sort.Strings(names)
	for _, name := range names {
		if !domain.KnownDimension(domain.Dimension(name)) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDimension, name)
		}
	}

	filters := make(map[domain.Dimension][]string)
	for _, dim := range domain.Dimensions() {
		values := domain.NormalizeValues(filter[dim])
		if len(values) == 0 {
			continue
		}
		for _, v := range values {
			if !s.registry.IsValid(dim, v) {
				return nil, &domain.InvalidFilterValueError{Dimension: dim, Value: v}
			}
		}
		filters[dim] = values
	}

	if page.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", domain.ErrPaginationOutOfRange)
	}
	if page.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", domain.ErrPaginationOutOfRange)
	}
	limit := page.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	return &domain.QueryPlan{
		Filters: filters,
		Offset:  page.Offset,
		Limit:   limit,
	}, nil
}

// Execute runs a validated query plan against the record store. Storage
// failures surface as domain.ErrStorageUnavailable so callers can map them
// to a retryable status.
func (s *SearchService) Execute(ctx context.Context, plan *domain.QueryPlan) (*domain.SearchResult, error) {
	records, total, err := s.recordRepo.Search(ctx, plan)
	if err != nil {
		s.logger.Error().Err(err).Msg("Record search failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if records == nil {
		records = []*domain.Record{}
	}

	s.logger.Debug().
		Int("dimensions", len(plan.Filters)).
		Int("returned", len(records)).
		Int64("total", total).
		Msg("Search executed")

	return &domain.SearchResult{
		Records: records,
		Total:   total,
		Plan:    plan,
	}, nil
}

// Search validates, compiles and executes a filter request in one call.
func (s *SearchService) Search(ctx context.Context, filter domain.FilterRequest, page domain.Pagination) (*domain.SearchResult, error) {
	plan, err := s.BuildPlan(filter, page)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, plan)
}
