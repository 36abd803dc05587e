package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/metrics"
	"github.com/kesrow/constable/internal/service"
)

// SearchHandler handles authenticated record searches.
type SearchHandler struct {
	searchService *service.SearchService
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

// NewSearchHandler creates a new SearchHandler. metrics may be nil.
func NewSearchHandler(search *service.SearchService, m *metrics.Metrics, logger zerolog.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: search,
		metrics:       m,
		logger:        logger.With().Str("handler", "search").Logger(),
	}
}

// RegisterRoutes registers the search endpoint on an authenticated router.
func (h *SearchHandler) RegisterRoutes(r chi.Router) {
	r.Get("/search", h.handleSearch)
}

type searchResponse struct {
	Records []*domain.Record `json:"records"`
	Total   int64            `json:"total"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
}

// handleSearch runs a filtered search.
//
// Dimensions arrive as query parameters; a parameter may repeat and each
// occurrence may hold a comma-separated list, so ?year=2020&year=2021 and
// ?year=2020,2021 are equivalent. Every parameter other than offset and
// limit is treated as a dimension name and validated as such, so a typo
// like ?ofence=theft is rejected rather than silently matching everything.
func (h *SearchHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseSearchQuery(r)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordSearch("rejected", 0)
		}
		writeError(w, r, err)
		return
	}

	result, err := h.searchService.Search(r.Context(), filter, page)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordSearch(searchOutcome(err), 0)
		}
		writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSearch("ok", len(result.Records))
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Records: result.Records,
		Total:   result.Total,
		Offset:  result.Plan.Offset,
		Limit:   result.Plan.Limit,
	})
}

func searchOutcome(err error) string {
	status, _ := classifyError(err)
	if status == http.StatusBadRequest {
		return "rejected"
	}
	return "error"
}

func parseSearchQuery(r *http.Request) (domain.FilterRequest, domain.Pagination, error) {
	var page domain.Pagination
	filter := make(domain.FilterRequest)

	for key, raw := range r.URL.Query() {
		switch key {
		case "offset":
			n, err := parsePageParam(key, raw)
			if err != nil {
				return nil, page, err
			}
			page.Offset = n
		case "limit":
			n, err := parsePageParam(key, raw)
			if err != nil {
				return nil, page, err
			}
			page.Limit = n
		default:
			filter[domain.Dimension(key)] = splitValues(raw)
		}
	}

	return filter, page, nil
}

func parsePageParam(name string, raw []string) (int, error) {
	// Last occurrence wins, matching common proxy/form behaviour.
	value := raw[len(raw)-1]
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, domain.WrapError(domain.ErrPaginationOutOfRange, name+" must be an integer")
	}
	return n, nil
}

func splitValues(raw []string) []string {
	values := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, v := range strings.Split(entry, ",") {
			v = strings.TrimSpace(v)
			if v != "" {
				values = append(values, v)
			}
		}
	}
	return values
}
