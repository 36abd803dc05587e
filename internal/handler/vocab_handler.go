package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/vocab"
)

// VocabHandler serves the controlled vocabularies so clients can build
// filter UIs without hardcoding the value sets.
type VocabHandler struct {
	registry *vocab.Registry
}

// NewVocabHandler creates a new VocabHandler.
func NewVocabHandler(registry *vocab.Registry) *VocabHandler {
	return &VocabHandler{registry: registry}
}

// RegisterRoutes registers one listing endpoint per dimension. The
// vocabularies are public: they describe what can be asked, not what the
// catalogue contains.
func (h *VocabHandler) RegisterRoutes(r chi.Router) {
	r.Get("/offences", h.listValues(domain.DimensionOffence))
	r.Get("/areas", h.listValues(domain.DimensionArea))
	r.Get("/ages", h.listValues(domain.DimensionAge))
	r.Get("/genders", h.listValues(domain.DimensionGender))
	r.Get("/years", h.listValues(domain.DimensionYear))
}

type vocabResponse struct {
	Dimension string   `json:"dimension"`
	Values    []string `json:"values"`
}

func (h *VocabHandler) listValues(dim domain.Dimension) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, vocabResponse{
			Dimension: string(dim),
			Values:    h.registry.Values(dim),
		})
	}
}
