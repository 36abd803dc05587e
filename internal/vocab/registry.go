// Package vocab holds the canonical value sets for the five filterable
// dimensions. The registry is built once at startup and is read-only
// afterwards; it is shared by reference wherever filter validation happens.
package vocab

import (
	"fmt"

	"github.com/kesrow/constable/internal/domain"
)

// Registry is the immutable catalogue of legal filter values per dimension.
type Registry struct {
	values  map[domain.Dimension][]string
	members map[domain.Dimension]map[string]struct{}
}

// New builds a Registry from the given value sets. It fails fast if any
// of the five dimensions is missing, empty, or contains duplicate tokens,
// so a misconfigured process never starts serving.
func New(values map[domain.Dimension][]string) (*Registry, error) {
	r := &Registry{
		values:  make(map[domain.Dimension][]string, len(values)),
		members: make(map[domain.Dimension]map[string]struct{}, len(values)),
	}

	for dim := range values {
		if !domain.KnownDimension(dim) {
			return nil, fmt.Errorf("vocabulary for unrecognized dimension %q", dim)
		}
	}

	for _, dim := range domain.Dimensions() {
		tokens := values[dim]
		if len(tokens) == 0 {
			return nil, fmt.Errorf("vocabulary for dimension %q is empty", dim)
		}

		members := make(map[string]struct{}, len(tokens))
		ordered := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			if tok == "" {
				return nil, fmt.Errorf("vocabulary for dimension %q contains an empty token", dim)
			}
			if _, dup := members[tok]; dup {
				return nil, fmt.Errorf("vocabulary for dimension %q contains duplicate token %q", dim, tok)
			}
			members[tok] = struct{}{}
			ordered = append(ordered, tok)
		}

		r.values[dim] = ordered
		r.members[dim] = members
	}

	return r, nil
}

// Values returns the canonical tokens for a dimension, in configured order.
// The returned slice is a copy; callers cannot mutate registry state.
func (r *Registry) Values(dim domain.Dimension) []string {
	tokens := r.values[dim]
	out := make([]string, len(tokens))
	copy(out, tokens)
	return out
}

// IsValid reports whether value is a member of the dimension's vocabulary.
// Unknown dimensions are never valid.
func (r *Registry) IsValid(dim domain.Dimension, value string) bool {
	members, ok := r.members[dim]
	if !ok {
		return false
	}
	_, ok = members[value]
	return ok
}
