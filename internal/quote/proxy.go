package quote

import "fundwatch/internal/models"

// Resolver maps instrument codes that have no independent quote feed to the
// substitute on-exchange code whose rate stands in for them. It applies only
// to borrowed-channel holdings.
type Resolver struct {
	mapping map[string]string
}

func NewResolver(mapping map[string]string) *Resolver {
	normalized := make(map[string]string, len(mapping))
	for from, to := range mapping {
		normalized[models.NormalizeCode(from)] = models.NormalizeCode(to)
	}
	return &Resolver{mapping: normalized}
}

// Resolve returns the proxy code for the given instrument, or the instrument
// itself when no mapping exists.
func (r *Resolver) Resolve(code string) (string, bool) {
	if r == nil {
		return code, false
	}
	if target, ok := r.mapping[code]; ok {
		return target, true
	}
	return code, false
}
