package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/greenalloc/internal/domain/allocation"
)

// riskPolicy resolves the tolerance a request asks for.
type riskPolicy struct {
	fallback float64
	clamp    bool
}

func (p riskPolicy) resolve(v *float64) float64 {
	if v == nil {
		return p.fallback
	}
	if p.clamp {
		return allocation.ClampRiskTolerance(*v)
	}
	return *v
}

// fromQuery reads risk_tolerance from a query string value.
func (p riskPolicy) fromQuery(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return p.resolve(nil), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: risk_tolerance %q is not a number", ErrBadRequest, raw)
	}
	return p.resolve(&v), nil
}
