// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/internal/domain/types"
)

// AllocationDependencies defines the stateless allocation operation.
type AllocationDependencies interface {
	Allocate(ctx context.Context, projects []model.Project, riskTolerance float64) (types.AllocationSet, error)
}

// AllocationHandler handles POST /allocations.
type AllocationHandler struct {
	deps AllocationDependencies
	risk riskPolicy
}

// NewAllocationHandler creates a new allocation handler.
func NewAllocationHandler(deps AllocationDependencies, risk riskPolicy) *AllocationHandler {
	return &AllocationHandler{deps: deps, risk: risk}
}

// allocationRequest mirrors the OpenAPI schema for POST /allocations.
type allocationRequest struct {
	RiskTolerance *float64              `json:"risk_tolerance"`
	Projects      []model.ProjectRecord `json:"projects"`
}

// HandlePostAllocations computes allocations for the projects in the body.
func (h *AllocationHandler) HandlePostAllocations(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_allocations"

	var req allocationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	projects, err := model.ProjectsFromRecords(req.Projects)
	if err != nil {
		respondError(w, Wrap(op, err))
		return
	}

	set, err := h.deps.Allocate(r.Context(), projects, h.risk.resolve(req.RiskTolerance))
	if err != nil {
		respondError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, set)
}
