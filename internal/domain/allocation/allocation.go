// Package allocation turns a batch of candidate projects and a risk-tolerance
// preference into a score-weighted funding allocation.
//
// Everything in this package is pure: no I/O, no shared state, safe to call
// concurrently. Callers recompute on every change to either input.
package allocation

import (
	"fmt"
	"math"

	"github.com/okian/greenalloc/internal/domain/model"
	"gonum.org/v1/gonum/floats"
)

// Fixed model weights. The ESG and return terms are scaled by the user's
// preference; the inverse-risk term is not.
const (
	esgWeight          = 0.4
	returnWeight       = 0.4
	inverseRiskWeight  = 0.2
	riskLevelCeiling   = 10
	riskLevelScale     = 10
	maxRiskTolerance   = 100
	minRiskTolerance   = 0
	displayScoreDigits = 1
)

// Weights splits a risk tolerance into two complementary weights.
type Weights struct {
	Risk   float64 // favours estimated return
	Safety float64 // favours ESG score
}

// WeightsFor derives the weights for a risk tolerance in [0, 100].
func WeightsFor(riskTolerance float64) Weights {
	risk := riskTolerance / maxRiskTolerance
	return Weights{Risk: risk, Safety: 1 - risk}
}

// Score computes the composite score of a single project.
func Score(p model.Project, w Weights) float64 {
	return p.ESGScore*esgWeight*w.Safety +
		p.EstimatedReturn*returnWeight*w.Risk +
		(riskLevelCeiling-p.RiskLevel)*riskLevelScale*inverseRiskWeight
}

// Result is the full outcome of an allocation run.
type Result struct {
	Allocations []model.Allocation
	TotalScore  float64
	// EqualSplit is set when the scores summed to zero and every project
	// received a 1/n share instead of a score share.
	EqualSplit bool
}

// Compute returns one allocation per project, in input order.
func Compute(projects []model.Project, riskTolerance float64) ([]model.Allocation, error) {
	res, err := Run(projects, riskTolerance)
	if err != nil {
		return nil, err
	}
	return res.Allocations, nil
}

// Run is Compute with the intermediate totals exposed.
func Run(projects []model.Project, riskTolerance float64) (Result, error) {
	if err := ValidateRiskTolerance(riskTolerance); err != nil {
		return Result{}, err
	}
	for i, p := range projects {
		if err := p.Validate(); err != nil {
			return Result{}, fmt.Errorf("%w: project %d: %w", ErrInvalidInput, i, err)
		}
	}

	allocations := make([]model.Allocation, len(projects))
	if len(projects) == 0 {
		return Result{Allocations: allocations}, nil
	}

	w := WeightsFor(riskTolerance)
	scores := make([]float64, len(projects))
	for i, p := range projects {
		scores[i] = Score(p, w)
	}
	total := floats.Sum(scores)
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return Result{}, fmt.Errorf("%w: total score is not finite", ErrInvalidInput)
	}

	equalSplit := cancels(total, scores)
	n := float64(len(projects))
	for i, p := range projects {
		share := 1 / n
		if !equalSplit {
			share = scores[i] / total
		}
		allocations[i] = model.Allocation{
			Name:  p.Name,
			Score: roundTo(scores[i], displayScoreDigits),
			Value: p.RequiredFunding * share,
			Share: share,
		}
	}

	return Result{Allocations: allocations, TotalScore: total, EqualSplit: equalSplit}, nil
}

// zeroTotalRelTolerance is how small the total may be, relative to the sum of
// absolute scores, before it counts as zero.
const zeroTotalRelTolerance = 1e-12

// cancels reports whether total is zero or only rounding noise left after
// positive and negative scores cancel out.
func cancels(total float64, scores []float64) bool {
	return math.Abs(total) <= zeroTotalRelTolerance*floats.Norm(scores, 1)
}

// ValidateRiskTolerance rejects values the engine will not interpret.
func ValidateRiskTolerance(riskTolerance float64) error {
	if math.IsNaN(riskTolerance) || math.IsInf(riskTolerance, 0) {
		return fmt.Errorf("%w: risk tolerance must be a finite number", ErrInvalidInput)
	}
	if riskTolerance < minRiskTolerance || riskTolerance > maxRiskTolerance {
		return fmt.Errorf("%w: risk tolerance %g outside [0, 100]", ErrInvalidInput, riskTolerance)
	}
	return nil
}

// ClampRiskTolerance pins a caller-supplied value into [0, 100].
// NaN is returned unchanged so the engine can reject it.
func ClampRiskTolerance(riskTolerance float64) float64 {
	if math.IsNaN(riskTolerance) {
		return riskTolerance
	}
	return math.Max(minRiskTolerance, math.Min(maxRiskTolerance, riskTolerance))
}

func roundTo(v float64, digits int) float64 {
	m := math.Pow(10, float64(digits))
	return math.Round(v*m) / m
}
