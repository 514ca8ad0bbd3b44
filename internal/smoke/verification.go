package smoke

import (
	"fmt"
	"math"

	"github.com/okian/greenalloc/internal/domain/allocation"
	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/internal/domain/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// valueTolerance absorbs float noise from the JSON round trip.
const valueTolerance = 1e-6

// verifyAllocations recomputes the allocation locally and compares it with
// what the server returned.
func verifyAllocations(projects []model.Project, set types.AllocationSet, riskTolerance float64) error {
	if set.RiskTolerance != riskTolerance {
		return fmt.Errorf("%w: asked for tolerance %g, got %g", ErrCheckFailed, riskTolerance, set.RiskTolerance)
	}
	if len(set.Allocations) != len(projects) {
		return fmt.Errorf("%w: %d projects but %d allocations", ErrCheckFailed, len(projects), len(set.Allocations))
	}

	want, err := allocation.Run(projects, riskTolerance)
	if err != nil {
		return fmt.Errorf("%w: local engine: %w", ErrCheckFailed, err)
	}
	if want.EqualSplit != set.EqualSplit {
		return fmt.Errorf("%w: equal_split is %t, expected %t", ErrCheckFailed, set.EqualSplit, want.EqualSplit)
	}

	shares := make([]float64, len(set.Allocations))
	for i, got := range set.Allocations {
		exp := want.Allocations[i]
		if got.Name != exp.Name {
			return fmt.Errorf("%w: allocation %d is %q, expected %q", ErrCheckFailed, i, got.Name, exp.Name)
		}
		if got.Score != exp.Score {
			return fmt.Errorf("%w: %s score %g, expected %g", ErrCheckFailed, got.Name, got.Score, exp.Score)
		}
		if !scalar.EqualWithinAbsOrRel(got.Value, exp.Value, valueTolerance, valueTolerance) {
			return fmt.Errorf("%w: %s value %g, expected %g", ErrCheckFailed, got.Name, got.Value, exp.Value)
		}
		shares[i] = got.Share
	}
	if len(shares) > 0 {
		if sum := floats.Sum(shares); math.Abs(sum-1) > valueTolerance {
			return fmt.Errorf("%w: shares sum to %g", ErrCheckFailed, sum)
		}
	}
	return nil
}

// verifyRanking checks the ranking is a best-first permutation of the
// allocation set.
func verifyRanking(ranked []types.RankedProject, set types.AllocationSet) error {
	if len(ranked) != len(set.Allocations) {
		return fmt.Errorf("%w: ranking has %d rows, allocations %d", ErrCheckFailed, len(ranked), len(set.Allocations))
	}
	for i, r := range ranked {
		if r.Rank != i+1 {
			return fmt.Errorf("%w: row %d has rank %d", ErrCheckFailed, i, r.Rank)
		}
		if i > 0 && r.Score > ranked[i-1].Score {
			return fmt.Errorf("%w: %s (%g) ranked below %s (%g)", ErrCheckFailed, ranked[i-1].Name, ranked[i-1].Score, r.Name, r.Score)
		}
	}

	rankedValues := make([]float64, len(ranked))
	for i, r := range ranked {
		rankedValues[i] = r.Value
	}
	allocValues := make([]float64, len(set.Allocations))
	for i, a := range set.Allocations {
		allocValues[i] = a.Value
	}
	if a, b := floats.Sum(rankedValues), floats.Sum(allocValues); !scalar.EqualWithinAbsOrRel(a, b, valueTolerance, valueTolerance) {
		return fmt.Errorf("%w: ranking values sum to %g, allocations to %g", ErrCheckFailed, a, b)
	}
	return nil
}
