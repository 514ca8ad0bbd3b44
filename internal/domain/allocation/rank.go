package allocation

import (
	"sort"

	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/internal/domain/types"
)

// Rank computes allocations and orders the projects by composite score,
// best first. Equal scores keep their input order.
func Rank(projects []model.Project, riskTolerance float64) ([]types.RankedProject, error) {
	allocations, err := Compute(projects, riskTolerance)
	if err != nil {
		return nil, err
	}

	// Sort on the unrounded score; the displayed one loses ties.
	w := WeightsFor(riskTolerance)
	order := make([]int, len(projects))
	scores := make([]float64, len(projects))
	for i, p := range projects {
		order[i] = i
		scores[i] = Score(p, w)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranked := make([]types.RankedProject, len(order))
	for rank, idx := range order {
		p := projects[idx]
		ranked[rank] = types.RankedProject{
			Rank:            rank + 1,
			Name:            p.Name,
			Score:           allocations[idx].Score,
			Value:           allocations[idx].Value,
			ESGScore:        p.ESGScore,
			EstimatedReturn: p.EstimatedReturn,
			RiskLevel:       p.RiskLevel,
			CarbonReduction: p.CarbonReduction,
		}
	}
	return ranked, nil
}
