// Package types contains common types used across the application
package types

import "github.com/okian/greenalloc/internal/domain/model"

// RankedProject is one row of a batch ranking at a given risk tolerance.
type RankedProject struct {
	Rank            int     `json:"rank"`
	Name            string  `json:"name"`
	Score           float64 `json:"score"`
	Value           float64 `json:"value"`
	ESGScore        float64 `json:"esg_score"`
	EstimatedReturn float64 `json:"estimated_return"`
	RiskLevel       float64 `json:"risk_level"`
	CarbonReduction float64 `json:"carbon_reduction"`
}

// AllocationSet is the response shape for an allocation run.
type AllocationSet struct {
	BatchID       string             `json:"batch_id,omitempty"`
	RiskTolerance float64            `json:"risk_tolerance"`
	TotalScore    float64            `json:"total_score"`
	EqualSplit    bool               `json:"equal_split"`
	Allocations   []model.Allocation `json:"allocations"`
}
