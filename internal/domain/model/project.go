// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidProject marks a project record that cannot enter the allocation engine.
var ErrInvalidProject = errors.New("invalid project")

// Project is a candidate investment as delivered by an extractor.
// Values are never mutated once the project leaves the extractor.
type Project struct {
	Name            string  `json:"name" yaml:"name"`
	ESGScore        float64 `json:"esg_score" yaml:"esg_score"`               // 0-100, higher is more sustainable
	EstimatedReturn float64 `json:"estimated_return" yaml:"estimated_return"` // percent, 12.5 means 12.5%
	CarbonReduction float64 `json:"carbon_reduction" yaml:"carbon_reduction"` // display only
	RiskLevel       float64 `json:"risk_level" yaml:"risk_level"`             // 1 (low) - 10 (high)
	RequiredFunding float64 `json:"required_funding" yaml:"required_funding"` // currency amount requested
}

// Validate reports whether the project is fully formed. Out-of-convention
// but finite values are accepted; they pass through the engine arithmetically.
func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProject)
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"esg_score", p.ESGScore},
		{"estimated_return", p.EstimatedReturn},
		{"carbon_reduction", p.CarbonReduction},
		{"risk_level", p.RiskLevel},
		{"required_funding", p.RequiredFunding},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %q has non-finite %s", ErrInvalidProject, p.Name, f.name)
		}
	}
	return nil
}

// ProjectRecord is the wire form of a Project. Pointer fields tell a field
// left out of the document apart from an explicit zero.
type ProjectRecord struct {
	Name            *string  `json:"name" yaml:"name"`
	ESGScore        *float64 `json:"esg_score" yaml:"esg_score"`
	EstimatedReturn *float64 `json:"estimated_return" yaml:"estimated_return"`
	CarbonReduction *float64 `json:"carbon_reduction" yaml:"carbon_reduction"`
	RiskLevel       *float64 `json:"risk_level" yaml:"risk_level"`
	RequiredFunding *float64 `json:"required_funding" yaml:"required_funding"`
}

// Empty reports whether no field was supplied.
func (r ProjectRecord) Empty() bool {
	return r == ProjectRecord{}
}

// Project converts the record, rejecting it when any field is missing or the
// result fails Validate.
func (r ProjectRecord) Project() (Project, error) {
	if r.Name == nil {
		return Project{}, fmt.Errorf("%w: missing name", ErrInvalidProject)
	}
	fields := []struct {
		name  string
		value *float64
	}{
		{"esg_score", r.ESGScore},
		{"estimated_return", r.EstimatedReturn},
		{"carbon_reduction", r.CarbonReduction},
		{"risk_level", r.RiskLevel},
		{"required_funding", r.RequiredFunding},
	}
	var missing []string
	for _, f := range fields {
		if f.value == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Project{}, fmt.Errorf("%w: %q missing %s", ErrInvalidProject, *r.Name, strings.Join(missing, ", "))
	}
	p := Project{
		Name:            *r.Name,
		ESGScore:        *r.ESGScore,
		EstimatedReturn: *r.EstimatedReturn,
		CarbonReduction: *r.CarbonReduction,
		RiskLevel:       *r.RiskLevel,
		RequiredFunding: *r.RequiredFunding,
	}
	return p, p.Validate()
}

// ProjectsFromRecords converts records in order, failing on the first bad one.
func ProjectsFromRecords(records []ProjectRecord) ([]Project, error) {
	projects := make([]Project, len(records))
	for i, r := range records {
		p, err := r.Project()
		if err != nil {
			return nil, fmt.Errorf("project %d: %w", i, err)
		}
		projects[i] = p
	}
	return projects, nil
}

// Allocation is the recommended funding for one project at a given risk tolerance.
type Allocation struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"` // composite score rounded to one decimal
	Value float64 `json:"value"` // score-weighted reference amount
	Share float64 `json:"share"` // fraction of the total score used to derive Value
}
