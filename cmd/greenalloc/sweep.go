package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/greenalloc/internal/domain/allocation"
	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/internal/domain/types"
)

type sweepOptions struct {
	files []string
	step  float64
}

func newSweepCmd() *cobra.Command {
	opts := &sweepOptions{}
	cmd := &cobra.Command{
		Use:     "sweep",
		Short:   "Show how scores and the leader change across the risk range",
		Example: `  greenalloc sweep --file projects.yaml --step 10`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projects, err := loadProjects(cmd.Context(), opts.files)
			if err != nil {
				return err
			}
			return runSweep(cmd.OutOrStdout(), projects, opts.step)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.files, "file", "f", nil, "project manifest (YAML or JSON); repeatable")
	cmd.Flags().Float64Var(&opts.step, "step", 10, "risk tolerance increment")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// minSweepStep bounds a sweep to at most 10001 rows.
const minSweepStep = 0.01

// sweepTolerances returns 0, step, 2*step, ... and always ends at 100.
func sweepTolerances(step float64) ([]float64, error) {
	// Written as a positive range check so NaN is rejected too.
	if !(step >= minSweepStep && step <= 100) {
		return nil, fmt.Errorf("step must be in [%g, 100], got %g", minSweepStep, step)
	}
	var out []float64
	for i := 0; ; i++ {
		rt := float64(i) * step
		if rt >= 100 {
			break
		}
		out = append(out, rt)
	}
	return append(out, 100), nil
}

func runSweep(w io.Writer, projects []model.Project, step float64) error {
	tolerances, err := sweepTolerances(step)
	if err != nil {
		return err
	}

	headers := make([]string, 0, len(projects)+2)
	headers = append(headers, "Risk", "Leader")
	for _, p := range projects {
		headers = append(headers, p.Name)
	}
	t := newTable(headers...)

	for _, rt := range tolerances {
		ranked, err := allocation.Rank(projects, rt)
		if err != nil {
			return err
		}
		allocations, err := allocation.Compute(projects, rt)
		if err != nil {
			return err
		}
		row := make([]string, 0, len(headers))
		row = append(row, formatFloat(rt, 0), leader(ranked))
		for _, a := range allocations {
			row = append(row, formatFloat(a.Score, 1))
		}
		t.Row(row...)
	}
	_, err = io.WriteString(w, t.Render()+"\n")
	return err
}

func leader(ranked []types.RankedProject) string {
	if len(ranked) == 0 {
		return "-"
	}
	return ranked[0].Name
}
