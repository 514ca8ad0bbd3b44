package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/greenalloc/internal/domain/allocation"
	"github.com/okian/greenalloc/internal/domain/types"
)

type allocateOptions struct {
	files   []string
	risk    float64
	asJSON  bool
	noClamp bool
}

func newAllocateCmd() *cobra.Command {
	opts := &allocateOptions{}
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Allocate funding across the projects in one or more manifests",
		Example: `  greenalloc allocate --file projects.yaml --risk 50
  greenalloc allocate -f solar.json -f wind.yaml --risk 80 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAllocate(cmd, opts)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.files, "file", "f", nil, "project manifest (YAML or JSON); repeatable")
	cmd.Flags().Float64VarP(&opts.risk, "risk", "r", 50, "risk tolerance in [0, 100]")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&opts.noClamp, "no-clamp", false, "reject out-of-range risk instead of clamping it")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runAllocate(cmd *cobra.Command, opts *allocateOptions) error {
	ctx := cmd.Context()
	projects, err := loadProjects(ctx, opts.files)
	if err != nil {
		return err
	}

	rt := opts.risk
	if !opts.noClamp {
		rt = allocation.ClampRiskTolerance(rt)
	}
	res, err := allocation.Run(projects, rt)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeJSON(out, types.AllocationSet{
			RiskTolerance: rt,
			TotalScore:    res.TotalScore,
			EqualSplit:    res.EqualSplit,
			Allocations:   res.Allocations,
		})
	}

	ranked, err := allocation.Rank(projects, rt)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "Risk tolerance %s, %d projects\n", formatFloat(rt, 0), len(projects)); err != nil {
		return err
	}
	if res.EqualSplit {
		if _, err := fmt.Fprintln(out, "All scores are zero; funding split equally."); err != nil {
			return err
		}
	}
	return renderRanking(out, ranked)
}
