package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/greenalloc/internal/smoke"
)

func newCheckCmd() *cobra.Command {
	cfg := smoke.Config{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run an end-to-end check against a running service",
		Long: `Uploads the given documents several times with one upload id, waits for
extraction, then verifies allocations and rankings at each risk tolerance
against a local computation.`,
		Example: `  greenalloc check --url http://localhost:9080 --file projects.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := smoke.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"OK batch=%s projects=%d failures=%d duplicates=%d/%d checks=%d duration=%s\n",
				report.BatchID, report.Projects, report.Failures, report.Duplicates, report.Uploads,
				report.Checks, report.Duration.Round(time.Millisecond))
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	cmd.Flags().StringSliceVarP(&cfg.Files, "file", "f", nil, "document to upload; repeatable")
	cmd.Flags().StringVar(&cfg.UploadID, "upload-id", "", "idempotency key (random when empty)")
	cmd.Flags().Float64SliceVar(&cfg.Tolerances, "risk", smoke.DefaultTolerances, "risk tolerances to verify")
	cmd.Flags().IntVar(&cfg.Uploads, "uploads", smoke.DefaultUploads, "concurrent uploads of the same batch")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", smoke.DefaultTimeout, "HTTP request timeout")
	cmd.Flags().DurationVar(&cfg.PollInterval, "poll", smoke.DefaultPollInterval, "batch status poll interval")
	cmd.Flags().DurationVar(&cfg.WaitTimeout, "wait", smoke.DefaultWaitTimeout, "how long to wait for extraction")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
