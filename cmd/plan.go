package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/N9work/CrewAi-Project/internal/catalog"
	srv "github.com/N9work/CrewAi-Project/internal/server"
)

// planCMD runs one planning request from the command line.
func planCMD(cfgPath *string) *cobra.Command {
	var req catalog.Request
	var asJSON bool
	var plan = &cobra.Command{
		Use:   "plan",
		Short: "Plan a single trip and print the rendered result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadWithLogger(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			p, _, _, err := srv.Build(cfg, logger)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			report, err := p.Plan(ctx, req)
			if err != nil {
				return fmt.Errorf("run %s: %w", report.RunID, err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.Result)
			return err
		},
	}
	f := plan.Flags()
	f.StringVar(&req.Category, "category", "", "destination category id")
	f.StringVar(&req.Style, "style", "", "travel style id")
	f.StringVar(&req.Cost, "cost", "", "budget tier id")
	f.StringVar(&req.Duration, "days", "", "duration id")
	f.StringVar(&req.Travelers, "adults", "", "number of travelers")
	f.StringVar(&req.Requirement, "requirement", "", "free-text extra requirement")
	f.BoolVar(&asJSON, "json", false, "print the full report as JSON")
	for _, name := range []string{"category", "style", "cost", "days"} {
		_ = plan.MarkFlagRequired(name)
	}
	return plan
}
