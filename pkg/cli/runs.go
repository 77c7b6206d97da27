package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-datagen/pkg/services"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and prune the generation run log",
	}
	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsPruneCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent generation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			generator, _ := cmd.Flags().GetString("generator")
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return fmt.Errorf("the run log is disabled (set database.enabled)")
			}

			a, err := openApp(cmd.Context(), cfg, logger, features{runLog: true})
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.runs().ListRecent(cmd.Context(), generator, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tGENERATOR\tSTATUS\tSEED\tROWS\tSTARTED\tDURATION")
			for _, r := range runs {
				duration := "-"
				if r.FinishedAt != nil {
					duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					r.ID, r.Generator, r.Status, r.Seed, r.RowCount,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), duration)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringP("generator", "g", "", "Only show runs of this generator")
	cmd.Flags().IntP("limit", "n", 20, "Maximum runs to show")
	return cmd
}

func newRunsPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old run records and archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger, features{runLog: true})
			if err != nil {
				return err
			}
			defer a.Close()

			svc := services.NewRetentionService(a.runs(), cfg.Output.Dir, logger)
			result, err := svc.Prune(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run records and %d archives.\n", result.Runs, result.Archives)
			return nil
		},
	}
	cmd.Flags().Int("days", services.DefaultRetentionDays, "Keep records and archives newer than this many days")
	return cmd
}
