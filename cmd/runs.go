package cmd

import (
	"fmt"
	"github.com/jayjOnly/VA-Validator/models"
	"github.com/jayjOnly/VA-Validator/report"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"strconv"
	"time"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run history",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				pterm.Warning.Println("No runs recorded.")
				return nil
			}

			data := pterm.TableData{{"Run", "Started", "Source", "Findings", "Validated", "Duration"}}
			for _, r := range runs {
				data = append(data, []string{
					r.RunID,
					r.StartedAt.Local().Format(time.DateTime),
					r.Source,
					strconv.Itoa(r.Summary.Total),
					strconv.Itoa(r.Summary.Count(models.StatusConfirmed)),
					r.Duration.String(),
				})
			}
			return pterm.DefaultTable.WithHasHeader(true).WithBoxed(false).WithData(data).Render()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show, 0 for all")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run with its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			run, err := db.FetchRun(args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}

			pterm.Info.Printfln("Run %s from %s, started %s", run.RunID, run.Source, run.StartedAt.Local().Format(time.DateTime))
			if err := report.PrintSummary(run.Summary, run.Duration); err != nil {
				return err
			}
			return printRecords(run.Records)
		},
	}
}
