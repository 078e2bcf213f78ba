package cmd

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/jayjOnly/VA-Validator/database"
	"github.com/jayjOnly/VA-Validator/models"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/jayjOnly/VA-Validator/report"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"
)

type validateFlags struct {
	input   string
	output  string
	format  string
	noStore bool
	details bool
}

func newValidateCmd() *cobra.Command {
	var f validateFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate findings from a CSV export",
		Example: `  va-validator validate -i findings.csv
  va-validator validate -i findings.csv -o out/results.json -w 20 --deadline 10m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "input CSV with pluginID, IP address and port columns")
	fl.StringVarP(&f.output, "output", "o", "validation_results.csv", "output file")
	fl.StringVar(&f.format, "format", "", "output format, csv or json (default from the output extension)")
	fl.IntP("workers", "w", 10, "maximum concurrent probes")
	fl.Duration("timeout", 30*time.Second, "default per probe timeout")
	fl.Duration("deadline", 0, "overall deadline for the batch, 0 for none")
	fl.Float64("rate", 0, "maximum probes started per second, 0 for no limit")
	fl.BoolVar(&f.noStore, "no-store", false, "do not record the run in the history database")
	fl.BoolVar(&f.details, "details", false, "print every record after the summary")
	cmd.MarkFlagRequired("input")

	return cmd
}

func outputFormat(flag, path string) (report.Format, error) {
	if flag != "" {
		return report.ParseFormat(flag)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return report.FormatJSON, nil
	}
	return report.FormatCSV, nil
}

func runValidate(ctx context.Context, f validateFlags) error {
	format, err := outputFormat(f.format, f.output)
	if err != nil {
		return err
	}

	pterm.Info.Printfln("Reading findings from %s", f.input)
	findings, skipped, err := report.ReadFile(f.input)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		pterm.Warning.Printfln("Skipping %v", s)
	}
	if len(findings) == 0 {
		return fmt.Errorf("no valid findings in %s", f.input)
	}

	pm, err := newManager()
	if err != nil {
		return err
	}

	progress := report.StartProgress("Validating", len(findings))
	opts := dispatchOptions()
	opts.OnRecord = progress.Add

	d, err := plugin.NewDispatcher(pm, opts)
	if err != nil {
		progress.Stop()
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	pterm.Info.Printfln("Validating %d finding(s) with %d registered plugin(s)", len(findings), pm.Count())
	started := time.Now()
	records, err := d.Dispatch(ctx, findings)
	progress.Stop()
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	res := report.NewResult(uuid.NewString(), records)
	if err := report.WriteFile(f.output, format, res); err != nil {
		return err
	}

	if cfg.Database.Enabled && !f.noStore {
		storeRun(database.Run{
			RunID:     res.RunID,
			Source:    f.input,
			Workers:   opts.Workers,
			StartedAt: started,
			Duration:  elapsed,
			Summary:   res.Summary,
			Records:   records,
		})
	}

	if err := report.PrintSummary(res.Summary, elapsed); err != nil {
		return err
	}
	if f.details {
		if err := printRecords(records); err != nil {
			return err
		}
	}
	pterm.Success.Printfln("Results saved to %s (run %s)", f.output, res.RunID)
	return nil
}

// storeRun records the run in the history database. Failures only warn,
// the results file is already written.
func storeRun(run database.Run) {
	db, err := openDB()
	if err != nil {
		logrus.Warnf("run not recorded: %v", err)
		return
	}
	defer db.Close()

	if err := db.SaveRun(run); err != nil {
		logrus.Warnf("run not recorded: %v", err)
	}
}

func printRecords(records []models.Record) error {
	table, err := report.RecordsTable(records)
	if err != nil {
		return err
	}
	pterm.Println(table)
	return nil
}
