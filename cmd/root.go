// Package cmd implements the va-validator command line.
package cmd

import (
	"context"
	"fmt"
	"github.com/jayjOnly/VA-Validator/catalog"
	"github.com/jayjOnly/VA-Validator/config"
	"github.com/jayjOnly/VA-Validator/database"
	"github.com/jayjOnly/VA-Validator/logger"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
)

var (
	cfgFile string
	debug   bool

	v   = viper.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "va-validator",
	Short: "Re-validate vulnerability scanner findings against live targets",
	Long: `va-validator reads findings exported by a vulnerability scanner (plugin id,
host, port), runs a targeted check for each one against the live target and
reports whether the finding is confirmed, not reproducible or undetermined.

Examples:
  va-validator validate -i findings.csv -o validation_results.csv -w 20
  va-validator list-plugins --format json
  va-validator serve --listen :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./"+config.DefaultFile+")")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.BoolVar(&debug, "debug", false, "shortcut for --log-level debug")
	pf.String("nmap", "nmap", "path to the nmap binary")
	pf.String("db", "va-validator.db", "path to the run history database")

	rootCmd.AddCommand(
		newValidateCmd(),
		newListPluginsCmd(),
		newServeCmd(),
		newRunsCmd(),
		newConfigCmd(),
	)
}

func initConfig(cmd *cobra.Command) error {
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if debug {
		loaded.Log.Level = "debug"
	}
	if err := logger.Init(loaded.Log); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	if loaded.Log.Level != "debug" && loaded.Log.Level != "trace" {
		pterm.DisableDebugMessages()
	}

	if used := v.ConfigFileUsed(); used != "" {
		logrus.Debugf("using config file %s", used)
	}
	cfg = loaded
	return nil
}

func newManager() (*plugin.Manager, error) {
	return catalog.New(catalog.Config{
		NmapPath:         cfg.Nmap.Path,
		ExpiryWindowDays: cfg.Checks.ExpiryWindowDays,
	})
}

func dispatchOptions() plugin.Options {
	return plugin.Options{
		Workers:      cfg.Workers,
		ProbeTimeout: cfg.ProbeTimeout,
		Deadline:     cfg.Deadline,
		RateLimit:    cfg.RateLimit,
	}
}

func openDB() (*database.DB, error) {
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening run history %s: %w", cfg.Database.Path, err)
	}
	return db, nil
}
