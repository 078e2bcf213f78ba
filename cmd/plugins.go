package cmd

import (
	"encoding/json"
	"fmt"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/jayjOnly/VA-Validator/report"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"io"
	"strings"
)

func newListPluginsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "list-plugins",
		Aliases: []string{"list-checks"},
		Short:   "List the registered plugins",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := newManager()
			if err != nil {
				return err
			}
			return writePlugins(cmd.OutOrStdout(), format, pm.List())
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format (table, json, yaml)")
	return cmd
}

func writePlugins(w io.Writer, format string, infos []plugin.Info) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(infos)
	case "table", "":
		table, err := report.PluginsTable(infos)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, table)
		return err
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
