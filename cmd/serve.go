package cmd

import (
	"github.com/jayjOnly/VA-Validator/server"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"syscall"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := newManager()
			if err != nil {
				return err
			}

			var store server.Store
			if cfg.Database.Enabled {
				db, err := openDB()
				if err != nil {
					return err
				}
				defer db.Close()
				store = db
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.Start(ctx, pm, store, server.Config{
				Listen:       cfg.Server.Listen,
				AllowOrigins: cfg.Server.AllowOrigins,
				Options:      dispatchOptions(),
			})
		},
	}

	cmd.Flags().String("listen", ":8080", "address to listen on")
	return cmd
}
