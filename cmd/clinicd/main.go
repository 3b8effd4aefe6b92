// Command clinicd runs the dental clinic back office API.
//
//	clinicd serve     start the HTTP server
//	clinicd migrate   create or update the database schema and exit
//
// Configuration comes from the environment (and a .env file when present).
//
// @title                      Dental Clinic Back Office API
// @version                    1.0
// @description                Agenda with overlap detection, patients, clinical records and staff.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the JWT.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-dental-backend/internal/config"
	"github.com/tbourn/go-dental-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg     config.Config
		envFile string
	)

	root := &cobra.Command{
		Use:           "clinicd",
		Short:         "Dental clinic back office API",
		Long:          "clinicd serves the clinic agenda, patient files and staff administration over HTTP.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env is normal outside development.
			_ = godotenv.Load(envFile)

			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg = loaded
			sysutil.InitLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(newServeCmd(&cfg), newMigrateCmd(&cfg))
	return root
}
