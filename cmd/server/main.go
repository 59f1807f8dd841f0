// @title SoftVault API
// @version 1.0
// @description Internal software distribution portal: request, review, catalog and download.
// @BasePath /
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohits-web03/softvault/internal/config"
	"github.com/rohits-web03/softvault/internal/logger"
	"github.com/rohits-web03/softvault/internal/repositories"
)

var version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "softvault",
	Short:         "Software distribution portal",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and seed accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		log, closer, err := logger.New(cfg.Log)
		if err != nil {
			return err
		}
		defer closer.Close()

		db, err := repositories.Open(cfg.DBURL, log)
		if err != nil {
			return err
		}
		if err := repositories.Migrate(db, cfg.Admin); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", "", "env file to load (default .env or $ENV_FILE)")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
