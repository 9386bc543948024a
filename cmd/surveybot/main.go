// Command surveybot runs the D&D survey Telegram bot.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/dndsurvey/bot/app"
	"github.com/m3rciful/dndsurvey/core/bootstrap"
	"github.com/m3rciful/dndsurvey/core/buildinfo"
	corecmd "github.com/m3rciful/dndsurvey/core/cmd"
	coreconfig "github.com/m3rciful/dndsurvey/core/config"
	"github.com/m3rciful/dndsurvey/core/database"
	"github.com/m3rciful/dndsurvey/core/logger"
)

const configEnvVar = "CONFIG_PATH"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "surveybot",
		Short:         "D&D survey bot for Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"YAML config file (default from $"+configEnvVar+"); environment variables override it")

	run := newRunCmd(&configPath)
	root.Args = cobra.NoArgs
	root.RunE = run.RunE
	root.AddCommand(
		run,
		newMigrateCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return corecmd.Run(cmd.Context(), corecmd.Options{
				ConfigPath:   *configPath,
				ConfigEnvVar: configEnvVar,
				LoadConfig:   coreconfig.Load,
				Bootstrap:    bootstrapApp,
			})
		},
	}
}

type process struct {
	*app.App
	infra *bootstrap.Result
}

func (p process) Close() error {
	return p.infra.Close()
}

func bootstrapApp(_ context.Context, cfg *coreconfig.Config) (corecmd.App, error) {
	infra, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, infra.DB)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return process{App: a, infra: infra}, nil
}

func newMigrateCmd(configPath *string) *cobra.Command {
	var steps int

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return withDatabaseConfig(*configPath, database.RunMigrations)
		},
	}
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return withDatabaseConfig(*configPath, func(c database.Config) error {
				return database.RollbackMigrations(c, steps)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")
	migrate.AddCommand(up, down)
	return migrate
}

func withDatabaseConfig(path string, run func(database.Config) error) error {
	if path == "" {
		path = os.Getenv(configEnvVar)
	}
	cfg, err := coreconfig.LoadDatabase(path)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown() }()
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}
	return run(cfg.Database)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "surveybot "+buildinfo.String())
		},
	}
}
