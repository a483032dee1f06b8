// Package cmd implements the multicoder CLI commands using Cobra.
// It provides commands for managing authentication profiles across the
// Claude, Gemini, Codex, and Amazon Q CLIs: creating and switching
// profiles, driving provider auth flows, and persisting environment
// variables.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ljyou001/multicoder/internal/config"
	"github.com/ljyou001/multicoder/internal/credstore"
	"github.com/ljyou001/multicoder/internal/envstore"
	mcexec "github.com/ljyou001/multicoder/internal/exec"
	"github.com/ljyou001/multicoder/internal/migrate"
	"github.com/ljyou001/multicoder/internal/orchestrator"
	"github.com/ljyou001/multicoder/internal/paths"
	"github.com/ljyou001/multicoder/internal/profile"
	"github.com/ljyou001/multicoder/internal/prompt"
	"github.com/ljyou001/multicoder/internal/provider"
	"github.com/ljyou001/multicoder/internal/slogger"
	"github.com/ljyou001/multicoder/internal/translator"
)

// appConfig holds the loaded application configuration.
var appConfig *config.Config

// configLoader is used for accessing configuration by key.
var configLoader *config.Loader

// verbosity is the count of -v flags.
var verbosity int

var rootCmd = &cobra.Command{
	Use:   "multicoder",
	Short: "Switch authentication profiles across AI coding CLIs",
	Long: `Multicoder brokers authentication state for the Claude, Gemini, Codex,
and Amazon Q CLIs. A profile binds one or more providers to a credential
(OAuth token, API key, or environment variable); switching profiles
rewrites each provider's native credential state without re-authenticating.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := slogger.WithLogger(cmd.Context(), newLogger())

		configDir, err := paths.ConfigDir()
		if err != nil {
			return err
		}
		if appConfig != nil && appConfig.Storage.ConfigDir != "" {
			configDir = appConfig.Storage.ConfigDir
		}

		if err := migrate.Run(ctx, configDir, paths.LegacyDirs()); err != nil {
			return fmt.Errorf("migrate legacy configuration: %w", err)
		}

		orch, env, err := initOrchestrator(configDir)
		if err != nil {
			return err
		}

		// Store dependencies in context for subcommands
		ctx = WithConfig(ctx, appConfig)
		ctx = WithLoader(ctx, configLoader)
		ctx = WithOrchestrator(ctx, orch)
		ctx = WithEnvStore(ctx, env)
		cmd.SetContext(ctx)

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v, -vv)")
}

func initConfig() {
	loader, err := config.NewLoader()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
		return
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config validation failed: %v\n", err)
	}

	appConfig = cfg
	configLoader = loader
}

func newLogger() *slog.Logger {
	return slogger.New(slogger.Config{Verbosity: verbosity})
}

// initOrchestrator wires the registry, stores, and translators together.
func initOrchestrator(configDir string) (*orchestrator.Orchestrator, envstore.Store, error) {
	registry, err := provider.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("get home directory: %w", err)
	}

	executor := mcexec.New()
	env, err := envstore.New(envstore.Options{
		ConfigDir: configDir,
		Executor:  executor,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize environment store: %w", err)
	}

	creds := credstore.New(configDir, registry)
	profiles := profile.NewStore(paths.ProfilesFile(configDir), registry)
	translators := translator.NewRegistry(translator.Deps{
		Registry: registry,
		Creds:    creds,
		Env:      env,
		Executor: executor,
		Prompter: prompt.New(),
		Home:     home,
	})

	return orchestrator.New(profiles, creds, translators, registry), env, nil
}
