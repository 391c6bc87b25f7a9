package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/funcdeck-hq/funcdeck/internal/api"
	"github.com/funcdeck-hq/funcdeck/internal/config"
	"github.com/funcdeck-hq/funcdeck/internal/distribute"
	"github.com/funcdeck-hq/funcdeck/internal/runner"
	"github.com/funcdeck-hq/funcdeck/internal/scanner"
	"github.com/funcdeck-hq/funcdeck/internal/schema"
	"github.com/funcdeck-hq/funcdeck/internal/store"
	"github.com/funcdeck-hq/funcdeck/internal/watch"
)

var version = "dev"

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	rootCmd := &cobra.Command{
		Use:     "funcdeck",
		Short:   "funcdeck - local development console for backend functions",
		Long:    `funcdeck discovers the functions and tables of a backend-function project and serves them to a console UI, with live refresh and request history.`,
		Version: version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scanCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var projectRoot string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the console server for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			project, err := config.LoadProjectConfig(projectRoot)
			if err != nil {
				return err
			}

			scan := scanner.New(scanner.Options{
				SourceExtensions: project.SourceExtensions,
				ExcludeDirs:      project.ExcludeDirs,
				TestSuffixes:     project.TestSuffixes,
			})
			root := filepath.Join(projectRoot, project.FunctionsDir)
			builder := schema.NewBuilder(root, project.SchemaFile, scan)
			hub := distribute.NewHub()

			watcher := watch.New(builder, scan, hub, time.Duration(project.DebounceMs)*time.Millisecond)
			if err := watcher.Start(ctx); err != nil {
				return fmt.Errorf("failed to scan %s: %w", root, err)
			}
			defer watcher.Stop()
			log.Info().
				Int("functions", hub.Current().FunctionCount()).
				Int("tables", len(hub.Current().Tables)).
				Msg("project scanned")

			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			client := runner.NewClient(cfg.DeploymentURL, cfg.DeploymentAdminKey)
			srv := api.NewServer(cfg, hub, client, st)

			log.Info().Int("port", cfg.Port).Str("deployment", cfg.DeploymentURL).Msg("starting console server")
			if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectRoot, "project", "p", ".", "Path to the project root")

	return cmd
}

func scanCmd() *cobra.Command {
	var projectRoot string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a project once and print the schema snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := config.LoadProjectConfig(projectRoot)
			if err != nil {
				return err
			}

			scan := scanner.New(scanner.Options{
				SourceExtensions: project.SourceExtensions,
				ExcludeDirs:      project.ExcludeDirs,
				TestSuffixes:     project.TestSuffixes,
			})
			root := filepath.Join(projectRoot, project.FunctionsDir)
			builder := schema.NewBuilder(root, project.SchemaFile, scan)

			snap, err := builder.Build(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", root, err)
			}

			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectRoot, "project", "p", ".", "Path to the project root")

	return cmd
}

// openStore selects the persistence backend: Postgres when DATABASE_URL
// is set, the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("no DATABASE_URL set, collections and history are in-memory only")
		return store.NewMemory(), nil
	}
	st, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}
