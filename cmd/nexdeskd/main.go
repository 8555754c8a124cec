// Command nexdeskd runs the dispatch service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nexdesk/nexdesk"
	"github.com/nexdesk/nexdesk/server"
	"github.com/nexdesk/nexdesk/store/postgres"
	"github.com/nexdesk/nexdesk/tenant"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "nexdeskd",
		Short:         "Multi-tenant support ticket dispatch service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(migrateCmd(&configPath))
	root.AddCommand(provisionCmd(&configPath))
	return root
}

func loadConfig(path string) (nexdesk.Config, error) {
	if path == "" {
		return nexdesk.DefaultConfig(), nil
	}
	return nexdesk.LoadConfig(path)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func openStore(ctx context.Context, cfg nexdesk.Config, logger *slog.Logger) (*postgres.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is not configured")
	}
	return postgres.New(ctx, cfg.DatabaseURL, postgres.WithLogger(logger))
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP dispatch server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger()
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.Ping(ctx); err != nil {
				return fmt.Errorf("database unreachable: %w", err)
			}

			return server.New(cfg, st, server.WithLogger(logger)).Start(ctx)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply shared-schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger()

			st, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}

func provisionCmd(configPath *string) *cobra.Command {
	var subdomain, partition string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision a tenant: catalog row, schema, and partition tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger()

			if partition == "" {
				partition = subdomain
			}

			st, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			rec := tenant.Record{
				TenantID:  uuid.New(),
				Subdomain: subdomain,
				Partition: partition,
			}
			if err := st.Provision(cmd.Context(), rec); err != nil {
				return err
			}
			logger.Info("tenant provisioned",
				slog.String("subdomain", rec.Subdomain),
				slog.String("partition", rec.Partition),
				slog.String("tenant_id", rec.TenantID.String()),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&subdomain, "subdomain", "", "tenant subdomain (required)")
	cmd.Flags().StringVar(&partition, "partition", "", "schema name, defaults to the subdomain")
	_ = cmd.MarkFlagRequired("subdomain")
	return cmd
}
