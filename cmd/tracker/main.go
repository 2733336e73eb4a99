package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-hiring-tracker/internal/api"
	"go-hiring-tracker/internal/app"
	"go-hiring-tracker/internal/config"
	"go-hiring-tracker/internal/diff"
	"go-hiring-tracker/internal/export"
	"go-hiring-tracker/internal/logger"
	"go-hiring-tracker/internal/models"
	"go-hiring-tracker/internal/report"
	"go-hiring-tracker/internal/scheduler"
	"go-hiring-tracker/internal/snapshot"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tracker",
		Short:         "Track job listings on company career portals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultPath+")")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(runCmd(), scheduleCmd(), showCmd(), exportCmd())
	return root
}

// setup loads config and logger and builds the app.
func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log, err := logger.New(level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	log.Info("🔧 Config loaded", zap.Int("portals", len(cfg.Portals)), zap.String("policy", cfg.Policy))

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

func teardown(a *app.App) {
	if err := a.Close(); err != nil {
		a.Log.Warn("shutdown", zap.Error(err))
	}
	_ = a.Log.Sync()
}

func runCmd() *cobra.Command {
	var portal string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan portals once and report what changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown(a)

			portals := a.Config.PortalsNamed(portal)
			if len(portals) == 0 {
				return fmt.Errorf("no portal named %q", portal)
			}

			a.Log.Info("🚀 Starting scan", zap.Int("portals", len(portals)))
			results, runErr := a.Tracker.RunAll(cmd.Context(), portals)

			out := cmd.OutOrStdout()
			report.Results(out, results, a.Regions)
			report.Changes(out, results)

			if a.Config.Export.Path != "" {
				if err := saveExport(cmd.Context(), a, a.Config.Export.Path, results); err != nil {
					a.Log.Warn("export failed", zap.Error(err))
				}
			}
			if runErr != nil && a.Notifier != nil {
				_ = a.Notifier.SendError(runErr)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&portal, "portal", "", "only scan portals with this name")
	return cmd
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Scan all portals on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown(a)

			s := scheduler.New(a.Config.Schedule, func(ctx context.Context) error {
				results, err := a.Tracker.RunAll(ctx, a.Config.Portals)
				report.Results(cmd.OutOrStdout(), results, a.Regions)
				return err
			}, a.Log)
			if err := s.Start(cmd.Context()); err != nil {
				return err
			}

			<-cmd.Context().Done()
			a.Log.Info("🛑 Shutting down scheduler")
			s.Stop()
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <portal> <category>",
		Short: "Print the stored snapshot of one portal category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown(a)

			snap, err := a.Tracker.Snapshot(cmd.Context(), models.SnapshotKey{Portal: args[0], Category: args[1]})
			if err != nil {
				return err
			}
			if asJSON {
				data, err := snapshot.Dump(snap)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			report.Snapshot(cmd.OutOrStdout(), snap, a.Regions)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored snapshot to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer teardown(a)

			if out == "" {
				out = a.Config.Export.Path
			}
			if err := saveExport(cmd.Context(), a, out, nil); err != nil {
				return err
			}
			a.Log.Info("📄 Export written", zap.String("path", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (default export.path)")
	return cmd
}

func saveExport(ctx context.Context, a *app.App, path string, results []diff.Result) error {
	latest := api.NewLatest()
	for _, res := range results {
		_ = latest.Report(ctx, res)
	}
	sheets, err := api.Sheets(ctx, a.Tracker, a.Config.Portals, latest)
	if err != nil {
		return err
	}
	return export.Save(path, sheets, a.Regions)
}
