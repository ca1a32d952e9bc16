package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stepcounter/internal/bootstrap"
	"stepcounter/internal/platform/config"
	"stepcounter/internal/platform/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	dataDir  string
	logLevel string
}

type sourceFlags struct {
	kind   string
	path   string
	period time.Duration
	poll   time.Duration
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "stepcounter",
		Short:         "Count steps since the last reset and save them periodically",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data", ".", "directory holding stepcounter.yaml and .stepcounter/")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(newTrackCmd(flags))
	root.AddCommand(newTUICmd(flags))
	root.AddCommand(newLatestCmd(flags))
	root.AddCommand(newHistoryCmd(flags))
	return root
}

func loadConfig(flags *globalFlags, source *sourceFlags) (config.Config, error) {
	cfg, err := config.Load(flags.dataDir)
	if err != nil {
		return config.Config{}, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if source != nil {
		if source.kind != "" {
			cfg.Source.Kind = source.kind
			if source.kind == config.SourceStream {
				cfg.Source.Path = ""
			}
		}
		if source.path != "" {
			cfg.Source.Path = source.path
		}
		if source.period > 0 {
			cfg.SavePeriod = source.period
		}
		if source.poll > 0 {
			cfg.Source.PollInterval = source.poll
		}
	}
	return cfg, cfg.Validate()
}

func loadApp(cfg config.Config, logOut io.Writer) (*bootstrap.App, *slog.Logger, error) {
	logger, err := logging.New(logOut, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	app, err := bootstrap.New(cfg, os.Stdin, logger)
	if err != nil {
		return nil, nil, err
	}
	return app, logger, nil
}

func addSourceFlags(cmd *cobra.Command, source *sourceFlags) {
	cmd.Flags().StringVar(&source.kind, "source", "", "step source: sysfs|stream")
	cmd.Flags().StringVar(&source.path, "path", "", "sysfs attribute or stream file (stream reads stdin when empty)")
	cmd.Flags().DurationVar(&source.period, "period", 0, "save period (default 1m)")
	cmd.Flags().DurationVar(&source.poll, "poll", 0, "sysfs poll interval (default 1s)")
}

func newTrackCmd(flags *globalFlags) *cobra.Command {
	source := &sourceFlags{}
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track steps headless until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, source)
			if err != nil {
				return err
			}
			app, logger, err := loadApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if latest, err := app.HistoryCLI.Latest(ctx); err == nil && latest.Found {
				logger.Info("last saved count", "count", latest.Record.Count, "saved_at", latest.Record.SavedAt)
			}

			updates, err := app.TrackingCLI.Watch(ctx)
			if err != nil {
				return err
			}
			runErr := make(chan error, 1)
			go func() { runErr <- app.TrackingCLI.Run(ctx) }()

			if _, err := app.TrackingCLI.Grant(ctx); err != nil {
				stop()
				<-runErr
				return err
			}
			for state := range updates {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\tsteps=%d\tsensor=%t\tsaving=%t\n", state.Phase, state.DisplayedCount, state.SensorAvailable, state.Saving)
			}
			if err := <-runErr; err != nil {
				return err
			}
			final, err := app.TrackingCLI.State(context.Background())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session %s ended\tsteps=%d\n", final.SessionID, final.DisplayedCount)
			return nil
		},
	}
	addSourceFlags(cmd, source)
	return cmd
}

func newTUICmd(flags *globalFlags) *cobra.Command {
	source := &sourceFlags{}
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the step counter terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, source)
			if err != nil {
				return err
			}
			logFile, err := logging.OpenFile(cfg.LogPath)
			if err != nil {
				return err
			}
			defer func() { _ = logFile.Close() }()

			app, _, err := loadApp(cfg, logFile)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return bootstrap.RunTUI(ctx, app)
		},
	}
	addSourceFlags(cmd, source)
	return cmd
}

func newLatestCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the most recently saved step count",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, nil)
			if err != nil {
				return err
			}
			app, _, err := loadApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			latest, err := app.HistoryCLI.Latest(context.Background())
			if err != nil {
				return err
			}
			if !latest.Found {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no saved count")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", latest.Record.Count, latest.Record.SavedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently saved step counts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, nil)
			if err != nil {
				return err
			}
			app, _, err := loadApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			records, err := app.HistoryCLI.Recent(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no saved counts")
				return nil
			}
			for _, r := range records {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%d\n", r.ID, r.SavedAt.Format(time.RFC3339), r.Count)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of records to show (must be positive)")
	return cmd
}
