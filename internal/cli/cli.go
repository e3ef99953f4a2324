package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pfrederiksen/labordata/internal/config"
	"github.com/pfrederiksen/labordata/internal/harvest"
	"github.com/pfrederiksen/labordata/internal/notify"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitNewData = 2
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	flagConfig     string
	flagDataDir    string
	flagExportsDir string
	flagMonths     int
	flagFormat     string
	flagVerbose    bool
	flagAnnounce   bool
	flagNoArchive  bool
	flagCron       string
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labordata",
		Short: "Capture the latest US labor and immigration datasets",
		Long: `labordata pulls the most recent datasets from government labor and
immigration sources (DOL disclosure files, USCIS reports, State Department
visa bulletins, BLS and Census APIs, state WARN portals), keeps a manifest
of everything captured, and zips the collection for export.`,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "sources.yaml", "Path to the sources config file")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Override the configured data directory")
	cmd.PersistentFlags().StringVar(&flagExportsDir, "exports-dir", "", "Override the configured exports directory")
	cmd.PersistentFlags().IntVar(&flagMonths, "months", 0, "Override the recency window in months")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSourcesCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one harvest across all configured sources",
		RunE:  runHarvest,
	}
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&flagAnnounce, "announce", false, "Announce new captures after the run")
	cmd.Flags().BoolVar(&flagNoArchive, "no-archive", false, "Skip writing the export archive")
	return cmd
}

// runHarvest is the main command logic
func runHarvest(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := harvest.New(cfg, log, harvest.Options{
		Notifier:    notifierFor(cfg, log),
		SkipArchive: flagNoArchive,
	})
	report, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("running harvest: %w", err)
	}

	if err := WriteOutput(os.Stdout, report, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	// Signal new captures to callers the way grep signals matches.
	if report.NewCaptures > 0 {
		os.Exit(ExitNewData)
	}
	os.Exit(ExitSuccess)
	return nil
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			WriteSources(os.Stdout, cfg.Sources)
			return nil
		},
	}
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the harvest on a cron schedule",
		RunE:  runSchedule,
	}
	cmd.Flags().StringVar(&flagCron, "cron", "", "Cron expression (overrides the configured schedule)")
	cmd.Flags().BoolVar(&flagAnnounce, "announce", false, "Announce new captures after each run")
	cmd.Flags().BoolVar(&flagNoArchive, "no-archive", false, "Skip writing export archives")
	return cmd
}

// runSchedule blocks, harvesting on every cron tick until interrupted.
// A failed tick is logged and the schedule keeps going.
func runSchedule(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	expr := flagCron
	if expr == "" {
		expr = cfg.Schedule
	}
	if expr == "" {
		return fmt.Errorf("no schedule configured: set 'schedule' in %s or pass --cron", flagConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	_, err = c.AddFunc(expr, func() {
		runner := harvest.New(cfg, log, harvest.Options{
			Notifier:    notifierFor(cfg, log),
			SkipArchive: flagNoArchive,
		})
		report, err := runner.Run(ctx)
		if err != nil {
			log.Error("scheduled run failed", zap.Error(err))
			return
		}
		log.Info("scheduled run complete",
			zap.String("run_id", report.RunID),
			zap.Int("new_captures", report.NewCaptures),
			zap.Int("total_tracked", report.TotalTracked))
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	log.Info("schedule started", zap.String("cron", expr))
	c.Start()
	<-ctx.Done()

	log.Info("shutting down")
	<-c.Stop().Done()
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("labordata %s\n", version)
		},
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagExportsDir != "" {
		cfg.ExportsDir = flagExportsDir
	}
	if flagMonths > 0 {
		cfg.WindowMonths = flagMonths
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if !flagVerbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return log, nil
}

// notifierFor returns the announcement channel for a run, or nil when
// announcements are off. Missing Twitter credentials degrade to dry-run
// so a scheduled harvest never fails over an announcement.
func notifierFor(cfg *config.Config, log *zap.Logger) notify.Notifier {
	if !flagAnnounce && !cfg.Announce {
		return nil
	}
	tw, err := notify.NewTwitter()
	if err != nil {
		log.Warn("announcements fall back to dry-run", zap.Error(err))
		return notify.NewDryRun()
	}
	return tw
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
