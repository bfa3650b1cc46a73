package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luki/meterwatch/internal/chart"
	"github.com/luki/meterwatch/internal/config"
	"github.com/luki/meterwatch/internal/logging"
	"github.com/luki/meterwatch/internal/mockmeter"
	"github.com/luki/meterwatch/internal/monitor"
	"github.com/luki/meterwatch/internal/poller"
	"github.com/luki/meterwatch/internal/threshold"
	"github.com/luki/meterwatch/internal/upstream"
)

var (
	configPath string
	endpoint   string
	interval   time.Duration
	timeout    time.Duration
	staleAfter time.Duration
	logFile    string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "meterwatch",
		Short: "Live readout of a single energy meter",
		Long: `meterwatch polls an energy meter dashboard endpoint and shows
voltage, current, power and frequency with safety thresholds highlighted.`,
		SilenceUsage: true,
		RunE:         runMonitor,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file (default "+config.DefaultPath()+")")
	flags.StringVarP(&endpoint, "endpoint", "e", "", "Dashboard endpoint URL")
	flags.DurationVarP(&interval, "interval", "i", 0, "Refresh interval (minimum 1s)")
	flags.DurationVar(&timeout, "timeout", 0, "Per-request timeout")
	flags.DurationVar(&staleAfter, "stale-after", 0, "Age at which a reading is marked stale (0 disables, default 3x interval)")
	flags.StringVar(&logFile, "log-file", "", "Log file for the live monitor")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	addOnceCmd(rootCmd)
	addMockCmd(rootCmd)

	return rootCmd
}

// loadConfig reads the config file and applies flag overrides. Staleness is
// left unresolved so it follows the final interval unless set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = endpoint
	}
	if flags.Changed("interval") {
		cfg.Interval = interval
	}
	if flags.Changed("stale-after") {
		d := staleAfter
		cfg.StaleAfter = &d
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runMonitor starts the live TUI.
func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logging.File(cfg.Log.File, cfg.Log.Level, verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	client := upstream.New(cfg.Endpoint, cfg.Timeout, log.Named("upstream"))
	ctrl := poller.New(client,
		poller.WithInterval(cfg.Interval),
		poller.WithMaxInFlight(cfg.MaxInFlight),
		poller.WithLogger(log.Named("poller")),
	)

	log.Info("monitor starting",
		zap.String("endpoint", cfg.Endpoint),
		zap.Duration("interval", cfg.Interval),
	)

	return monitor.Run(ctx, ctrl, monitor.Options{
		Endpoint:   cfg.Endpoint,
		StaleAfter: cfg.Staleness(),
	})
}

// addOnceCmd adds a 'once' subcommand that fetches and prints one reading.
func addOnceCmd(rootCmd *cobra.Command) {
	var asJSON bool

	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Fetch one reading and print the classified fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := logging.Console(cfg.Log.Level, verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signalContext()
			defer stop()

			reading, err := upstream.New(cfg.Endpoint, cfg.Timeout, log).Fetch(ctx)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", cfg.Endpoint, err)
			}
			fields := threshold.ClassifyReading(reading)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Slave  int                `json:"slave"`
					Status string             `json:"status"`
					Worst  threshold.Severity `json:"worst"`
					Fields []threshold.Field  `json:"fields"`
				}{reading.Slave, string(reading.Status), threshold.Worst(fields), fields})
			}

			cmd.Println(fmt.Sprintf("Slave ID: %d  Status: %s  Worst: %s",
				reading.Slave, reading.Status, threshold.Worst(fields)))
			for _, f := range fields {
				cmd.Println(fmt.Sprintf("  %-5s %-14s %-14s %s",
					f.Name, f.Quantity, chart.FormatValue(f.Value, f.Unit), f.Severity))
			}
			return nil
		},
	}
	onceCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	rootCmd.AddCommand(onceCmd)
}

// addMockCmd adds a 'mock' subcommand serving a simulated meter.
func addMockCmd(rootCmd *cobra.Command) {
	var addr string
	var slave int

	mockCmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve a simulated meter on " + mockmeter.DashboardPath,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Mock.Addr = addr
			}
			if cmd.Flags().Changed("slave") {
				cfg.Mock.Slave = slave
			}

			log, err := logging.Console(cfg.Log.Level, verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			if !verbose {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signalContext()
			defer stop()

			log.Info("mock meter listening",
				zap.String("addr", cfg.Mock.Addr),
				zap.String("path", mockmeter.DashboardPath),
				zap.Int("slave", cfg.Mock.Slave),
			)
			sim := mockmeter.NewSimulator(cfg.Mock.Slave, uint64(time.Now().UnixNano()))
			if err := mockmeter.Serve(ctx, cfg.Mock.Addr, sim, log); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mock server: %w", err)
			}
			return nil
		},
	}
	mockCmd.Flags().StringVar(&addr, "addr", config.DefaultMockAddr, "Listen address")
	mockCmd.Flags().IntVar(&slave, "slave", 1, "Simulated slave id")

	rootCmd.AddCommand(mockCmd)
}
