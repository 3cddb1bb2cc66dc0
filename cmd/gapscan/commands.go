package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"trade-journal/internal/config"
	"trade-journal/internal/database"
	"trade-journal/internal/gapscan"
	"trade-journal/internal/logger"
	"trade-journal/internal/models"
	"trade-journal/internal/pricestore"
	"trade-journal/internal/schema"
	"trade-journal/internal/telemetry"
	"trade-journal/internal/tradestore"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	threshold  float64
	workers    int
	listLimit  int
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gapscan",
		Short:        "Detect opening gaps across tickers and store them in the journal database",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./configs", "Directory containing config.yml")

	scanCmd := &cobra.Command{
		Use:   "scan [ticker...]",
		Short: "Scan the given tickers, or every ticker with price data",
		RunE:  runScan,
	}
	scanCmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum absolute gap in percent (default from config)")
	scanCmd.Flags().IntVar(&workers, "workers", 0, "Tickers scanned concurrently (default from config)")

	listCmd := &cobra.Command{
		Use:   "list <ticker>",
		Short: "Print stored gaps for a ticker, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
	listCmd.Flags().Float64Var(&threshold, "min-gap", 0, "Minimum absolute gap in percent")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum rows to print")

	root.AddCommand(scanCmd, listCmd)
	return root
}

// setup loads configuration and opens the database shared by every command.
func setup() (config.Config, *zap.Logger, *tradestore.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return cfg, log, nil, err
	}
	return cfg, log, tradestore.New(db), nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, log, store, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, os.Stderr)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	prices, closePrices, err := pricestore.FromConfig(ctx, &cfg.Prices, schema.Default(), log)
	if err != nil {
		return err
	}
	defer closePrices()

	t := threshold
	if t <= 0 {
		t = cfg.Gaps.Threshold
	}
	w := workers
	if w <= 0 {
		w = cfg.Gaps.ScanWorkers
	}

	res, err := gapscan.NewScanner(prices, store, t, w, log).Run(ctx, args)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d tickers: %d gaps stored, %d failed (%s)\n",
		res.Tickers, res.Gaps, res.Failed, res.Duration.Round(time.Millisecond))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	_, log, store, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	gaps, err := store.ListGaps(cmd.Context(), pricestore.NormalizeTicker(args[0]), threshold, listLimit)
	if err != nil {
		return err
	}
	printGaps(cmd, gaps)
	return nil
}

func printGaps(cmd *cobra.Command, gaps []models.Gap) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tGAP %\tDIR\tOPEN\tPREV CLOSE\tVOLUME")
	for _, g := range gaps {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%.4f\t%.4f\t%.0f\n",
			g.Date.Format(models.DateLayout), g.GapPct, g.Direction, g.Open, g.PrevClose, g.Volume)
	}
	tw.Flush()
}
